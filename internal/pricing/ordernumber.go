package pricing

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ULIDNumbers generates order numbers from monotonic ULIDs, so two orders
// placed in the same millisecond still get distinct, ordered numbers.
type ULIDNumbers struct {
	mu      sync.Mutex
	now     func() time.Time
	entropy io.Reader
}

func NewULIDNumbers() *ULIDNumbers {
	return &ULIDNumbers{
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (g *ULIDNumbers) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return "ORD" + ulid.MustNew(ulid.Timestamp(g.now()), g.entropy).String()
}
