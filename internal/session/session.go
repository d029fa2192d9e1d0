// Package session keeps the identity of a logged-in person behind an opaque
// token.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/reisinl/veg-shop/internal/entity"
)

// ErrNoSession is returned for unknown or expired tokens.
var ErrNoSession = errors.New("session not found")

// Session is what the HTTP layer resolves a token to.
type Session struct {
	Token     string      `json:"token"`
	PersonID  int64       `json:"person_id"`
	Username  string      `json:"username"`
	Role      entity.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func (s *Session) IsStaff() bool {
	return s.Role == entity.RoleStaff
}

// Store persists sessions with a time to live.
type Store interface {
	Create(ctx context.Context, p *entity.Person) (*Session, error)
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	Close() error
}

func newSession(p *entity.Person, ttl time.Duration, now time.Time) (*Session, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return &Session{
		Token:     hex.EncodeToString(buf),
		PersonID:  p.ID,
		Username:  p.Username,
		Role:      p.Role(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}
