package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/reisinl/veg-shop/internal/entity"
)

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Create(ctx context.Context, p *entity.Person) (*Session, error) {
	sess, err := newSession(p, s.ttl, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Token] = *sess
	return sess, nil
}

// Get drops expired sessions lazily.
func (s *MemoryStore) Get(ctx context.Context, token string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, ErrNoSession
	}
	if !s.now().Before(sess.ExpiresAt) {
		delete(s.sessions, token)
		return nil, ErrNoSession
	}
	return &sess, nil
}

func (s *MemoryStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
