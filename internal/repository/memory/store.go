// Package memory is an in-process repository.Store used for local runs and
// tests. A transaction works on a copy of the whole state and swaps it in on
// success, so a failed transaction leaves nothing behind.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/reisinl/veg-shop/internal/entity"
	"github.com/reisinl/veg-shop/internal/repository"
)

type state struct {
	nextPersonID int64
	nextItemID   int64
	nextOrderID  int64
	nextLineID   int64

	persons  map[int64]entity.Person
	items    map[int64]entity.Item
	orders   map[int64]entity.Order
	payments []entity.Payment
	events   map[string][]entity.EventStoreRecord
}

func newState() *state {
	return &state{
		persons: make(map[int64]entity.Person),
		items:   make(map[int64]entity.Item),
		orders:  make(map[int64]entity.Order),
		events:  make(map[string][]entity.EventStoreRecord),
	}
}

// clone copies the maps. Stored values are never mutated in place, so the
// values themselves can be shared between the copies.
func (s *state) clone() *state {
	c := *s
	c.persons = make(map[int64]entity.Person, len(s.persons))
	for k, v := range s.persons {
		c.persons[k] = v
	}
	c.items = make(map[int64]entity.Item, len(s.items))
	for k, v := range s.items {
		c.items[k] = v
	}
	c.orders = make(map[int64]entity.Order, len(s.orders))
	for k, v := range s.orders {
		c.orders[k] = v
	}
	c.payments = s.payments[:len(s.payments):len(s.payments)]
	c.events = make(map[string][]entity.EventStoreRecord, len(s.events))
	for k, v := range s.events {
		c.events[k] = v[:len(v):len(v)]
	}
	return &c
}

// view hands a repository the state it should work on.
type view interface {
	with(fn func(st *state) error) error
}

// Store serialises every transaction behind one mutex. Callers must not use
// Repos from inside WithinTx.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		st:  newState(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// direct runs each repository call against the live state under the lock.
type direct struct{ s *Store }

func (d direct) with(fn func(st *state) error) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	return fn(d.s.st)
}

// staged runs repository calls against a transaction's private copy.
type staged struct{ st *state }

func (t staged) with(fn func(st *state) error) error {
	return fn(t.st)
}

func (s *Store) bind(v view) repository.Repositories {
	return repository.Repositories{
		Persons:  &personRepository{v: v},
		Items:    &itemRepository{v: v},
		Orders:   &orderRepository{v: v, now: s.now},
		Payments: &paymentRepository{v: v, now: s.now},
		Reports:  &reportRepository{v: v},
		Events:   &eventStore{v: v, now: s.now},
	}
}

func (s *Store) Repos() repository.Repositories {
	return s.bind(direct{s: s})
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(ctx, s.bind(staged{st: work})); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}
