// Package memory is an in-process cache.Store with lazy expiry. It serves
// tests and single-process development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/offload/cache"
)

var _ cache.Store = (*Store)(nil)

type item struct {
	value   []byte
	expires time.Time // zero => no TTL
}

// Option configures the Store.
type Option func(*Store)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is a mutex-guarded map. Expired entries are dropped when read.
type Store struct {
	mu    sync.Mutex
	items map[string]item
	now   func() time.Time
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		items: make(map[string]item),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns a copy of the value under key, or cache.ErrMiss.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	if !it.expires.IsZero() && !s.now().Before(it.expires) {
		delete(s.items, key)
		return nil, cache.ErrMiss
	}
	return append([]byte(nil), it.value...), nil
}

// Set stores a copy of value.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	it := item{value: append([]byte(nil), value...)}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ttl > 0 {
		it.expires = s.now().Add(ttl)
	}
	s.items[key] = it
	return nil
}

// Delete removes key.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Clear removes every entry.
func (s *Store) Clear(context.Context) error {
	s.mu.Lock()
	clear(s.items)
	s.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Len returns the number of stored entries, expired ones included until
// they are read.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
