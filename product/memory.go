package product

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	rows   []*Product
	nextID int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// List returns copies of the matching products.
func (s *MemoryStore) List(_ context.Context, opts ListOpts) ([]*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Product
	for _, p := range s.rows {
		if p.Price < opts.MinPrice {
			continue
		}
		cp := *p
		out = append(out, &cp)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

// Count returns the number of products.
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.rows)), nil
}

// Create stores a copy of p.
func (s *MemoryStore) Create(_ context.Context, p *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	p.ID = s.nextID
	p.CreatedAt, p.UpdatedAt = now, now
	s.nextID++

	cp := *p
	s.rows = append(s.rows, &cp)
	return nil
}

// DeleteAll removes every product. IDs keep counting up.
func (s *MemoryStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = nil
	return nil
}
