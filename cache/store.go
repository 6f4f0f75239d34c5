package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is a byte-valued key/value store with per-key expiry.
type Store interface {
	// Get returns the value stored under key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A ttl of zero or less never expires.
	// The last writer wins.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every key this store owns.
	Clear(ctx context.Context) error

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
}
