package store

import (
	"context"

	"github.com/xraph/offload/cron"
	"github.com/xraph/offload/job"
)

// Store is the aggregate persistence interface. A single backend
// implements every subsystem store.
type Store interface {
	job.Store
	cron.Store

	// Migrate prepares the backend. Key-value backends have nothing to do.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}
