package cron

import (
	"context"
	"time"

	"github.com/xraph/offload/id"
)

// Store defines the persistence contract for cron entries.
type Store interface {
	// RegisterCron persists a new entry. Returns offload.ErrDuplicateCron
	// when the name is taken.
	RegisterCron(ctx context.Context, entry *Entry) error

	// GetCron retrieves an entry by ID.
	GetCron(ctx context.Context, entryID id.CronID) (*Entry, error)

	// GetCronByName retrieves an entry by its unique name.
	GetCronByName(ctx context.Context, name string) (*Entry, error)

	// ListCrons returns all entries.
	ListCrons(ctx context.Context) ([]*Entry, error)

	// AcquireCronLock takes the entry's lock for workerID if nobody else
	// holds it. The lock expires after ttl.
	AcquireCronLock(ctx context.Context, entryID id.CronID, workerID id.WorkerID, ttl time.Duration) (bool, error)

	// ReleaseCronLock drops the lock if workerID still holds it.
	ReleaseCronLock(ctx context.Context, entryID id.CronID, workerID id.WorkerID) error

	// UpdateCronEntry persists changes to an entry.
	UpdateCronEntry(ctx context.Context, entry *Entry) error

	// DeleteCron removes an entry by ID.
	DeleteCron(ctx context.Context, entryID id.CronID) error
}
