// Package memory is an in-process store.Store. All state is lost when the
// process exits, so it only serves tests and single-process development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xraph/offload"
	"github.com/xraph/offload/cron"
	"github.com/xraph/offload/id"
	"github.com/xraph/offload/job"
)

var (
	_ job.Store  = (*Store)(nil)
	_ cron.Store = (*Store)(nil)
)

// Store is a mutex-guarded in-memory backend. Values handed in and out are
// copies, so callers may mutate them freely.
type Store struct {
	mu     sync.RWMutex
	jobs   map[id.JobID]*job.Job
	crons  map[id.CronID]*cron.Entry
	closed bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		jobs:  make(map[id.JobID]*job.Job),
		crons: make(map[id.CronID]*cron.Entry),
	}
}

// Migrate is a no-op.
func (m *Store) Migrate(context.Context) error { return nil }

// Ping fails once the store has been closed.
func (m *Store) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return offload.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed. Data stays readable.
func (m *Store) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func copyJob(j *job.Job) *job.Job {
	cp := *j
	return &cp
}

// EnqueueJob stores a new job.
func (m *Store) EnqueueJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return offload.ErrStoreClosed
	}
	if _, exists := m.jobs[j.ID]; exists {
		return offload.ErrJobAlreadyExists
	}
	m.jobs[j.ID] = copyJob(j)
	return nil
}

// DequeueJobs claims up to limit runnable jobs whose RunAt has passed,
// oldest RunAt first.
func (m *Store) DequeueJobs(_ context.Context, queues []string, limit int) ([]*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, offload.ErrStoreClosed
	}

	wanted := make(map[string]bool, len(queues))
	for _, q := range queues {
		wanted[q] = true
	}
	now := time.Now().UTC()

	var due []*job.Job
	for _, j := range m.jobs {
		if !j.State.Runnable() || j.RunAt.After(now) {
			continue
		}
		if len(wanted) > 0 && !wanted[j.Queue] {
			continue
		}
		due = append(due, j)
	}
	sort.Slice(due, func(a, b int) bool {
		if !due[a].RunAt.Equal(due[b].RunAt) {
			return due[a].RunAt.Before(due[b].RunAt)
		}
		return due[a].ID.String() < due[b].ID.String()
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*job.Job, len(due))
	for i, j := range due {
		started := now
		j.State = job.StateStarted
		j.StartedAt = &started
		j.HeartbeatAt = &started
		j.UpdatedAt = now
		claimed[i] = copyJob(j)
	}
	return claimed, nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return nil, offload.ErrJobNotFound
	}
	return copyJob(j), nil
}

// UpdateJob replaces a stored job.
func (m *Store) UpdateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[j.ID]; !ok {
		return offload.ErrJobNotFound
	}
	cp := copyJob(j)
	cp.UpdatedAt = time.Now().UTC()
	m.jobs[j.ID] = cp
	return nil
}

// DeleteJob removes a job by ID.
func (m *Store) DeleteJob(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[jobID]; !ok {
		return offload.ErrJobNotFound
	}
	delete(m.jobs, jobID)
	return nil
}

// ListJobsByState returns jobs in state, oldest first.
func (m *Store) ListJobsByState(_ context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*job.Job
	for _, j := range m.jobs {
		if j.State != state || (opts.Queue != "" && j.Queue != opts.Queue) {
			continue
		}
		result = append(result, copyJob(j))
	}
	sort.Slice(result, func(a, b int) bool {
		return result[a].CreatedAt.Before(result[b].CreatedAt)
	})
	return paginate(result, opts.Offset, opts.Limit), nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// HeartbeatJob stamps the job's heartbeat.
func (m *Store) HeartbeatJob(_ context.Context, jobID id.JobID, workerID id.WorkerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return offload.ErrJobNotFound
	}
	now := time.Now().UTC()
	j.HeartbeatAt = &now
	j.WorkerID = workerID
	return nil
}

// ReapStaleJobs returns STARTED jobs whose heartbeat is older than threshold.
func (m *Store) ReapStaleJobs(_ context.Context, threshold time.Duration) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-threshold)
	var stale []*job.Job
	for _, j := range m.jobs {
		if j.StaleAt(cutoff) {
			stale = append(stale, copyJob(j))
		}
	}
	return stale, nil
}

// RequeueStaleJob resets a still-stale STARTED job to PENDING.
func (m *Store) RequeueStaleJob(_ context.Context, jobID id.JobID, cutoff time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return false, offload.ErrJobNotFound
	}
	if !j.StaleAt(cutoff) {
		return false, nil
	}
	now := time.Now().UTC()
	j.State = job.StatePending
	j.RunAt = now
	j.WorkerID = id.WorkerID{}
	j.StartedAt = nil
	j.HeartbeatAt = nil
	j.UpdatedAt = now
	return true, nil
}

// CountJobs counts jobs matching opts.
func (m *Store) CountJobs(_ context.Context, opts job.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, j := range m.jobs {
		if opts.Queue != "" && j.Queue != opts.Queue {
			continue
		}
		if opts.State != "" && j.State != opts.State {
			continue
		}
		n++
	}
	return n, nil
}

func copyEntry(e *cron.Entry) *cron.Entry {
	cp := *e
	return &cp
}

// RegisterCron stores a new entry. Names are unique.
func (m *Store) RegisterCron(_ context.Context, entry *cron.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.crons {
		if e.Name == entry.Name {
			return offload.ErrDuplicateCron
		}
	}
	m.crons[entry.ID] = copyEntry(entry)
	return nil
}

// GetCron retrieves an entry by ID.
func (m *Store) GetCron(_ context.Context, entryID id.CronID) (*cron.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.crons[entryID]
	if !ok {
		return nil, offload.ErrCronNotFound
	}
	return copyEntry(e), nil
}

// GetCronByName retrieves an entry by name.
func (m *Store) GetCronByName(_ context.Context, name string) (*cron.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.crons {
		if e.Name == name {
			return copyEntry(e), nil
		}
	}
	return nil, offload.ErrCronNotFound
}

// ListCrons returns all entries ordered by name.
func (m *Store) ListCrons(_ context.Context) ([]*cron.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*cron.Entry, 0, len(m.crons))
	for _, e := range m.crons {
		result = append(result, copyEntry(e))
	}
	sort.Slice(result, func(a, b int) bool {
		return strings.Compare(result[a].Name, result[b].Name) < 0
	})
	return result, nil
}

// AcquireCronLock takes the entry lock unless another worker holds an
// unexpired one.
func (m *Store) AcquireCronLock(_ context.Context, entryID id.CronID, workerID id.WorkerID, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.crons[entryID]
	if !ok {
		return false, offload.ErrCronNotFound
	}
	now := time.Now().UTC()
	holder := workerID.String()
	if e.LockedBy != "" && e.LockedBy != holder && e.LockedUntil != nil && e.LockedUntil.After(now) {
		return false, nil
	}
	until := now.Add(ttl)
	e.LockedBy = holder
	e.LockedUntil = &until
	return true, nil
}

// ReleaseCronLock drops the lock if workerID holds it.
func (m *Store) ReleaseCronLock(_ context.Context, entryID id.CronID, workerID id.WorkerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.crons[entryID]
	if !ok {
		return offload.ErrCronNotFound
	}
	if e.LockedBy == workerID.String() {
		e.LockedBy = ""
		e.LockedUntil = nil
	}
	return nil
}

// UpdateCronEntry replaces an entry. Lock fields are owned by the lock
// methods and are kept as stored.
func (m *Store) UpdateCronEntry(_ context.Context, entry *cron.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.crons[entry.ID]
	if !ok {
		return offload.ErrCronNotFound
	}
	cp := copyEntry(entry)
	cp.LockedBy, cp.LockedUntil = old.LockedBy, old.LockedUntil
	cp.UpdatedAt = time.Now().UTC()
	m.crons[entry.ID] = cp
	return nil
}

// DeleteCron removes an entry by ID.
func (m *Store) DeleteCron(_ context.Context, entryID id.CronID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.crons[entryID]; !ok {
		return offload.ErrCronNotFound
	}
	delete(m.crons, entryID)
	return nil
}
