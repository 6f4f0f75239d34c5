package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/xraph/offload/id"
	"github.com/xraph/offload/job"
)

// EnqueueFunc enqueues a job by name. The engine provides it.
type EnqueueFunc func(ctx context.Context, name string, payload []byte, opts ...job.Option) (*job.Job, error)

// Emitter receives cron lifecycle events. ext.Registry satisfies it.
type Emitter interface {
	EmitCronFired(ctx context.Context, entryName string, jobID id.JobID)
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTickInterval sets how often the scheduler checks for due entries.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.tickInterval = d }
}

// WithLockTTL sets how long a per-entry lock survives a crashed holder.
func WithLockTTL(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.lockTTL = d }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

var parser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a five-field cron expression or a descriptor such
// as "@every 30s" or "@daily".
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return parser.Parse(expr)
}

// Scheduler fires due entries on a tick loop.
type Scheduler struct {
	store    Store
	enqueue  EnqueueFunc
	emitter  Emitter
	workerID id.WorkerID
	logger   *slog.Logger
	now      func() time.Time

	tickInterval time.Duration
	lockTTL      time.Duration

	parsedMu sync.RWMutex
	parsed   map[string]cronlib.Schedule

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a Scheduler.
func NewScheduler(
	store Store,
	enqueue EnqueueFunc,
	emitter Emitter,
	workerID id.WorkerID,
	logger *slog.Logger,
	opts ...SchedulerOption,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		store:        store,
		enqueue:      enqueue,
		emitter:      emitter,
		workerID:     workerID,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
		tickInterval: time.Second,
		lockTTL:      30 * time.Second,
		parsed:       make(map[string]cronlib.Schedule),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the tick loop. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true

	ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("cron scheduler started",
		slog.String("worker_id", s.workerID.String()),
		slog.Duration("tick_interval", s.tickInterval),
	)
	return nil
}

// Stop ends the tick loop and waits for an in-progress tick.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("cron scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick fires every entry that is due now. It is called by the loop and
// may be called directly.
func (s *Scheduler) Tick(ctx context.Context) {
	entries, err := s.store.ListCrons(ctx)
	if err != nil {
		s.logger.Error("list crons error", slog.String("error", err.Error()))
		return
	}

	now := s.now()
	for _, entry := range entries {
		if entry.Due(now) {
			s.fire(ctx, entry.ID, now)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, entryID id.CronID, now time.Time) {
	log := s.logger.With(slog.String("cron_id", entryID.String()))

	acquired, err := s.store.AcquireCronLock(ctx, entryID, s.workerID, s.lockTTL)
	if err != nil {
		log.Error("acquire cron lock error", slog.String("error", err.Error()))
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := s.store.ReleaseCronLock(context.WithoutCancel(ctx), entryID, s.workerID); err != nil {
			log.Error("release cron lock error", slog.String("error", err.Error()))
		}
	}()

	// Another process may have fired this occurrence between our list and
	// our lock.
	entry, err := s.store.GetCron(ctx, entryID)
	if err != nil {
		log.Error("reload cron entry error", slog.String("error", err.Error()))
		return
	}
	if !entry.Due(now) {
		return
	}

	var opts []job.Option
	if entry.Queue != "" {
		opts = append(opts, job.WithQueue(entry.Queue))
	}
	j, err := s.enqueue(ctx, entry.JobName, entry.Payload, opts...)
	if err != nil {
		log.Error("cron enqueue error",
			slog.String("cron_name", entry.Name),
			slog.String("job_name", entry.JobName),
			slog.String("error", err.Error()),
		)
		return
	}

	entry.LastRunAt = &now
	if sched, err := s.schedule(entry.Schedule); err != nil {
		log.Error("parse cron schedule error",
			slog.String("schedule", entry.Schedule),
			slog.String("error", err.Error()),
		)
	} else {
		next := sched.Next(now)
		entry.NextRunAt = &next
	}
	if err := s.store.UpdateCronEntry(ctx, entry); err != nil {
		log.Error("update cron entry error", slog.String("error", err.Error()))
	}

	if s.emitter != nil {
		s.emitter.EmitCronFired(ctx, entry.Name, j.ID)
	}
	log.Info("cron fired",
		slog.String("cron_name", entry.Name),
		slog.String("job_name", entry.JobName),
		slog.String("job_id", j.ID.String()),
	)
}

func (s *Scheduler) schedule(expr string) (cronlib.Schedule, error) {
	s.parsedMu.RLock()
	sched, ok := s.parsed[expr]
	s.parsedMu.RUnlock()
	if ok {
		return sched, nil
	}

	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	s.parsedMu.Lock()
	s.parsed[expr] = sched
	s.parsedMu.Unlock()
	return sched, nil
}
