package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/offload/ext"
	"github.com/xraph/offload/id"
	"github.com/xraph/offload/job"
)

// QueueManager gates execution per queue. The pool calls Acquire before
// running a dequeued job and Release after it finishes.
type QueueManager interface {
	Acquire(queue string) bool
	Release(queue string)
}

// Pool manages concurrent worker goroutines that poll the store and run
// jobs through the Executor.
type Pool struct {
	store        job.Store
	executor     *Executor
	extensions   *ext.Registry
	concurrency  int
	queues       []string
	pollInterval time.Duration
	workerID     id.WorkerID
	logger       *slog.Logger

	heartbeatInterval time.Duration
	staleJobThreshold time.Duration

	queueManager QueueManager

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	activeMu sync.Mutex
	active   map[id.JobID]struct{}
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of concurrent worker goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithPoolQueues sets the queues the pool will poll.
func WithPoolQueues(queues []string) PoolOption {
	return func(p *Pool) { p.queues = queues }
}

// WithPollInterval sets how long an idle worker waits between polls.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.pollInterval = d }
}

// WithHeartbeatInterval sets how often active jobs are heartbeated.
// Zero disables heartbeats.
func WithHeartbeatInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.heartbeatInterval = d }
}

// WithStaleJobThreshold sets how old a STARTED job's heartbeat may get
// before the job is handed back to the queue. Zero disables reaping.
func WithStaleJobThreshold(d time.Duration) PoolOption {
	return func(p *Pool) { p.staleJobThreshold = d }
}

// WithQueueManager sets per-queue admission control.
func WithQueueManager(m QueueManager) PoolOption {
	return func(p *Pool) { p.queueManager = m }
}

// NewPool creates a worker pool.
func NewPool(
	store job.Store,
	executor *Executor,
	extensions *ext.Registry,
	logger *slog.Logger,
	opts ...PoolOption,
) *Pool {
	p := &Pool{
		store:        store,
		executor:     executor,
		extensions:   extensions,
		concurrency:  4,
		queues:       []string{"default"},
		pollInterval: time.Second,
		workerID:     id.NewWorkerID(),
		logger:       logger,
		active:       make(map[id.JobID]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkerID returns the pool's worker identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches the worker goroutines and returns immediately. Starting a
// running pool is a no-op.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})

	// Jobs run on a context detached from the caller so they survive the
	// Start call, but are cancelled if a graceful Stop runs out of time.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
		slog.Any("queues", p.queues),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.dequeueLoop(runCtx)
	}
	if p.heartbeatInterval > 0 {
		p.wg.Add(1)
		go p.every(p.heartbeatInterval, func() { p.sendHeartbeats(runCtx) })
	}
	if p.staleJobThreshold > 0 {
		p.wg.Add(1)
		go p.every(p.staleJobThreshold, func() { p.reapStaleJobs(runCtx) })
	}
	return nil
}

// Stop stops polling and waits for in-flight jobs. When ctx expires first,
// in-flight jobs are cancelled and handed back to the queue.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.stopCh)
	cancel := p.cancel
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active jobs",
			slog.Int("active", p.ActiveJobs()),
		)
		cancel()
		<-done
	}
	cancel()
	return nil
}

// ActiveJobs returns the number of jobs currently executing.
func (p *Pool) ActiveJobs() int {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	return len(p.active)
}

func (p *Pool) dequeueLoop(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		jobs, err := p.store.DequeueJobs(ctx, p.queues, 1)
		if err != nil {
			p.logger.Error("dequeue error", slog.String("error", err.Error()))
			p.sleep()
			continue
		}
		if len(jobs) == 0 {
			p.sleep()
			continue
		}
		p.run(ctx, jobs[0])
	}
}

func (p *Pool) run(ctx context.Context, j *job.Job) {
	if p.queueManager != nil {
		if !p.queueManager.Acquire(j.Queue) {
			p.deferJob(ctx, j)
			return
		}
		defer p.queueManager.Release(j.Queue)
	}

	j.WorkerID = p.workerID
	p.extensions.EmitJobStarted(ctx, j)

	p.track(j.ID)
	defer p.untrack(j.ID)

	if err := p.executor.Execute(ctx, j); err != nil {
		p.logger.Debug("job attempt ended with error",
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
			slog.String("error", err.Error()),
		)
	}
}

// deferJob puts a job the queue manager refused back to PENDING, a poll
// interval into the future.
func (p *Pool) deferJob(ctx context.Context, j *job.Job) {
	j.State = job.StatePending
	j.RunAt = time.Now().UTC().Add(p.pollInterval)
	j.StartedAt = nil
	j.HeartbeatAt = nil
	if err := p.store.UpdateJob(context.WithoutCancel(ctx), j); err != nil {
		p.logger.Error("failed to defer rate-limited job",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	p.sleep()
}

func (p *Pool) every(interval time.Duration, fn func()) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			fn()
		}
	}
}

func (p *Pool) sendHeartbeats(ctx context.Context) {
	p.activeMu.Lock()
	ids := make([]id.JobID, 0, len(p.active))
	for jobID := range p.active {
		ids = append(ids, jobID)
	}
	p.activeMu.Unlock()

	for _, jobID := range ids {
		if err := p.store.HeartbeatJob(ctx, jobID, p.workerID); err != nil {
			p.logger.Warn("heartbeat failed",
				slog.String("job_id", jobID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// reapStaleJobs hands STARTED jobs with an expired heartbeat back to the
// queue. The reset is conditional on the stored record, so a job that
// finished after the scan keeps its terminal state.
func (p *Pool) reapStaleJobs(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-p.staleJobThreshold)
	stale, err := p.store.ReapStaleJobs(ctx, p.staleJobThreshold)
	if err != nil {
		p.logger.Error("reap stale jobs error", slog.String("error", err.Error()))
		return
	}

	for _, j := range stale {
		requeued, err := p.store.RequeueStaleJob(ctx, j.ID, cutoff)
		if err != nil {
			p.logger.Error("reap: failed to reset stale job",
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !requeued {
			p.logger.Debug("reap: job moved on since scan",
				slog.String("job_id", j.ID.String()),
			)
			continue
		}
		p.logger.Info("reaped stale job",
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
		)
	}
}

func (p *Pool) sleep() {
	select {
	case <-time.After(p.pollInterval):
	case <-p.stopCh:
	}
}

func (p *Pool) track(jobID id.JobID) {
	p.activeMu.Lock()
	p.active[jobID] = struct{}{}
	p.activeMu.Unlock()
}

func (p *Pool) untrack(jobID id.JobID) {
	p.activeMu.Lock()
	delete(p.active, jobID)
	p.activeMu.Unlock()
}
