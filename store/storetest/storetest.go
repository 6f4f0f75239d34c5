// Package storetest holds the behavioral suite every store.Store backend
// must pass. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/offload"
	"github.com/xraph/offload/cron"
	"github.com/xraph/offload/id"
	"github.com/xraph/offload/job"
	"github.com/xraph/offload/store"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Option tunes the suite for a backend.
type Option func(*suite)

// WithSleep replaces time.Sleep for waits on store-side expiry. Backends
// with a simulated clock advance it here.
func WithSleep(fn func(time.Duration)) Option {
	return func(s *suite) { s.sleep = fn }
}

type suite struct {
	sleep func(time.Duration)
}

// Run executes the full suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory, opts ...Option) {
	t.Helper()

	st := &suite{sleep: time.Sleep}
	for _, o := range opts {
		o(st)
	}

	tests := []struct {
		name string
		fn   func(*testing.T, store.Store, *suite)
	}{
		{"EnqueueAndGet", testEnqueueAndGet},
		{"GetUnknown", testGetUnknown},
		{"DequeueClaims", testDequeueClaims},
		{"DequeueRespectsRunAt", testDequeueRespectsRunAt},
		{"DequeueOrderAndLimit", testDequeueOrderAndLimit},
		{"DequeueFiltersQueues", testDequeueFiltersQueues},
		{"DequeueExclusive", testDequeueExclusive},
		{"UpdateRequeuesRetry", testUpdateRequeuesRetry},
		{"UpdateTerminalNotRequeued", testUpdateTerminalNotRequeued},
		{"Delete", testDelete},
		{"ListAndCount", testListAndCount},
		{"HeartbeatAndReap", testHeartbeatAndReap},
		{"RequeueStaleJob", testRequeueStaleJob},
		{"RequeueSkipsFinishedJob", testRequeueSkipsFinishedJob},
		{"CronRegisterAndGet", testCronRegisterAndGet},
		{"CronLocking", testCronLocking},
		{"CronUpdateAndDelete", testCronUpdateAndDelete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t), st)
		})
	}
}

// NewJob returns a PENDING job that is runnable immediately.
func NewJob(name, queue string) *job.Job {
	return &job.Job{
		Entity:  offload.NewEntity(),
		ID:      id.NewJobID(),
		Name:    name,
		Queue:   queue,
		Payload: []byte(`{"size":10}`),
		State:   job.StatePending,
		RunAt:   time.Now().UTC().Add(-time.Second),
	}
}

func mustEnqueue(t *testing.T, s store.Store, j *job.Job) {
	t.Helper()
	if err := s.EnqueueJob(context.Background(), j); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
}

func testEnqueueAndGet(t *testing.T, s store.Store, _ *suite) {
	ctx := context.Background()
	j := NewJob("process_large_dataset", "default")
	j.MaxRetries = 2
	j.Timeout = time.Minute
	mustEnqueue(t, s, j)

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.ID != j.ID || got.Name != j.Name || got.Queue != j.Queue {
		t.Errorf("identity mismatch: %+v", got)
	}
	if string(got.Payload) != string(j.Payload) {
		t.Errorf("Payload = %s, want %s", got.Payload, j.Payload)
	}
	if got.State != job.StatePending {
		t.Errorf("State = %s, want PENDING", got.State)
	}
	if got.MaxRetries != 2 || got.Timeout != time.Minute {
		t.Errorf("options lost: retries=%d timeout=%v", got.MaxRetries, got.Timeout)
	}

	if err := s.EnqueueJob(ctx, j); !errors.Is(err, offload.ErrJobAlreadyExists) {
		t.Errorf("duplicate enqueue: got %v, want ErrJobAlreadyExists", err)
	}
}

func testGetUnknown(t *testing.T, s store.Store, _ *suite) {
	_, err := s.GetJob(context.Background(), id.NewJobID())
	if !errors.Is(err, offload.ErrJobNotFound) {
		t.Fatalf("got %v, want ErrJobNotFound", err)
	}
	if !errors.Is(err, offload.ErrUnknownJobID) {
		t.Fatalf("ErrJobNotFound should wrap ErrUnknownJobID")
	}
}

func testDequeueClaims(t *testing.T, s store.Store, _ *suite) {
	ctx := context.Background()
	j := NewJob("add_numbers", "default")
	mustEnqueue(t, s, j)

	jobs, err := s.DequeueJobs(ctx, []string{"default"}, 10)
	if err != nil {
		t.Fatalf("DequeueJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != j.ID {
		t.Fatalf("dequeued %d jobs, want the enqueued one", len(jobs))
	}
	if jobs[0].State != job.StateStarted || jobs[0].StartedAt == nil {
		t.Errorf("claimed job state = %s started=%v", jobs[0].State, jobs[0].StartedAt)
	}

	stored, _ := s.GetJob(ctx, j.ID)
	if stored.State != job.StateStarted {
		t.Errorf("stored state = %s, want STARTED", stored.State)
	}

	again, err := s.DequeueJobs(ctx, []string{"default"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Errorf("job dequeued twice")
	}
}

func testDequeueRespectsRunAt(t *testing.T, s store.Store, _ *suite) {
	ctx := context.Background()
	j := NewJob("add_numbers", "default")
	j.RunAt = time.Now().UTC().Add(time.Hour)
	mustEnqueue(t, s, j)

	jobs, err := s.DequeueJobs(ctx, []string{"default"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 0 {
		t.Fatalf("future job dequeued early")
	}
}

func testDequeueOrderAndLimit(t *testing.T, s store.Store, _ *suite) {
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Minute)
	var ids []id.JobID
	for i := range 3 {
		j := NewJob("add_numbers", "default")
		j.RunAt = base.Add(time.Duration(2-i) * time.Second)
		mustEnqueue(t, s, j)
		ids = append(ids, j.ID)
	}

	first, err := s.DequeueJobs(ctx, []string{"default"}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 {
		t.Fatalf("limit ignored: got %d", len(first))
	}
	if first[0].ID != ids[2] || first[1].ID != ids[1] {
		t.Errorf("jobs not ordered by RunAt")
	}
	rest, _ := s.DequeueJobs(ctx, []string{"default"}, 2)
	if len(rest) != 1 || rest[0].ID != ids[0] {
		t.Errorf("remaining job not dequeued")
	}
}

func testDequeueFiltersQueues(t *testing.T, s store.Store, _ *suite) {
	ctx := context.Background()
	mustEnqueue(t, s, NewJob("generate_report", "reports"))

	jobs, _ := s.DequeueJobs(ctx, []string{"default"}, 10)
	if len(jobs) != 0 {
		t.Fatal("job from an unpolled queue was dequeued")
	}
	jobs, _ = s.DequeueJobs(ctx, []string{"default", "reports"}, 10)
	if len(jobs) != 1 {
		t.Fatal("job not dequeued from its queue")
	}
}

func testDequeueExclusive(t *testing.T, s store.Store, _ *suite) {
	ctx := context.Background()
	const n = 20
	for range n {
		mustEnqueue(t, s, NewJob("add_numbers", "default"))
	}

	var (
		mu   sync.Mutex
		seen = make(map[id.JobID]int)
		wg   sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				jobs, err := s.DequeueJobs(ctx, []string{"default"}, 1)
				if err != nil || len(jobs) == 0 {
					return
				}
				mu.Lock()
				seen[jobs[0].ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("claimed %d distinct jobs, want %d", len(seen), n)
	}
	for jobID, count := range seen {
		if count != 1 {
			t.Errorf("job %s claimed %d times", jobID, count)
		}
	}
}

func testUpdateRequeuesRetry(t *testing.T, s store.Store, _ *suite) {
	ctx := context.Background()
	mustEnqueue(t, s, NewJob("add_numbers", "default"))
	claimed, _ := s.DequeueJobs(ctx, []string{"default"}, 1)
	if len(claimed) != 1 {
		t.Fatal("nothing claimed")
	}

	j := claimed[0]
	j.State = job.StateRetry
	j.RetryCount = 1
	j.LastError = "boom"
	j.RunAt = time.Now().UTC().Add(-time.Millisecond)
	if err := s.UpdateJob(ctx, j); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	again, err := s.DequeueJobs(ctx, []string{"default"}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 1 || again[0].ID != j.ID {
		t.Fatal("retried job was not redelivered")
	}
	if again[0].RetryCount != 1 || again[0].LastError != "boom" {
		t.Errorf("retry bookkeeping lost: %+v", again[0])
	}
}

func testUpdateTerminalNotRequeued(t *testing.T, s store.Store, _ *suite) {
	ctx := context.Background()
	mustEnqueue(t, s, NewJob("add_numbers", "default"))
	claimed, _ := s.DequeueJobs(ctx, []string{"default"}, 1)

	j := claimed[0]
	now := time.Now().UTC()
	j.State = job.StateSuccess
	j.Result = []byte(`3`)
	j.CompletedAt = &now
	if err := s.UpdateJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	again, _ := s.DequeueJobs(ctx, []string{"default"}, 1)
	if len(again) != 0 {
		t.Fatal("terminal job redelivered")
	}
	got, _ := s.GetJob(ctx, j.ID)
	if got.State != job.StateSuccess || string(got.Result) != "3" || got.CompletedAt == nil {
		t.Errorf("terminal job = %+v", got)
	}

	missing := NewJob("add_numbers", "default")
	if err := s.UpdateJob(ctx, missing); !errors.Is(err, offload.ErrJobNotFound) {
		t.Errorf("update missing: got %v", err)
	}
}

func testDelete(t *testing.T, s store.Store, _ *suite) {
	ctx := context.Background()
	j := NewJob("add_numbers", "default")
	mustEnqueue(t, s, j)

	if err := s.DeleteJob(ctx, j.ID); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if _, err := s.GetJob(ctx, j.ID); !errors.Is(err, offload.ErrJobNotFound) {
		t.Errorf("deleted job still readable: %v", err)
	}
	if jobs, _ := s.DequeueJobs(ctx, []string{"default"}, 1); len(jobs) != 0 {
		t.Error("deleted job still queued")
	}
}

func testListAndCount(t *testing.T, s store.Store, _ *suite) {
	ctx := context.Background()
	for range 3 {
		mustEnqueue(t, s, NewJob("add_numbers", "default"))
	}
	mustEnqueue(t, s, NewJob("generate_report", "reports"))
	if _, err := s.DequeueJobs(ctx, []string{"reports"}, 1); err != nil {
		t.Fatal(err)
	}

	pending, err := s.ListJobsByState(ctx, job.StatePending, job.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 3 {
		t.Errorf("pending = %d, want 3", len(pending))
	}
	page, _ := s.ListJobsByState(ctx, job.StatePending, job.ListOpts{Limit: 2, Offset: 2})
	if len(page) != 1 {
		t.Errorf("paged = %d, want 1", len(page))
	}

	counts := []struct {
		opts job.CountOpts
		want int64
	}{
		{job.CountOpts{}, 4},
		{job.CountOpts{State: job.StatePending}, 3},
		{job.CountOpts{State: job.StateStarted}, 1},
		{job.CountOpts{Queue: "reports"}, 1},
		{job.CountOpts{Queue: "reports", State: job.StatePending}, 0},
	}
	for _, c := range counts {
		got, err := s.CountJobs(ctx, c.opts)
		if err != nil {
			t.Fatal(err)
		}
		if got != c.want {
			t.Errorf("CountJobs(%+v) = %d, want %d", c.opts, got, c.want)
		}
	}
}

func testHeartbeatAndReap(t *testing.T, s store.Store, st *suite) {
	ctx := context.Background()
	mustEnqueue(t, s, NewJob("add_numbers", "default"))
	claimed, _ := s.DequeueJobs(ctx, []string{"default"}, 1)
	j := claimed[0]

	if err := s.HeartbeatJob(ctx, j.ID, id.NewWorkerID()); err != nil {
		t.Fatalf("HeartbeatJob: %v", err)
	}
	stale, err := s.ReapStaleJobs(ctx, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 0 {
		t.Fatal("fresh job reported stale")
	}

	st.sleep(20 * time.Millisecond)
	stale, err = s.ReapStaleJobs(ctx, 5*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 1 || stale[0].ID != j.ID {
		t.Fatalf("stale = %d jobs, want the claimed one", len(stale))
	}

	now := time.Now().UTC()
	j.State = job.StateFailure
	j.CompletedAt = &now
	_ = s.UpdateJob(ctx, j)
	stale, _ = s.ReapStaleJobs(ctx, 5*time.Millisecond)
	if len(stale) != 0 {
		t.Fatal("terminal job reported stale")
	}
}

func testRequeueStaleJob(t *testing.T, s store.Store, st *suite) {
	ctx := context.Background()
	mustEnqueue(t, s, NewJob("add_numbers", "default"))
	claimed, _ := s.DequeueJobs(ctx, []string{"default"}, 1)
	j := claimed[0]

	ok, err := s.RequeueStaleJob(ctx, j.ID, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("job with a fresh heartbeat was requeued")
	}

	st.sleep(20 * time.Millisecond)
	ok, err = s.RequeueStaleJob(ctx, j.ID, time.Now().UTC().Add(-5*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("stale job was not requeued")
	}

	got, _ := s.GetJob(ctx, j.ID)
	if got.State != job.StatePending {
		t.Fatalf("state = %s, want PENDING", got.State)
	}
	if got.StartedAt != nil || got.HeartbeatAt != nil || !got.WorkerID.IsNil() {
		t.Error("requeued job still carries its old claim")
	}
	again, _ := s.DequeueJobs(ctx, []string{"default"}, 1)
	if len(again) != 1 || again[0].ID != j.ID {
		t.Fatal("requeued job is not claimable")
	}

	if _, err := s.RequeueStaleJob(ctx, id.NewJobID(), time.Now()); !errors.Is(err, offload.ErrJobNotFound) {
		t.Fatalf("unknown job: err = %v, want ErrJobNotFound", err)
	}
}

// A worker that finishes after the stale scan wins over the reset.
func testRequeueSkipsFinishedJob(t *testing.T, s store.Store, st *suite) {
	ctx := context.Background()
	mustEnqueue(t, s, NewJob("add_numbers", "default"))
	claimed, _ := s.DequeueJobs(ctx, []string{"default"}, 1)

	st.sleep(20 * time.Millisecond)
	stale, _ := s.ReapStaleJobs(ctx, 5*time.Millisecond)
	if len(stale) != 1 {
		t.Fatalf("stale = %d jobs, want 1", len(stale))
	}

	j := claimed[0]
	now := time.Now().UTC()
	j.State = job.StateSuccess
	j.Result = []byte(`{"sum":3}`)
	j.CompletedAt = &now
	if err := s.UpdateJob(ctx, j); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	ok, err := s.RequeueStaleJob(ctx, j.ID, time.Now().UTC().Add(-5*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("finished job was requeued")
	}
	got, _ := s.GetJob(ctx, j.ID)
	if got.State != job.StateSuccess || string(got.Result) != `{"sum":3}` {
		t.Fatalf("job = %s %q, want SUCCESS with its result", got.State, got.Result)
	}
	if again, _ := s.DequeueJobs(ctx, []string{"default"}, 1); len(again) != 0 {
		t.Fatal("finished job went back to the queue")
	}
}

func newEntry(name string) *cron.Entry {
	next := time.Now().UTC().Add(-time.Second)
	return &cron.Entry{
		Entity:    offload.NewEntity(),
		ID:        id.NewCronID(),
		Name:      name,
		Schedule:  "@every 3m",
		JobName:   "cleanup_old_data",
		Payload:   []byte(`{}`),
		NextRunAt: &next,
		Enabled:   true,
	}
}

func testCronRegisterAndGet(t *testing.T, s store.Store, _ *suite) {
	ctx := context.Background()
	e := newEntry("cleanup-old-data")
	if err := s.RegisterCron(ctx, e); err != nil {
		t.Fatalf("RegisterCron: %v", err)
	}
	if err := s.RegisterCron(ctx, newEntry("cleanup-old-data")); !errors.Is(err, offload.ErrDuplicateCron) {
		t.Errorf("duplicate name: got %v", err)
	}

	got, err := s.GetCron(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != e.Name || got.Schedule != e.Schedule || !got.Enabled {
		t.Errorf("entry = %+v", got)
	}
	byName, err := s.GetCronByName(ctx, "cleanup-old-data")
	if err != nil || byName.ID != e.ID {
		t.Errorf("GetCronByName = %v, %v", byName, err)
	}
	if _, err := s.GetCronByName(ctx, "nope"); !errors.Is(err, offload.ErrCronNotFound) {
		t.Errorf("missing name: got %v", err)
	}

	_ = s.RegisterCron(ctx, newEntry("backup-database"))
	list, err := s.ListCrons(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("ListCrons = %d, want 2", len(list))
	}
}

func testCronLocking(t *testing.T, s store.Store, st *suite) {
	ctx := context.Background()
	e := newEntry("send-daily-summary")
	_ = s.RegisterCron(ctx, e)
	w1, w2 := id.NewWorkerID(), id.NewWorkerID()

	ok, err := s.AcquireCronLock(ctx, e.ID, w1, time.Minute)
	if err != nil || !ok {
		t.Fatalf("w1 acquire = %v, %v", ok, err)
	}
	ok, _ = s.AcquireCronLock(ctx, e.ID, w2, time.Minute)
	if ok {
		t.Fatal("w2 acquired a held lock")
	}

	if err := s.ReleaseCronLock(ctx, e.ID, w2); err != nil {
		t.Fatal(err)
	}
	ok, _ = s.AcquireCronLock(ctx, e.ID, w2, time.Minute)
	if ok {
		t.Fatal("release by non-holder dropped the lock")
	}

	if err := s.ReleaseCronLock(ctx, e.ID, w1); err != nil {
		t.Fatal(err)
	}
	ok, _ = s.AcquireCronLock(ctx, e.ID, w2, 20*time.Millisecond)
	if !ok {
		t.Fatal("w2 could not acquire a released lock")
	}

	st.sleep(60 * time.Millisecond)
	ok, _ = s.AcquireCronLock(ctx, e.ID, w1, time.Minute)
	if !ok {
		t.Fatal("expired lock not reclaimable")
	}
}

func testCronUpdateAndDelete(t *testing.T, s store.Store, _ *suite) {
	ctx := context.Background()
	e := newEntry("backup-database")
	_ = s.RegisterCron(ctx, e)

	last := time.Now().UTC().Truncate(time.Millisecond)
	next := last.Add(time.Hour)
	e.LastRunAt = &last
	e.NextRunAt = &next
	e.Enabled = false
	if err := s.UpdateCronEntry(ctx, e); err != nil {
		t.Fatalf("UpdateCronEntry: %v", err)
	}

	got, _ := s.GetCron(ctx, e.ID)
	if got.Enabled || got.LastRunAt == nil || !got.LastRunAt.Equal(last) || !got.NextRunAt.Equal(next) {
		t.Errorf("update lost: %+v", got)
	}
	if got.Due(time.Now()) {
		t.Error("disabled entry reported due")
	}

	if err := s.DeleteCron(ctx, e.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetCron(ctx, e.ID); !errors.Is(err, offload.ErrCronNotFound) {
		t.Errorf("deleted entry readable: %v", err)
	}
	if err := s.UpdateCronEntry(ctx, e); !errors.Is(err, offload.ErrCronNotFound) {
		t.Errorf("update deleted: %v", err)
	}
}
