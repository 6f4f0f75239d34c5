package ext_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/xraph/offload/ext"
	"github.com/xraph/offload/id"
	"github.com/xraph/offload/job"
)

// recorder implements every lifecycle hook.
type recorder struct {
	calls []string
}

func (e *recorder) Name() string { return "recorder" }

func (e *recorder) OnJobEnqueued(context.Context, *job.Job) error {
	e.calls = append(e.calls, "OnJobEnqueued")
	return nil
}

func (e *recorder) OnJobStarted(context.Context, *job.Job) error {
	e.calls = append(e.calls, "OnJobStarted")
	return nil
}

func (e *recorder) OnJobCompleted(context.Context, *job.Job, time.Duration) error {
	e.calls = append(e.calls, "OnJobCompleted")
	return nil
}

func (e *recorder) OnJobFailed(context.Context, *job.Job, error) error {
	e.calls = append(e.calls, "OnJobFailed")
	return nil
}

func (e *recorder) OnJobRetrying(context.Context, *job.Job, int, time.Time) error {
	e.calls = append(e.calls, "OnJobRetrying")
	return nil
}

func (e *recorder) OnCronFired(context.Context, string, id.JobID) error {
	e.calls = append(e.calls, "OnCronFired")
	return nil
}

func (e *recorder) OnShutdown(context.Context) error {
	e.calls = append(e.calls, "OnShutdown")
	return nil
}

// enqueueOnly implements a single hook.
type enqueueOnly struct {
	calls int
}

func (e *enqueueOnly) Name() string { return "enqueue-only" }

func (e *enqueueOnly) OnJobEnqueued(context.Context, *job.Job) error {
	e.calls++
	return nil
}

type failing struct{}

func (failing) Name() string { return "failing" }

func (failing) OnJobEnqueued(context.Context, *job.Job) error { return errors.New("boom") }

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRegistry_AllHooksFire(t *testing.T) {
	r := ext.NewRegistry(quiet())
	rec := &recorder{}
	r.Register(rec)

	ctx := context.Background()
	j := &job.Job{Name: "add_numbers"}
	r.EmitJobEnqueued(ctx, j)
	r.EmitJobStarted(ctx, j)
	r.EmitJobRetrying(ctx, j, 1, time.Now())
	r.EmitJobCompleted(ctx, j, time.Second)
	r.EmitJobFailed(ctx, j, errors.New("fail"))
	r.EmitCronFired(ctx, "cleanup-old-data", id.NewJobID())
	r.EmitShutdown(ctx)

	want := "OnJobEnqueued,OnJobStarted,OnJobRetrying,OnJobCompleted,OnJobFailed,OnCronFired,OnShutdown"
	if got := strings.Join(rec.calls, ","); got != want {
		t.Fatalf("calls = %s, want %s", got, want)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(quiet())
	rec := &recorder{}
	one := &enqueueOnly{}
	r.Register(rec)
	r.Register(one)

	ctx := context.Background()
	r.EmitJobEnqueued(ctx, &job.Job{})
	r.EmitJobStarted(ctx, &job.Job{})

	if one.calls != 1 {
		t.Errorf("enqueue-only calls = %d, want 1", one.calls)
	}
	if len(rec.calls) != 2 {
		t.Errorf("recorder calls = %v, want 2", rec.calls)
	}
	if got := len(r.Extensions()); got != 2 {
		t.Errorf("Extensions() = %d, want 2", got)
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	var buf strings.Builder
	r := ext.NewRegistry(slog.New(slog.NewTextHandler(&buf, nil)))
	rec := &recorder{}
	r.Register(failing{})
	r.Register(rec)

	r.EmitJobEnqueued(context.Background(), &job.Job{})

	if len(rec.calls) != 1 {
		t.Fatalf("later extension not called after failing one: %v", rec.calls)
	}
	if !strings.Contains(buf.String(), "extension=failing") {
		t.Errorf("expected hook error to be logged, got %q", buf.String())
	}
}

func TestRegistry_EmptyRegistryNoOp(_ *testing.T) {
	r := ext.NewRegistry(quiet())
	ctx := context.Background()
	r.EmitJobEnqueued(ctx, &job.Job{})
	r.EmitJobStarted(ctx, &job.Job{})
	r.EmitJobCompleted(ctx, &job.Job{}, time.Second)
	r.EmitJobFailed(ctx, &job.Job{}, errors.New("x"))
	r.EmitJobRetrying(ctx, &job.Job{}, 1, time.Now())
	r.EmitCronFired(ctx, "x", id.NewJobID())
	r.EmitShutdown(ctx)
}
