package middleware_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/xraph/offload/id"
	"github.com/xraph/offload/job"
	"github.com/xraph/offload/middleware"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestJob() *job.Job {
	return &job.Job{
		ID:         id.NewJobID(),
		Name:       "process_large_dataset",
		Queue:      "default",
		RetryCount: 2,
	}
}

func ok(_ context.Context) ([]byte, error) { return []byte(`{"status":"completed"}`), nil }

func TestChain_ExecutionOrder(t *testing.T) {
	var order []string
	trace := func(name string) middleware.Middleware {
		return func(ctx context.Context, _ *job.Job, next middleware.Handler) ([]byte, error) {
			order = append(order, name+"-before")
			out, err := next(ctx)
			order = append(order, name+"-after")
			return out, err
		}
	}

	chain := middleware.Chain(trace("mw1"), trace("mw2"))
	out, err := chain(context.Background(), newTestJob(), func(_ context.Context) ([]byte, error) {
		order = append(order, "handler")
		return []byte("1"), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "1" {
		t.Errorf("result = %s, want 1", out)
	}

	expected := []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}
	if strings.Join(order, ",") != strings.Join(expected, ",") {
		t.Fatalf("order = %v, want %v", order, expected)
	}
}

func TestChain_Empty(t *testing.T) {
	out, err := middleware.Chain()(context.Background(), newTestJob(), ok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("handler result lost with empty chain")
	}
}

func TestChain_PropagatesError(t *testing.T) {
	pass := func(ctx context.Context, _ *job.Job, next middleware.Handler) ([]byte, error) {
		return next(ctx)
	}
	want := errors.New("handler error")

	_, err := middleware.Chain(pass)(context.Background(), newTestJob(), func(_ context.Context) ([]byte, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestRecover_CatchesPanic(t *testing.T) {
	mw := middleware.Recover(quietLogger())
	j := &job.Job{Name: "panicky", ID: id.NewJobID()}

	out, err := mw(context.Background(), j, func(_ context.Context) ([]byte, error) {
		panic("test panic")
	})
	if err == nil {
		t.Fatal("expected error from panic recovery")
	}
	if got := err.Error(); got != "panic in job panicky: test panic" {
		t.Errorf("unexpected error message: %q", got)
	}
	if out != nil {
		t.Errorf("expected no result, got %s", out)
	}
}

func TestRecover_PassesThrough(t *testing.T) {
	out, err := middleware.Recover(quietLogger())(context.Background(), newTestJob(), ok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("result dropped")
	}
}

func TestLogging_Outcomes(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	mw := middleware.Logging(logger)

	if _, err := mw(context.Background(), newTestJob(), ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := errors.New("fail")
	if _, err := mw(context.Background(), newTestJob(), func(context.Context) ([]byte, error) {
		return nil, want
	}); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}

	logs := buf.String()
	for _, msg := range []string{"job started", "job completed", "job attempt failed", "attempt=3"} {
		if !strings.Contains(logs, msg) {
			t.Errorf("log output missing %q:\n%s", msg, logs)
		}
	}
}

func TestTimeout_SetsDeadline(t *testing.T) {
	j := newTestJob()
	j.Timeout = 20 * time.Millisecond

	_, err := middleware.Timeout()(context.Background(), j, func(ctx context.Context) ([]byte, error) {
		if _, has := ctx.Deadline(); !has {
			t.Error("expected a deadline on the handler context")
		}
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestTimeout_ZeroIsUnbounded(t *testing.T) {
	_, err := middleware.Timeout()(context.Background(), newTestJob(), func(ctx context.Context) ([]byte, error) {
		if _, has := ctx.Deadline(); has {
			t.Error("expected no deadline")
		}
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
