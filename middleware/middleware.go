package middleware

import (
	"context"

	"github.com/xraph/offload/job"
)

// Handler runs the job logic and returns its encoded result.
type Handler func(ctx context.Context) ([]byte, error)

// Middleware wraps a Handler with cross-cutting logic.
type Middleware func(ctx context.Context, j *job.Job, next Handler) ([]byte, error)

// Chain composes mws into a single Middleware. Chain(a, b) runs as
// a → b → handler.
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) ([]byte, error) {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw, inner := mws[i], h
			h = func(ctx context.Context) ([]byte, error) {
				return mw(ctx, j, inner)
			}
		}
		return h(ctx)
	}
}
