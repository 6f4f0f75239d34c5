package middleware

import (
	"context"

	"github.com/xraph/offload/job"
)

// Timeout returns middleware that cancels the handler context once the
// job's Timeout elapses. Jobs without a timeout run unbounded.
func Timeout() Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) ([]byte, error) {
		if j.Timeout <= 0 {
			return next(ctx)
		}
		ctx, cancel := context.WithTimeout(ctx, j.Timeout)
		defer cancel()
		return next(ctx)
	}
}
