package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/offload/job"
)

// Recover returns middleware that turns a handler panic into an error.
// The stack is logged; the job then follows the normal failure path.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (out []byte, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("job handler panicked",
					slog.String("job_name", j.Name),
					slog.String("job_id", j.ID.String()),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				out, err = nil, fmt.Errorf("panic in job %s: %v", j.Name, r)
			}
		}()
		return next(ctx)
	}
}
