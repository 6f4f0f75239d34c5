package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/offload/job"
)

// Logging returns middleware that logs the start and outcome of each attempt.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) ([]byte, error) {
		attrs := []any{
			slog.String("job_name", j.Name),
			slog.String("job_id", j.ID.String()),
			slog.String("queue", j.Queue),
			slog.Int("attempt", j.RetryCount+1),
		}
		logger.Info("job started", attrs...)

		start := time.Now()
		out, err := next(ctx)
		attrs = append(attrs, slog.Duration("elapsed", time.Since(start)))

		if err != nil {
			logger.Error("job attempt failed", append(attrs, slog.String("error", err.Error()))...)
			return out, err
		}
		logger.Info("job completed", append(attrs, slog.Int("result_bytes", len(out)))...)
		return out, nil
	}
}
