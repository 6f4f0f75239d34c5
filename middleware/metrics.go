package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/offload/job"
)

// Metrics returns middleware that records attempt metrics on the global
// MeterProvider.
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(instrumentationName))
}

// MetricsWithMeter is like Metrics but uses the given meter.
//
// Instruments, all tagged with job_name, queue and status ("ok"/"error"):
//   - offload.job.duration: histogram of attempt time in seconds
//   - offload.job.executions: counter of attempts
func MetricsWithMeter(meter metric.Meter) Middleware {
	// The OTel API hands back usable no-op instruments alongside any error.
	duration, _ := meter.Float64Histogram("offload.job.duration",
		metric.WithDescription("Duration of job attempts in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter("offload.job.executions",
		metric.WithDescription("Number of job attempts"),
		metric.WithUnit("{attempt}"),
	)

	return func(ctx context.Context, j *job.Job, next Handler) ([]byte, error) {
		start := time.Now()
		out, err := next(ctx)

		status := "ok"
		if err != nil {
			status = "error"
		}
		attrs := metric.WithAttributes(
			attribute.String("job_name", j.Name),
			attribute.String("queue", j.Queue),
			attribute.String("status", status),
		)
		duration.Record(ctx, time.Since(start).Seconds(), attrs)
		executions.Add(ctx, 1, attrs)
		return out, err
	}
}
