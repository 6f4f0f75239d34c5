package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/offload/ext"
	"github.com/xraph/offload/id"
	"github.com/xraph/offload/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension    = (*MetricsExtension)(nil)
	_ ext.JobEnqueued  = (*MetricsExtension)(nil)
	_ ext.JobCompleted = (*MetricsExtension)(nil)
	_ ext.JobFailed    = (*MetricsExtension)(nil)
	_ ext.JobRetrying  = (*MetricsExtension)(nil)
	_ ext.CronFired    = (*MetricsExtension)(nil)
)

const instrumentationName = "github.com/xraph/offload/observability"

// MetricsExtension records system-wide lifecycle counters. Job counters
// carry job_name and queue attributes; the cron counter carries cron_name.
type MetricsExtension struct {
	JobEnqueued  metric.Int64Counter
	JobCompleted metric.Int64Counter
	JobFailed    metric.Int64Counter
	JobRetried   metric.Int64Counter
	CronFired    metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(instrumentationName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension on the given meter.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		// The API returns a no-op instrument alongside any error.
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	return &MetricsExtension{
		JobEnqueued:  counter("offload.job.enqueued", "Jobs submitted"),
		JobCompleted: counter("offload.job.completed", "Jobs that reached SUCCESS"),
		JobFailed:    counter("offload.job.failed", "Jobs that reached FAILURE"),
		JobRetried:   counter("offload.job.retried", "Attempts rescheduled for retry"),
		CronFired:    counter("offload.cron.fired", "Cron occurrences enqueued"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func jobAttrs(j *job.Job) metric.AddOption {
	return metric.WithAttributes(
		attribute.String("job_name", j.Name),
		attribute.String("queue", j.Queue),
	)
}

// OnJobEnqueued implements ext.JobEnqueued.
func (m *MetricsExtension) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	m.JobEnqueued.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobCompleted implements ext.JobCompleted.
func (m *MetricsExtension) OnJobCompleted(ctx context.Context, j *job.Job, _ time.Duration) error {
	m.JobCompleted.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(ctx context.Context, j *job.Job, _ error) error {
	m.JobFailed.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobRetrying implements ext.JobRetrying.
func (m *MetricsExtension) OnJobRetrying(ctx context.Context, j *job.Job, _ int, _ time.Time) error {
	m.JobRetried.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnCronFired implements ext.CronFired.
func (m *MetricsExtension) OnCronFired(ctx context.Context, entryName string, _ id.JobID) error {
	m.CronFired.Add(ctx, 1, metric.WithAttributes(attribute.String("cron_name", entryName)))
	return nil
}
