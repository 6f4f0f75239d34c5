package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/offload/job"
)

const instrumentationName = "github.com/xraph/offload"

// Tracing returns middleware that wraps each attempt in a span using the
// global TracerProvider. Without a configured provider it is a no-op.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(instrumentationName))
}

// TracingWithTracer is like Tracing but uses the given tracer.
//
// The span is named offload.job.execute and carries offload.job.id,
// offload.job.name, offload.queue and offload.retry_count.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) ([]byte, error) {
		ctx, span := tracer.Start(ctx, "offload.job.execute",
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("offload.job.id", j.ID.String()),
				attribute.String("offload.job.name", j.Name),
				attribute.String("offload.queue", j.Queue),
				attribute.Int("offload.retry_count", j.RetryCount),
			),
		)
		defer span.End()

		out, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return out, err
		}
		span.SetStatus(codes.Ok, "")
		return out, nil
	}
}
