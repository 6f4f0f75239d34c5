// Package middleware provides composable wrappers around job execution.
//
// A [Middleware] receives the job and the next [Handler] in the chain. The
// handler yields the encoded job result, so middleware can observe both the
// outcome and the error. [Chain] composes middleware right-to-left: the first
// one in the list is the outermost.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// Built-in middleware:
//
//   - [Logging] logs start and completion of each attempt
//   - [Recover] converts handler panics into errors
//   - [Timeout] bounds the handler context by the job timeout
//   - [Tracing] wraps the attempt in an OpenTelemetry span
//   - [Metrics] records attempt duration and outcome counters
//
// Middleware must call next unless it intends to short-circuit the attempt.
package middleware
