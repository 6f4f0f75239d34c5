package job

import "context"

// Definition is a typed job definition. T is the payload type and R the
// result type; both must be JSON-serializable.
type Definition[T, R any] struct {
	// Name is the unique identifier for this job kind.
	Name string

	// Handler processes the payload and returns the job result.
	Handler func(ctx context.Context, payload T) (R, error)

	// Opts are the enqueue defaults for this job kind.
	Opts Options
}

// NewDefinition creates a typed job definition.
func NewDefinition[T, R any](name string, handler func(ctx context.Context, payload T) (R, error), opts ...Option) *Definition[T, R] {
	def := &Definition[T, R]{
		Name:    name,
		Handler: handler,
		Opts:    DefaultOptions(),
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}
	return def
}
