package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// HandlerFunc is a type-erased job handler. It takes the raw JSON payload
// and returns the raw JSON result.
type HandlerFunc func(ctx context.Context, payload []byte) ([]byte, error)

// Registry maps job names to type-erased handler functions.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]registered
}

type registered struct {
	handler HandlerFunc
	opts    Options
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]registered),
	}
}

// RegisterDefinition registers a typed job definition. The payload is
// decoded into T before the handler runs and the returned R is encoded as
// the job result. Registering a name twice replaces the earlier handler.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[T, R any](r *Registry, def *Definition[T, R]) {
	handler := func(ctx context.Context, payload []byte) ([]byte, error) {
		var in T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &in); err != nil {
				return nil, fmt.Errorf("unmarshal payload for job %q: %w", def.Name, err)
			}
		}
		out, err := def.Handler(ctx, in)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("marshal result for job %q: %w", def.Name, err)
		}
		return data, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[def.Name] = registered{handler: handler, opts: def.Opts}
}

// Get returns the handler for the given job name.
func (r *Registry) Get(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h.handler, ok
}

// Options returns the enqueue defaults registered with the definition.
func (r *Registry) Options(name string) (Options, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h.opts, ok
}

// Has reports whether a handler is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns all registered job names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}
