package ussd

import (
	"fmt"
	"slices"
	"sync"
)

// Factory builds a handler instance for one invocation.
type Factory func() Handler

// Registry maps stable handler identifiers to factories. It is safe for
// concurrent use so menus can be reloaded while callbacks are served.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a registry holding only the built-in noop handler.
func NewRegistry() *Registry {
	return &Registry{
		factories: map[string]Factory{NoopHandlerID: noopHandler},
	}
}

// Register adds or replaces the factory for id. The built-in noop handler
// cannot be replaced.
func (r *Registry) Register(id string, f Factory) error {
	if id == "" {
		return fmt.Errorf("register handler: empty id")
	}
	if id == NoopHandlerID {
		return fmt.Errorf("register handler %q: id is reserved", id)
	}
	if f == nil {
		return fmt.Errorf("register handler %q: nil factory", id)
	}
	r.mu.Lock()
	r.factories[id] = f
	r.mu.Unlock()
	return nil
}

// RegisterHandler registers a handler value shared by all invocations.
func (r *Registry) RegisterHandler(id string, h Handler) error {
	if h == nil {
		return fmt.Errorf("register handler %q: nil handler", id)
	}
	return r.Register(id, func() Handler { return h })
}

// Unregister removes id. The built-in noop handler cannot be removed.
func (r *Registry) Unregister(id string) {
	if id == NoopHandlerID {
		return
	}
	r.mu.Lock()
	delete(r.factories, id)
	r.mu.Unlock()
}

// Resolve instantiates the handler registered under id.
func (r *Registry) Resolve(id string) (Handler, error) {
	r.mu.RLock()
	f, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownHandler, id)
	}
	h := f()
	if h == nil {
		return nil, fmt.Errorf("%w: factory for %q returned nil", ErrHandlerResolution, id)
	}
	return h, nil
}

// IDs returns the registered identifiers in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
