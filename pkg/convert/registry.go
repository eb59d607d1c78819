package convert

import (
	"fmt"
	"sort"
	"sync"
)

// Registry stores conversion backends by name.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Backend),
	}
}

// Register adds a backend by its Name(). Duplicate names return an error.
func (r *Registry) Register(backend Backend) error {
	if backend == nil {
		return fmt.Errorf("convert: backend is required")
	}
	name := backend.Name()
	if name == "" {
		return fmt.Errorf("convert: backend name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[name]; exists {
		return fmt.Errorf("convert: backend %q already registered", name)
	}

	r.backends[name] = backend
	return nil
}

// Get retrieves a backend by name.
func (r *Registry) Get(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	backend, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("convert: backend %q not found", name)
	}
	return backend, nil
}

// Backends returns the registered backends ordered by name.
func (r *Registry) Backends() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Backend, 0, len(r.backends))
	for _, backend := range r.backends {
		out = append(out, backend)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
