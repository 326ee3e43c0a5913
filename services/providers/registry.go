package providers

import (
	"errors"
	"sync"
)

// ErrNotRegistered is returned when a route names a provider id that has
// no registered adapter.
var ErrNotRegistered = errors.New("provider not registered")

// Registry holds the closed set of provider adapters configured at
// startup. Routes reference providers by id; there is no dynamic
// discovery.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under its name. Registering the same name
// twice replaces the earlier adapter.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get retrieves a provider by id.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, ErrNotRegistered
	}
	return p, nil
}

// Names returns all registered provider ids.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
