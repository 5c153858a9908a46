package extension

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry stores widget factories by name.
// A name is registered at most once; later registrations are rejected and
// the first factory is kept.
type Registry struct {
	mu         sync.RWMutex       // protects extensions.
	extensions map[string]Factory // registered factories, keyed by widget name.
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		extensions: make(map[string]Factory),
	}
}

// Register stores f under name.
// A nil f is stored as a no-op factory.
// Returns ErrDuplicateExtension if name is already registered.
func (r *Registry) Register(name string, f Factory) error {
	if f == nil {
		f = noop
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.extensions[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateExtension, name)
	}
	r.extensions[name] = f
	log.Debug().Str("extension", name).Msg("extension registered")
	return nil
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.extensions[name]
	return f, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Unregister removes name from the registry.
// Returns ErrUnknownExtension if name is not registered.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.extensions[name]; !exists {
		return fmt.Errorf("%w: %q", ErrUnknownExtension, name)
	}
	delete(r.extensions, name)
	log.Debug().Str("extension", name).Msg("extension unregistered")
	return nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.extensions))
	for name := range r.extensions {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Len returns the number of registered extensions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.extensions)
}
