// Package plugin provides the named-factory registry shared by the
// acquisition and deployment subsystems, and the WebAssembly host that
// loads external deployment handlers from the plugin directory.
//
// Registration is explicit: builtin implementations register themselves
// from their package's init into an exported registry variable, and the
// plugin directory is scanned once at startup. There is no import-driven
// discovery; what is in the table is exactly what was put there.
package plugin

import (
	"sort"
	"sync"
)

// Registry maps plugin identifiers to factories of type T. One
// implementation per identifier: the first registration wins and later
// ones fail. The zero value is not usable; construct with NewRegistry.
type Registry[T any] struct {
	kind      string
	mu        sync.RWMutex
	factories map[string]T
}

// NewRegistry returns an empty registry. kind names the plugin kind in
// error messages, e.g. "acquirer" or "deployment handler".
func NewRegistry[T any](kind string) *Registry[T] {
	return &Registry[T]{
		kind:      kind,
		factories: make(map[string]T),
	}
}

// Register binds name to factory. Binding a name twice is a
// RegistrationError and leaves the first binding in place.
func (r *Registry[T]) Register(name string, factory T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return &RegistrationError{Kind: r.kind, Name: name}
	}
	r.factories[name] = factory
	return nil
}

// MustRegister is Register for init-time use; it panics on collision.
func (r *Registry[T]) MustRegister(name string, factory T) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Lookup resolves name to its factory. Unknown names produce a
// LookupError listing the registered identifiers.
func (r *Registry[T]) Lookup(name string) (T, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, &LookupError{Kind: r.kind, Name: name, Known: r.Names()}
	}
	return factory, nil
}

// Names returns the registered identifiers, sorted.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
