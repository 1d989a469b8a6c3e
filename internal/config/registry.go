package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/voiced/pkg/provider"
)

// ErrProviderNotRegistered is returned by Create when no factory has been
// registered for the requested (kind, name) pair.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory constructs a concrete provider.Base implementation from its raw
// parameter block (the ComponentCfg.Providers[name] map). Concrete provider
// packages register a Factory per kind/name pair at init time or from
// cmd/voiced/main.go's wiring step.
type Factory func(params map[string]any) (provider.Base, error)

// Registry maps (ComponentKind, provider name) to the Factory that builds
// it. It is the Schema Registry's and the Component Manager's single source
// of "what provider implementations exist" — generalised from the teacher's
// seven hardcoded per-kind maps into one table keyed by the eleven
// ComponentKind values (§3 ComponentDescriptor, §4.3).
//
// Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[ComponentKind]map[string]Factory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{factories: make(map[ComponentKind]map[string]Factory)}
}

// Register records factory under (kind, name). A later call with the same
// pair overwrites the previous registration.
func (r *Registry) Register(kind ComponentKind, name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.factories[kind] == nil {
		r.factories[kind] = make(map[string]Factory)
	}
	r.factories[kind][name] = factory
}

// Create instantiates the provider registered under (kind, name), passing it
// params. Returns [ErrProviderNotRegistered] if nothing is registered there.
func (r *Registry) Create(kind ComponentKind, name string, params map[string]any) (provider.Base, error) {
	r.mu.RLock()
	factory, ok := r.factories[kind][name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, name)
	}
	return factory(params)
}

// Names returns the provider names registered under kind, in no particular
// order.
func (r *Registry) Names(kind ComponentKind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories[kind]))
	for name := range r.factories[kind] {
		names = append(names, name)
	}
	return names
}

// Has reports whether a factory is registered under (kind, name).
func (r *Registry) Has(kind ComponentKind, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[kind][name]
	return ok
}
