// Package component implements the generic Component Manager building
// block (C4): lazy/eager provider construction, an essential-provider set
// constructed regardless of loading mode, and an ordered
// default-then-fallback execution chain with a per-provider circuit
// breaker.
//
// It generalises the teacher's internal/resilience.FallbackGroup[T] — which
// wraps already-constructed provider values — to also own construction: a
// provider named in config but not yet built is constructed on first use via
// a single-flight load (§4.4), and a provider whose circuit breaker is open
// is skipped in favour of the next name in the fallback chain, exactly as
// FallbackGroup already did for pre-built values.
package component

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voiced/internal/config"
	"github.com/MrWong99/voiced/internal/resilience"
	"github.com/MrWong99/voiced/pkg/provider"
)

// ErrAllProvidersFailed is returned when every provider in the chain fails
// or is circuit-open.
var ErrAllProvidersFailed = errors.New("component: all providers failed")

// ErrCapabilityUnavailable is returned when a component has no usable
// provider at all (e.g. disabled, or zero providers configured).
var ErrCapabilityUnavailable = errors.New("component: capability unavailable")

type lazyEntry[P any] struct {
	once  sync.Once
	value P
	err   error
}

// Component owns construction and fallback selection for one capability
// kind's providers, typed to that capability's provider interface P (e.g.
// tts.Provider).
//
// Safe for concurrent use.
type Component[P provider.Base] struct {
	kind     config.ComponentKind
	registry *config.Registry

	mu            sync.RWMutex
	cfg           config.ComponentCfg
	lazy          map[string]*lazyEntry[P]
	breakers      map[string]*resilience.CircuitBreaker
	defaultName   string
	fallbackNames []string
}

// New constructs a Component for kind from cfg. In eager mode every
// configured provider is constructed immediately; in lazy mode only
// cfg.EssentialProviders are. Construction failure of a non-essential
// provider in eager mode is logged and skipped; the failure is cached, so
// that provider is not constructed again and calls skip to the next name in
// the chain. Failure to construct an essential provider is fatal, since
// essentials are the ones the capability falls back to when everything else
// is unavailable.
func New[P provider.Base](kind config.ComponentKind, cfg config.ComponentCfg, registry *config.Registry) (*Component[P], error) {
	c := &Component[P]{
		kind:          kind,
		registry:      registry,
		cfg:           cfg,
		lazy:          make(map[string]*lazyEntry[P]),
		breakers:      make(map[string]*resilience.CircuitBreaker),
		defaultName:   cfg.DefaultProvider,
		fallbackNames: append([]string(nil), cfg.FallbackProviders...),
	}

	essential := make(map[string]bool, len(cfg.EssentialProviders))
	for _, name := range cfg.EssentialProviders {
		essential[name] = true
	}

	if cfg.Lazy {
		for name := range essential {
			if _, err := c.getOrLoad(name); err != nil {
				return nil, fmt.Errorf("component %s: essential provider %q: %w", kind, name, err)
			}
		}
		return c, nil
	}

	// Concurrent-init (§4.4): every configured provider is constructed in
	// parallel. getOrLoad's single-flight/mutex discipline makes this safe;
	// a non-essential failure only logs and degrades the component, an
	// essential one fails the whole construction.
	var g errgroup.Group
	for name := range cfg.Providers {
		name := name
		g.Go(func() error {
			if _, err := c.getOrLoad(name); err != nil {
				if essential[name] {
					return fmt.Errorf("component %s: essential provider %q: %w", kind, name, err)
				}
				slog.Warn("component: failed to eagerly construct provider", "kind", kind, "provider", name, "err", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return c, nil
}

// construct builds a fresh provider instance by (kind, name), type-asserting
// the result to P.
func (c *Component[P]) construct(name string) (P, error) {
	var zero P
	params := c.cfg.Providers[name]
	base, err := c.registry.Create(c.kind, name, params)
	if err != nil {
		return zero, err
	}
	p, ok := base.(P)
	if !ok {
		return zero, fmt.Errorf("provider %q does not implement the %s capability interface", name, c.kind)
	}
	return p, nil
}

// getOrLoad returns the provider instance named name, constructing it
// exactly once even under concurrent callers (§4.4 single-flight load).
func (c *Component[P]) getOrLoad(name string) (P, error) {
	c.mu.Lock()
	e, ok := c.lazy[name]
	if !ok {
		e = &lazyEntry[P]{}
		c.lazy[name] = e
	}
	if _, ok := c.breakers[name]; !ok {
		c.breakers[name] = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: string(c.kind) + "/" + name})
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.value, e.err = c.construct(name)
	})
	return e.value, e.err
}

// chain returns the ordered list of provider names to try: the current
// default followed by the configured fallbacks, each appearing once.
func (c *Component[P]) chain() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]bool, 1+len(c.fallbackNames))
	var names []string
	if c.defaultName != "" {
		names = append(names, c.defaultName)
		seen[c.defaultName] = true
	}
	for _, n := range c.fallbackNames {
		if !seen[n] {
			names = append(names, n)
			seen[n] = true
		}
	}
	return names
}

// Execute tries fn against each provider in the default-then-fallback chain,
// in order, skipping circuit-open entries, until one succeeds.
func (c *Component[P]) Execute(fn func(P) error) error {
	_, err := ExecuteWithResult(c, func(p P) (struct{}, error) { return struct{}{}, fn(p) })
	return err
}

// ExecuteWithResult is a package-level function (Go has no method-level type
// parameters) that tries fn against each provider in cmp's
// default-then-fallback chain until one succeeds, returning its result.
func ExecuteWithResult[P provider.Base, R any](cmp *Component[P], fn func(P) (R, error)) (R, error) {
	var zero R
	names := cmp.chain()
	if len(names) == 0 {
		return zero, fmt.Errorf("%w: %s has no default or fallback provider configured", ErrCapabilityUnavailable, cmp.kind)
	}

	var lastErr error
	for _, name := range names {
		provider, err := cmp.getOrLoad(name)
		if err != nil {
			lastErr = err
			slog.Warn("component: provider unavailable, trying next", "kind", cmp.kind, "provider", name, "err", err)
			continue
		}

		cmp.mu.RLock()
		breaker := cmp.breakers[name]
		cmp.mu.RUnlock()

		var result R
		execErr := breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(provider)
			return innerErr
		})
		if execErr == nil {
			return result, nil
		}
		lastErr = execErr
		if errors.Is(execErr, resilience.ErrCircuitOpen) {
			slog.Debug("component: skipping provider, circuit open", "kind", cmp.kind, "provider", name)
		} else {
			slog.Warn("component: provider call failed, trying next", "kind", cmp.kind, "provider", name, "err", execErr)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrAllProvidersFailed, lastErr)
}

// AddProvider registers or replaces provider params for name, available for
// lazy construction on next use. It does not reconstruct an already-loaded
// instance under the same name; a rebuild needs a fresh Component. The
// Lifecycle manager builds Components once at startup and does not rebuild
// them on a config change.
func (c *Component[P]) AddProvider(name string, params map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.Providers == nil {
		c.cfg.Providers = map[string]map[string]any{}
	}
	c.cfg.Providers[name] = params
}

// SetDefaultProvider changes which provider name Execute tries first.
func (c *Component[P]) SetDefaultProvider(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultName = name
}

// GetCurrentProvider returns the name of the provider Execute would try
// first.
func (c *Component[P]) GetCurrentProvider() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultName
}

// ListAvailableProviders returns the names of every configured provider
// currently constructed and reporting itself available.
func (c *Component[P]) ListAvailableProviders(ctx context.Context) []string {
	c.mu.RLock()
	entries := make(map[string]*lazyEntry[P], len(c.lazy))
	for name, e := range c.lazy {
		entries[name] = e
	}
	c.mu.RUnlock()

	var names []string
	for name, e := range entries {
		if e.err != nil {
			continue
		}
		if e.value.IsAvailable(ctx) {
			names = append(names, name)
		}
	}
	return names
}

// IsAvailable reports whether at least one provider in the chain is
// currently constructed and available.
func (c *Component[P]) IsAvailable(ctx context.Context) bool {
	for _, name := range c.chain() {
		c.mu.RLock()
		e, ok := c.lazy[name]
		c.mu.RUnlock()
		if ok && e.err == nil && e.value.IsAvailable(ctx) {
			return true
		}
	}
	return false
}

// GetCapabilities returns the capability metadata of the current default
// provider, or nil if it has not been constructed.
func (c *Component[P]) GetCapabilities() map[string]any {
	c.mu.RLock()
	name := c.defaultName
	e, ok := c.lazy[name]
	c.mu.RUnlock()
	if !ok || e.err != nil {
		return nil
	}
	return e.value.Capabilities()
}

// ParameterSchema returns the parameter schema of the current default
// provider, or an empty schema if it has not been constructed.
func (c *Component[P]) ParameterSchema() provider.ParameterSchema {
	c.mu.RLock()
	name := c.defaultName
	e, ok := c.lazy[name]
	c.mu.RUnlock()
	if !ok || e.err != nil {
		return provider.ParameterSchema{}
	}
	return e.value.ParameterSchema()
}

// Kind returns the component kind this Component manages.
func (c *Component[P]) Kind() config.ComponentKind { return c.kind }
