// Package lifecycle wires every configured capability component into a
// running application: New builds them in dependency order, Get hands out
// the live handle for a kind, and Shutdown tears everything down in
// reverse order (C5, Component Manager).
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voiced/internal/component"
	"github.com/MrWong99/voiced/internal/config"
)

// ErrComponentNotBuilt is returned by Get when no instance was constructed
// for the requested kind, either because it was disabled in config or was
// never registered.
var ErrComponentNotBuilt = errors.New("lifecycle: component not built")

// Manager owns every enabled capability component for the process. It is
// built once at startup by New and lives for the process lifetime.
type Manager struct {
	cfg *config.Config

	mu         sync.RWMutex
	components map[config.ComponentKind]any
	healthy    map[config.ComponentKind]bool

	// order is the construction order (flattened dependency levels), used
	// in reverse by Shutdown.
	order []config.ComponentKind

	registry *config.Registry

	stopOnce sync.Once
}

// New constructs every enabled component declared in cfg, in an order that
// respects ComponentCfg.DependsOnComponents (§4.3 phase 3: dependency-
// ordered construction). Kinds within one dependency level are constructed
// concurrently, bounded by an errgroup.
//
// A non-Optional component that fails to construct, or that reports
// unhealthy after construction, aborts startup and returns an error. An
// Optional component that fails only logs a warning and is left unbuilt;
// Get will then return ErrComponentNotBuilt for that kind.
func New(ctx context.Context, cfg *config.Config, registry *config.Registry) (*Manager, error) {
	enabled := make(map[config.ComponentKind]config.ComponentCfg, len(cfg.Components))
	for kind, c := range cfg.Components {
		if c.Enabled {
			enabled[kind] = c
		}
	}

	levels, err := topoLevels(enabled)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: %w", err)
	}

	m := &Manager{
		cfg:        cfg,
		components: make(map[config.ComponentKind]any, len(enabled)),
		healthy:    make(map[config.ComponentKind]bool, len(enabled)),
		registry:   registry,
	}

	for _, level := range levels {
		g, gctx := errgroup.WithContext(ctx)
		var mu sync.Mutex
		for _, kind := range level {
			kind := kind
			ccfg := enabled[kind]
			g.Go(func() error {
				inst, err := buildComponent(gctx, kind, ccfg, registry)
				if err != nil {
					if ccfg.Optional {
						slog.Warn("optional component failed to build, continuing without it", "kind", kind, "err", err)
						return nil
					}
					return fmt.Errorf("build component %q: %w", kind, err)
				}

				healthy := instanceHealthy(gctx, inst)
				if !healthy && !ccfg.Optional {
					return fmt.Errorf("component %q constructed but unhealthy at startup", kind)
				}

				mu.Lock()
				m.components[kind] = inst
				m.healthy[kind] = healthy
				m.order = append(m.order, kind)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			// Best-effort teardown of whatever was already built before
			// surfacing the startup failure.
			m.Shutdown(context.Background())
			return nil, err
		}
	}

	slog.Info("lifecycle: startup complete", "components", len(m.components))
	return m, nil
}

// buildComponent dispatches construction to the matching component.New*
// constructor for kind. Kinds with no capability-provider wrapper
// (intent_system, monitoring, nlu_analysis, configuration) are acknowledged
// as present but have no provider-backed instance; they are recorded as
// built+healthy placeholders since their supporting packages (intent
// dispatch, trace/otel, conversation store) manage their own lifetimes.
func buildComponent(ctx context.Context, kind config.ComponentKind, ccfg config.ComponentCfg, registry *config.Registry) (any, error) {
	switch kind {
	case config.KindTTS:
		return component.NewTTS(ccfg, registry)
	case config.KindASR:
		return component.NewASR(ccfg, registry)
	case config.KindLLM:
		return component.NewLLM(ccfg, registry)
	case config.KindAudio:
		return component.NewAudio(ccfg, registry)
	case config.KindVoiceTrigger:
		return component.NewVoiceTrigger(ccfg, registry)
	case config.KindTextProcessor:
		return component.NewTextProcessor(ccfg, registry)
	case config.KindNLU:
		return component.NewNLU(ccfg, registry)
	case config.KindIntentSystem, config.KindMonitoring, config.KindNLUAnalysis, config.KindConfiguration:
		return struct{}{}, nil
	default:
		return nil, fmt.Errorf("unknown component kind %q", kind)
	}
}

// availabilityChecker is satisfied by every component wrapper (they embed
// *component.Component[P], which exposes IsAvailable).
type availabilityChecker interface {
	IsAvailable(ctx context.Context) bool
}

func instanceHealthy(ctx context.Context, inst any) bool {
	checker, ok := inst.(availabilityChecker)
	if !ok {
		return true
	}
	return checker.IsAvailable(ctx)
}

// Get returns the constructed instance for kind, or ErrComponentNotBuilt if
// it was disabled, optional-and-failed, or never built. Callers type-assert
// the result to the concrete wrapper type they expect, e.g.:
//
//	tts, err := lifecycle.Get[component.TTS](m, config.KindTTS)
func (m *Manager) Get(kind config.ComponentKind) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.components[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrComponentNotBuilt, kind)
	}
	return inst, nil
}

// Get is a generic convenience wrapper around Manager.Get that performs the
// type assertion to the caller's expected wrapper type.
func Get[T any](m *Manager, kind config.ComponentKind) (T, error) {
	var zero T
	inst, err := m.Get(kind)
	if err != nil {
		return zero, err
	}
	typed, ok := inst.(T)
	if !ok {
		return zero, fmt.Errorf("lifecycle: component %q is %T, not %T", kind, inst, zero)
	}
	return typed, nil
}

// IsHealthy reports the last-known health of the component built for kind.
// Unbuilt components report false.
func (m *Manager) IsHealthy(kind config.ComponentKind) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy[kind]
}

// DeploymentProfile summarises which component kinds are enabled, built,
// and healthy, for startup logging and diagnostics endpoints.
type DeploymentProfile struct {
	Enabled []config.ComponentKind
	Built   []config.ComponentKind
	Healthy []config.ComponentKind
}

// DeploymentProfile reports the manager's current composition.
func (m *Manager) DeploymentProfile() DeploymentProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var profile DeploymentProfile
	for kind, c := range m.cfg.Components {
		if c.Enabled {
			profile.Enabled = append(profile.Enabled, kind)
		}
	}
	for kind := range m.components {
		profile.Built = append(profile.Built, kind)
	}
	for kind, ok := range m.healthy {
		if ok {
			profile.Healthy = append(profile.Healthy, kind)
		}
	}
	return profile
}

// Shutdown tears down every built component in reverse construction order.
// It is best-effort: a component with no Close/Shutdown method is skipped,
// and an error from one component does not stop the rest from being torn
// down. If ctx's deadline elapses first, remaining components are skipped
// and ctx.Err() is returned. Safe to call multiple times; only the first
// call does any work.
func (m *Manager) Shutdown(ctx context.Context) error {
	var shutdownErr error
	m.stopOnce.Do(func() {
		m.mu.RLock()
		order := reverseKinds([][]config.ComponentKind{m.order})
		components := make(map[config.ComponentKind]any, len(m.components))
		for k, v := range m.components {
			components[k] = v
		}
		m.mu.RUnlock()

		slog.Info("lifecycle: shutting down", "components", len(order))
		for i, kind := range order {
			select {
			case <-ctx.Done():
				slog.Warn("lifecycle: shutdown deadline exceeded", "remaining", len(order)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			inst, ok := components[kind]
			if !ok {
				continue
			}
			if closer, ok := inst.(interface{ Close() error }); ok {
				if err := closer.Close(); err != nil {
					slog.Warn("lifecycle: close error", "kind", kind, "err", err)
				}
				continue
			}
			if closer, ok := inst.(interface{ Shutdown(context.Context) error }); ok {
				if err := closer.Shutdown(ctx); err != nil {
					slog.Warn("lifecycle: shutdown error", "kind", kind, "err", err)
				}
			}
		}
		slog.Info("lifecycle: shutdown complete")
	})
	return shutdownErr
}
