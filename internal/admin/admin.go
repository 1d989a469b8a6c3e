// Package admin implements the administrative configuration-write surface
// (C1 put/validate/get_schema/apply_section_to_raw): the operations that let
// an operator change one provider's parameters at runtime without hand-
// editing the config file, grounded on Irene's configuration_component.py
// FastAPI routes (PUT /config/sections/{section}, POST
// /config/sections/{section}/validate,
// _examples/original_source/irene/components/configuration_component.py:220-320).
//
// This lives in its own package rather than internal/config because it
// needs internal/schema's provider parameter tables, and internal/schema
// already imports internal/config — folding admin into either package would
// create an import cycle.
package admin

import (
	"fmt"
	"os"
	"sync"

	"github.com/MrWong99/voiced/internal/config"
	"github.com/MrWong99/voiced/internal/schema"
	"github.com/MrWong99/voiced/pkg/provider"
)

// ConfigAdmin is the administrative view over a running config. Writes go
// through the same file Watcher reads from; Put saves a new file revision
// and relies on the Watcher's existing hot-reload (internal/config's
// fsnotify/poll loop) to pick the change back up into the live snapshot,
// rather than mutating Watcher's in-memory tree directly.
type ConfigAdmin struct {
	watcher *config.Watcher
	path    string

	mu sync.Mutex // serialises concurrent Put calls against the same file
}

// New builds a ConfigAdmin backed by watcher, whose file lives at path.
func New(watcher *config.Watcher, path string) *ConfigAdmin {
	return &ConfigAdmin{watcher: watcher, path: path}
}

// Get resolves a dotted path against the current live snapshot.
func (a *ConfigAdmin) Get(path string) any {
	return config.Resolve[any](a.watcher.Current(), path, nil)
}

// GetSchema returns the registered parameter schema for (kind, providerName).
func (a *ConfigAdmin) GetSchema(kind config.ComponentKind, providerName string) (provider.ParameterSchema, bool) {
	return schema.GetProviderParameterSchema(kind, providerName)
}

// Validate dry-runs dict against (kind, providerName)'s registered schema: no
// file is read or written. Mirrors configuration_component.py's
// /validate route, which performs the same model check the PUT route does
// but never calls save_config.
func (a *ConfigAdmin) Validate(kind config.ComponentKind, providerName string, dict map[string]any) error {
	sch, ok := a.GetSchema(kind, providerName)
	if !ok {
		return fmt.Errorf("admin: no registered schema for %s/%s", kind, providerName)
	}
	return validateAgainstSchema(sch, dict)
}

// Put validates dict against (kind, providerName)'s schema, then writes it
// into the provider's section of the on-disk config, preserving every other
// comment and section via [config.ApplySectionToRaw]. The write triggers the
// backing Watcher's own file-change detection, which reloads and swaps in
// the new live snapshot; Put itself never mutates the Watcher's in-memory
// tree.
func (a *ConfigAdmin) Put(kind config.ComponentKind, providerName string, dict map[string]any) error {
	if err := a.Validate(kind, providerName, dict); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	text, err := os.ReadFile(a.path)
	if err != nil {
		return fmt.Errorf("admin: read config %q: %w", a.path, err)
	}

	components := a.currentComponentsSection()
	compEntry := copyMap(components[string(kind)])
	if compEntry == nil {
		compEntry = map[string]any{"enabled": true}
	}
	providers := copyMap(compEntry["providers"])
	if providers == nil {
		providers = map[string]any{}
	}
	providers[providerName] = dict
	compEntry["providers"] = providers
	components[string(kind)] = compEntry

	updated, err := config.ApplySectionToRaw(string(text), "components", components)
	if err != nil {
		return fmt.Errorf("admin: apply section: %w", err)
	}

	if err := config.SaveRaw(updated, a.path); err != nil {
		return fmt.Errorf("admin: save: %w", err)
	}
	return nil
}

// ApplySectionToRaw exposes the raw comment-preserving section-replace
// operation directly, for callers (or tests) that want to stage an edit
// without going through Put's validate-then-save flow.
func (a *ConfigAdmin) ApplySectionToRaw(text, section string, values map[string]any) (string, error) {
	return config.ApplySectionToRaw(text, section, values)
}

// currentComponentsSection returns a shallow copy of the live snapshot's
// "components" raw section, so callers can mutate it without corrupting the
// Watcher's current tree.
func (a *ConfigAdmin) currentComponentsSection() map[string]any {
	raw := a.watcher.Current().Raw()
	existing, _ := raw["components"].(map[string]any)
	return copyMap(existing)
}

// copyMap returns a shallow copy of v asserted as map[string]any, or nil if
// v is not one. Used to keep Put's edits from mutating the (supposedly
// immutable, §4.2) live snapshot's nested maps in place.
func copyMap(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		out[k] = val
	}
	return out
}

// validateAgainstSchema checks dict against sch: every field present in dict
// must be declared by sch, and declared enum/min/max constraints must hold.
// Go has no Pydantic to lean on, so this is a direct hand-rolled translation
// of the same structural checks Irene's model validation performs.
func validateAgainstSchema(sch provider.ParameterSchema, dict map[string]any) error {
	for key, val := range dict {
		field, ok := sch[key]
		if !ok {
			return fmt.Errorf("admin: unknown parameter %q", key)
		}
		if err := validateField(key, field, val); err != nil {
			return err
		}
	}
	return nil
}

func validateField(key string, field provider.SchemaField, val any) error {
	if len(field.Enum) > 0 {
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("admin: parameter %q: expected one of %v, got %T", key, field.Enum, val)
		}
		var found bool
		for _, allowed := range field.Enum {
			if s == allowed {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("admin: parameter %q: %q is not one of %v", key, s, field.Enum)
		}
	}

	if field.Min != nil || field.Max != nil {
		n, ok := asFloat(val)
		if !ok {
			return fmt.Errorf("admin: parameter %q: expected a number, got %T", key, val)
		}
		if field.Min != nil && n < *field.Min {
			return fmt.Errorf("admin: parameter %q: %v is below minimum %v", key, n, *field.Min)
		}
		if field.Max != nil && n > *field.Max {
			return fmt.Errorf("admin: parameter %q: %v exceeds maximum %v", key, n, *field.Max)
		}
	}

	return nil
}

func asFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
