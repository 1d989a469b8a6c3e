package config

import (
	"reflect"
	"slices"
)

// Diff describes what changed between two configuration snapshots. Only
// fields that are safe to apply without a full restart are tracked (§4.2
// hot reload, scenario S5: "config reload updates default provider").
type Diff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	ComponentChanges []ComponentDiff
}

// ComponentDiff describes what changed for a single component kind between
// two configs.
type ComponentDiff struct {
	Kind ComponentKind

	Added   bool
	Removed bool

	EnabledChanged bool
	NewEnabled     bool

	DefaultProviderChanged bool
	NewDefaultProvider     string

	FallbackProvidersChanged bool
	NewFallbackProviders     []string

	ProviderParamsChanged []string // provider names whose param block differs
}

// Diff compares old and new and returns what changed. Provider-instance
// rewiring (constructing a new provider for a changed default/fallback or
// changed params) is the Component Manager's responsibility; Diff only
// reports the facts.
func Diff(old, new *Config) Diff {
	d := Diff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	for _, kind := range AllKinds {
		oldC, oldOK := old.Components[kind]
		newC, newOK := new.Components[kind]

		switch {
		case oldOK && !newOK:
			d.ComponentChanges = append(d.ComponentChanges, ComponentDiff{Kind: kind, Removed: true})
			continue
		case !oldOK && newOK:
			d.ComponentChanges = append(d.ComponentChanges, ComponentDiff{Kind: kind, Added: true})
			continue
		case !oldOK && !newOK:
			continue
		}

		cd := diffComponent(kind, oldC, newC)
		if cd.EnabledChanged || cd.DefaultProviderChanged || cd.FallbackProvidersChanged || len(cd.ProviderParamsChanged) > 0 {
			d.ComponentChanges = append(d.ComponentChanges, cd)
		}
	}

	return d
}

func diffComponent(kind ComponentKind, old, new ComponentCfg) ComponentDiff {
	cd := ComponentDiff{Kind: kind}

	if old.Enabled != new.Enabled {
		cd.EnabledChanged = true
		cd.NewEnabled = new.Enabled
	}

	if old.DefaultProvider != new.DefaultProvider {
		cd.DefaultProviderChanged = true
		cd.NewDefaultProvider = new.DefaultProvider
	}

	if !slices.Equal(old.FallbackProviders, new.FallbackProviders) {
		cd.FallbackProvidersChanged = true
		cd.NewFallbackProviders = new.FallbackProviders
	}

	for name, newParams := range new.Providers {
		oldParams, existed := old.Providers[name]
		if !existed || !mapsEqualShallow(oldParams, newParams) {
			cd.ProviderParamsChanged = append(cd.ProviderParamsChanged, name)
		}
	}

	return cd
}

// mapsEqualShallow compares two raw provider parameter maps key by key.
// Nested maps are compared recursively and every other value (scalars,
// slices) with reflect.DeepEqual, so any structural change is reported as a
// difference.
func mapsEqualShallow(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		if !valuesEqual(av, bv) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	am, aok := a.(map[string]any)
	bm, bok := b.(map[string]any)
	if aok && bok {
		return mapsEqualShallow(am, bm)
	}
	if aok != bok {
		return false
	}
	return reflect.DeepEqual(a, b)
}
