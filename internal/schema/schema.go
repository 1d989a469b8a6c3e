// Package schema is the Schema Registry (C2): the single source of truth
// for which component kinds and providers exist, what parameters each
// provider accepts, and how complete a configuration is relative to that
// table.
//
// Irene's Python runtime derives this table at import time by introspecting
// Pydantic models (auto_registry.py). Go has no equivalent runtime
// reflection over third-party model libraries, so the table here is
// maintained by hand (RegisterBuiltins in registry.go) rather than generated
// in production code; schema_test.go checks that every kind in
// config.AllKinds has at least one registered provider schema.
package schema

import (
	"os"
	"reflect"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/voiced/internal/config"
	"github.com/MrWong99/voiced/pkg/provider"
)

// ProviderSchema describes one provider's accepted parameters.
type ProviderSchema struct {
	Kind       config.ComponentKind
	Name       string
	Parameters provider.ParameterSchema
}

// componentSchemas maps each recognised component kind to the set of
// providers this build ships a schema for. Populated by the Register calls in
// [RegisterBuiltins], mirroring the teacher's registry.go pattern of
// package-level registration tables.
var componentSchemas = map[config.ComponentKind]map[string]ProviderSchema{}

// Register records a provider's parameter schema under (kind, name).
// Called by [RegisterBuiltins] at wiring time, not from package init().
func Register(kind config.ComponentKind, name string, params provider.ParameterSchema) {
	if componentSchemas[kind] == nil {
		componentSchemas[kind] = make(map[string]ProviderSchema)
	}
	componentSchemas[kind][name] = ProviderSchema{Kind: kind, Name: name, Parameters: params}
}

// GetComponentSchemas returns the component kinds that have at least one
// registered provider schema.
func GetComponentSchemas() map[config.ComponentKind]bool {
	out := make(map[config.ComponentKind]bool, len(componentSchemas))
	for kind := range componentSchemas {
		out[kind] = true
	}
	return out
}

// GetProviderSchemas returns the full (kind -> provider name -> schema)
// table.
func GetProviderSchemas() map[config.ComponentKind]map[string]ProviderSchema {
	out := make(map[config.ComponentKind]map[string]ProviderSchema, len(componentSchemas))
	for kind, providers := range componentSchemas {
		inner := make(map[string]ProviderSchema, len(providers))
		for name, s := range providers {
			inner[name] = s
		}
		out[kind] = inner
	}
	return out
}

// GetProviderParameterSchema returns the parameter schema registered for
// (kind, name), and whether it was found.
func GetProviderParameterSchema(kind config.ComponentKind, name string) (provider.ParameterSchema, bool) {
	providers, ok := componentSchemas[kind]
	if !ok {
		return nil, false
	}
	s, ok := providers[name]
	return s.Parameters, ok
}

// sectionModelsMu guards the section-model reflection cache; invalidated by
// [InvalidateSectionModelsCache], mirroring Irene's clear_cache (mostly
// relevant to tests — the section layout is fixed at compile time in this
// build, so production code never needs to invalidate it).
var (
	sectionModelsMu    sync.Mutex
	sectionModelsCache map[string]reflect.Type
)

// GetSectionModels returns the mapping from top-level configuration section
// name to its Go type, derived by reflecting over [config.Config]'s
// exported struct-typed fields (the Go analogue of Irene's
// get_section_models, which introspects CoreConfig's pydantic fields). Only
// struct-kind fields become sections; "components" is a
// map[ComponentKind]ComponentCfg rather than a single typed sub-model and is
// covered separately by [GetComponentSchemas]. The result is cached; the
// cache is a plain reflection of the compiled type so it never goes stale,
// but [InvalidateSectionModelsCache] is exposed for parity with the Python
// original's cache.
func GetSectionModels() map[string]reflect.Type {
	sectionModelsMu.Lock()
	defer sectionModelsMu.Unlock()
	if sectionModelsCache == nil {
		sectionModelsCache = deriveSectionModels()
	}
	out := make(map[string]reflect.Type, len(sectionModelsCache))
	for k, v := range sectionModelsCache {
		out[k] = v
	}
	return out
}

// InvalidateSectionModelsCache clears the cached section-model table so the
// next [GetSectionModels] call recomputes it.
func InvalidateSectionModelsCache() {
	sectionModelsMu.Lock()
	defer sectionModelsMu.Unlock()
	sectionModelsCache = nil
}

func deriveSectionModels() map[string]reflect.Type {
	out := make(map[string]reflect.Type)
	t := reflect.TypeFor[config.Config]()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Type.Kind() != reflect.Struct {
			continue
		}
		name := field.Tag.Get("yaml")
		if name == "" || name == "-" {
			name = field.Name
		}
		out[name] = field.Type
	}
	return out
}

// CoverageReport is the Go analogue of Irene's validate_schema_coverage
// report.
type CoverageReport struct {
	Valid           bool
	Warnings        []string
	Errors          []string
	Recommendations []string
}

// ValidateSchemaCoverage checks schema coverage against enabledKinds, the
// set of component kinds actually turned on in a deployment (build it from
// [config.Config].Components by collecting the kinds with Enabled=true).
// Hard errors — and Valid=false — are raised only for an enabled kind with
// no registered provider schema; a kind that is merely absent from
// enabledKinds but also lacks a schema is not an error, since nothing
// requires it. Soft warnings cover the opposite direction: a schema
// registered under a kind [config.AllKinds] does not recognise at all (a
// schema with no matching component flag to attach to).
func ValidateSchemaCoverage(enabledKinds map[config.ComponentKind]bool) CoverageReport {
	report := CoverageReport{Valid: true}

	for kind, enabled := range enabledKinds {
		if !enabled {
			continue
		}
		if len(componentSchemas[kind]) == 0 {
			report.Errors = append(report.Errors, "component kind without any registered provider schema: "+string(kind))
			report.Recommendations = append(report.Recommendations, "register at least one provider schema for "+string(kind))
			report.Valid = false
		}
	}

	known := make(map[config.ComponentKind]bool, len(config.AllKinds))
	for _, kind := range config.AllKinds {
		known[kind] = true
	}
	for kind := range componentSchemas {
		if !known[kind] {
			report.Warnings = append(report.Warnings, "schema registered for unrecognised component kind: "+string(kind))
		}
	}

	sort.Strings(report.Errors)
	sort.Strings(report.Warnings)
	sort.Strings(report.Recommendations)
	return report
}

// EnabledKinds collects the component kinds with Enabled=true in cfg, the
// input [ValidateSchemaCoverage] expects.
func EnabledKinds(cfg *config.Config) map[config.ComponentKind]bool {
	out := make(map[config.ComponentKind]bool, len(cfg.Components))
	for kind, cc := range cfg.Components {
		if cc.Enabled {
			out[kind] = true
		}
	}
	return out
}

// DefaultMasterConfigPath is the shipped reference configuration compared
// against the schema catalogue by [GetMasterConfigCompleteness] — the Go
// analogue of Irene's fixed "configs/config-master.toml"
// (_examples/original_source/irene/config/auto_registry.py:299).
const DefaultMasterConfigPath = "configs/config-master.yaml"

// masterConfigMissingSentinel mirrors Irene's "ENTIRE_MASTER_CONFIG_MISSING"
// sentinel value, returned as the sole missing-section entry when the
// master file itself cannot be loaded.
const masterConfigMissingSentinel = "ENTIRE_MASTER_CONFIG_MISSING"

// CompletenessReport is the Go analogue of Irene's
// get_master_config_completeness report.
type CompletenessReport struct {
	MissingSections    []string // "kind.providers.name" in the schema catalogue but absent from the master file
	OrphanedSections   []string // "kind.providers.name" in the master file but not in the schema catalogue
	CoveragePercentage float64
	Valid              bool
}

// GetMasterConfigCompleteness compares the reference configuration file at
// masterPath (pass [DefaultMasterConfigPath] for the file this module
// ships) against the full registered provider schema table. Valid is false
// only when masterPath cannot be read or parsed — once a master file loads
// successfully, missing and orphaned sections are purely informational,
// exactly as the Python original never treats a diff against a
// successfully loaded master as fatal (only a missing master file is).
func GetMasterConfigCompleteness(masterPath string) CompletenessReport {
	report := CompletenessReport{Valid: true}

	raw, err := os.ReadFile(masterPath)
	if err != nil {
		report.Valid = false
		report.MissingSections = []string{masterConfigMissingSentinel}
		return report
	}

	var master map[string]any
	if err := yaml.Unmarshal(raw, &master); err != nil {
		report.Valid = false
		report.MissingSections = []string{masterConfigMissingSentinel}
		return report
	}

	expected := make(map[string]bool)
	for kind, providers := range componentSchemas {
		for name := range providers {
			expected[sectionKey(kind, name)] = true
		}
	}

	actual := make(map[string]bool)
	for component, section := range master {
		fields, ok := section.(map[string]any)
		if !ok {
			continue
		}
		providers, ok := fields["providers"].(map[string]any)
		if !ok {
			continue
		}
		for name := range providers {
			actual[component+".providers."+name] = true
		}
	}

	var matched int
	for key := range expected {
		if actual[key] {
			matched++
		} else {
			report.MissingSections = append(report.MissingSections, key)
		}
	}
	for key := range actual {
		if !expected[key] {
			report.OrphanedSections = append(report.OrphanedSections, key)
		}
	}

	sort.Strings(report.MissingSections)
	sort.Strings(report.OrphanedSections)

	if len(expected) > 0 {
		report.CoveragePercentage = float64(matched) / float64(len(expected)) * 100
	}

	return report
}

func sectionKey(kind config.ComponentKind, name string) string {
	return string(kind) + ".providers." + name
}
