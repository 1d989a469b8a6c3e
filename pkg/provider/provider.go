// Package provider defines the contract shared by every capability-specific
// provider interface (tts, asr, llm, audio, voicetrigger, textproc, nlu).
//
// A provider is a stateless-looking plug-in implementing one capability. It
// reports its own availability and capability metadata and derives a
// parameter schema from its typed configuration model. Components (see
// internal/component) own a set of Providers of one capability kind and
// select among them.
//
// This package lives under pkg/ because external adapter packages are
// expected to implement these interfaces.
package provider

import "context"

// FieldType enumerates the JSON-Schema-ish primitive types a parameter
// schema field may declare, per the Schema Registry contract (§4.1):
// every field carries a type drawn from this set.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldInteger FieldType = "integer"
	FieldBoolean FieldType = "boolean"
	FieldArray   FieldType = "array"
	FieldObject  FieldType = "object"
)

// SchemaField describes one field of a provider's parameter schema.
type SchemaField struct {
	Type        FieldType
	Description string
	Min         *float64
	Max         *float64
	Enum        []string
	Default     any
	// Properties holds nested fields when Type is FieldObject.
	Properties map[string]SchemaField
}

// ParameterSchema is the runtime parameter schema for a provider, keyed by
// field name. It must be JSON-serialisable.
type ParameterSchema map[string]SchemaField

// Base is embedded by every capability-specific provider interface. It
// captures the operations common to all providers: construction from a
// config snapshot, availability reporting, capability metadata, and the
// derived parameter schema.
type Base interface {
	// IsAvailable reports whether the provider can currently serve requests.
	// Computed at init and refreshed on probe; a provider reporting false
	// must never be selected by its owning Component.
	IsAvailable(ctx context.Context) bool

	// Capabilities returns provider-specific capability metadata (supported
	// formats, voices, models, wake words, ...) as a JSON-serialisable map.
	Capabilities() map[string]any

	// ParameterSchema returns the runtime parameter schema derived from the
	// provider's typed configuration model, for API surfaces and the Schema
	// Registry's coverage checks. Every field except the configuration-only
	// "enabled" flag must appear.
	ParameterSchema() ParameterSchema
}
