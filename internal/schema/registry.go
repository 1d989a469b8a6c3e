package schema

import (
	"github.com/MrWong99/voiced/internal/config"
	"github.com/MrWong99/voiced/pkg/provider"
)

// RegisterBuiltins registers the parameter schemas for every provider this
// build ships out of the box. Called once from cmd/voiced/main.go before
// the Component Manager starts, mirroring the teacher's pattern of
// registering factories at wiring time rather than via package init
// (keeps provider packages free of import-time side effects).
func RegisterBuiltins() {
	Register(config.KindTTS, "console", provider.ParameterSchema{
		"voice": {Type: provider.FieldString, Description: "voice name to announce before synthesised text"},
	})
	Register(config.KindAudio, "console", provider.ParameterSchema{})
	Register(config.KindASR, "console", provider.ParameterSchema{
		"echo_prefix": {Type: provider.FieldString, Description: "prefix written before each simulated transcript line"},
	})
	Register(config.KindLLM, "console", provider.ParameterSchema{})
	Register(config.KindVoiceTrigger, "console", provider.ParameterSchema{
		"wake_words": {Type: provider.FieldArray, Description: "wake words this trigger recognises"},
	})
	Register(config.KindNLU, "keyword_matcher", provider.ParameterSchema{
		"threshold": {Type: provider.FieldNumber, Description: "minimum fuzzy-match score to accept an intent", Min: floatPtr(0), Max: floatPtr(1)},
	})
	Register(config.KindTextProcessor, "general", provider.ParameterSchema{
		"stages": {Type: provider.FieldArray, Description: "normalisation stage labels this processor applies to"},
	})
	Register(config.KindIntentSystem, "builtin", provider.ParameterSchema{})
	Register(config.KindMonitoring, "otel", provider.ParameterSchema{
		"exporter": {Type: provider.FieldString, Description: "trace exporter backend", Enum: []string{"stdout", "otlp"}},
	})
	Register(config.KindNLUAnalysis, "builtin", provider.ParameterSchema{})
	Register(config.KindConfiguration, "builtin", provider.ParameterSchema{})
}

func floatPtr(f float64) *float64 { return &f }
