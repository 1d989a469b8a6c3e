package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/voiced/internal/config"
	"github.com/MrWong99/voiced/internal/schema"
)

func TestRegisterBuiltins_CoversEveryComponentKind(t *testing.T) {
	schema.RegisterBuiltins()

	enabled := make(map[config.ComponentKind]bool, len(config.AllKinds))
	for _, kind := range config.AllKinds {
		enabled[kind] = true
	}

	report := schema.ValidateSchemaCoverage(enabled)
	assert.True(t, report.Valid, "coverage errors: %v", report.Errors)
	assert.Empty(t, report.Errors)
	assert.Empty(t, report.Warnings)
}

func TestValidateSchemaCoverage_ErrorsOnlyForEnabledKinds(t *testing.T) {
	schema.RegisterBuiltins()

	// KindMonitoring has a registered schema; a kind that is enabled but has
	// none should be the only error, regardless of every other unenabled
	// kind also lacking a schema.
	report := schema.ValidateSchemaCoverage(map[config.ComponentKind]bool{
		config.KindMonitoring:    true,
		config.ComponentKind("unconfigured"): true,
	})
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "unconfigured")
	assert.False(t, report.Valid)
}

func TestValidateSchemaCoverage_WarnsOnUnrecognisedRegisteredKind(t *testing.T) {
	schema.RegisterBuiltins()
	schema.Register(config.ComponentKind("orphan_kind"), "console", nil)

	report := schema.ValidateSchemaCoverage(nil)
	assert.True(t, report.Valid)
	require.NotEmpty(t, report.Warnings)
	assert.Contains(t, report.Warnings[0], "orphan_kind")
}

func TestGetSectionModels_ListsStructSections(t *testing.T) {
	sections := schema.GetSectionModels()
	for _, name := range []string{"server", "workflow", "sessions", "trace"} {
		assert.Contains(t, sections, name, "missing section %q", name)
	}
	assert.NotContains(t, sections, "components", "components is a map, not a single typed sub-model")
}

func TestGetProviderParameterSchema_Found(t *testing.T) {
	schema.RegisterBuiltins()

	params, ok := schema.GetProviderParameterSchema(config.KindTTS, "console")
	require.True(t, ok)
	_, hasVoice := params["voice"]
	assert.True(t, hasVoice)
}

func TestGetProviderParameterSchema_NotFound(t *testing.T) {
	schema.RegisterBuiltins()

	_, ok := schema.GetProviderParameterSchema(config.KindTTS, "nonexistent")
	assert.False(t, ok)
}

func TestGetMasterConfigCompleteness_PartialMasterStillValid(t *testing.T) {
	schema.RegisterBuiltins()

	report := schema.GetMasterConfigCompleteness("testdata/config-master-partial.yaml")
	assert.Contains(t, report.MissingSections, "audio.providers.console")
	assert.NotContains(t, report.MissingSections, "tts.providers.console")
	assert.Contains(t, report.OrphanedSections, "unknown_kind.providers.mystery")
	assert.True(t, report.Valid, "a present master file's missing/orphaned sections are informational, not fatal")
	assert.Greater(t, report.CoveragePercentage, 0.0)
	assert.Less(t, report.CoveragePercentage, 100.0)
}

func TestGetMasterConfigCompleteness_MissingFileIsInvalid(t *testing.T) {
	schema.RegisterBuiltins()

	report := schema.GetMasterConfigCompleteness("testdata/does-not-exist.yaml")
	assert.False(t, report.Valid)
	assert.Contains(t, report.MissingSections, "ENTIRE_MASTER_CONFIG_MISSING")
}

func TestDecodeParams_RejectsUnknownFields(t *testing.T) {
	type ttsParams struct {
		Voice string `mapstructure:"voice"`
	}
	var dst ttsParams
	err := schema.DecodeParams(map[string]any{"voice": "narrator", "bogus": 1}, &dst)
	require.Error(t, err)
}

func TestDecodeParams_Succeeds(t *testing.T) {
	type ttsParams struct {
		Voice string `mapstructure:"voice"`
	}
	var dst ttsParams
	err := schema.DecodeParams(map[string]any{"voice": "narrator"}, &dst)
	require.NoError(t, err)
	assert.Equal(t, "narrator", dst.Voice)
}
