package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/voiced/internal/config"
)

const sampleYAML = `
server:
  log_level: info
  temp_audio_dir: "%s"

components:
  tts:
    enabled: true
    default_provider: console
    fallback_providers: [console]
    providers:
      console: {}
  audio:
    enabled: true
    default_provider: console
    providers:
      console: {}
  asr:
    enabled: true
    default_provider: console
    providers:
      console: {}
  llm:
    enabled: false

workflow:
  pre_roll_seconds: 1.5
  nlu_confidence_threshold: 0.6
  fallback_intent: system.unrecognized

sessions:
  idle_timeout: 10m
  history_limit: 25

trace:
  max_stages: 50
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return strings.ReplaceAll(sampleYAML, `"%s"`, `"`+dir+`"`)
}

func TestLoadFromReader_Valid(t *testing.T) {
	tree, err := config.LoadFromReader(strings.NewReader(writeSample(t)))
	require.NoError(t, err)

	cfg := tree.Typed()
	assert.Equal(t, config.LogInfo, cfg.Server.LogLevel)
	assert.True(t, cfg.Components[config.KindTTS].Enabled)
	assert.Equal(t, "console", cfg.Components[config.KindTTS].DefaultProvider)
	assert.Equal(t, 1.5, cfg.Workflow.PreRollSeconds)
	assert.Equal(t, 25, cfg.Sessions.HistoryLimit)
	assert.Equal(t, 50, cfg.Trace.MaxStages)
}

func TestLoadFromReader_DefaultsApplied(t *testing.T) {
	tree, err := config.LoadFromReader(strings.NewReader(`
server:
  temp_audio_dir: "` + t.TempDir() + `"
components:
  tts:
    enabled: false
`))
	require.NoError(t, err)
	cfg := tree.Typed()

	assert.Equal(t, config.LogInfo, cfg.Server.LogLevel)
	assert.Equal(t, 1.0, cfg.Workflow.PreRollSeconds)
	assert.Equal(t, 30*time.Second, cfg.Workflow.HandlerTimeout)
	assert.Equal(t, 50, cfg.Sessions.HistoryLimit)
	assert.Equal(t, 100, cfg.Trace.MaxStages)
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader(`
server:
  bogus_field: true
`))
	require.Error(t, err)
}

func TestValidate_TTSRequiresAudio(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{TempAudioDir: t.TempDir()},
		Components: map[config.ComponentKind]config.ComponentCfg{
			config.KindTTS: {Enabled: true},
		},
	}
	err := config.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires Audio")
}

func TestValidate_ComponentDependencyMissing(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{},
		Components: map[config.ComponentKind]config.ComponentCfg{
			config.KindIntentSystem: {
				Enabled:             true,
				DependsOnComponents: []config.ComponentKind{config.KindNLU},
			},
		},
	}
	err := config.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depends on component")
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{LogLevel: "verbose"}}
	err := config.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}

func TestEnvExpansion(t *testing.T) {
	t.Setenv("VOICED_TEST_KEY", "secret-value")
	dir := t.TempDir()
	yamlSrc := `
server:
  temp_audio_dir: "` + dir + `"
components:
  llm:
    enabled: false
    providers:
      openai:
        api_key: "${VOICED_TEST_KEY}"
`
	tree, err := config.LoadFromReader(strings.NewReader(yamlSrc))
	require.NoError(t, err)

	raw := tree.Raw()
	components := raw["components"].(map[string]any)
	llmCfg := components["llm"].(map[string]any)
	providers := llmCfg["providers"].(map[string]any)
	openai := providers["openai"].(map[string]any)
	assert.Equal(t, "secret-value", openai["api_key"])
}
