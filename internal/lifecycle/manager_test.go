package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/voiced/internal/component"
	"github.com/MrWong99/voiced/internal/config"
	"github.com/MrWong99/voiced/internal/lifecycle"
	"github.com/MrWong99/voiced/pkg/provider"
	"github.com/MrWong99/voiced/pkg/provider/audio"
	"github.com/MrWong99/voiced/pkg/provider/tts"
	"github.com/MrWong99/voiced/pkg/types"
)

func newTestRegistry() *config.Registry {
	reg := config.NewRegistry()
	reg.Register(config.KindAudio, "console", func(map[string]any) (provider.Base, error) {
		return consoleAudio{}, nil
	})
	reg.Register(config.KindTTS, "console", func(map[string]any) (provider.Base, error) {
		return consoleTTS{}, nil
	})
	return reg
}

type consoleAudio struct{}

func (consoleAudio) IsAvailable(context.Context) bool         { return true }
func (consoleAudio) Capabilities() map[string]any              { return nil }
func (consoleAudio) ParameterSchema() provider.ParameterSchema { return provider.ParameterSchema{} }
func (consoleAudio) PlayFile(context.Context, string, audio.PlayOptions) error {
	return nil
}
func (consoleAudio) PlayStream(context.Context, <-chan []byte, string, audio.PlayOptions) error {
	return nil
}
func (consoleAudio) Stop(context.Context) error { return nil }

type consoleTTS struct{}

func (consoleTTS) IsAvailable(context.Context) bool         { return true }
func (consoleTTS) Capabilities() map[string]any              { return nil }
func (consoleTTS) ParameterSchema() provider.ParameterSchema { return provider.ParameterSchema{} }
func (consoleTTS) SynthesizeToFile(context.Context, string, string, tts.SynthesizeOptions) error {
	return nil
}
func (consoleTTS) ListVoices(context.Context) ([]types.VoiceProfile, error) { return nil, nil }

func baseConfig() *config.Config {
	return &config.Config{
		Components: map[config.ComponentKind]config.ComponentCfg{
			config.KindAudio: {
				Enabled:            true,
				DefaultProvider:    "console",
				EssentialProviders: []string{"console"},
				Providers:          map[string]map[string]any{"console": {}},
			},
			config.KindTTS: {
				Enabled:             true,
				DependsOnComponents: []config.ComponentKind{config.KindAudio},
				DefaultProvider:     "console",
				EssentialProviders:  []string{"console"},
				Providers:           map[string]map[string]any{"console": {}},
			},
		},
	}
}

func TestNew_BuildsInDependencyOrder(t *testing.T) {
	cfg := baseConfig()
	m, err := lifecycle.New(context.Background(), cfg, newTestRegistry())
	require.NoError(t, err)

	_, err = lifecycle.Get[component.Audio](m, config.KindAudio)
	assert.NoError(t, err)
	_, err = lifecycle.Get[component.TTS](m, config.KindTTS)
	assert.NoError(t, err)
}

func TestNew_CycleDetected(t *testing.T) {
	cfg := &config.Config{
		Components: map[config.ComponentKind]config.ComponentCfg{
			config.KindAudio: {
				Enabled:             true,
				DependsOnComponents: []config.ComponentKind{config.KindTTS},
			},
			config.KindTTS: {
				Enabled:             true,
				DependsOnComponents: []config.ComponentKind{config.KindAudio},
			},
		},
	}
	_, err := lifecycle.New(context.Background(), cfg, newTestRegistry())
	assert.Error(t, err)
}

func TestGet_UnbuiltComponentReturnsError(t *testing.T) {
	m, err := lifecycle.New(context.Background(), baseConfig(), newTestRegistry())
	require.NoError(t, err)

	_, err = lifecycle.Get[component.LLM](m, config.KindLLM)
	assert.ErrorIs(t, err, lifecycle.ErrComponentNotBuilt)
}

func TestShutdown_IsIdempotentAndHonoursDeadline(t *testing.T) {
	m, err := lifecycle.New(context.Background(), baseConfig(), newTestRegistry())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, m.Shutdown(ctx))
	require.NoError(t, m.Shutdown(ctx))
}

func TestDeploymentProfile_ReflectsBuiltComponents(t *testing.T) {
	m, err := lifecycle.New(context.Background(), baseConfig(), newTestRegistry())
	require.NoError(t, err)

	profile := m.DeploymentProfile()
	assert.Contains(t, profile.Built, config.KindAudio)
	assert.Contains(t, profile.Built, config.KindTTS)
	assert.Contains(t, profile.Healthy, config.KindTTS)
}
