package component

import (
	"context"

	"github.com/MrWong99/voiced/internal/config"
	"github.com/MrWong99/voiced/pkg/provider/tts"
	"github.com/MrWong99/voiced/pkg/types"
)

// TTS adapts a Component[tts.Provider] to satisfy tts.Provider itself,
// so the workflow engine can treat "the TTS component" exactly like a
// single provider, fallback and lazy loading included.
type TTS struct{ *Component[tts.Provider] }

var _ tts.Provider = TTS{}

// NewTTS builds the TTS component for cfg.
func NewTTS(cfg config.ComponentCfg, registry *config.Registry) (TTS, error) {
	c, err := New[tts.Provider](config.KindTTS, cfg, registry)
	return TTS{c}, err
}

func (t TTS) SynthesizeToFile(ctx context.Context, text, outPath string, opts tts.SynthesizeOptions) error {
	return t.Execute(func(p tts.Provider) error {
		return p.SynthesizeToFile(ctx, text, outPath, opts)
	})
}

func (t TTS) ListVoices(ctx context.Context) ([]types.VoiceProfile, error) {
	return ExecuteWithResult(t.Component, func(p tts.Provider) ([]types.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}
