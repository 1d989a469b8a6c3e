package component

import (
	"context"

	"github.com/MrWong99/voiced/internal/config"
	"github.com/MrWong99/voiced/pkg/provider/voicetrigger"
	"github.com/MrWong99/voiced/pkg/types"
)

// VoiceTrigger adapts a Component[voicetrigger.Provider] to satisfy
// voicetrigger.Provider.
type VoiceTrigger struct{ *Component[voicetrigger.Provider] }

var _ voicetrigger.Provider = VoiceTrigger{}

// NewVoiceTrigger builds the voice-trigger component for cfg.
func NewVoiceTrigger(cfg config.ComponentCfg, registry *config.Registry) (VoiceTrigger, error) {
	c, err := New[voicetrigger.Provider](config.KindVoiceTrigger, cfg, registry)
	return VoiceTrigger{c}, err
}

func (v VoiceTrigger) Detect(ctx context.Context, in <-chan types.AudioFrame) (<-chan voicetrigger.Event, error) {
	return ExecuteWithResult(v.Component, func(p voicetrigger.Provider) (<-chan voicetrigger.Event, error) {
		return p.Detect(ctx, in)
	})
}

func (v VoiceTrigger) WakeWords() []string {
	words, _ := ExecuteWithResult(v.Component, func(p voicetrigger.Provider) ([]string, error) {
		return p.WakeWords(), nil
	})
	return words
}
