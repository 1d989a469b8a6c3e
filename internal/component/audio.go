package component

import (
	"context"

	"github.com/MrWong99/voiced/internal/config"
	"github.com/MrWong99/voiced/pkg/provider/audio"
)

// Audio adapts a Component[audio.Provider] to satisfy audio.Provider.
type Audio struct{ *Component[audio.Provider] }

var _ audio.Provider = Audio{}

// NewAudio builds the Audio component for cfg.
func NewAudio(cfg config.ComponentCfg, registry *config.Registry) (Audio, error) {
	c, err := New[audio.Provider](config.KindAudio, cfg, registry)
	return Audio{c}, err
}

func (a Audio) PlayFile(ctx context.Context, path string, opts audio.PlayOptions) error {
	return a.Execute(func(p audio.Provider) error {
		return p.PlayFile(ctx, path, opts)
	})
}

func (a Audio) PlayStream(ctx context.Context, r <-chan []byte, format string, opts audio.PlayOptions) error {
	return a.Execute(func(p audio.Provider) error {
		return p.PlayStream(ctx, r, format, opts)
	})
}

func (a Audio) Stop(ctx context.Context) error {
	return a.Execute(func(p audio.Provider) error {
		return p.Stop(ctx)
	})
}
