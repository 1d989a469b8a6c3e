package component

import (
	"context"

	"github.com/MrWong99/voiced/internal/config"
	"github.com/MrWong99/voiced/pkg/provider/asr"
)

// ASR adapts a Component[asr.Provider] to satisfy asr.Provider.
type ASR struct{ *Component[asr.Provider] }

var _ asr.Provider = ASR{}

// NewASR builds the ASR component for cfg.
func NewASR(cfg config.ComponentCfg, registry *config.Registry) (ASR, error) {
	c, err := New[asr.Provider](config.KindASR, cfg, registry)
	return ASR{c}, err
}

func (a ASR) StartStream(ctx context.Context, cfg asr.StreamConfig) (asr.SessionHandle, error) {
	return ExecuteWithResult(a.Component, func(p asr.Provider) (asr.SessionHandle, error) {
		return p.StartStream(ctx, cfg)
	})
}
