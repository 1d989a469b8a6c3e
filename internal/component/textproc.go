package component

import (
	"context"

	"github.com/MrWong99/voiced/internal/config"
	"github.com/MrWong99/voiced/pkg/provider/textproc"
)

// TextProcessor adapts a Component[textproc.Provider] to satisfy
// textproc.Provider.
type TextProcessor struct{ *Component[textproc.Provider] }

var _ textproc.Provider = TextProcessor{}

// NewTextProcessor builds the text-processor component for cfg.
func NewTextProcessor(cfg config.ComponentCfg, registry *config.Registry) (TextProcessor, error) {
	c, err := New[textproc.Provider](config.KindTextProcessor, cfg, registry)
	return TextProcessor{c}, err
}

func (t TextProcessor) Stages() []string {
	stages, _ := ExecuteWithResult(t.Component, func(p textproc.Provider) ([]string, error) {
		return p.Stages(), nil
	})
	return stages
}

func (t TextProcessor) Normalise(ctx context.Context, text, stage, language string) (string, error) {
	return ExecuteWithResult(t.Component, func(p textproc.Provider) (string, error) {
		return p.Normalise(ctx, text, stage, language)
	})
}
