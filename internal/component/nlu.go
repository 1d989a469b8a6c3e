package component

import (
	"context"

	"github.com/MrWong99/voiced/internal/config"
	"github.com/MrWong99/voiced/pkg/provider/nlu"
	"github.com/MrWong99/voiced/pkg/types"
)

// NLU adapts a Component[nlu.Provider] to satisfy nlu.Provider.
type NLU struct{ *Component[nlu.Provider] }

var _ nlu.Provider = NLU{}

// NewNLU builds the NLU component for cfg.
func NewNLU(cfg config.ComponentCfg, registry *config.Registry) (NLU, error) {
	c, err := New[nlu.Provider](config.KindNLU, cfg, registry)
	return NLU{c}, err
}

func (n NLU) Parse(ctx context.Context, text, language string, ctxHints map[string]any) (types.Intent, error) {
	return ExecuteWithResult(n.Component, func(p nlu.Provider) (types.Intent, error) {
		return p.Parse(ctx, text, language, ctxHints)
	})
}
