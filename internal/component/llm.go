package component

import (
	"context"

	"github.com/MrWong99/voiced/internal/config"
	"github.com/MrWong99/voiced/pkg/provider/llm"
	"github.com/MrWong99/voiced/pkg/types"
)

// LLM adapts a Component[llm.Provider] to satisfy llm.Provider.
type LLM struct{ *Component[llm.Provider] }

var _ llm.Provider = LLM{}

// NewLLM builds the LLM component for cfg.
func NewLLM(cfg config.ComponentCfg, registry *config.Registry) (LLM, error) {
	c, err := New[llm.Provider](config.KindLLM, cfg, registry)
	return LLM{c}, err
}

func (l LLM) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	return ExecuteWithResult(l.Component, func(p llm.Provider) (<-chan llm.Chunk, error) {
		return p.StreamCompletion(ctx, req)
	})
}

func (l LLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(l.Component, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

func (l LLM) CountTokens(messages []types.Message) (int, error) {
	return ExecuteWithResult(l.Component, func(p llm.Provider) (int, error) {
		return p.CountTokens(messages)
	})
}

func (l LLM) ModelCapabilities() types.ModelCapabilities {
	caps, _ := ExecuteWithResult(l.Component, func(p llm.Provider) (types.ModelCapabilities, error) {
		return p.ModelCapabilities(), nil
	})
	return caps
}

func (l LLM) EnhanceText(ctx context.Context, text, task string, opts map[string]any) (string, error) {
	return ExecuteWithResult(l.Component, func(p llm.Provider) (string, error) {
		return p.EnhanceText(ctx, text, task, opts)
	})
}

func (l LLM) Chat(ctx context.Context, messages []types.Message, opts map[string]any) (string, error) {
	return ExecuteWithResult(l.Component, func(p llm.Provider) (string, error) {
		return p.Chat(ctx, messages, opts)
	})
}
