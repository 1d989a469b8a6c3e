// Package llm defines the Provider interface for the optional LLM-enhancement
// capability used by stage 6 of the workflow pipeline (enhance_text/chat, §6)
// and by intent handlers that want model-backed text generation.
//
// Implementors must be safe for concurrent use. Channels returned by
// StreamCompletion must be closed by the implementation when the stream ends
// or when the supplied context is cancelled.
package llm

import (
	"context"

	"github.com/MrWong99/voiced/pkg/provider"
	"github.com/MrWong99/voiced/pkg/types"
)

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the LLM needs to produce a response.
type CompletionRequest struct {
	Messages     []types.Message
	Tools        []types.ToolDefinition
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// Chunk is a single token or fragment emitted by a streaming completion.
type Chunk struct {
	Text         string
	FinishReason string
	ToolCalls    []types.ToolCall
}

// CompletionResponse is returned by the non-streaming Complete method.
type CompletionResponse struct {
	Content   string
	ToolCalls []types.ToolCall
	Usage     Usage
}

// Provider is the abstraction over any LLM backend used for the optional
// enhance_text / chat capability.
type Provider interface {
	provider.Base

	// StreamCompletion sends req to the model and returns a read-only channel
	// that emits Chunk values as they arrive. The channel is closed by the
	// implementation when generation finishes or when ctx is cancelled.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates the number of tokens that the given message list
	// would consume in the model's context window.
	CountTokens(messages []types.Message) (int, error)

	// ModelCapabilities returns static metadata about the underlying model.
	ModelCapabilities() types.ModelCapabilities

	// EnhanceText applies task (e.g. "tone", "translate", "summarise") to
	// text and returns the enhanced result. Per §4.8 step 6, failure here
	// falls back to the unenhanced text — callers, not this method, own that
	// fallback decision.
	EnhanceText(ctx context.Context, text, task string, opts map[string]any) (string, error)

	// Chat is a convenience wrapper returning only the reply text.
	Chat(ctx context.Context, messages []types.Message, opts map[string]any) (string, error)
}
