// Package nlu defines the Provider interface for natural-language
// understanding backends, responsible for turning normalised text into a
// types.Intent (§4.8 step 4).
package nlu

import (
	"context"

	"github.com/MrWong99/voiced/pkg/provider"
	"github.com/MrWong99/voiced/pkg/types"
)

// Provider is the abstraction over any NLU backend.
type Provider interface {
	provider.Base

	// Parse analyses text in the given language, using ctxHints (e.g.
	// recent conversation topics) as optional disambiguation context, and
	// returns the recognised Intent.
	Parse(ctx context.Context, text, language string, ctxHints map[string]any) (types.Intent, error)
}
