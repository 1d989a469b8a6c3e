// Package textproc defines the Provider interface for text normalisation
// backends, used by the workflow's "asr_output" and "tts_input" normalisation
// stages (§4.8 steps 3 and 7). Each normaliser declares which stage labels it
// applies to so a Component can build the correct chain per stage and
// language.
package textproc

import (
	"context"

	"github.com/MrWong99/voiced/pkg/provider"
)

// Provider is the abstraction over a single text normalisation step.
type Provider interface {
	provider.Base

	// Stages returns the stage labels this normaliser applies to (e.g.
	// "asr_output", "tts_input"). A normaliser with no entry for a given
	// stage is skipped for that stage.
	Stages() []string

	// Normalise applies this provider's transformation to text for the
	// given stage label and language, returning the normalised result.
	Normalise(ctx context.Context, text, stage, language string) (string, error)
}
