// Package tts defines the Provider interface for Text-to-Speech backends.
//
// Per the external-interface contract (§6), a TTS provider's primary
// capability method is SynthesizeToFile: it writes synthesised speech to a
// caller-supplied path rather than returning a stream, matching the
// workflow engine's temp-file coordination between the TTS and Audio
// pipeline stages (§4.8 steps 8-9).
package tts

import (
	"context"

	"github.com/MrWong99/voiced/pkg/provider"
	"github.com/MrWong99/voiced/pkg/types"
)

// SynthesizeOptions controls a single synthesis call.
type SynthesizeOptions struct {
	Voice  types.VoiceProfile
	Format string // e.g. "wav", "opus" — empty means provider default.
}

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use. Multiple synthesis
// requests may run in parallel.
type Provider interface {
	provider.Base

	// SynthesizeToFile synthesises text and writes the result to outPath.
	// outPath is always a fresh, collision-resistant path generated by the
	// workflow engine under the configured temp-audio directory; the
	// provider must not reuse or append to an existing file at that path.
	//
	// Returns an error if synthesis fails; implementations must not leave a
	// partial file behind on error (write to a temp path and rename, or
	// remove on failure).
	SynthesizeToFile(ctx context.Context, text string, outPath string, opts SynthesizeOptions) error

	// ListVoices returns all voice profiles available from this provider.
	ListVoices(ctx context.Context) ([]types.VoiceProfile, error)
}
