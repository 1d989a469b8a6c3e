// Package audio defines the Provider interface for audio output backends
// that play synthesised speech (the Audio capability of §2's component
// table, the required counterpart to TTS per the workflow's invariant that
// "if TTS runs, Audio must run in the same request").
package audio

import (
	"context"

	"github.com/MrWong99/voiced/pkg/provider"
)

// PlayOptions controls a single playback call.
type PlayOptions struct {
	// Format hints the encoding of the file/stream when it cannot be
	// inferred from a file extension (e.g. a raw PCM stream).
	Format string
}

// Provider is the abstraction over any audio playback backend.
//
// Implementations must be safe for concurrent use; Stop must be safe to call
// even when nothing is currently playing.
type Provider interface {
	provider.Base

	// PlayFile plays the audio file at path. path is removed by the
	// workflow engine after PlayFile returns (success or failure); the
	// provider must not delete it itself.
	PlayFile(ctx context.Context, path string, opts PlayOptions) error

	// PlayStream plays raw audio bytes read from r as they arrive.
	PlayStream(ctx context.Context, r <-chan []byte, format string, opts PlayOptions) error

	// Stop halts any in-progress playback immediately.
	Stop(ctx context.Context) error
}
