// Package voicetrigger defines the Provider interface for wake-word / voice
// activity trigger backends — the first, skippable stage of the workflow
// pipeline (§4.8 step 1).
package voicetrigger

import (
	"context"

	"github.com/MrWong99/voiced/pkg/provider"
	"github.com/MrWong99/voiced/pkg/types"
)

// Event is emitted by Detect as it observes an audio stream.
type Event struct {
	Type types.VADEventType
	// PreRoll holds the buffered audio immediately preceding a
	// VADSpeechStart event's detection point, so the opening phoneme is not
	// lost. Only populated on a VADSpeechStart event.
	PreRoll []byte
}

// Provider is the abstraction over any voice-trigger / wake-word backend.
type Provider interface {
	provider.Base

	// Detect consumes audio frames from in and returns a channel of Events.
	// The channel is closed when ctx is cancelled or in is exhausted.
	Detect(ctx context.Context, in <-chan types.AudioFrame) (<-chan Event, error)

	// WakeWords returns the wake words this provider recognises.
	WakeWords() []string
}
