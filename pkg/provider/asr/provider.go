// Package asr defines the Provider interface for Automatic Speech
// Recognition backends.
//
// The central abstraction is SessionHandle: once opened, a session accepts
// raw PCM audio chunks and emits two streams of types.Transcript values —
// low-latency partials and authoritative finals — per the "transcribe"
// contract of §6.
package asr

import (
	"context"

	"github.com/MrWong99/voiced/pkg/provider"
	"github.com/MrWong99/voiced/pkg/types"
)

// StreamConfig describes the audio format and recognition hints for a new
// ASR session.
type StreamConfig struct {
	SampleRate int
	Channels   int
	Language   string
	Keywords   []types.KeywordBoost
}

// ErrNotSupported is returned by SessionHandle methods that a provider does
// not implement (e.g. mid-session keyword updates).
var ErrNotSupported = notSupportedError{}

type notSupportedError struct{}

func (notSupportedError) Error() string { return "asr: operation not supported by provider" }

// SessionHandle represents an open ASR streaming session.
//
// All methods must be safe for concurrent use. Callers must call Close when
// the session is no longer needed.
type SessionHandle interface {
	// Transcribe delivers a chunk of raw PCM audio for transcription.
	Transcribe(chunk []byte) error

	// Partials returns a read-only channel of low-latency interim
	// transcripts. Closed when the session ends.
	Partials() <-chan types.Transcript

	// Finals returns a read-only channel of authoritative transcripts.
	// Closed when the session ends.
	Finals() <-chan types.Transcript

	// SetKeywords replaces the active keyword boost list without restarting
	// the session. Returns ErrNotSupported if unsupported.
	SetKeywords(keywords []types.KeywordBoost) error

	// Close terminates the session and releases all resources. Safe to call
	// more than once.
	Close() error
}

// Provider is the abstraction over any ASR backend.
type Provider interface {
	provider.Base

	// StartStream opens a new streaming transcription session.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
