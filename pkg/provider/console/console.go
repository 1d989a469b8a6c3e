// Package console implements the "always-on fallback" provider for every
// capability kind (§4.4, §9 Open Question 3). Console providers do no real
// I/O beyond stdout/stderr logging; they exist so a deployment missing a
// real backend for a capability still has something in its essential set
// to construct and fall back to.
package console

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/MrWong99/voiced/pkg/provider"
	"github.com/MrWong99/voiced/pkg/provider/asr"
	"github.com/MrWong99/voiced/pkg/provider/audio"
	"github.com/MrWong99/voiced/pkg/provider/llm"
	"github.com/MrWong99/voiced/pkg/provider/nlu"
	"github.com/MrWong99/voiced/pkg/provider/textproc"
	"github.com/MrWong99/voiced/pkg/provider/tts"
	"github.com/MrWong99/voiced/pkg/provider/voicetrigger"
	"github.com/MrWong99/voiced/pkg/types"
)

// Name is the provider name every console implementation registers under.
const Name = "console"

// base is embedded by every console provider to satisfy provider.Base
// identically: always available, no declared parameters.
type base struct{}

func (base) IsAvailable(context.Context) bool          { return true }
func (base) Capabilities() map[string]any               { return map[string]any{"console": true} }
func (base) ParameterSchema() provider.ParameterSchema   { return provider.ParameterSchema{} }

// ─── TTS ──────────────────────────────────────────────────────────────────────

// TTS writes the text it's asked to synthesise into the output file as plain
// UTF-8, standing in for real speech synthesis.
type TTS struct {
	base
	Voice string
}

var _ tts.Provider = (*TTS)(nil)

func (t *TTS) SynthesizeToFile(_ context.Context, text, outPath string, opts tts.SynthesizeOptions) error {
	slog.Info("console tts: synthesize", "voice", t.Voice, "out_path", outPath, "chars", len(text))
	return os.WriteFile(outPath, []byte(text), 0o644)
}

func (t *TTS) ListVoices(context.Context) ([]types.VoiceProfile, error) {
	return []types.VoiceProfile{{ID: "console", Name: "console", Provider: Name}}, nil
}

// ─── Audio ────────────────────────────────────────────────────────────────────

// Audio logs playback requests instead of producing sound.
type Audio struct {
	base
}

var _ audio.Provider = (*Audio)(nil)

func (a *Audio) PlayFile(_ context.Context, path string, _ audio.PlayOptions) error {
	slog.Info("console audio: play file", "path", path)
	return nil
}

func (a *Audio) PlayStream(ctx context.Context, r <-chan []byte, format string, _ audio.PlayOptions) error {
	var total int
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-r:
			if !ok {
				slog.Info("console audio: stream finished", "format", format, "bytes", total)
				return nil
			}
			total += len(chunk)
		}
	}
}

func (a *Audio) Stop(context.Context) error {
	slog.Info("console audio: stop")
	return nil
}

// ─── ASR ──────────────────────────────────────────────────────────────────────

// ASR produces a trivial fixed transcript from whatever raw bytes it is
// handed, letting a pipeline exercise the ASR stage without a real
// speech-recognition backend wired in.
type ASR struct {
	base
	EchoPrefix string
}

var _ asr.Provider = (*ASR)(nil)

func (a *ASR) StartStream(context.Context, asr.StreamConfig) (asr.SessionHandle, error) {
	return &asrSession{
		prefix:  a.EchoPrefix,
		partial: make(chan types.Transcript, 1),
		final:   make(chan types.Transcript, 1),
	}, nil
}

type asrSession struct {
	prefix  string
	partial chan types.Transcript
	final   chan types.Transcript
	closed  bool
}

var _ asr.SessionHandle = (*asrSession)(nil)

func (s *asrSession) Transcribe(chunk []byte) error {
	text := fmt.Sprintf("%s<%d bytes>", s.prefix, len(chunk))
	select {
	case s.final <- types.Transcript{Text: text, IsFinal: true, Confidence: 1.0}:
	default:
	}
	return nil
}

func (s *asrSession) Partials() <-chan types.Transcript { return s.partial }
func (s *asrSession) Finals() <-chan types.Transcript   { return s.final }
func (s *asrSession) SetKeywords([]types.KeywordBoost) error {
	return asr.ErrNotSupported
}
func (s *asrSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.partial)
	close(s.final)
	return nil
}

// ─── LLM ──────────────────────────────────────────────────────────────────────

const noModelReply = "I don't have a language model configured to answer that."

// LLM returns a canned response, the essential fallback when no real
// language model is configured.
type LLM struct {
	base
}

var _ llm.Provider = (*LLM)(nil)

func (l *LLM) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Content: noModelReply}, nil
}

func (l *LLM) StreamCompletion(context.Context, llm.CompletionRequest) (<-chan llm.Chunk, error) {
	ch := make(chan llm.Chunk, 1)
	ch <- llm.Chunk{Text: noModelReply, FinishReason: "stop"}
	close(ch)
	return ch, nil
}

func (l *LLM) CountTokens(messages []types.Message) (int, error) {
	var n int
	for _, m := range messages {
		n += len(m.Content) / 4
	}
	return n, nil
}

func (l *LLM) ModelCapabilities() types.ModelCapabilities {
	return types.ModelCapabilities{}
}

func (l *LLM) EnhanceText(_ context.Context, text, _ string, _ map[string]any) (string, error) {
	return text, nil
}

func (l *LLM) Chat(context.Context, []types.Message, map[string]any) (string, error) {
	return noModelReply, nil
}

// ─── VoiceTrigger ─────────────────────────────────────────────────────────────

// VoiceTrigger never fires — the inert fallback for deployments that skip
// the voice-trigger stage entirely via config.
type VoiceTrigger struct {
	base
	Words []string
}

var _ voicetrigger.Provider = (*VoiceTrigger)(nil)

func (v *VoiceTrigger) Detect(ctx context.Context, in <-chan types.AudioFrame) (<-chan voicetrigger.Event, error) {
	out := make(chan voicetrigger.Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-in:
				if !ok {
					return
				}
			}
		}
	}()
	return out, nil
}

func (v *VoiceTrigger) WakeWords() []string { return v.Words }

// ─── TextProcessor ────────────────────────────────────────────────────────────

// TextProcessor passes text through unchanged.
type TextProcessor struct {
	base
	StageList []string
}

var _ textproc.Provider = (*TextProcessor)(nil)

func (t *TextProcessor) Stages() []string { return t.StageList }
func (t *TextProcessor) Normalise(_ context.Context, text, _, _ string) (string, error) {
	return text, nil
}

// ─── NLU ──────────────────────────────────────────────────────────────────────

// NLU always resolves to the workflow's configured fallback intent, with
// zero confidence, so a request always has a deterministic resolution even
// with no real NLU backend wired in.
type NLU struct {
	base
	FallbackIntent string
}

var _ nlu.Provider = (*NLU)(nil)

func (n *NLU) Parse(_ context.Context, text, language string, _ map[string]any) (types.Intent, error) {
	return types.Intent{
		Name:       n.FallbackIntent,
		Confidence: 0,
		RawText:    text,
		Language:   language,
	}, nil
}
