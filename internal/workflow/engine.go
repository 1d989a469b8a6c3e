// Package workflow implements the Workflow Engine (C9): the request
// pipeline state machine that turns a text or audio request into an
// IntentResult.
//
// A request moves through up to nine stages — voice trigger, ASR, text
// normalisation, NLU, intent dispatch, optional LLM enhancement, text
// normalisation, TTS, and audio playback — most of them skippable, and each
// except the two text-normalisation stages bounded by its own stage timeout.
// The engine never panics or returns a raw provider
// error across ProcessTextInput/ProcessAudioStream: every failure is
// converted into an IntentResult carrying a classified error, mirroring the
// teacher cascade engine's "Process never leaves the caller without a
// Response" contract.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/voiced/internal/config"
	"github.com/MrWong99/voiced/internal/convctx"
	"github.com/MrWong99/voiced/internal/errkind"
	"github.com/MrWong99/voiced/internal/intent"
	"github.com/MrWong99/voiced/internal/observe"
	"github.com/MrWong99/voiced/internal/trace"
	"github.com/MrWong99/voiced/pkg/provider/asr"
	"github.com/MrWong99/voiced/pkg/provider/audio"
	"github.com/MrWong99/voiced/pkg/provider/llm"
	"github.com/MrWong99/voiced/pkg/provider/nlu"
	"github.com/MrWong99/voiced/pkg/provider/textproc"
	"github.com/MrWong99/voiced/pkg/provider/tts"
	"github.com/MrWong99/voiced/pkg/provider/voicetrigger"
	"github.com/MrWong99/voiced/pkg/types"
)

// RequestContext carries everything about one request that is not part of
// the conversation's persistent state. It is the pipeline's unit of input
// alongside the raw text or audio stream.
type RequestContext struct {
	// SessionID identifies the ConversationContext this request reads and
	// writes. A new session is created on first use.
	SessionID string

	// Source is "text" or "audio", set by the engine from the entry point
	// used; the voice-trigger and ASR stages run only when it is "audio".
	Source string

	// WantsAudio, when false, skips the TTS and Audio stages regardless of
	// IntentResult.ShouldSpeak.
	WantsAudio bool

	// ClientMetadata is opaque caller-supplied data threaded into the
	// ConversationContext on first creation.
	ClientMetadata map[string]any

	// SkipWakeWord skips the voice-trigger stage even when a stream of
	// audio frames is supplied (e.g. push-to-talk clients).
	SkipWakeWord bool

	// Trace opts this request into tracing (§4.9). Recording is disabled
	// by default; this field is the only per-request switch for it.
	Trace bool
}

const (
	sourceText  = "text"
	sourceAudio = "audio"
)

// apologyText is returned when a stage fails or the workflow cannot
// proceed, regardless of cause. When failStage or the request-budget path
// returns it, the IntentResult carries ShouldSpeak=false and no TTS stage
// runs, so it is not spoken. The text is English only; it is not localised
// per ConversationContext.Language.
const apologyText = "Sorry, I couldn't process that."

// Engine wires every pipeline-stage provider plus the supporting registries
// and stores into one request-processing entry point. All fields are read
// concurrently by in-flight requests and must not be mutated after
// construction other than via the functional Option values passed to New.
type Engine struct {
	voiceTrigger voicetrigger.Provider
	asrP         asr.Provider
	textProc     textproc.Provider
	nluP         nlu.Provider
	llmP         llm.Provider
	ttsP         tts.Provider
	audioP       audio.Provider

	intents      *intent.Registry
	sessions     *convctx.Store
	metrics      *observe.Metrics
	cfg          config.WorkflowConfig
	traceCfg     config.TraceConfig
	tempAudioDir string
}

// Option is a functional option for configuring an Engine during
// construction.
type Option func(*Engine)

// WithVoiceTrigger configures the voice-trigger provider for pipeline stage
// 1. When nil, voice-trigger is treated as disabled and the stage is always
// skipped for audio requests (the full stream is forwarded to ASR as-is).
func WithVoiceTrigger(p voicetrigger.Provider) Option {
	return func(e *Engine) { e.voiceTrigger = p }
}

// WithASR configures the ASR provider for pipeline stage 2.
func WithASR(p asr.Provider) Option {
	return func(e *Engine) { e.asrP = p }
}

// WithTextProcessor configures the normaliser used by the "asr_output" and
// "tts_input" stages. When nil, both normalisation stages are skipped.
func WithTextProcessor(p textproc.Provider) Option {
	return func(e *Engine) { e.textProc = p }
}

// WithNLU configures the NLU provider for pipeline stage 4.
func WithNLU(p nlu.Provider) Option {
	return func(e *Engine) { e.nluP = p }
}

// WithLLM configures the optional LLM-enhancement provider for pipeline
// stage 6. When nil, enhancement is always skipped.
func WithLLM(p llm.Provider) Option {
	return func(e *Engine) { e.llmP = p }
}

// WithTTS configures the TTS provider for pipeline stage 8.
func WithTTS(p tts.Provider) Option {
	return func(e *Engine) { e.ttsP = p }
}

// WithAudio configures the audio-playback provider for pipeline stage 9.
func WithAudio(p audio.Provider) Option {
	return func(e *Engine) { e.audioP = p }
}

// WithMetrics attaches an [observe.Metrics] instance. When nil (the
// default), metric recording is skipped.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTraceConfig sets the Trace Recorder's production-safety limits used
// for every request that opts into tracing via RequestContext.Trace.
func WithTraceConfig(cfg config.TraceConfig) Option {
	return func(e *Engine) { e.traceCfg = cfg }
}

// New constructs an Engine. intents and sessions are required; cfg supplies
// stage timeouts, the request budget, and NLU fallback routing; tempAudioDir
// is the directory stage 8 writes synthesised speech to.
func New(intents *intent.Registry, sessions *convctx.Store, cfg config.WorkflowConfig, tempAudioDir string, opts ...Option) *Engine {
	e := &Engine{
		intents:      intents,
		sessions:     sessions,
		cfg:          cfg,
		tempAudioDir: tempAudioDir,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// ProcessTextInput drives the pipeline for a text request: stages 1-2
// (voice-trigger, ASR) are always skipped. Per §6's entry-point contract.
func (e *Engine) ProcessTextInput(ctx context.Context, req RequestContext, text, language string) (types.IntentResult, error) {
	req.Source = sourceText
	run := e.newRun(req)
	defer run.finish()

	run.transcript = text
	if language != "" {
		run.language = language
	}
	run.triggered = true

	return run.execute(ctx)
}

// ProcessAudioStream drives the pipeline for an audio request, starting
// from voice-trigger (unless req.SkipWakeWord is set). Per §6's entry-point
// contract.
func (e *Engine) ProcessAudioStream(ctx context.Context, req RequestContext, frames <-chan types.AudioFrame) (types.IntentResult, error) {
	req.Source = sourceAudio
	run := e.newRun(req)
	defer run.finish()

	run.frames = frames
	return run.execute(ctx)
}

// run holds the mutable, request-scoped state threaded through the stage
// functions in stages.go. It is never shared across requests.
type run struct {
	e   *Engine
	req RequestContext

	session *convctx.Context
	rec     *trace.Recorder

	frames     <-chan types.AudioFrame
	transcript string
	language   string
	confidence float64
	triggered  bool

	parsedIntent types.Intent
	result       types.IntentResult

	ttsPath string

	start time.Time
}

func (e *Engine) newRun(req RequestContext) *run {
	if req.SessionID == "" {
		req.SessionID = "default"
	}
	session := e.sessions.GetOrCreate(req.SessionID, req.ClientMetadata)
	language := session.Language
	if language == "" {
		language = "en"
	}

	rec := trace.New(req.Trace, req.SessionID, e.traceCfg)

	r := &run{
		e:       e,
		req:     req,
		session: session,
		rec:     rec,
		language: language,
		start:   time.Now(),
	}
	rec.SnapshotBefore(session)
	return r
}

func (r *run) finish() {
	r.rec.SnapshotAfter(r.session)
	if r.e.metrics != nil {
		r.e.metrics.RequestDuration.Record(context.Background(), time.Since(r.start).Seconds())
	}
}

// execute runs every pipeline stage in order under the request's overall
// wall-clock budget, converting any stage failure into an apology
// IntentResult rather than propagating it. This is the single place that
// enforces the "workflow never raises across its public boundary"
// contract (§4.8).
func (r *run) execute(parent context.Context) (types.IntentResult, error) {
	budget := r.e.requestBudget()
	ctx, cancel := context.WithTimeout(parent, budget)
	defer cancel()

	type outcome struct {
		result types.IntentResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		res, err := r.runStages(ctx)
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		r.result = out.result
		return out.result, out.err
	case <-ctx.Done():
		err := errkind.New(errkind.StageTimeout, fmt.Errorf("workflow: request exceeded budget %s", budget))
		res := types.IntentResult{Text: apologyText, Success: false, ShouldSpeak: false, Error: err}
		r.recordFailureHistory(res)
		r.result = res
		return res, err
	}
}

// runStages executes stages 1 through 9 in sequence, returning as soon as a
// non-recoverable stage failure occurs. After intent dispatch, an LLM
// enhancement failure degrades to the unenhanced text, while a TTS or audio
// failure still ends the request with the generic apology from failStage;
// the dispatch reply itself has already been written to conversation
// history by recordHistory.
func (r *run) runStages(ctx context.Context) (types.IntentResult, error) {
	if err := r.stageVoiceTrigger(ctx); err != nil {
		return r.failStage(stageVoiceTrigger, err)
	}
	if !r.triggered {
		r.result = types.IntentResult{Success: false, ShouldSpeak: false}
		return r.result, nil
	}

	if err := r.stageASR(ctx); err != nil {
		return r.failStage(stageASR, err)
	}
	if err := r.stageNormaliseASR(ctx); err != nil {
		return r.failStage(stageNormASRText, err)
	}
	if err := r.stageNLU(ctx); err != nil {
		return r.failStage(stageNLU, err)
	}

	r.stageIntentDispatch(ctx)
	r.recordHistory()

	if r.result.Success {
		r.stageLLMEnhance(ctx)
	}

	if err := r.stageNormaliseTTS(ctx); err != nil {
		return r.failStage(stageNormTTSText, err)
	}
	if err := r.stageTTS(ctx); err != nil {
		return r.failStage(stageTTS, err)
	}
	if err := r.stageAudio(ctx); err != nil {
		return r.failStage(stageAudio, err)
	}

	return r.result, r.result.Error
}

// failStage converts a stage-level error into the documented apology
// IntentResult, classifying it as a stage timeout and recording the
// failure in conversation history. Called only for stages that precede or
// follow intent dispatch (dispatch's own failures are handled inline by
// stageIntentDispatch, which always produces a well-formed IntentResult).
func (r *run) failStage(stage string, cause error) (types.IntentResult, error) {
	err := errkind.New(errkind.StageTimeout, fmt.Errorf("workflow: stage %q: %w", stage, cause))
	res := types.IntentResult{
		Text:        apologyText,
		Success:     false,
		ShouldSpeak: false,
		Error:       err,
	}
	r.result = res
	r.recordFailureHistory(res)
	if r.e.metrics != nil {
		r.e.metrics.RecordProviderError(context.Background(), "workflow", stage)
	}
	return res, err
}

func (r *run) recordHistory() {
	r.session.AppendHistory(types.HistoryEntry{
		Role:      "user",
		Text:      r.transcript,
		Intent:    r.parsedIntent.Name,
		Timestamp: time.Now(),
	})
	r.session.AppendHistory(types.HistoryEntry{
		Role:      "assistant",
		Text:      r.result.Text,
		Intent:    r.parsedIntent.Name,
		Timestamp: time.Now(),
	})
}

func (r *run) recordFailureHistory(res types.IntentResult) {
	r.session.AppendHistory(types.HistoryEntry{
		Role:      "assistant",
		Text:      res.Text,
		Intent:    r.parsedIntent.Name,
		Timestamp: time.Now(),
	})
}

// recordStage wraps trace.Recorder.RecordStage and observe.Metrics.RecordStage
// behind one call so every stage function has a single line to call on
// success, and so disabling either is a no-op without branching at call
// sites.
func (r *run) recordStage(stage string, input, output any, elapsed time.Duration) {
	r.rec.RecordStage(stage, input, output, nil, elapsed)
	if r.e.metrics != nil {
		r.e.metrics.RecordStage(context.Background(), stage, elapsed.Seconds())
	}
}

func (r *run) recordSkip(stage, reason string) {
	r.rec.RecordSkip(stage, reason)
	if r.e.metrics != nil {
		r.e.metrics.RecordStageSkip(context.Background(), stage)
	}
}

// withStageTimeout runs fn under a context bounded by stage's configured
// timeout, cancelling it when fn returns or the timeout elapses, whichever
// comes first.
func (r *run) withStageTimeout(parent context.Context, stage string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, r.e.stageTimeout(stage))
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("workflow: stage %q exceeded %s", stage, r.e.stageTimeout(stage))
	}
}
