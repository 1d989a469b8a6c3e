package workflow

import (
	"context"
	"time"

	"github.com/MrWong99/voiced/internal/intent"
	"github.com/MrWong99/voiced/pkg/provider/asr"
	"github.com/MrWong99/voiced/pkg/provider/audio"
	"github.com/MrWong99/voiced/pkg/provider/tts"
	"github.com/MrWong99/voiced/pkg/types"
)

// Stage labels, shared between engine.go, stages.go, and the trace
// records/metrics attributes they feed. "asr_output" and "tts_input" match
// the textproc.Provider.Stages() labels a normaliser declares (§4.8 steps
// 3 and 7).
const (
	stageVoiceTrigger   = "voice_trigger"
	stageASR            = "asr"
	stageNormASRText    = "asr_output"
	stageNLU            = "nlu"
	stageIntentDispatch = "intent_dispatch"
	stageLLM            = "llm"
	stageNormTTSText    = "tts_input"
	stageTTS            = "tts"
	stageAudio          = "audio"
)

// defaultStageTimeouts holds the documented per-stage timeout defaults
// (§4.8). Stages not listed here (the two text-normalisation stages) have
// no dedicated timeout — they run under the overall request budget only,
// since normalisation is a quality step, not a routing-critical one.
var defaultStageTimeouts = map[string]time.Duration{
	stageVoiceTrigger:   10 * time.Second,
	stageASR:            30 * time.Second,
	stageNLU:            5 * time.Second,
	stageIntentDispatch: 30 * time.Second,
	stageLLM:            30 * time.Second,
	stageTTS:            30 * time.Second,
	stageAudio:          60 * time.Second,
}

// defaultRequestBudget is the per-request wall-clock budget applied when
// config.WorkflowConfig.RequestBudget is unset (§5).
const defaultRequestBudget = 60 * time.Second

func (e *Engine) stageTimeout(stage string) time.Duration {
	if d, ok := e.cfg.StageTimeouts[stage]; ok && d > 0 {
		return d
	}
	return defaultStageTimeouts[stage]
}

func (e *Engine) requestBudget() time.Duration {
	if e.cfg.RequestBudget > 0 {
		return e.cfg.RequestBudget
	}
	return defaultRequestBudget
}

// stageVoiceTrigger runs pipeline stage 1. It is skipped entirely for text
// requests (r.triggered is already true by the time this runs, set in
// ProcessTextInput) and for audio requests with SkipWakeWord set or no
// voice-trigger provider configured — in both skip cases the full audio
// stream is assumed already speech and ASR runs on it directly.
func (r *run) stageVoiceTrigger(ctx context.Context) error {
	if r.req.Source != sourceAudio {
		return nil
	}
	if r.req.SkipWakeWord {
		r.recordSkip(stageVoiceTrigger, "skip_wake_word=true")
		r.triggered = true
		return nil
	}
	if r.e.voiceTrigger == nil {
		r.recordSkip(stageVoiceTrigger, "voice trigger not configured")
		r.triggered = true
		return nil
	}

	start := time.Now()
	var preRollBytes int
	err := r.withStageTimeout(ctx, stageVoiceTrigger, func(ctx context.Context) error {
		events, err := r.e.voiceTrigger.Detect(ctx, r.frames)
		if err != nil {
			return err
		}
		for ev := range events {
			if ev.Type == types.VADSpeechStart {
				r.triggered = true
				if len(ev.PreRoll) > 0 {
					preRollBytes = len(ev.PreRoll)
					r.frames = prependPreRoll(r.frames, ev.PreRoll)
				}
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.recordStage(stageVoiceTrigger, nil, map[string]any{
		"triggered":      r.triggered,
		"pre_roll_bytes": preRollBytes,
	}, time.Since(start))
	return nil
}

// prependPreRoll returns a new frame channel that yields a single frame
// carrying preRoll's buffered audio before relaying whatever in still has
// left to offer, so ASR can recover the opening phoneme a voice-trigger
// provider captured ahead of its detection point (§4.8 step 1). The
// returned channel closes once in closes.
func prependPreRoll(in <-chan types.AudioFrame, preRoll []byte) <-chan types.AudioFrame {
	out := make(chan types.AudioFrame, 1)
	out <- types.AudioFrame{Data: preRoll, SampleRate: 16000, Channels: 1}
	go func() {
		defer close(out)
		for frame := range in {
			out <- frame
		}
	}()
	return out
}

// stageASR runs pipeline stage 2. Skipped for text requests and when no ASR
// provider is configured.
func (r *run) stageASR(ctx context.Context) error {
	if r.req.Source != sourceAudio {
		return nil
	}
	if r.e.asrP == nil {
		r.recordSkip(stageASR, "asr provider not configured")
		return nil
	}

	start := time.Now()
	err := r.withStageTimeout(ctx, stageASR, func(ctx context.Context) error {
		handle, err := r.e.asrP.StartStream(ctx, asr.StreamConfig{
			SampleRate: 16000,
			Channels:   1,
			Language:   r.language,
		})
		if err != nil {
			return err
		}
		defer handle.Close()

		feedDone := make(chan struct{})
		go func() {
			defer close(feedDone)
			for frame := range r.frames {
				if err := handle.Transcribe(frame.Data); err != nil {
					return
				}
			}
		}()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-handle.Finals():
			if ok {
				r.transcript = t.Text
				r.confidence = t.Confidence
			}
			return nil
		}
	})
	if err != nil {
		return err
	}

	r.recordStage(stageASR, nil, map[string]any{"text": r.transcript, "confidence": r.confidence}, time.Since(start))
	return nil
}

// stageNormaliseASR runs the "asr_output" text-normalisation stage over
// r.transcript (§4.8 step 3).
func (r *run) stageNormaliseASR(ctx context.Context) error {
	return r.normaliseStage(ctx, stageNormASRText, &r.transcript)
}

// stageNormaliseTTS runs the "tts_input" text-normalisation stage over the
// dispatch result's reply text (§4.8 step 7).
func (r *run) stageNormaliseTTS(ctx context.Context) error {
	return r.normaliseStage(ctx, stageNormTTSText, &r.result.Text)
}

// normaliseStage applies the configured text processor's chain for
// stageLabel to *text in place. A normalisation failure degrades to the
// unnormalised text rather than aborting the request, the same fallback
// policy step 6 applies to LLM enhancement — normalisation improves
// quality, it does not gate routing.
func (r *run) normaliseStage(ctx context.Context, stageLabel string, text *string) error {
	if r.e.textProc == nil {
		r.recordSkip(stageLabel, "text processor not configured")
		return nil
	}

	applies := false
	for _, s := range r.e.textProc.Stages() {
		if s == stageLabel {
			applies = true
			break
		}
	}
	if !applies {
		r.recordSkip(stageLabel, "normaliser does not apply to this stage")
		return nil
	}

	start := time.Now()
	before := *text
	out, err := r.e.textProc.Normalise(ctx, before, stageLabel, r.language)
	if err != nil {
		r.recordStage(stageLabel, before, before, time.Since(start))
		if r.e.metrics != nil {
			r.e.metrics.RecordProviderError(context.Background(), "textproc", stageLabel)
		}
		return nil
	}

	*text = out
	r.recordStage(stageLabel, before, out, time.Since(start))
	return nil
}

// stageNLU runs pipeline stage 4. If the parsed Intent's confidence falls
// below the configured threshold (or no NLU provider is configured), the
// request is routed to the configured fallback intent instead.
func (r *run) stageNLU(ctx context.Context) error {
	start := time.Now()
	err := r.withStageTimeout(ctx, stageNLU, func(ctx context.Context) error {
		if r.e.nluP == nil {
			return nil
		}
		hints := map[string]any{"history_count": len(r.session.History())}
		parsed, err := r.e.nluP.Parse(ctx, r.transcript, r.language, hints)
		if err != nil {
			return err
		}
		r.parsedIntent = parsed
		return nil
	})
	if err != nil {
		return err
	}

	threshold := r.e.cfg.NLUConfidenceThreshold
	belowThreshold := threshold > 0 && r.parsedIntent.Confidence < threshold
	if r.parsedIntent.Name == "" || belowThreshold {
		fallback := r.e.cfg.FallbackIntent
		if fallback == "" {
			fallback = "unknown"
		}
		r.recordStage(stageNLU, r.transcript, map[string]any{
			"intent":             r.parsedIntent.Name,
			"confidence":         r.parsedIntent.Confidence,
			"routed_to_fallback": fallback,
		}, time.Since(start))
		r.parsedIntent = types.Intent{Name: fallback, RawText: r.transcript, Language: r.language}
		return nil
	}

	r.recordStage(stageNLU, r.transcript, map[string]any{
		"intent":     r.parsedIntent.Name,
		"confidence": r.parsedIntent.Confidence,
	}, time.Since(start))
	return nil
}

// stageIntentDispatch runs pipeline stage 5 under the intent_dispatch stage
// timeout, inside which intent.Dispatch applies the per-handler deadline.
// Unlike the other stage functions, it never returns an error: a handler
// timeout comes back from intent.Dispatch as an apology IntentResult, and
// for a handler error or an unmatched intent this stage puts apologyText in
// the result when it has no Text.
func (r *run) stageIntentDispatch(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, r.e.stageTimeout(stageIntentDispatch))
	defer cancel()

	start := time.Now()
	res, err := intent.Dispatch(ctx, r.e.intents, r.parsedIntent, r.session, r.e.cfg.HandlerTimeout)
	elapsed := time.Since(start)

	if r.e.metrics != nil {
		r.e.metrics.HandlerDuration.Record(ctx, elapsed.Seconds())
	}
	if err != nil && res.Text == "" {
		res.Text = apologyText
	}

	r.recordStage(stageIntentDispatch, r.parsedIntent, res, elapsed)
	r.result = res
}

// stageLLMEnhance runs the optional pipeline stage 6. It only runs when the
// handler's IntentResult requested enhancement via
// Metadata["enhance_task"]; enhancement failure falls back to the
// unenhanced text (§4.8 step 6).
func (r *run) stageLLMEnhance(ctx context.Context) {
	if r.e.llmP == nil {
		r.recordSkip(stageLLM, "llm provider not configured")
		return
	}

	task, requested := r.enhancementTask()
	if !requested {
		r.recordSkip(stageLLM, "enhancement not requested")
		return
	}

	start := time.Now()
	before := r.result.Text
	err := r.withStageTimeout(ctx, stageLLM, func(ctx context.Context) error {
		enhanced, err := r.e.llmP.EnhanceText(ctx, before, task, nil)
		if err != nil {
			return err
		}
		r.result.Text = enhanced
		return nil
	})
	if err != nil {
		r.result.Text = before
		r.recordStage(stageLLM, before, before, time.Since(start))
		if r.e.metrics != nil {
			r.e.metrics.RecordProviderError(context.Background(), "llm", "enhance")
		}
		return
	}

	r.recordStage(stageLLM, before, r.result.Text, time.Since(start))
}

// enhancementTask reports whether the dispatch result requested LLM
// enhancement and, if so, which task to run.
func (r *run) enhancementTask() (string, bool) {
	if r.result.Metadata == nil {
		return "", false
	}
	task, _ := r.result.Metadata["enhance_task"].(string)
	return task, task != ""
}

// stageTTS runs pipeline stage 8. Skipped when the caller does not want
// audio or the handler's result does not call for speech.
func (r *run) stageTTS(ctx context.Context) error {
	if !r.req.WantsAudio || !r.result.ShouldSpeak {
		r.recordSkip(stageTTS, "wants_audio=false or should_speak=false")
		return nil
	}
	if r.e.ttsP == nil {
		r.recordSkip(stageTTS, "tts provider not configured")
		return nil
	}

	path := newTempAudioPath(r.e.tempAudioDir, ".wav")
	start := time.Now()
	err := r.withStageTimeout(ctx, stageTTS, func(ctx context.Context) error {
		return r.e.ttsP.SynthesizeToFile(ctx, r.result.Text, path, tts.SynthesizeOptions{})
	})
	if err != nil {
		cleanupTempAudio(path)
		return err
	}

	r.ttsPath = path
	r.recordStage(stageTTS, r.result.Text, map[string]any{"path": path}, time.Since(start))
	return nil
}

// stageAudio runs pipeline stage 9, the required counterpart to stage 8:
// whenever TTS produced a file, audio playback runs in the same request and
// the file is removed on every exit path (§4.8 invariants).
func (r *run) stageAudio(ctx context.Context) error {
	if r.ttsPath == "" {
		r.recordSkip(stageAudio, "no tts output to play")
		return nil
	}
	if r.e.audioP == nil {
		r.recordSkip(stageAudio, "audio provider not configured")
		cleanupTempAudio(r.ttsPath)
		r.ttsPath = ""
		return nil
	}
	defer cleanupTempAudio(r.ttsPath)

	start := time.Now()
	err := r.withStageTimeout(ctx, stageAudio, func(ctx context.Context) error {
		return r.e.audioP.PlayFile(ctx, r.ttsPath, audio.PlayOptions{})
	})
	if err != nil {
		return err
	}

	r.recordStage(stageAudio, map[string]any{"path": r.ttsPath}, nil, time.Since(start))
	return nil
}
