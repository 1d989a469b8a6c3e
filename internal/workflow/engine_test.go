package workflow_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/voiced/internal/config"
	"github.com/MrWong99/voiced/internal/convctx"
	"github.com/MrWong99/voiced/internal/intent"
	"github.com/MrWong99/voiced/internal/workflow"
	"github.com/MrWong99/voiced/pkg/provider"
	"github.com/MrWong99/voiced/pkg/provider/audio"
	"github.com/MrWong99/voiced/pkg/provider/llm"
	"github.com/MrWong99/voiced/pkg/provider/nlu"
	"github.com/MrWong99/voiced/pkg/provider/textproc"
	"github.com/MrWong99/voiced/pkg/provider/tts"
	"github.com/MrWong99/voiced/pkg/provider/voicetrigger"
	"github.com/MrWong99/voiced/pkg/types"
)

// --- mock providers, following the lifecycle package's plain-struct style ---

type baseMock struct{}

func (baseMock) IsAvailable(context.Context) bool         { return true }
func (baseMock) Capabilities() map[string]any              { return nil }
func (baseMock) ParameterSchema() provider.ParameterSchema { return provider.ParameterSchema{} }

type mockNLU struct {
	baseMock
	intentOut types.Intent
	err       error
}

func (m mockNLU) Parse(ctx context.Context, text, language string, hints map[string]any) (types.Intent, error) {
	if m.err != nil {
		return types.Intent{}, m.err
	}
	out := m.intentOut
	if out.Name == "" {
		out.Name = "time.query"
		out.Confidence = 0.9
	}
	out.RawText = text
	out.Language = language
	return out, nil
}

type mockTextProc struct {
	baseMock
	stages []string
}

func (m mockTextProc) Stages() []string { return m.stages }
func (m mockTextProc) Normalise(ctx context.Context, text, stage, language string) (string, error) {
	return text + "|" + stage, nil
}

type mockTTS struct {
	baseMock
	err error
}

func (m mockTTS) SynthesizeToFile(ctx context.Context, text, outPath string, opts tts.SynthesizeOptions) error {
	if m.err != nil {
		return m.err
	}
	return os.WriteFile(outPath, []byte("fake-audio"), 0o600)
}
func (m mockTTS) ListVoices(context.Context) ([]types.VoiceProfile, error) { return nil, nil }

type mockAudio struct {
	baseMock
	played []string
	err    error
}

func (m *mockAudio) PlayFile(ctx context.Context, path string, opts audio.PlayOptions) error {
	if m.err != nil {
		return m.err
	}
	m.played = append(m.played, path)
	return nil
}
func (m *mockAudio) PlayStream(ctx context.Context, r <-chan []byte, format string, opts audio.PlayOptions) error {
	return nil
}
func (m *mockAudio) Stop(context.Context) error { return nil }

type mockLLM struct {
	baseMock
}

func (mockLLM) StreamCompletion(context.Context, llm.CompletionRequest) (<-chan llm.Chunk, error) {
	return nil, nil
}
func (mockLLM) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return nil, nil
}
func (mockLLM) CountTokens([]types.Message) (int, error)         { return 0, nil }
func (mockLLM) ModelCapabilities() types.ModelCapabilities        { return types.ModelCapabilities{} }
func (mockLLM) EnhanceText(ctx context.Context, text, task string, opts map[string]any) (string, error) {
	return text + "!enhanced", nil
}
func (mockLLM) Chat(context.Context, []types.Message, map[string]any) (string, error) {
	return "", nil
}

func newRegistry(handler intent.Handler) *intent.Registry {
	r := intent.New(nil)
	r.AddHandler(intent.Entry{Pattern: "time.query", Handler: handler})
	return r
}

func okHandler(text string, shouldSpeak bool) intent.Handler {
	return func(ctx context.Context, in types.Intent, session *convctx.Context) (types.IntentResult, error) {
		return types.IntentResult{Text: text, Success: true, ShouldSpeak: shouldSpeak, Confidence: in.Confidence}, nil
	}
}

func TestProcessTextInput_TextOnlyReply(t *testing.T) {
	registry := newRegistry(okHandler("it is noon", false))
	sessions := convctx.New(convctx.Limits{})

	e := workflow.New(registry, sessions, config.WorkflowConfig{}, t.TempDir(), workflow.WithNLU(mockNLU{}))

	res, err := e.ProcessTextInput(context.Background(), workflow.RequestContext{SessionID: "s1"}, "what time is it", "en")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "it is noon", res.Text)

	session, ok := sessions.Get("s1")
	require.True(t, ok)
	assert.Len(t, session.History(), 2)
}

func TestProcessTextInput_TTSAndAudioRunWhenRequested(t *testing.T) {
	registry := newRegistry(okHandler("it is noon", true))
	sessions := convctx.New(convctx.Limits{})
	am := &mockAudio{}

	e := workflow.New(registry, sessions, config.WorkflowConfig{}, t.TempDir(),
		workflow.WithTTS(mockTTS{}),
		workflow.WithAudio(am),
		workflow.WithNLU(mockNLU{}),
	)

	req := workflow.RequestContext{SessionID: "s1", WantsAudio: true}
	res, err := e.ProcessTextInput(context.Background(), req, "what time is it", "en")
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, am.played, 1)

	// The temp file must be removed after playback (§4.8 invariant).
	_, statErr := os.Stat(am.played[0])
	assert.True(t, os.IsNotExist(statErr))
}

func TestProcessTextInput_SkipsTTSWhenWantsAudioFalse(t *testing.T) {
	registry := newRegistry(okHandler("it is noon", true))
	sessions := convctx.New(convctx.Limits{})
	am := &mockAudio{}

	e := workflow.New(registry, sessions, config.WorkflowConfig{}, t.TempDir(),
		workflow.WithTTS(mockTTS{}),
		workflow.WithAudio(am),
		workflow.WithNLU(mockNLU{}),
	)

	res, err := e.ProcessTextInput(context.Background(), workflow.RequestContext{SessionID: "s1", WantsAudio: false}, "hi", "en")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, am.played)
}

func TestProcessTextInput_NLUBelowThresholdRoutesToFallback(t *testing.T) {
	handled := make(chan types.Intent, 1)
	registry := intent.New(nil)
	registry.AddHandler(intent.Entry{Pattern: "chitchat.unknown", Handler: func(ctx context.Context, in types.Intent, session *convctx.Context) (types.IntentResult, error) {
		handled <- in
		return types.IntentResult{Text: "not sure what you mean", Success: true}, nil
	}})
	sessions := convctx.New(convctx.Limits{})

	e := workflow.New(registry, sessions, config.WorkflowConfig{
		NLUConfidenceThreshold: 0.5,
		FallbackIntent:         "chitchat.unknown",
	}, t.TempDir(), workflow.WithNLU(mockNLU{intentOut: types.Intent{Name: "time.query", Confidence: 0.1}}))

	res, err := e.ProcessTextInput(context.Background(), workflow.RequestContext{SessionID: "s1"}, "mumble", "en")
	require.NoError(t, err)
	assert.True(t, res.Success)

	select {
	case in := <-handled:
		assert.Equal(t, "chitchat.unknown", in.Name)
	case <-time.After(time.Second):
		t.Fatal("fallback handler was not invoked")
	}
}

func TestProcessTextInput_NormalisesWhenStageApplies(t *testing.T) {
	registry := newRegistry(okHandler("reply", false))
	sessions := convctx.New(convctx.Limits{})

	e := workflow.New(registry, sessions, config.WorkflowConfig{}, t.TempDir(),
		workflow.WithTextProcessor(mockTextProc{stages: []string{"tts_input"}}),
		workflow.WithNLU(mockNLU{}),
	)

	res, err := e.ProcessTextInput(context.Background(), workflow.RequestContext{SessionID: "s1"}, "hello", "en")
	require.NoError(t, err)
	assert.Equal(t, "reply|tts_input", res.Text)
}

func TestProcessTextInput_HandlerErrorProducesApology(t *testing.T) {
	registry := intent.New(nil)
	registry.AddHandler(intent.Entry{Pattern: "time.query", Handler: func(ctx context.Context, in types.Intent, session *convctx.Context) (types.IntentResult, error) {
		return types.IntentResult{}, errHandlerFailed
	}})
	sessions := convctx.New(convctx.Limits{})

	e := workflow.New(registry, sessions, config.WorkflowConfig{}, t.TempDir(), workflow.WithNLU(mockNLU{}))

	res, err := e.ProcessTextInput(context.Background(), workflow.RequestContext{SessionID: "s1"}, "hi", "en")
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Text)
}

var errHandlerFailed = errors.New("handler exploded")

func TestProcessAudioStream_IdleWhenNotTriggered(t *testing.T) {
	registry := newRegistry(okHandler("should not run", false))
	sessions := convctx.New(convctx.Limits{})

	vt := idleVoiceTrigger{}
	e := workflow.New(registry, sessions, config.WorkflowConfig{}, t.TempDir(), workflow.WithVoiceTrigger(vt))

	frames := make(chan types.AudioFrame)
	close(frames)

	res, err := e.ProcessAudioStream(context.Background(), workflow.RequestContext{SessionID: "s1"}, frames)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, res.Text)
}

func TestProcessTextInput_LLMEnhancementAppliedWhenRequested(t *testing.T) {
	registry := intent.New(nil)
	registry.AddHandler(intent.Entry{Pattern: "time.query", Handler: func(ctx context.Context, in types.Intent, session *convctx.Context) (types.IntentResult, error) {
		return types.IntentResult{
			Text:     "it is noon",
			Success:  true,
			Metadata: map[string]any{"enhance_task": "tone"},
		}, nil
	}})
	sessions := convctx.New(convctx.Limits{})

	e := workflow.New(registry, sessions, config.WorkflowConfig{}, t.TempDir(),
		workflow.WithLLM(mockLLM{}),
		workflow.WithNLU(mockNLU{}),
	)

	res, err := e.ProcessTextInput(context.Background(), workflow.RequestContext{SessionID: "s1"}, "hi", "en")
	require.NoError(t, err)
	assert.Equal(t, "it is noon!enhanced", res.Text)
}

// idleVoiceTrigger closes its Event channel without ever emitting a
// VADSpeechStart, simulating a stream where the wake word never occurs.
type idleVoiceTrigger struct{ baseMock }

func (idleVoiceTrigger) Detect(ctx context.Context, in <-chan types.AudioFrame) (<-chan voicetrigger.Event, error) {
	ch := make(chan voicetrigger.Event)
	close(ch)
	return ch, nil
}
func (idleVoiceTrigger) WakeWords() []string { return nil }

var _ nlu.Provider = mockNLU{}
var _ textproc.Provider = mockTextProc{}
var _ voicetrigger.Provider = idleVoiceTrigger{}
