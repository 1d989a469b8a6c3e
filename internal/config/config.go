// Package config provides the configuration schema, loader, dotted-path
// resolver, and hot-reload watcher for the voiced runtime (C1, Config
// Store).
package config

import "time"

// ComponentKind names one of the capability kinds the Component Manager
// recognises (§3 ComponentDescriptor: "one per capability kind").
type ComponentKind string

const (
	KindTTS           ComponentKind = "tts"
	KindAudio         ComponentKind = "audio"
	KindASR           ComponentKind = "asr"
	KindLLM           ComponentKind = "llm"
	KindVoiceTrigger  ComponentKind = "voice_trigger"
	KindNLU           ComponentKind = "nlu"
	KindTextProcessor ComponentKind = "text_processor"
	KindIntentSystem  ComponentKind = "intent_system"
	KindMonitoring    ComponentKind = "monitoring"
	KindNLUAnalysis   ComponentKind = "nlu_analysis"
	KindConfiguration ComponentKind = "configuration"
)

// AllKinds lists every recognised component kind, in a stable order used
// wherever deterministic iteration matters (e.g. tie-breaking topological
// sort by declared name, §4.3).
var AllKinds = []ComponentKind{
	KindTTS, KindAudio, KindASR, KindLLM, KindVoiceTrigger, KindNLU,
	KindTextProcessor, KindIntentSystem, KindMonitoring, KindNLUAnalysis,
	KindConfiguration,
}

// Config is the root configuration tree, decoded from a structured text
// file (YAML) and validated against this type. It is the typed backing
// store for a [ConfigTree] snapshot.
type Config struct {
	Server     ServerConfig                   `yaml:"server"`
	Components map[ComponentKind]ComponentCfg `yaml:"components"`
	Workflow   WorkflowConfig                 `yaml:"workflow"`
	Sessions   SessionsConfig                 `yaml:"sessions"`
	Trace      TraceConfig                    `yaml:"trace"`
}

// ServerConfig holds process-wide ambient settings out of the pipeline's
// own scope (logging level, temp-audio directory).
type ServerConfig struct {
	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel LogLevel `yaml:"log_level"`

	// TempAudioDir is where TTS writes its temporary output files (§4.8
	// step 8). Must be writable; probed at startup (§6 hard validation 3).
	TempAudioDir string `yaml:"temp_audio_dir"`

	// ListenAddr is the address the HTTP server (health checks + metrics)
	// binds to, e.g. ":8080". Defaults to ":8080" when empty.
	ListenAddr string `yaml:"listen_addr"`
}

// ComponentCfg is the per-capability-kind sub-config: enablement, declared
// dependencies, default/fallback provider selection, and the provider
// table (§3 ComponentDescriptor).
type ComponentCfg struct {
	Enabled bool `yaml:"enabled"`

	// Optional marks this component as allowed to be unhealthy at startup
	// without aborting initialisation (§4.3 phase 4 health gate).
	Optional bool `yaml:"optional"`

	// DependsOnComponents lists other component kinds this one declares a
	// hard dependency on.
	DependsOnComponents []ComponentKind `yaml:"depends_on_components"`

	// DependsOnServices lists external service names (opaque to the
	// Component Manager, validated only for presence) this component needs.
	DependsOnServices []string `yaml:"depends_on_services"`

	// DefaultProvider is the provider name selected absent a per-call pin.
	DefaultProvider string `yaml:"default_provider"`

	// FallbackProviders is the ordered fallback chain tried on runtime
	// failure of the default (§4.4 provider selection step 3).
	FallbackProviders []string `yaml:"fallback_providers"`

	// EssentialProviders is the set of providers constructed eagerly even
	// in "lazy" loading mode (§4.4, §9 Open Question 3). If empty, it
	// defaults at load time to [DefaultProvider, "console"].
	EssentialProviders []string `yaml:"essential_providers"`

	// Lazy selects lazy provider construction (§4.4); false means eager.
	Lazy bool `yaml:"lazy"`

	// Providers maps provider name to its raw parameter block. Values are
	// decoded into the provider's typed model via the Schema Registry.
	Providers map[string]map[string]any `yaml:"providers"`
}

// WorkflowConfig holds the workflow engine's per-stage timeouts and
// per-request budget (§4.8, §5).
type WorkflowConfig struct {
	// PreRollSeconds is the voice-trigger pre-roll buffer duration (§4.8
	// step 1, §9 Open Question 1). Defaults to 1.0.
	PreRollSeconds float64 `yaml:"pre_roll_seconds"`

	// StageTimeouts overrides the default per-stage timeout by stage name
	// ("voice_trigger", "asr", "nlu", "intent_dispatch", "llm", "tts",
	// "audio"). Unset stages use the documented defaults.
	StageTimeouts map[string]time.Duration `yaml:"stage_timeouts"`

	// HandlerTimeout is the per-intent handler deadline (§4.5). Defaults to
	// 30s.
	HandlerTimeout time.Duration `yaml:"handler_timeout"`

	// RequestBudget is the per-request wall-clock budget (§5). Defaults to
	// 60s.
	RequestBudget time.Duration `yaml:"request_budget"`

	// NLUConfidenceThreshold is the minimum Intent.Confidence below which
	// the request routes to FallbackIntent (§4.8 step 4).
	NLUConfidenceThreshold float64 `yaml:"nlu_confidence_threshold"`

	// FallbackIntent is the intent name dispatched when NLU confidence is
	// below threshold.
	FallbackIntent string `yaml:"fallback_intent"`
}

// SessionsConfig holds Conversation Context Store tuning (§4.6).
type SessionsConfig struct {
	// IdleTimeout is how long a session may sit idle before [expire] drops
	// it. Defaults to 30 minutes.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// HistoryLimit bounds ConversationContext.conversation_history.
	// Defaults to 50.
	HistoryLimit int `yaml:"history_limit"`

	// RecentActionsLimit bounds recent_actions. Defaults to 20.
	RecentActionsLimit int `yaml:"recent_actions_limit"`

	// FailedActionsLimit bounds failed_actions. Defaults to 20.
	FailedActionsLimit int `yaml:"failed_actions_limit"`

	// ActionPolicies maps an action domain name to its policy ("reject" or
	// "replace"); domains not listed default to "reject" (§4.7).
	ActionPolicies map[string]string `yaml:"action_policies"`

	// HistoryArchiveDSN, when set, durably persists conversation history
	// entries to PostgreSQL as they are appended (internal/convctx/postgres).
	// Leave empty to keep history in memory only.
	HistoryArchiveDSN string `yaml:"history_archive_dsn"`
}

// TraceConfig holds Trace Recorder production-safety limits (§4.9).
type TraceConfig struct {
	MaxStages      int `yaml:"max_stages"`        // default 100
	MaxDataSizeMB  int `yaml:"max_data_size_mb"`   // default 10
	HistoryExcerpt int `yaml:"history_excerpt_n"`  // default 3
}

// LogLevel is a validated logging verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is one of the recognised levels (empty is
// treated as valid and defaulted to [LogInfo] by callers).
func (l LogLevel) IsValid() bool {
	switch l {
	case "", LogDebug, LogInfo, LogWarn, LogError:
		return true
	default:
		return false
	}
}
