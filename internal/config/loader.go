package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultHandlerTimeout = 30 * time.Second
	defaultRequestBudget  = 60 * time.Second
	defaultIdleTimeout    = 30 * time.Minute
)

// ConfigTree is an immutable snapshot of the whole configuration, addressable
// by dotted path (§3, §4.2). A new ConfigTree is built and swapped in
// atomically on every load/reload; holders of a *ConfigTree never observe a
// partial update mid-read.
type ConfigTree struct {
	typed *Config
	raw   map[string]any
}

// Typed returns the strongly-typed root Config backing this snapshot.
func (t *ConfigTree) Typed() *Config { return t.typed }

// Raw returns the decoded-but-untyped view of the snapshot, used by the
// dotted-path Resolve and by Save to round-trip unrecognised keys.
func (t *ConfigTree) Raw() map[string]any { return t.raw }

// Load reads a YAML configuration file at path, expands ${ENV_VAR}
// references, validates the result, and returns a [ConfigTree] snapshot.
func Load(path string) (*ConfigTree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	tree, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: %q: %w", path, err)
	}
	return tree, nil
}

// LoadFromReader decodes a YAML config from r, expands environment
// variables, and validates the result. Tests construct configs from string
// literals through this entry point.
func LoadFromReader(r io.Reader) (*ConfigTree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	warnUnresolvedEnvRefs(data)
	if raw != nil {
		raw = expandEnvInValue(raw).(map[string]any)
	}

	expanded, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("re-encode expanded yaml: %w", err)
	}
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return &ConfigTree{typed: cfg, raw: raw}, nil
}

// applyDefaults fills zero-valued tunables with the defaults named across
// §4.3-§4.9.
func applyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Workflow.PreRollSeconds <= 0 {
		cfg.Workflow.PreRollSeconds = 1.0
	}
	if cfg.Workflow.HandlerTimeout <= 0 {
		cfg.Workflow.HandlerTimeout = defaultHandlerTimeout
	}
	if cfg.Workflow.RequestBudget <= 0 {
		cfg.Workflow.RequestBudget = defaultRequestBudget
	}
	if cfg.Workflow.NLUConfidenceThreshold <= 0 {
		cfg.Workflow.NLUConfidenceThreshold = 0.5
	}
	if cfg.Sessions.IdleTimeout <= 0 {
		cfg.Sessions.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Sessions.HistoryLimit <= 0 {
		cfg.Sessions.HistoryLimit = 50
	}
	if cfg.Sessions.RecentActionsLimit <= 0 {
		cfg.Sessions.RecentActionsLimit = 20
	}
	if cfg.Sessions.FailedActionsLimit <= 0 {
		cfg.Sessions.FailedActionsLimit = 20
	}
	if cfg.Trace.MaxStages <= 0 {
		cfg.Trace.MaxStages = 100
	}
	if cfg.Trace.MaxDataSizeMB <= 0 {
		cfg.Trace.MaxDataSizeMB = 10
	}
	if cfg.Trace.HistoryExcerpt <= 0 {
		cfg.Trace.HistoryExcerpt = 3
	}
	if cfg.Components == nil {
		cfg.Components = map[ComponentKind]ComponentCfg{}
	}
	for kind, c := range cfg.Components {
		if len(c.EssentialProviders) == 0 {
			essentials := []string{"console"}
			if c.DefaultProvider != "" && c.DefaultProvider != "console" {
				essentials = append([]string{c.DefaultProvider}, essentials...)
			}
			c.EssentialProviders = essentials
			cfg.Components[kind] = c
		}
	}
}

// Validate checks that cfg describes a coherent configuration, returning a
// single joined error listing every failure found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	tts, ttsOK := cfg.Components[KindTTS]
	audio, audioOK := cfg.Components[KindAudio]
	if ttsOK && tts.Enabled && !(audioOK && audio.Enabled) {
		// Hard validation rule (§6): TTS requires Audio in the same request.
		errs = append(errs, errors.New("components.tts is enabled but components.audio is not: TTS requires Audio"))
	}

	for kind, c := range cfg.Components {
		if !c.Enabled {
			continue
		}
		for _, dep := range c.DependsOnComponents {
			depCfg, ok := cfg.Components[dep]
			if !ok || !depCfg.Enabled {
				errs = append(errs, fmt.Errorf("components.%s depends on component %q, which is not enabled", kind, dep))
			}
		}
	}

	if ttsOK && tts.Enabled {
		if cfg.Server.TempAudioDir == "" {
			errs = append(errs, errors.New("server.temp_audio_dir is required when components.tts is enabled"))
		} else if err := probeWritable(cfg.Server.TempAudioDir); err != nil {
			errs = append(errs, fmt.Errorf("server.temp_audio_dir %q is not writable: %w", cfg.Server.TempAudioDir, err))
		}
	}

	return errors.Join(errs...)
}

// probeWritable performs the startup write probe required by the
// temp_audio_dir hard validation rule.
func probeWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".voiced-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// warnUnresolvedEnvRefs logs a warning for every ${NAME} placeholder left in
// data that does not correspond to a set environment variable (§4.2:
// unresolved placeholders are a warning, not a load failure).
func warnUnresolvedEnvRefs(data []byte) {
	for _, name := range findEnvRefs(data) {
		if _, ok := os.LookupEnv(name); !ok {
			slog.Warn("config: unresolved environment variable reference", "name", name)
		}
	}
}
