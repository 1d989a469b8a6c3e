// Command voiced is the main entry point for the voiced voice-assistant
// runtime server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/MrWong99/voiced/internal/action"
	"github.com/MrWong99/voiced/internal/admin"
	"github.com/MrWong99/voiced/internal/component"
	"github.com/MrWong99/voiced/internal/config"
	"github.com/MrWong99/voiced/internal/convctx"
	"github.com/MrWong99/voiced/internal/convctx/postgres"
	"github.com/MrWong99/voiced/internal/health"
	"github.com/MrWong99/voiced/internal/intent"
	"github.com/MrWong99/voiced/internal/lifecycle"
	"github.com/MrWong99/voiced/internal/observe"
	"github.com/MrWong99/voiced/internal/schema"
	"github.com/MrWong99/voiced/internal/workflow"
	"github.com/MrWong99/voiced/pkg/provider"
	"github.com/MrWong99/voiced/pkg/provider/console"
	"github.com/MrWong99/voiced/pkg/provider/nlu/keywordmatcher"
	"github.com/MrWong99/voiced/pkg/provider/textproc/general"
)

func main() {
	os.Exit(runRoot())
}

func runRoot() int {
	var configPath string

	root := &cobra.Command{
		Use:   "voiced",
		Short: "voiced is a modular voice-assistant runtime",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration file")

	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newValidateCmd(&configPath))

	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

// ─── run ────────────────────────────────────────────────────────────────────

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "start the voiced server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(*configPath)
		},
	}
}

func runServer(configPath string) error {
	schema.RegisterBuiltins()

	tree, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %q not found", configPath)
		}
		return err
	}
	cfg := tree.Typed()

	coverage := schema.ValidateSchemaCoverage(schema.EnabledKinds(cfg))
	if !coverage.Valid {
		return fmt.Errorf("schema coverage validation failed: %v", coverage.Errors)
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)
	slog.Info("voiced starting", "config", configPath, "listen_addr", cfg.Server.ListenAddr, "log_level", cfg.Server.LogLevel)

	shutdownTelemetry, err := observe.InitProvider(context.Background(), observe.ProviderConfig{ServiceName: "voiced"})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer shutdownTelemetry(context.Background())

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	registry := config.NewRegistry()
	registerBuiltinFactories(registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager, err := lifecycle.New(ctx, cfg, registry)
	if err != nil {
		return fmt.Errorf("component startup: %w", err)
	}

	var sessionOpts []convctx.Option
	if dsn := cfg.Sessions.HistoryArchiveDSN; dsn != "" {
		archiveStore, err := postgres.NewStore(ctx, dsn)
		if err != nil {
			return fmt.Errorf("connect history archive: %w", err)
		}
		defer archiveStore.Close()
		sessionOpts = append(sessionOpts, convctx.WithArchiver(archiveStore))
	}

	sessions := convctx.New(convctx.Limits{
		IdleTimeout:        cfg.Sessions.IdleTimeout,
		HistoryLimit:       cfg.Sessions.HistoryLimit,
		RecentActionsLimit: cfg.Sessions.RecentActionsLimit,
		FailedActionsLimit: cfg.Sessions.FailedActionsLimit,
	}, sessionOpts...)
	sessions.Start(ctx)
	defer sessions.Stop()

	coordinator := action.New(cfg.Sessions.ActionPolicies)
	defer coordinator.Shutdown(context.Background())

	intents := intent.New(nil)

	engine := buildWorkflowEngine(manager, intents, sessions, cfg, metrics)

	configWatcher, err := config.NewWatcher(configPath, nil)
	if err != nil {
		return fmt.Errorf("start config watcher: %w", err)
	}
	defer configWatcher.Stop()
	adminSvc := admin.New(configWatcher, configPath)

	healthHandler := health.New(manager.Checkers()...)
	mux := http.NewServeMux()
	healthHandler.Register(mux)
	mux.Handle("POST /v1/text", textInputHandler(engine))
	mux.Handle("GET /admin/config/schema/{kind}/{provider}", adminGetSchemaHandler(adminSvc))
	mux.Handle("POST /admin/config/sections/{kind}/{provider}/validate", adminValidateHandler(adminSvc))
	mux.Handle("PUT /admin/config/sections/{kind}/{provider}", adminPutHandler(adminSvc))

	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: observe.Middleware(metrics)(mux),
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", cfg.Server.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	slog.Info("server ready — press Ctrl+C to shut down")

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			slog.Error("http server error", "err", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown error", "err", err)
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("component shutdown: %w", err)
	}
	slog.Info("goodbye")
	return nil
}

// adminGetSchemaHandler serves a provider's registered parameter schema —
// the Go analogue of Irene's GET /config/sections/{section_name}/schema
// (_examples/original_source/irene/components/configuration_component.py).
func adminGetSchemaHandler(svc *admin.ConfigAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := config.ComponentKind(r.PathValue("kind"))
		sch, ok := svc.GetSchema(kind, r.PathValue("provider"))
		if !ok {
			http.Error(w, "no schema registered for that kind/provider", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := json.NewEncoder(w).Encode(sch); err != nil {
			slog.Error("failed to encode schema response", "err", err)
		}
	}
}

// adminValidateHandler dry-runs a parameter set against its schema without
// writing anything — the POST .../validate route.
func adminValidateHandler(svc *admin.ConfigAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var dict map[string]any
		if err := json.NewDecoder(r.Body).Decode(&dict); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		kind := config.ComponentKind(r.PathValue("kind"))
		err := svc.Validate(kind, r.PathValue("provider"), dict)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		resp := map[string]any{"valid": err == nil}
		if err != nil {
			resp["error"] = err.Error()
		}
		if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
			slog.Error("failed to encode validate response", "err", encErr)
		}
	}
}

// adminPutHandler validates and persists a provider's parameters, relying on
// the config watcher's own hot-reload to pick the change back up — the PUT
// .../sections/{section_name} route.
func adminPutHandler(svc *admin.ConfigAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var dict map[string]any
		if err := json.NewDecoder(r.Body).Decode(&dict); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		kind := config.ComponentKind(r.PathValue("kind"))
		providerName := r.PathValue("provider")
		if err := svc.Put(kind, providerName, dict); err != nil {
			slog.Warn("admin config put failed", "kind", kind, "provider", providerName, "err", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// textInputRequest is the JSON body accepted by POST /v1/text.
type textInputRequest struct {
	SessionID  string `json:"session_id"`
	Text       string `json:"text"`
	Language   string `json:"language"`
	WantsAudio bool   `json:"wants_audio"`
}

// textInputHandler adapts workflow.Engine.ProcessTextInput to the minimal
// HTTP surface this deployment ships; richer front-ends (gRPC, websocket
// audio streaming) are out of scope here (§6 External interfaces).
func textInputHandler(engine *workflow.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req textInputRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.SessionID == "" || req.Text == "" {
			http.Error(w, "session_id and text are required", http.StatusBadRequest)
			return
		}

		res, err := engine.ProcessTextInput(r.Context(), workflow.RequestContext{
			SessionID:  req.SessionID,
			Source:     "text",
			WantsAudio: req.WantsAudio,
		}, req.Text, req.Language)
		if err != nil {
			slog.Warn("process_text_input failed", "session_id", req.SessionID, "err", err)
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if encErr := json.NewEncoder(w).Encode(res); encErr != nil {
			slog.Error("failed to encode text-input response", "err", encErr)
		}
	}
}

// buildWorkflowEngine wires the live components built by the lifecycle
// Manager into a workflow.Engine, falling back to an unconfigured (nil)
// capability wherever a component wasn't enabled — each stage already
// handles a nil provider as "skip this stage".
func buildWorkflowEngine(m *lifecycle.Manager, intents *intent.Registry, sessions *convctx.Store, cfg *config.Config, metrics *observe.Metrics) *workflow.Engine {
	opts := []workflow.Option{
		workflow.WithMetrics(metrics),
		workflow.WithTraceConfig(cfg.Trace),
	}

	if tts, err := lifecycle.Get[component.TTS](m, config.KindTTS); err == nil {
		opts = append(opts, workflow.WithTTS(tts))
	}
	if aud, err := lifecycle.Get[component.Audio](m, config.KindAudio); err == nil {
		opts = append(opts, workflow.WithAudio(aud))
	}
	if asrC, err := lifecycle.Get[component.ASR](m, config.KindASR); err == nil {
		opts = append(opts, workflow.WithASR(asrC))
	}
	if llmC, err := lifecycle.Get[component.LLM](m, config.KindLLM); err == nil {
		opts = append(opts, workflow.WithLLM(llmC))
	}
	if vt, err := lifecycle.Get[component.VoiceTrigger](m, config.KindVoiceTrigger); err == nil {
		opts = append(opts, workflow.WithVoiceTrigger(vt))
	}
	if tp, err := lifecycle.Get[component.TextProcessor](m, config.KindTextProcessor); err == nil {
		opts = append(opts, workflow.WithTextProcessor(tp))
	}
	if nluC, err := lifecycle.Get[component.NLU](m, config.KindNLU); err == nil {
		opts = append(opts, workflow.WithNLU(nluC))
	}

	return workflow.New(intents, sessions, cfg.Workflow, cfg.Server.TempAudioDir, opts...)
}

// ─── validate ───────────────────────────────────────────────────────────────

func newValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "check schema coverage and config completeness without starting the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(*configPath)
		},
	}
}

func runValidate(configPath string) error {
	schema.RegisterBuiltins()

	tree, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config %q: %w", configPath, err)
	}

	coverage := schema.ValidateSchemaCoverage(schema.EnabledKinds(tree.Typed()))
	fmt.Printf("schema coverage: valid=%v\n", coverage.Valid)
	for _, w := range coverage.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	for _, e := range coverage.Errors {
		fmt.Printf("  error:   %s\n", e)
	}

	completeness := schema.GetMasterConfigCompleteness(schema.DefaultMasterConfigPath)
	fmt.Printf("config completeness: valid=%v coverage=%.1f%%\n", completeness.Valid, completeness.CoveragePercentage)
	for _, s := range completeness.MissingSections {
		fmt.Printf("  missing section: %s\n", s)
	}
	for _, s := range completeness.OrphanedSections {
		fmt.Printf("  orphaned section: %s\n", s)
	}

	if !coverage.Valid || !completeness.Valid {
		return errors.New("validation failed")
	}
	fmt.Println("configuration is valid")
	return nil
}

// ─── provider wiring ────────────────────────────────────────────────────────

// registerBuiltinFactories registers every provider implementation shipped
// with this build, console fallbacks plus the concrete keyword-matcher NLU
// and general-purpose text normaliser.
func registerBuiltinFactories(reg *config.Registry) {
	reg.Register(config.KindTTS, console.Name, func(params map[string]any) (provider.Base, error) {
		var cfg struct {
			Voice string `mapstructure:"voice"`
		}
		if err := schema.DecodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return &console.TTS{Voice: cfg.Voice}, nil
	})
	reg.Register(config.KindAudio, console.Name, func(map[string]any) (provider.Base, error) {
		return &console.Audio{}, nil
	})
	reg.Register(config.KindASR, console.Name, func(params map[string]any) (provider.Base, error) {
		var cfg struct {
			EchoPrefix string `mapstructure:"echo_prefix"`
		}
		if err := schema.DecodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return &console.ASR{EchoPrefix: cfg.EchoPrefix}, nil
	})
	reg.Register(config.KindLLM, console.Name, func(map[string]any) (provider.Base, error) {
		return &console.LLM{}, nil
	})
	reg.Register(config.KindVoiceTrigger, console.Name, func(params map[string]any) (provider.Base, error) {
		var cfg struct {
			WakeWords []string `mapstructure:"wake_words"`
		}
		if err := schema.DecodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return &console.VoiceTrigger{Words: cfg.WakeWords}, nil
	})
	reg.Register(config.KindNLU, console.Name, func(params map[string]any) (provider.Base, error) {
		var cfg struct {
			FallbackIntent string `mapstructure:"fallback_intent"`
		}
		if err := schema.DecodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return &console.NLU{FallbackIntent: cfg.FallbackIntent}, nil
	})
	reg.Register(config.KindTextProcessor, console.Name, func(params map[string]any) (provider.Base, error) {
		var cfg struct {
			StageList []string `mapstructure:"stages"`
		}
		if err := schema.DecodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return &console.TextProcessor{StageList: cfg.StageList}, nil
	})

	reg.Register(config.KindNLU, "keyword_matcher", func(params map[string]any) (provider.Base, error) {
		var cfg keywordmatcher.Config
		if err := schema.DecodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return keywordmatcher.New(cfg), nil
	})
	reg.Register(config.KindTextProcessor, "general", func(params map[string]any) (provider.Base, error) {
		var cfg general.Config
		if err := schema.DecodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return general.New(cfg), nil
	})
}

// ─── logging ────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

