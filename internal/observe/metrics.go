// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, distributed tracing, structured logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/MrWong99/voiced"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per workflow stage (§4.8) ---

	// StageDuration tracks per-stage latency. Use with attribute
	// attribute.String("stage", ...) — one of the nine pipeline stage
	// labels (voice_trigger, asr, asr_output, nlu,
	// intent_dispatch, llm, tts_input, tts, audio).
	StageDuration metric.Float64Histogram

	// RequestDuration tracks end-to-end request latency across the whole
	// workflow (§5's per-request wall-clock budget).
	RequestDuration metric.Float64Histogram

	// HandlerDuration tracks intent handler execution time (§4.5).
	HandlerDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// StageSkips counts skipped pipeline stages by stage label (§4.8).
	StageSkips metric.Int64Counter

	// ActionsStarted counts background actions spawned through the Action
	// Coordinator (§4.7). Use with attribute.String("domain", ...).
	ActionsStarted metric.Int64Counter

	// ActionsFailed counts background actions that completed with
	// status=failed.
	ActionsFailed metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// HandlerTimeouts counts intent dispatches that hit the per-handler
	// deadline (§4.5).
	HandlerTimeouts metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live ConversationContexts (§4.6).
	ActiveSessions metric.Int64UpDownCounter

	// ActiveActions tracks the number of in-flight background actions
	// across all sessions (§4.7).
	ActiveActions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("voiced.stage.duration",
		metric.WithDescription("Latency of a single workflow pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RequestDuration, err = m.Float64Histogram("voiced.request.duration",
		metric.WithDescription("End-to-end latency of one workflow request."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HandlerDuration, err = m.Float64Histogram("voiced.handler.duration",
		metric.WithDescription("Latency of an intent handler invocation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("voiced.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.StageSkips, err = m.Int64Counter("voiced.stage.skips",
		metric.WithDescription("Total workflow stages skipped, by stage label."),
	); err != nil {
		return nil, err
	}
	if met.ActionsStarted, err = m.Int64Counter("voiced.actions.started",
		metric.WithDescription("Total background actions started, by domain."),
	); err != nil {
		return nil, err
	}
	if met.ActionsFailed, err = m.Int64Counter("voiced.actions.failed",
		metric.WithDescription("Total background actions that completed as failed, by domain."),
	); err != nil {
		return nil, err
	}

	if met.ProviderErrors, err = m.Int64Counter("voiced.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.HandlerTimeouts, err = m.Int64Counter("voiced.handler.timeouts",
		metric.WithDescription("Total intent handler deadline exceedances."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("voiced.active_sessions",
		metric.WithDescription("Number of live conversation contexts."),
	); err != nil {
		return nil, err
	}
	if met.ActiveActions, err = m.Int64UpDownCounter("voiced.active_actions",
		metric.WithDescription("Number of in-flight background actions across all sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("voiced.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordStage is a convenience method that records one stage's duration.
func (m *Metrics) RecordStage(ctx context.Context, stage string, seconds float64) {
	m.StageDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordStageSkip is a convenience method that increments the skip counter
// for stage.
func (m *Metrics) RecordStageSkip(ctx context.Context, stage string) {
	m.StageSkips.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordActionStarted is a convenience method that increments the
// actions-started counter for domain.
func (m *Metrics) RecordActionStarted(ctx context.Context, domain string) {
	m.ActionsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("domain", domain)))
}

// RecordActionFailed is a convenience method that increments the
// actions-failed counter for domain.
func (m *Metrics) RecordActionFailed(ctx context.Context, domain string) {
	m.ActionsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("domain", domain)))
}

// RecordHandlerTimeout is a convenience method that increments the
// handler-timeout counter for intent.
func (m *Metrics) RecordHandlerTimeout(ctx context.Context, intentName string) {
	m.HandlerTimeouts.Add(ctx, 1, metric.WithAttributes(attribute.String("intent", intentName)))
}
