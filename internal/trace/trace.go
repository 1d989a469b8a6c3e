// Package trace implements the Trace Recorder (C10): an opt-in, per-request
// stage recorder with a zero-overhead disabled path, sanitised stage
// input/output capture, and production-safety caps on stage count and
// total trace size.
//
// Directly grounded on Irene's TraceContext (core/trace_context.py):
// same enabled-flag fast path, same stage/size caps with single-warning
// overflow, same sanitisation rules, re-expressed as a Go struct with a
// mutex instead of Python's implicit single-threaded access (a Recorder
// may be touched by the workflow goroutine and, after a stage spawns a
// background action, by that action's own goroutine completing around
// the same time).
package trace

import (
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/voiced/internal/config"
	"github.com/MrWong99/voiced/internal/convctx"
)

const (
	defaultMaxStages      = 100
	defaultMaxDataSizeMB  = 10
	defaultHistoryExcerpt = 3
)

// StageRecord is one recorded pipeline stage.
type StageRecord struct {
	Stage             string
	Input             any
	Output            any
	Metadata          map[string]any
	Skipped           bool
	ProcessingTimeMS  float64
	Timestamp         time.Time
}

// Summary is a lightweight rollup of a Recorder's state, cheap to compute
// and safe to attach to a response even when detailed stages are not
// wanted.
type Summary struct {
	Enabled              bool
	RequestID            string
	TotalStages          int
	TotalProcessingMS    float64
	StageBreakdownMS     map[string]float64
	StagesDropped        int
	DataSizeExceeded     bool
	ContextSnapshotCount int
}

// Recorder collects stage records and before/after ConversationContext
// snapshots for one request. The zero value is disabled; use New to
// configure limits explicitly.
type Recorder struct {
	enabled   bool
	requestID string
	startTime time.Time

	maxStages    int
	maxDataBytes int
	historyExcerpt int

	mu               sync.Mutex
	stages           []StageRecord
	currentBytes     int
	stagesDropped    int
	dataSizeExceeded bool
	before           *convctx.Snapshot
	after            *convctx.Snapshot
}

// New creates a Recorder for one request. enabled controls whether any
// work happens at all; when false every method below is an O(1) no-op,
// matching the "zero overhead when disabled" requirement (§4.9).
func New(enabled bool, requestID string, cfg config.TraceConfig) *Recorder {
	maxStages := cfg.MaxStages
	if maxStages <= 0 {
		maxStages = defaultMaxStages
	}
	maxDataMB := cfg.MaxDataSizeMB
	if maxDataMB <= 0 {
		maxDataMB = defaultMaxDataSizeMB
	}
	excerpt := cfg.HistoryExcerpt
	if excerpt <= 0 {
		excerpt = defaultHistoryExcerpt
	}
	return &Recorder{
		enabled:        enabled,
		requestID:      requestID,
		startTime:      time.Now(),
		maxStages:      maxStages,
		maxDataBytes:   maxDataMB * 1024 * 1024,
		historyExcerpt: excerpt,
	}
}

// Enabled reports whether this Recorder is actively collecting.
func (r *Recorder) Enabled() bool {
	return r != nil && r.enabled
}

// RecordStage sanitises input/output and appends a StageRecord, subject to
// the stage-count and data-size caps. A nil Recorder or a disabled one is a
// no-op.
func (r *Recorder) RecordStage(stage string, input, output any, metadata map[string]any, elapsed time.Duration) {
	if r == nil || !r.enabled {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.stages) >= r.maxStages {
		r.stagesDropped++
		if r.stagesDropped == 1 {
			slog.Warn("trace stage limit exceeded, dropping subsequent stages", "max_stages", r.maxStages)
		}
		return
	}
	if r.dataSizeExceeded {
		return
	}

	rec := StageRecord{
		Stage:            stage,
		Input:            sanitize(input),
		Output:           sanitize(output),
		Metadata:         metadata,
		ProcessingTimeMS: float64(elapsed.Microseconds()) / 1000.0,
		Timestamp:        time.Now(),
	}

	size := estimateSize(rec.Input) + estimateSize(rec.Output) + estimateSize(rec.Metadata)
	if r.currentBytes+size > r.maxDataBytes {
		r.dataSizeExceeded = true
		slog.Warn("trace data size limit exceeded, stopping trace collection", "max_data_bytes", r.maxDataBytes)
		return
	}
	r.currentBytes += size
	r.stages = append(r.stages, rec)
}

// RecordSkip records that stage was skipped, per the "stage skips are
// recorded with skipped=true" requirement (§4.8).
func (r *Recorder) RecordSkip(stage, reason string) {
	if r == nil || !r.enabled {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stages) >= r.maxStages {
		r.stagesDropped++
		return
	}
	r.stages = append(r.stages, StageRecord{
		Stage:     stage,
		Skipped:   true,
		Metadata:  map[string]any{"reason": reason},
		Timestamp: time.Now(),
	})
}

// SnapshotBefore records the ConversationContext's state before the
// workflow runs.
func (r *Recorder) SnapshotBefore(session *convctx.Context) {
	if r == nil || !r.enabled || session == nil {
		return
	}
	snap := session.Snapshot()
	r.trimHistory(&snap)
	r.mu.Lock()
	r.before = &snap
	r.mu.Unlock()
}

// SnapshotAfter records the ConversationContext's state after the
// workflow completes.
func (r *Recorder) SnapshotAfter(session *convctx.Context) {
	if r == nil || !r.enabled || session == nil {
		return
	}
	snap := session.Snapshot()
	r.trimHistory(&snap)
	r.mu.Lock()
	r.after = &snap
	r.mu.Unlock()
}

// trimHistory bounds the snapshot's history to the last historyExcerpt
// entries, matching TraceContext's "last 3 history entries" excerpt.
func (r *Recorder) trimHistory(snap *convctx.Snapshot) {
	if len(snap.History) > r.historyExcerpt {
		snap.History = snap.History[len(snap.History)-r.historyExcerpt:]
	}
}

// Stages returns a copy of the recorded stages in order.
func (r *Recorder) Stages() []StageRecord {
	if r == nil || !r.enabled {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StageRecord, len(r.stages))
	copy(out, r.stages)
	return out
}

// Snapshots returns the recorded before/after ConversationContext
// snapshots, either of which may be nil if not yet captured.
func (r *Recorder) Snapshots() (before, after *convctx.Snapshot) {
	if r == nil || !r.enabled {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.before, r.after
}

// Summary returns a lightweight rollup of this Recorder's state.
func (r *Recorder) Summary() Summary {
	if r == nil || !r.enabled {
		return Summary{Enabled: false}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	breakdown := make(map[string]float64, len(r.stages))
	var total float64
	snapshots := 0
	if r.before != nil {
		snapshots++
	}
	if r.after != nil {
		snapshots++
	}
	for _, s := range r.stages {
		breakdown[s.Stage] += s.ProcessingTimeMS
		total += s.ProcessingTimeMS
	}
	return Summary{
		Enabled:              true,
		RequestID:            r.requestID,
		TotalStages:          len(r.stages),
		TotalProcessingMS:    total,
		StageBreakdownMS:     breakdown,
		StagesDropped:        r.stagesDropped,
		DataSizeExceeded:     r.dataSizeExceeded,
		ContextSnapshotCount: snapshots,
	}
}
