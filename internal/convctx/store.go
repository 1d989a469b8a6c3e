package convctx

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Limits bounds every per-session collection a Store constructs. Zero
// values fall back to the documented defaults (§4.6, internal/config's
// applyDefaults).
type Limits struct {
	IdleTimeout        time.Duration
	HistoryLimit       int
	RecentActionsLimit int
	FailedActionsLimit int
}

const (
	defaultIdleTimeout  = 30 * time.Minute
	defaultHistoryLimit = 50
	defaultRecentLimit  = 20
	defaultFailedLimit  = 20

	// defaultSweepInterval is how often the background eviction loop runs.
	defaultSweepInterval = 5 * time.Minute
)

// Store owns every live Context for the process. It is the only component
// that constructs or destroys a Context.
//
// All methods are safe for concurrent use.
type Store struct {
	limits   Limits
	archiver Archiver

	mu       sync.RWMutex
	sessions map[string]*Context

	interval time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures optional Store behaviour.
type Option func(*Store)

// WithArchiver makes every Context the Store creates durably persist its
// history entries through a, in addition to keeping them in memory.
func WithArchiver(a Archiver) Option {
	return func(s *Store) { s.archiver = a }
}

// New constructs a Store. Pass a Limits with zero fields to use the
// documented defaults.
func New(limits Limits, opts ...Option) *Store {
	if limits.IdleTimeout <= 0 {
		limits.IdleTimeout = defaultIdleTimeout
	}
	if limits.HistoryLimit <= 0 {
		limits.HistoryLimit = defaultHistoryLimit
	}
	if limits.RecentActionsLimit <= 0 {
		limits.RecentActionsLimit = defaultRecentLimit
	}
	if limits.FailedActionsLimit <= 0 {
		limits.FailedActionsLimit = defaultFailedLimit
	}
	s := &Store{
		limits:   limits,
		sessions: make(map[string]*Context),
		interval: defaultSweepInterval,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns the existing Context for sessionID, or creates one,
// stamping created_at. Either way it touches last_activity.
func (s *Store) GetOrCreate(sessionID string, clientMeta map[string]any) *Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.sessions[sessionID]; ok {
		c.mu.Lock()
		c.touch()
		c.mu.Unlock()
		return c
	}

	c := newContext(sessionID, clientMeta, s.limits.HistoryLimit, s.limits.RecentActionsLimit, s.limits.FailedActionsLimit, s.archiver)
	s.sessions[sessionID] = c
	return c
}

// Get returns the Context for sessionID without creating one.
func (s *Store) Get(sessionID string) (*Context, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.sessions[sessionID]
	return c, ok
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Expire drops every session whose last activity is older than olderThan.
// Returns the number of sessions dropped.
func (s *Store) Expire(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for id, c := range s.sessions {
		if c.LastActivity().Before(cutoff) {
			delete(s.sessions, id)
			dropped++
		}
	}
	return dropped
}

// Start begins the periodic idle-session eviction sweep in a background
// goroutine, grounded on the teacher's Consolidator.Start/loop shape
// (ticker + done channel, ctx-or-done select). Runs until ctx is cancelled
// or Stop is called.
func (s *Store) Start(ctx context.Context) {
	go s.sweepLoop(ctx)
}

// Stop halts the eviction sweep. Safe to call multiple times.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

func (s *Store) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			if n := s.Expire(s.limits.IdleTimeout); n > 0 {
				slog.Info("convctx: expired idle sessions", "count", n)
			}
		}
	}
}
