// Package convctx implements the Conversation Context Store (C6): the
// per-session shared memory that the Workflow Engine, Intent Handler
// Registry, and Action Coordinator all read and write during a request.
package convctx

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/voiced/internal/boundedlist"
	"github.com/MrWong99/voiced/pkg/types"
)

// Archiver durably persists history entries as they are appended, independent
// of the in-process bounded history each Context keeps in memory. Satisfied
// by internal/convctx/postgres.Store; a Store constructed without one simply
// keeps history in memory only.
type Archiver interface {
	Append(ctx context.Context, sessionID string, entry types.HistoryEntry) error
}

// Context is one session's conversation state. Every field access outside
// this package goes through a Context method, which takes the context's
// own lock — callers never see a half-updated snapshot.
//
// Guarded by mu exactly as the teacher's memorySession/Consolidator guard
// their own per-session state.
type Context struct {
	SessionID    string
	UserID       string
	ClientID     string
	RoomName     string
	Language     string
	CreatedAt    time.Time
	ClientMeta   map[string]any

	mu               sync.Mutex
	lastActivity     time.Time
	history          *boundedlist.List[types.HistoryEntry]
	handlerContexts  map[string]any
	activeActions    map[string]types.ActionDescriptor // keyed by domain
	recentActions    *boundedlist.List[types.ActionDescriptor]
	failedActions    *boundedlist.List[types.ActionDescriptor]
	actionErrorCount map[string]int
	devices          []string

	archiver Archiver
}

// newContext constructs a Context with the given bound limits. Unexported:
// callers go through Store.GetOrCreate. archiver may be nil.
func newContext(sessionID string, clientMeta map[string]any, historyLimit, recentLimit, failedLimit int, archiver Archiver) *Context {
	now := time.Now()
	return &Context{
		SessionID:        sessionID,
		ClientMeta:       clientMeta,
		CreatedAt:        now,
		lastActivity:     now,
		history:          boundedlist.New[types.HistoryEntry](historyLimit),
		handlerContexts:  make(map[string]any),
		activeActions:    make(map[string]types.ActionDescriptor),
		recentActions:    boundedlist.New[types.ActionDescriptor](recentLimit),
		failedActions:    boundedlist.New[types.ActionDescriptor](failedLimit),
		actionErrorCount: make(map[string]int),
		archiver:         archiver,
	}
}

// touch updates last_activity to now. Must be called with mu held.
func (c *Context) touch() {
	c.lastActivity = time.Now()
}

// LastActivity returns the last time this context was touched.
func (c *Context) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// AppendHistory appends entry to the bounded conversation history and
// updates last_activity. If the Store was built with an Archiver, entry is
// also archived in the background; archival failures are logged, not
// returned, since the in-memory history remains the source of truth for a
// live session.
func (c *Context) AppendHistory(entry types.HistoryEntry) {
	c.mu.Lock()
	c.history.Push(entry)
	c.touch()
	archiver := c.archiver
	sessionID := c.SessionID
	c.mu.Unlock()

	if archiver == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := archiver.Append(ctx, sessionID, entry); err != nil {
			slog.Warn("convctx: failed to archive history entry", "session_id", sessionID, "error", err)
		}
	}()
}

// History returns a copy of the current conversation history, oldest
// first.
func (c *Context) History() []types.HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Items()
}

// HandlerContext returns the opaque state a handler previously stored
// under name, and whether it was present.
func (c *Context) HandlerContext(name string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.handlerContexts[name]
	return v, ok
}

// SetHandlerContext stores opaque handler-owned state under name.
func (c *Context) SetHandlerContext(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlerContexts[name] = value
	c.touch()
}

// ActiveAction returns the active action descriptor for domain, if any.
func (c *Context) ActiveAction(domain string) (types.ActionDescriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.activeActions[domain]
	return d, ok
}

// TryStartAction atomically applies the domain's reject/replace policy and,
// if admitted, records desc as the active action for its domain. Intended
// caller: the Action Coordinator (internal/action) only — intent handlers
// never touch active_actions directly, preserving the "at most one active
// action per domain per session" invariant (§4.7).
//
// If no action is active for desc.Domain, desc is admitted: returns
// (zero ActionDescriptor, true).
//
// If one is active and replace is false, desc is rejected: returns
// (the still-active descriptor, false).
//
// If one is active and replace is true, the prior descriptor is evicted in
// favour of desc: returns (the evicted descriptor, true). The caller is
// responsible for cancelling the evicted action's task; this method only
// updates the context's bookkeeping.
func (c *Context) TryStartAction(desc types.ActionDescriptor, replace bool) (types.ActionDescriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prior, active := c.activeActions[desc.Domain]
	if active && !replace {
		return prior, false
	}
	c.activeActions[desc.Domain] = desc
	c.touch()
	return prior, true
}

// ActiveActions returns a copy of the currently active actions, keyed by
// domain. Intended caller: the Action Coordinator's list_active surface.
func (c *Context) ActiveActions() map[string]types.ActionDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]types.ActionDescriptor, len(c.activeActions))
	for k, v := range c.activeActions {
		out[k] = v
	}
	return out
}

// CompleteAction moves final out of active_actions and into recent_actions
// or failed_actions depending on status, incrementing action_error_count on
// failure. If a replacement action already holds the domain's active slot
// (final was evicted by TryStartAction with replace), that entry is left in
// place. Intended caller: the Action Coordinator only.
func (c *Context) CompleteAction(domain string, final types.ActionDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.activeActions[domain]; ok && cur.ActionName == final.ActionName && cur.StartTime.Equal(final.StartTime) {
		delete(c.activeActions, domain)
	}
	if final.Status == types.ActionFailed {
		c.failedActions.Push(final)
		c.actionErrorCount[domain]++
	} else {
		c.recentActions.Push(final)
	}
	c.touch()
}

// ActionErrorCount returns how many actions in domain have failed.
func (c *Context) ActionErrorCount(domain string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.actionErrorCount[domain]
}

// RecentActions returns a copy of the bounded recent-action list.
func (c *Context) RecentActions() []types.ActionDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recentActions.Items()
}

// FailedActions returns a copy of the bounded failed-action list.
func (c *Context) FailedActions() []types.ActionDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failedActions.Items()
}

// Devices returns the session's currently known available devices.
func (c *Context) Devices() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.devices))
	copy(out, c.devices)
	return out
}

// SetDevices replaces the session's available-device list.
func (c *Context) SetDevices(devices []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices = devices
	c.touch()
}

// MemoryEstimate returns a structured size estimate for this context, used
// by the Trace Recorder and by the idle-eviction sweep (§4.6).
func (c *Context) MemoryEstimate() types.MemoryEstimate {
	c.mu.Lock()
	defer c.mu.Unlock()

	approx := 0
	for _, h := range c.history.Items() {
		approx += len(h.Text) + len(h.Role) + len(h.Intent)
	}

	return types.MemoryEstimate{
		HistoryEntries:      c.history.Len(),
		ActiveActions:       len(c.activeActions),
		RecentActions:       c.recentActions.Len(),
		FailedActions:       c.failedActions.Len(),
		HandlerContextCount: len(c.handlerContexts),
		ApproxBytes:         approx,
	}
}

// Snapshot is an immutable consistent copy of a Context, safe to read
// without holding any lock — used by the Trace Recorder's before/after
// captures (§4.9).
type Snapshot struct {
	SessionID     string
	History       []types.HistoryEntry
	ActiveActions map[string]types.ActionDescriptor
	RecentActions []types.ActionDescriptor
	FailedActions []types.ActionDescriptor
	LastActivity  time.Time
}

// Snapshot takes a consistent point-in-time copy of c.
func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	active := make(map[string]types.ActionDescriptor, len(c.activeActions))
	for k, v := range c.activeActions {
		active[k] = v
	}

	return Snapshot{
		SessionID:     c.SessionID,
		History:       c.history.Items(),
		ActiveActions: active,
		RecentActions: c.recentActions.Items(),
		FailedActions: c.failedActions.Items(),
		LastActivity:  c.lastActivity,
	}
}
