// Package intent implements the Intent Handler Registry and Dispatch (C8):
// a read-mostly table of handlers keyed by intent-name pattern, with
// exact/prefix/wildcard/fallback lookup and a per-intent deadline.
package intent

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/MrWong99/voiced/internal/convctx"
	"github.com/MrWong99/voiced/pkg/types"
)

// Handler answers one dispatched Intent. It may read and write session
// state directly and may spawn background work through the Action
// Coordinator (internal/action) — the registry itself has no opinion on
// that, it only owns lookup and the handler deadline.
type Handler func(ctx context.Context, in types.Intent, session *convctx.Context) (types.IntentResult, error)

// Entry is one registered handler and the pattern it serves.
//
// Pattern is either:
//   - an exact intent name, "domain.action"
//   - a domain wildcard, "domain.*"
//
// Languages, if non-empty, restricts the entry to those BCP-47 language
// tags; an empty Languages matches every language.
type Entry struct {
	Pattern  string
	Handler  Handler
	Languages []string
}

func (e Entry) isWildcard() bool {
	return strings.HasSuffix(e.Pattern, ".*")
}

func (e Entry) domain() string {
	if e.isWildcard() {
		return strings.TrimSuffix(e.Pattern, ".*")
	}
	if idx := strings.IndexByte(e.Pattern, '.'); idx >= 0 {
		return e.Pattern[:idx]
	}
	return e.Pattern
}

func (e Entry) matchesLanguage(lang string) bool {
	if len(e.Languages) == 0 || lang == "" {
		return true
	}
	for _, l := range e.Languages {
		if strings.EqualFold(l, lang) {
			return true
		}
	}
	return false
}

// snapshot is the immutable view a single Dispatch call looks up against,
// so that a concurrent AddHandler/RemoveHandler never changes the outcome
// of a dispatch already in flight (§4.5).
type snapshot struct {
	exact    map[string][]Entry // intent name -> entries, most recently added last
	wildcard map[string][]Entry // domain -> entries
	fallback Handler
}

// Registry is the read-mostly handler table. Grounded on the teacher's
// Orchestrator: an RWMutex-guarded map, write-lock for dynamic
// add/remove, and a lock-snapshot-then-work-outside-the-lock read path.
type Registry struct {
	mu       sync.RWMutex
	entries  []Entry
	fallback Handler
	snap     *snapshot
}

// New creates an empty Registry. fallback, if non-nil, is invoked when no
// exact, prefix, or wildcard entry matches.
func New(fallback Handler) *Registry {
	r := &Registry{fallback: fallback}
	r.rebuild()
	return r
}

// AddHandler registers entry, replacing any previously registered entry
// with the same exact Pattern. Safe for concurrent use; takes the write
// lock.
func (r *Registry) AddHandler(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.Pattern == entry.Pattern {
			r.entries[i] = entry
			r.rebuild()
			return
		}
	}
	r.entries = append(r.entries, entry)
	r.rebuild()
}

// RemoveHandler removes the entry registered under pattern, if any.
func (r *Registry) RemoveHandler(pattern string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.Pattern == pattern {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			r.rebuild()
			return
		}
	}
}

// SetFallback replaces the fallback handler invoked when nothing else
// matches.
func (r *Registry) SetFallback(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = h
	r.rebuild()
}

// Entries returns a copy of every currently registered entry, in
// registration order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// rebuild recomputes the lookup snapshot. Must be called with mu held for
// writing.
func (r *Registry) rebuild() {
	exact := make(map[string][]Entry)
	wildcard := make(map[string][]Entry)
	for _, e := range r.entries {
		if e.isWildcard() {
			d := e.domain()
			wildcard[d] = append(wildcard[d], e)
		} else {
			exact[e.Pattern] = append(exact[e.Pattern], e)
		}
	}
	// Longest-prefix dispatch wants deterministic ordering among same-domain
	// wildcard entries; sort by pattern length descending so the most
	// specific one (were patterns ever to overlap) is tried first.
	for d := range wildcard {
		sort.SliceStable(wildcard[d], func(i, j int) bool {
			return len(wildcard[d][i].Pattern) > len(wildcard[d][j].Pattern)
		})
	}
	r.snap = &snapshot{exact: exact, wildcard: wildcard, fallback: r.fallback}
}

// currentSnapshot returns the snapshot in effect right now. Takes the read
// lock only long enough to copy the pointer — callers then look up
// against an immutable value.
func (r *Registry) currentSnapshot() *snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// resolve applies the exact -> longest-prefix-on-domain.action ->
// domain-wildcard -> fallback order (§4.5) against s for in, returning the
// matched Handler and whether anything matched at all.
//
// "Longest-prefix" walks in.Name's dot-separated segments from most to
// least specific (e.g. for "timer.set.recurring": that full name first as
// the exact match, then "timer.set", then "timer") so a handler
// registered for a coarser literal pattern still catches a more specific
// intent name nothing more exact claimed.
func (s *snapshot) resolve(in types.Intent) (Handler, bool) {
	lang := in.Language

	for _, prefix := range prefixesOf(in.Name) {
		if entries, ok := s.exact[prefix]; ok {
			if h, ok := pickByLanguage(entries, lang); ok {
				return h, true
			}
		}
	}

	domain := in.Domain()
	if entries, ok := s.wildcard[domain]; ok {
		if h, ok := pickByLanguage(entries, lang); ok {
			return h, true
		}
	}

	if s.fallback != nil {
		return s.fallback, true
	}
	return nil, false
}

// prefixesOf returns name and each of its dot-separated prefixes, longest
// (name itself) first.
func prefixesOf(name string) []string {
	segments := strings.Split(name, ".")
	out := make([]string, 0, len(segments))
	for i := len(segments); i > 0; i-- {
		out = append(out, strings.Join(segments[:i], "."))
	}
	return out
}

func pickByLanguage(entries []Entry, lang string) (Handler, bool) {
	for _, e := range entries {
		if e.matchesLanguage(lang) {
			return e.Handler, true
		}
	}
	return nil, false
}
