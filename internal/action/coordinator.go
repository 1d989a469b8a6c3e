// Package action implements the Action Coordinator (C7): fire-and-forget
// background tasks spawned by intent handlers, one active task per domain
// per session, with a per-domain reject/replace admission policy.
package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/voiced/internal/convctx"
	"github.com/MrWong99/voiced/pkg/types"
)

// Policy is a domain's admission rule when an action is already active.
type Policy string

const (
	// PolicyReject fails the new Start call immediately, leaving the prior
	// action running.
	PolicyReject Policy = "reject"

	// PolicyReplace cancels the prior action and starts the new one.
	PolicyReplace Policy = "replace"
)

// ErrDomainBusy is returned by Start when PolicyReject applies and a
// domain already has an active action for this session.
var ErrDomainBusy = errors.New("action: domain already has an active action")

// ErrNoActiveAction is returned by Cancel when domain has no active action
// for the given session.
var ErrNoActiveAction = errors.New("action: no active action for domain")

// Fn is the body of a background action. It must observe ctx cancellation
// at well-defined suspension points (I/O, sleeps, inter-stage waits) — the
// Coordinator delivers cancellation but cannot interrupt a Fn that ignores
// ctx (§4.7).
type Fn func(ctx context.Context, session *convctx.Context) error

// Coordinator tracks every in-flight action across all sessions and
// enforces per-domain admission policy. It never holds a reference back
// into the ConversationContext beyond what it needs to mediate writes to
// active_actions, breaking the handler-task/context reference cycle
// (SPEC_FULL.md §9).
//
// Grounded on the teacher's Consolidator: a small struct owning a
// sync.Once-guarded Stop and one goroutine per unit of background work,
// generalised here from "one timer per session" to "one cancellable
// goroutine per (session, domain) action".
type Coordinator struct {
	policies map[string]Policy // domain -> policy; absent means PolicyReject

	mu      sync.Mutex
	running map[string]*runningAction // key: sessionID + "/" + domain

	stopOnce sync.Once
}

type runningAction struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Coordinator. policies maps domain name to "reject" or
// "replace"; an unlisted domain defaults to PolicyReject (§4.7).
func New(policies map[string]string) *Coordinator {
	p := make(map[string]Policy, len(policies))
	for domain, v := range policies {
		switch Policy(v) {
		case PolicyReplace:
			p[domain] = PolicyReplace
		default:
			p[domain] = PolicyReject
		}
	}
	return &Coordinator{
		policies: p,
		running:  make(map[string]*runningAction),
	}
}

func (c *Coordinator) policyFor(domain string) Policy {
	if p, ok := c.policies[domain]; ok {
		return p
	}
	return PolicyReject
}

// Start spawns fn as a detached background action in domain, under
// session. name is a short human-readable label for the ActionDescriptor;
// handler identifies the intent handler that requested it.
//
// If domain already has an active action for this session: PolicyReject
// returns ErrDomainBusy without starting fn; PolicyReplace cancels the
// prior action (and waits for it to observe cancellation and exit) before
// starting fn.
func (c *Coordinator) Start(parent context.Context, session *convctx.Context, domain, name, handler string, fn Fn) error {
	policy := c.policyFor(domain)
	desc := types.ActionDescriptor{
		ActionName: name,
		Domain:     domain,
		Handler:    handler,
		StartTime:  time.Now(),
		Status:     types.ActionRunning,
	}

	prior, admitted := session.TryStartAction(desc, policy == PolicyReplace)
	if !admitted {
		return fmt.Errorf("%w: domain %q (prior action %q still running)", ErrDomainBusy, domain, prior.ActionName)
	}

	key := session.SessionID + "/" + domain
	c.mu.Lock()
	if old, ok := c.running[key]; ok {
		old.cancel()
		c.mu.Unlock()
		<-old.done // wait for the replaced task to actually stop
		c.mu.Lock()
	}
	ctx, cancel := context.WithCancel(parent)
	ra := &runningAction{cancel: cancel, done: make(chan struct{})}
	c.running[key] = ra
	c.mu.Unlock()

	go c.run(ctx, ra, session, domain, desc, fn)
	return nil
}

func (c *Coordinator) run(ctx context.Context, ra *runningAction, session *convctx.Context, domain string, desc types.ActionDescriptor, fn Fn) {
	defer close(ra.done)

	err := fn(ctx, session)

	final := desc
	switch {
	case errors.Is(ctx.Err(), context.Canceled) && err != nil:
		final.Status = types.ActionCancelled
	case err != nil:
		final.Status = types.ActionFailed
		slog.Warn("action failed", "domain", domain, "name", desc.ActionName, "err", err)
	default:
		final.Status = types.ActionCompleted
	}

	session.CompleteAction(domain, final)

	c.mu.Lock()
	key := session.SessionID + "/" + domain
	if c.running[key] == ra {
		delete(c.running, key)
	}
	c.mu.Unlock()
}

// ListActive returns every action currently active for session, keyed by
// domain — the administrative list_active(session) surface (§6). Callers
// read session state through the Coordinator rather than reaching into
// convctx.Context directly, though the underlying accessor is the same one
// the Coordinator itself relies on for admission bookkeeping.
func (c *Coordinator) ListActive(session *convctx.Context) map[string]types.ActionDescriptor {
	return session.ActiveActions()
}

// Cancel requests cancellation of the active action in domain for session —
// the administrative cancel(session, domain) surface (§6). It signals the
// running task's context and returns; the task's own run loop (started by
// Start) observes the cancellation, marks the action ActionCancelled, and
// moves it out of active_actions. Returns ErrNoActiveAction if domain has no
// action currently running for session.
func (c *Coordinator) Cancel(session *convctx.Context, domain string) error {
	key := session.SessionID + "/" + domain
	c.mu.Lock()
	ra, ok := c.running[key]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: domain %q", ErrNoActiveAction, domain)
	}
	ra.cancel()
	return nil
}

// ActiveCount returns how many actions the Coordinator currently has
// in flight across all sessions and domains.
func (c *Coordinator) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.running)
}

// Shutdown cancels every in-flight action and waits for them to exit, or
// for ctx's deadline to elapse, whichever comes first. Safe to call
// multiple times.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	var shutdownErr error
	c.stopOnce.Do(func() {
		c.mu.Lock()
		actions := make([]*runningAction, 0, len(c.running))
		for _, ra := range c.running {
			ra.cancel()
			actions = append(actions, ra)
		}
		c.mu.Unlock()

		for _, ra := range actions {
			select {
			case <-ra.done:
			case <-ctx.Done():
				shutdownErr = ctx.Err()
				return
			}
		}
	})
	return shutdownErr
}
