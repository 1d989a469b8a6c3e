package intent

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/voiced/internal/convctx"
	"github.com/MrWong99/voiced/internal/errkind"
	"github.com/MrWong99/voiced/pkg/types"
)

// DefaultHandlerTimeout is used when a caller of Dispatch passes timeout
// <= 0 (§4.5).
const DefaultHandlerTimeout = 30 * time.Second

// apologyText is spoken back to the user when a handler blows its
// deadline; the workflow still has something to say rather than going
// silent.
const apologyText = "Sorry, that's taking longer than expected."

// Dispatch resolves a handler for in against r's current snapshot — taken
// once at the start of this call, so a concurrent AddHandler/RemoveHandler
// never affects this dispatch once it begins (§4.5) — and runs it under a
// deadline of timeout (DefaultHandlerTimeout if timeout <= 0).
//
// On timeout, Dispatch returns a synthesised apology IntentResult and an
// error classified errkind.HandlerTimeout; it does not wait for the
// handler goroutine, which may still be running when Dispatch returns
// (the handler is responsible for observing ctx cancellation per §4.7,
// same contract as the Action Coordinator's Fn).
func Dispatch(ctx context.Context, r *Registry, in types.Intent, session *convctx.Context, timeout time.Duration) (types.IntentResult, error) {
	snap := r.currentSnapshot()
	handler, found := snap.resolve(in)
	if !found {
		err := errkind.New(errkind.HandlerError, fmt.Errorf("intent: no handler and no fallback configured for %q", in.Name))
		return types.IntentResult{Success: false, Error: err}, err
	}

	if timeout <= 0 {
		timeout = DefaultHandlerTimeout
	}
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result types.IntentResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := handler(hctx, in, session)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && out.result.Error == nil {
			out.result.Error = out.err
		}
		return out.result, out.err
	case <-hctx.Done():
		err := errkind.New(errkind.HandlerTimeout, fmt.Errorf("intent: handler for %q exceeded %s", in.Name, timeout))
		return types.IntentResult{
			Text:        apologyText,
			Success:     false,
			ShouldSpeak: true,
			Error:       err,
		}, err
	}
}
