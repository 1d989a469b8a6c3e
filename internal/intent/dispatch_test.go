package intent_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/voiced/internal/convctx"
	"github.com/MrWong99/voiced/internal/errkind"
	"github.com/MrWong99/voiced/internal/intent"
	"github.com/MrWong99/voiced/pkg/types"
)

func TestDispatch_HandlerErrorIsReturned(t *testing.T) {
	r := intent.New(nil)
	wantErr := errors.New("boom")
	r.AddHandler(intent.Entry{Pattern: "timer.set", Handler: func(ctx context.Context, in types.Intent, session *convctx.Context) (types.IntentResult, error) {
		return types.IntentResult{Success: false}, wantErr
	}})

	res, err := intent.Dispatch(context.Background(), r, types.Intent{Name: "timer.set"}, newTestSession(), 0)
	assert.ErrorIs(t, err, wantErr)
	assert.False(t, res.Success)
	assert.Equal(t, wantErr, res.Error)
}

func TestDispatch_TimeoutSynthesisesApology(t *testing.T) {
	r := intent.New(nil)
	release := make(chan struct{})
	r.AddHandler(intent.Entry{Pattern: "timer.set", Handler: func(ctx context.Context, in types.Intent, session *convctx.Context) (types.IntentResult, error) {
		select {
		case <-ctx.Done():
		case <-release:
		}
		return types.IntentResult{}, ctx.Err()
	}})
	defer close(release)

	res, err := intent.Dispatch(context.Background(), r, types.Intent{Name: "timer.set"}, newTestSession(), 10*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errkind.Is(err, errkind.HandlerTimeout))
	assert.False(t, res.Success)
	assert.True(t, res.ShouldSpeak)
	assert.NotEmpty(t, res.Text)
}

func TestDispatch_DefaultTimeoutAppliedWhenNonPositive(t *testing.T) {
	r := intent.New(nil)
	r.AddHandler(intent.Entry{Pattern: "timer.set", Handler: func(ctx context.Context, in types.Intent, session *convctx.Context) (types.IntentResult, error) {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(intent.DefaultHandlerTimeout), deadline, time.Second)
		return types.IntentResult{Success: true}, nil
	}})

	_, err := intent.Dispatch(context.Background(), r, types.Intent{Name: "timer.set"}, newTestSession(), 0)
	require.NoError(t, err)
}
