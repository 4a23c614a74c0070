package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func retryAll(error) Action { return Retry }
func stopAll(error) Action  { return Stop }

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	val, err := Do(context.Background(), Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}, retryAll, func() (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
}

func TestDo_RetriesTransient(t *testing.T) {
	attempts := 0
	val, err := Do(context.Background(), Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}, retryAll, func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", errTransient
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, attempts)
}

func TestDo_StopWrapsPermanent(t *testing.T) {
	permanent := errors.New("bad input")
	attempts := 0
	_, err := Do(context.Background(), Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}, stopAll, func() (int, error) {
		attempts++
		return 0, permanent
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	var permErr *PermanentError
	assert.ErrorAs(t, err, &permErr)
	assert.ErrorIs(t, err, permanent)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	_, err := Do(context.Background(), Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}, retryAll, func() (int, error) {
		attempts++
		return 0, errTransient
	})
	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, attempts)

	var permErr *PermanentError
	assert.False(t, errors.As(err, &permErr), "exhausted transient error must stay transient")
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, Policy{MaxAttempts: 3, InitialBackoff: time.Hour}, retryAll, func() (int, error) {
		return 0, errTransient
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDo_OnRetryObservesBackoffDoubling(t *testing.T) {
	var backoffs []time.Duration
	policy := Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		OnRetry: func(_ int, _ error, backoff time.Duration) {
			backoffs = append(backoffs, backoff)
		},
	}
	_, _ = Do(context.Background(), policy, retryAll, func() (int, error) {
		return 0, errTransient
	})

	require.Len(t, backoffs, 2)
	assert.Equal(t, time.Millisecond, backoffs[0])
	assert.Equal(t, 2*time.Millisecond, backoffs[1])
}
