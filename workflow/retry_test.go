package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/shipdex/core"
)

func fastPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		InitialInterval: time.Millisecond,
		Multiplier:      2.0,
		MaxInterval:     10 * time.Millisecond,
		MaxAttempts:     maxAttempts,
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()
	assert.Equal(t, time.Second, policy.InitialInterval)
	assert.Equal(t, 2.0, policy.Multiplier)
	assert.Equal(t, 60*time.Second, policy.MaxInterval)
	assert.Equal(t, 3, policy.MaxAttempts)
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Execute(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryTransientThenSuccess(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("%w: registry unreachable", core.ErrTransientFetch)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPermanentErrorNoRetry(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Execute(context.Background(), func() error {
		calls++
		return fmt.Errorf("%w: not base64", core.ErrInvalidPayload)
	})
	require.ErrorIs(t, err, core.ErrInvalidPayload)
	assert.Equal(t, 1, calls, "permanent errors must not consume retries")
}

func TestRetryExhaustionReturnsLastError(t *testing.T) {
	calls := 0
	transient := fmt.Errorf("%w: connection reset", core.ErrTransientFetch)
	err := fastPolicy(3).Execute(context.Background(), func() error {
		calls++
		return transient
	})
	require.ErrorIs(t, err, core.ErrTransientFetch)
	assert.Equal(t, 3, calls)
}

func TestRetryContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{
		InitialInterval: time.Hour,
		Multiplier:      2.0,
		MaxInterval:     time.Hour,
		MaxAttempts:     3,
	}

	done := make(chan error, 1)
	go func() {
		done <- policy.Execute(ctx, func() error {
			return fmt.Errorf("%w: flaky", core.ErrTransientFetch)
		})
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}

func TestRetryRejectsEmptyPolicy(t *testing.T) {
	err := RetryPolicy{}.Execute(context.Background(), func() error {
		return errors.New("should not run")
	})
	assert.ErrorIs(t, err, ErrInvalidRetryPolicy)
}
