package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rescrv/claudius/xerrors"
)

func TestRetryPolicySucceedsWithoutRetry(t *testing.T) {
	policy := NewRetryPolicy(3, time.Millisecond, 10*time.Millisecond, 2.0, 1000, 1000)
	calls := 0
	err := policy.Do(context.Background(), func(retryAfter *time.Duration) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestRetryPolicyRetriesRetryableErrors(t *testing.T) {
	policy := NewRetryPolicy(3, time.Millisecond, 10*time.Millisecond, 2.0, 1000, 1000)
	calls := 0
	err := policy.Do(context.Background(), func(retryAfter *time.Duration) error {
		calls++
		if calls < 3 {
			return xerrors.API(503, "overloaded_error", "busy", "")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryPolicyStopsOnNonRetryableError(t *testing.T) {
	policy := NewRetryPolicy(3, time.Millisecond, 10*time.Millisecond, 2.0, 1000, 1000)
	calls := 0
	err := policy.Do(context.Background(), func(retryAfter *time.Duration) error {
		calls++
		return xerrors.InvalidRequest("bad params")
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestRetryPolicyExhaustsAndWrapsLastError(t *testing.T) {
	policy := NewRetryPolicy(2, time.Millisecond, 5*time.Millisecond, 2.0, 1000, 1000)
	calls := 0
	err := policy.Do(context.Background(), func(retryAfter *time.Duration) error {
		calls++
		return xerrors.API(429, "rate_limit_error", "slow down", "")
	})
	require.Error(t, err)
	require.Equal(t, 3, calls) // 1 original + 2 retries
}

func TestRetryPolicyRespectsContextCancellation(t *testing.T) {
	policy := NewRetryPolicy(5, time.Hour, time.Hour, 2.0, 1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := policy.Do(ctx, func(retryAfter *time.Duration) error {
		calls++
		return xerrors.API(500, "internal_error", "oops", "")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}
