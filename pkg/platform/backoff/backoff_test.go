package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fracvault/pkg/platform/sentinel"
)

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), Default, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_OnlyRateLimitIsRetried(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Retry(context.Background(), Default, func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRetry_RateLimitRetriesUntilCeiling(t *testing.T) {
	p := Policy{InitialDelay: time.Millisecond, MaxAttempts: 3}
	calls := 0
	err := Retry(context.Background(), p, func(context.Context) error {
		calls++
		return sentinel.ErrRateLimited
	})
	assert.ErrorIs(t, err, sentinel.ErrRateLimited)
	assert.Equal(t, 3, calls)
}

func TestRetry_RecoversAfterRateLimit(t *testing.T) {
	p := Policy{InitialDelay: time.Millisecond, MaxAttempts: 4}
	calls := 0
	err := Retry(context.Background(), p, func(context.Context) error {
		calls++
		if calls < 3 {
			return sentinel.ErrRateLimited
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ContextCancelStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := Policy{InitialDelay: time.Minute, MaxAttempts: 2}
	err := Retry(ctx, p, func(context.Context) error {
		return sentinel.ErrRateLimited
	})
	assert.ErrorIs(t, err, context.Canceled)
}
