package backoff

import (
	"context"
	"errors"
	"time"

	"fracvault/pkg/platform/sentinel"
)

// Policy controls the retry loop. Delay doubles after every rate-limited
// attempt; nothing else is retried here.
type Policy struct {
	InitialDelay time.Duration
	MaxAttempts  int
}

// Default matches the read path against public RPC endpoints: 500ms, 1s, 2s, 4s.
var Default = Policy{
	InitialDelay: 500 * time.Millisecond,
	MaxAttempts:  4,
}

// Retry runs fn, retrying with exponential delay only when it fails with
// sentinel.ErrRateLimited. Any other error, or exhausting the attempt ceiling,
// returns the last error unchanged.
func Retry(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p = Default
	}

	delay := p.InitialDelay
	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil || !errors.Is(err, sentinel.ErrRateLimited) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
