package fetcher

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy describes how failed fetch attempts are repeated: how many
// attempts in total, how delays grow, and which failures qualify.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// Retryable decides per error whether another attempt is allowed.
	Retryable func(error) bool
}

// DefaultRetryPolicy retries quota and transient failures up to 4 attempts
// with exponential backoff starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    4,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2,
		Retryable:      Retryable,
	}
}

// backoff returns the delay before attempt n (0-based for the first retry),
// with up to 25% random jitter added.
func (p RetryPolicy) backoff(n int) time.Duration {
	d := float64(p.InitialBackoff)
	for i := 0; i < n; i++ {
		d *= p.Multiplier
	}
	if max := float64(p.MaxBackoff); p.MaxBackoff > 0 && d > max {
		d = max
	}
	return time.Duration(d * (1 + 0.25*rand.Float64()))
}

// Do runs fn until it succeeds, fails non-retryably, attempts are exhausted,
// or the context is canceled.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.backoff(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
	}
	return err
}
