package common

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy controls the exponential backoff schedule
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Retryable decides whether a failure is worth another attempt.
	// A nil predicate retries everything.
	Retryable func(error) bool
}

// DefaultRetryPolicy 3 attempts, 1s base delay capped at 10s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// Backoff returns the delay before retry number attempt (0-based)
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	delay := p.BaseDelay << uint(attempt)
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}
	return delay
}

// Retry runs fn until it succeeds, the policy is exhausted, a
// non-retryable failure occurs, or ctx is cancelled. The last error
// is returned unchanged so callers keep their typed classification.
func Retry(ctx context.Context, p RetryPolicy, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		delay := p.Backoff(attempt)
		LogWarn("retrying after failure",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(lastErr),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
