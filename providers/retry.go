package providers

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/jbelanger/exitbook/internal/xerrors"
)

// RetryPolicy implements exponential backoff with jitter for transient
// and rate-limit errors. Validation and domain errors are never
// retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy mirrors typical exchange/explorer API guidance: a
// handful of attempts, starting small, capped well under the per-call
// timeout.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: 200 * time.Millisecond, MaxDelay: 10 * time.Second}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	backoff := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if backoff > float64(p.MaxDelay) {
		backoff = float64(p.MaxDelay)
	}
	jitter := backoff * (0.5 + rand.Float64()*0.5)
	return time.Duration(jitter)
}

// Do runs fn, retrying on retryable errors per the policy. It does not
// itself touch the circuit breaker or health tracker; the Manager wraps
// Do with those side effects so this type stays a pure retry loop.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.delay(attempt - 1)):
			}
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !xerrors.Retryable(err) {
			return err
		}
	}
	return lastErr
}
