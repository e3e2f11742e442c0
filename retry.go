package ankigen

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy bounds the attempts for one unit of work. Backoff maps a
// 1-based attempt number to the delay before the next attempt. The policy is
// injected into both the generation call and the quality-check call so tests
// can substitute a zero-delay policy.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// DefaultRetryPolicy retries up to 3 attempts with exponential backoff
// starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff: func(attempt int) time.Duration {
			return time.Second << (attempt - 1)
		},
	}
}

// NoDelayPolicy retries up to maxAttempts with no delay between attempts.
func NoDelayPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		Backoff:     func(int) time.Duration { return 0 },
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, or exhausts
// the policy. Each failed attempt is logged with the attempt number and the
// attempts remaining. Waiting respects ctx: a cancelled context surfaces as
// the context's error.
func (p RetryPolicy) Do(ctx context.Context, log *slog.Logger, op string, fn func() error) error {
	max := p.MaxAttempts
	if max < 1 {
		max = 1
	}
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Debug("attempt succeeded", "op", op, "attempt", attempt)
			}
			return nil
		}
		if !retryableError(err) {
			log.Debug("non-retryable failure", "op", op, "attempt", attempt, "error", err)
			return err
		}
		if attempt >= max {
			log.Warn("final attempt failed", "op", op, "attempt", attempt, "error", err)
			return err
		}
		delay := p.Backoff(attempt)
		log.Warn("attempt failed, retrying",
			"op", op,
			"attempt", attempt,
			"remaining", max-attempt,
			"delay", delay,
			"error", err)
		if delay <= 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
