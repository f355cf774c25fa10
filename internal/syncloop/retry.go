package syncloop

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryConfig configures exponential backoff for transient RPC failures
// (spec §7: "the sync loop retries ... and does not self-abort on
// isolated failures"). Grounded on the teacher's chain.RetryConfig.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig mirrors the teacher's default: 4 attempts (1
// initial + 3 retries) with nominal delays 1s, 2s, 4s, each jittered to
// between half and the full value.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 4, BaseDelay: time.Second, MaxDelay: 4 * time.Second}
}

// Retry executes operation with exponential backoff, honouring ctx
// cancellation between attempts. Every health check and sync pass is
// transient-error tolerant per spec §7; there is no notion of a
// non-retryable error at this layer, since RPC failures here are always
// environmental rather than invariant violations.
func Retry(ctx context.Context, cfg RetryConfig, operation func() error) error {
	var err error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err = operation(); err == nil {
			return nil
		}

		if attempt < cfg.MaxAttempts-1 {
			delay := backoffDelay(attempt, cfg.BaseDelay, cfg.MaxDelay)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return fmt.Errorf("syncloop: operation failed after %d attempts: %w", cfg.MaxAttempts, err)
}

func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	delay := base * (1 << attempt)
	if delay > max {
		delay = max
	}
	half := delay / 2
	if half <= 0 {
		return delay
	}
	return half + rand.N(half)
}
