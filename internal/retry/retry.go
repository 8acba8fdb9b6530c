// Package retry provides a bounded sequential retry wrapper for fallible
// operations, primarily network calls.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	baseDelay = 500 * time.Millisecond
	maxDelay  = 8 * time.Second
)

// Do invokes fn up to attempts times, sleeping with exponential backoff
// between failures. Success on any attempt short-circuits the rest. When all
// attempts fail, the last error is returned wrapped with the label and the
// attempt count. Context cancellation aborts the backoff sleep.
func Do[T any](ctx context.Context, label string, attempts int, log zerolog.Logger, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := backoff(attempt - 1)
			log.Debug().
				Str("op", label).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("retrying after failure")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		log.Debug().Err(err).Str("op", label).Int("attempt", attempt).Msg("attempt failed")
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", label, attempts, lastErr)
}

// backoff returns the delay before retry number n (n >= 1): 500ms doubling,
// capped at 8s.
func backoff(n int) time.Duration {
	d := baseDelay << (n - 1)
	if d > maxDelay {
		return maxDelay
	}
	return d
}
