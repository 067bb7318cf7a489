package dispatch

import (
	"context"
	"time"
)

// withRetries runs fn up to maxAttempts times, waiting backoff between
// attempts. The first success wins; the last error is returned once
// attempts are exhausted. Attempts are strictly sequential: the outcome of
// attempt n decides whether attempt n+1 happens. Context cancellation
// aborts the wait and returns immediately with the last error seen.
func withRetries[T any](ctx context.Context, maxAttempts int, backoff time.Duration, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := fn(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return zero, lastErr
		}
	}

	return zero, lastErr
}
