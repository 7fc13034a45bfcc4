package util

import (
	"context"
	"time"
)

// Retry runs fn until it succeeds, making at most maxAttempts calls and
// doubling the pause between calls starting from baseDelay. Venue connects
// and other flaky upstream calls go through this helper. When every attempt
// fails the last error is returned; a context cancelled while pausing
// returns ctx.Err() instead.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	var lastErr error
	pause := baseDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
		pause *= 2
	}

	return lastErr
}
