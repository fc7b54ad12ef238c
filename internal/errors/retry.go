package errors

import (
	"context"
	"fmt"
	"time"
)

// Retry executes a function under the given backoff policy.
// Non-retryable failures are returned unchanged on first occurrence; a spent
// retry budget wraps the last error. If the context is cancelled, it returns
// the context error immediately.
func Retry(ctx context.Context, policy BackoffPolicy, fn func() error) error {
	_, err := RetryWithResult(ctx, policy, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult executes a function that returns a value under the given
// backoff policy. The error kind decides retry eligibility; the policy
// decides the schedule. Delays honor context cancellation.
func RetryWithResult[T any](ctx context.Context, policy BackoffPolicy, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; ; attempt++ {
		// Check context before attempting
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		kind := KindOf(err)
		delay, ok := policy.NextDelay(attempt, kind)
		if !ok {
			if !kind.Retryable() {
				// Terminal on first occurrence; surface as-is
				return zero, err
			}
			break
		}

		// Wait before retrying (with context cancellation support)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, fmt.Errorf("failed after %d attempts: %w", policy.MaxAttempts, lastErr)
}
