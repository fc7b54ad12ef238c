package errors

import (
	"math/rand"
	"time"
)

// BackoffPolicy decides whether a failed remote call is retried and how long
// to wait before the next attempt. It is a pure decision component: callers
// own the loop, the policy owns the schedule.
type BackoffPolicy struct {
	// BaseDelay is the wait after the first failed attempt.
	BaseDelay time.Duration

	// MaxDelay caps the wait between attempts.
	MaxDelay time.Duration

	// Multiplier is the factor by which the delay grows per attempt.
	Multiplier float64

	// Jitter is the fraction of the delay randomized in both directions
	// (0.2 means ±20%). Zero disables jitter.
	Jitter float64

	// MaxAttempts is the total attempt budget, including the first call.
	MaxAttempts int
}

// DefaultBackoffPolicy returns the standard retry tuning for remote calls.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.2,
		MaxAttempts: 5,
	}
}

// NextDelay reports the wait after failed attempt number `attempt` (1-based)
// before trying again. ok is false when the call must not be retried: the
// error kind is non-retryable or the attempt budget is spent.
//
// With the default multiplier and jitter the sequence of delays is
// non-decreasing: the growth factor outweighs the jitter band, and once the
// cap is reached every subsequent delay equals MaxDelay.
func (p BackoffPolicy) NextDelay(attempt int, kind Kind) (time.Duration, bool) {
	if !kind.Retryable() {
		return 0, false
	}
	if attempt < 1 || attempt >= p.MaxAttempts {
		return 0, false
	}

	delay := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= p.Multiplier
	}

	if p.Jitter > 0 {
		delay *= 1 + p.Jitter*(2*rand.Float64()-1)
	}

	d := time.Duration(delay)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d < 0 {
		d = 0
	}
	return d, true
}
