// Package retry provides the retry policies that bound how hard safeconn
// tries to establish a physical connection.
//
// The policy is consulted before every connection attempt, including the
// first one, so a policy that never permits an attempt makes every
// reconnection fail immediately.
package retry

import (
	"math"
	"math/rand"
	"time"
)

// Retryer decides whether another connection attempt may be made and how
// long to wait before it.
type Retryer interface {
	// NextDelay returns the delay before the given attempt and whether the
	// attempt may be made at all. attempt is 0-based (0 for the first
	// attempt, 1 for the first retry, and so on). The delay is ignored for
	// attempt 0; the first attempt is never delayed.
	NextDelay(attempt int, lastErr error) (time.Duration, bool)

	// Reset resets the retry strategy state (called on successful connection)
	Reset()
}

// Func adapts a plain function to the Retryer interface. It is the easiest
// way to supply a custom policy:
//
//	cfg.Retryer = retry.Func(func(attempt int, lastErr error) (time.Duration, bool) {
//		return 100 * time.Millisecond, attempt < 5
//	})
type Func func(attempt int, lastErr error) (time.Duration, bool)

// NextDelay implements Retryer
func (f Func) NextDelay(attempt int, lastErr error) (time.Duration, bool) {
	return f(attempt, lastErr)
}

// Reset implements Retryer
func (f Func) Reset() {}

// Once permits exactly one connection attempt with no delay. It is the
// default policy.
type Once struct{}

// NextDelay implements Retryer
func (Once) NextDelay(attempt int, lastErr error) (time.Duration, bool) {
	return 0, attempt == 0
}

// Reset implements Retryer
func (Once) Reset() {}

// ExponentialBackoffRetryer implements exponential backoff with jitter
type ExponentialBackoffRetryer struct {
	// InitialDelay is the initial retry delay
	InitialDelay time.Duration

	// MaxDelay is the maximum retry delay
	MaxDelay time.Duration

	// Multiplier is the exponential backoff multiplier
	Multiplier float64

	// MaxAttempts is the maximum number of connection attempts (0 for unbounded)
	MaxAttempts int

	// Jitter adds randomness to the delay to avoid thundering herd
	Jitter bool

	// JitterFactor is the maximum jitter as a fraction of the delay (0.0 to 1.0)
	JitterFactor float64
}

// NewExponentialBackoffRetryer creates a new exponential backoff retryer with defaults
func NewExponentialBackoffRetryer() *ExponentialBackoffRetryer {
	return &ExponentialBackoffRetryer{
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  0, // unbounded by default
		Jitter:       true,
		JitterFactor: 0.3,
	}
}

// NextDelay implements Retryer
func (r *ExponentialBackoffRetryer) NextDelay(attempt int, lastErr error) (time.Duration, bool) {
	if r.MaxAttempts > 0 && attempt >= r.MaxAttempts {
		return 0, false
	}

	if attempt == 0 {
		return 0, true
	}

	// Delay grows from the first retry, not the first attempt.
	delay := float64(r.InitialDelay) * math.Pow(r.Multiplier, float64(attempt-1))

	if delay > float64(r.MaxDelay) {
		delay = float64(r.MaxDelay)
	}

	if r.Jitter && r.JitterFactor > 0 {
		// Using math/rand is acceptable for jitter in retry delays (non-cryptographic use)
		//nolint:gosec // math/rand is fine for jitter, not security-critical
		jitter := delay * r.JitterFactor * (2*rand.Float64() - 1) // -jitterFactor to +jitterFactor
		delay += jitter
		if delay < 0 {
			delay = float64(r.InitialDelay)
		}
	}

	return time.Duration(delay), true
}

// Reset implements Retryer
func (r *ExponentialBackoffRetryer) Reset() {
	// No state to reset for exponential backoff
}

// FixedDelayRetryer implements a simple fixed delay retry retryer
type FixedDelayRetryer struct {
	// Delay is the fixed delay between attempts
	Delay time.Duration

	// MaxAttempts is the maximum number of connection attempts (0 for unbounded)
	MaxAttempts int
}

// NewFixedDelayRetryer creates a new fixed delay retryer
func NewFixedDelayRetryer(delay time.Duration, maxAttempts int) *FixedDelayRetryer {
	return &FixedDelayRetryer{
		Delay:       delay,
		MaxAttempts: maxAttempts,
	}
}

// NextDelay implements Retryer
func (r *FixedDelayRetryer) NextDelay(attempt int, lastErr error) (time.Duration, bool) {
	if r.MaxAttempts > 0 && attempt >= r.MaxAttempts {
		return 0, false
	}
	if attempt == 0 {
		return 0, true
	}
	return r.Delay, true
}

// Reset implements Retryer
func (r *FixedDelayRetryer) Reset() {
	// No state to reset for fixed delay
}
