package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOnce(t *testing.T) {
	t.Run("permits only the first attempt", func(t *testing.T) {
		retryer := Once{}

		delay, ok := retryer.NextDelay(0, nil)
		assert.True(t, ok)
		assert.Equal(t, time.Duration(0), delay)

		_, ok = retryer.NextDelay(1, errors.New("connect failed"))
		assert.False(t, ok)

		_, ok = retryer.NextDelay(2, nil)
		assert.False(t, ok)
	})
}

func TestFunc(t *testing.T) {
	t.Run("forwards to the wrapped function", func(t *testing.T) {
		var seenAttempt int
		var seenErr error
		retryer := Func(func(attempt int, lastErr error) (time.Duration, bool) {
			seenAttempt = attempt
			seenErr = lastErr
			return 42 * time.Millisecond, true
		})

		wantErr := errors.New("boom")
		delay, ok := retryer.NextDelay(3, wantErr)
		assert.True(t, ok)
		assert.Equal(t, 42*time.Millisecond, delay)
		assert.Equal(t, 3, seenAttempt)
		assert.Equal(t, wantErr, seenErr)
	})

	t.Run("never policy declines every attempt", func(t *testing.T) {
		never := Func(func(int, error) (time.Duration, bool) { return 0, false })
		_, ok := never.NextDelay(0, nil)
		assert.False(t, ok)
	})
}

func TestExponentialBackoffRetryer(t *testing.T) {
	t.Run("first attempt is immediate", func(t *testing.T) {
		retryer := NewExponentialBackoffRetryer()

		delay, ok := retryer.NextDelay(0, nil)
		assert.True(t, ok)
		assert.Equal(t, time.Duration(0), delay)
	})

	t.Run("default configuration", func(t *testing.T) {
		retryer := NewExponentialBackoffRetryer()

		// First retry (attempt 1)
		delay, ok := retryer.NextDelay(1, nil)
		assert.True(t, ok)
		assert.GreaterOrEqual(t, delay, 700*time.Millisecond) // 1s - 30% jitter
		assert.LessOrEqual(t, delay, 1300*time.Millisecond)   // 1s + 30% jitter

		// Second retry (attempt 2)
		delay, ok = retryer.NextDelay(2, nil)
		assert.True(t, ok)
		assert.GreaterOrEqual(t, delay, 1400*time.Millisecond) // 2s - 30% jitter
		assert.LessOrEqual(t, delay, 2600*time.Millisecond)    // 2s + 30% jitter

		// Third retry (attempt 3)
		delay, ok = retryer.NextDelay(3, nil)
		assert.True(t, ok)
		assert.GreaterOrEqual(t, delay, 2800*time.Millisecond) // 4s - 30% jitter
		assert.LessOrEqual(t, delay, 5200*time.Millisecond)    // 4s + 30% jitter
	})

	t.Run("without jitter", func(t *testing.T) {
		retryer := &ExponentialBackoffRetryer{
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     1 * time.Second,
			Multiplier:   2.0,
			Jitter:       false,
		}

		delay, ok := retryer.NextDelay(1, nil)
		assert.True(t, ok)
		assert.Equal(t, 100*time.Millisecond, delay)

		delay, ok = retryer.NextDelay(2, nil)
		assert.True(t, ok)
		assert.Equal(t, 200*time.Millisecond, delay)

		delay, ok = retryer.NextDelay(3, nil)
		assert.True(t, ok)
		assert.Equal(t, 400*time.Millisecond, delay)

		delay, ok = retryer.NextDelay(4, nil)
		assert.True(t, ok)
		assert.Equal(t, 800*time.Millisecond, delay)

		// Fifth retry - should hit max delay
		delay, ok = retryer.NextDelay(5, nil)
		assert.True(t, ok)
		assert.Equal(t, 1*time.Second, delay)

		// Sixth retry - should still be at max delay
		delay, ok = retryer.NextDelay(6, nil)
		assert.True(t, ok)
		assert.Equal(t, 1*time.Second, delay)
	})

	t.Run("with max attempts", func(t *testing.T) {
		retryer := &ExponentialBackoffRetryer{
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
			MaxAttempts:  3,
			Jitter:       false,
		}

		for i := 0; i < 3; i++ {
			_, ok := retryer.NextDelay(i, nil)
			assert.True(t, ok, "attempt %d should be permitted", i)
		}

		delay, ok := retryer.NextDelay(3, nil)
		assert.False(t, ok)
		assert.Equal(t, time.Duration(0), delay)
	})

	t.Run("reset does not affect stateless retryer", func(t *testing.T) {
		retryer := NewExponentialBackoffRetryer()
		retryer.Jitter = false // Disable jitter for consistent results

		delay1, _ := retryer.NextDelay(2, nil)
		retryer.Reset()
		delay2, _ := retryer.NextDelay(2, nil)

		assert.Equal(t, delay1, delay2)
	})
}

func TestFixedDelayRetryer(t *testing.T) {
	t.Run("basic operation", func(t *testing.T) {
		retryer := NewFixedDelayRetryer(500*time.Millisecond, 0)

		delay, ok := retryer.NextDelay(0, nil)
		assert.True(t, ok)
		assert.Equal(t, time.Duration(0), delay)

		// All retries should have the same delay
		for i := 1; i < 10; i++ {
			delay, ok = retryer.NextDelay(i, nil)
			assert.True(t, ok)
			assert.Equal(t, 500*time.Millisecond, delay)
		}
	})

	t.Run("with max attempts", func(t *testing.T) {
		retryer := NewFixedDelayRetryer(100*time.Millisecond, 2)

		_, ok := retryer.NextDelay(0, nil)
		assert.True(t, ok)
		_, ok = retryer.NextDelay(1, nil)
		assert.True(t, ok)

		_, ok = retryer.NextDelay(2, nil)
		assert.False(t, ok)
	})
}
