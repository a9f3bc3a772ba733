// Package reliability provides bounded retry with exponential backoff for
// the audit storage path. Losing an audit write is a compliance fault, so
// transient storage errors are retried a fixed number of times and then
// surfaced loudly to the caller.
package reliability

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig holds configuration for retry operations.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the
	// initial attempt.
	MaxAttempts int
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries.
	MaxDelay time.Duration
	// Multiplier for exponential backoff.
	Multiplier float64
	// Jitter adds randomness to delay calculations, range [0,1].
	Jitter float64
	// ShouldRetry determines if an error should trigger a retry.
	ShouldRetry func(error) bool
	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryConfig returns the default retry configuration for audit
// storage operations.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
		ShouldRetry:  func(err error) bool { return err != nil },
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Multiplier <= 0 {
		c.Multiplier = d.Multiplier
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		c.Jitter = d.Jitter
	}
	if c.ShouldRetry == nil {
		c.ShouldRetry = d.ShouldRetry
	}
	return c
}

// NextDelay calculates the delay before the given 0-indexed retry attempt.
func (c RetryConfig) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}
	delay := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt))
	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if c.Jitter > 0 {
		jitterRange := delay * c.Jitter
		delay += (rand.Float64() - 0.5) * 2 * jitterRange
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Do runs op until it succeeds, the attempt budget is exhausted, or the
// context is cancelled. The last error is returned on exhaustion.
func Do(ctx context.Context, config RetryConfig, op func(ctx context.Context) error) error {
	config = config.withDefaults()

	var lastErr error
	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := config.NextDelay(attempt - 1)
			if config.OnRetry != nil {
				config.OnRetry(attempt, delay, lastErr)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !config.ShouldRetry(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
