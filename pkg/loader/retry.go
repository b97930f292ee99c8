package loader

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// DefaultMaxAttempts is the number of fetch attempts per page load,
// including the initial request.
const DefaultMaxAttempts = 3

// RetryConfig holds the configuration for retrying a failed batch fetch.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt. Zero retries immediately.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between attempts. Zero means no cap.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64

	// Jitter adds ±20% randomness to each delay.
	Jitter bool
}

// DefaultRetryConfig returns the default retry configuration: three attempts,
// retried immediately.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       DefaultMaxAttempts,
		BackoffMultiplier: 1.0,
	}
}

// ExponentialRetryConfig returns a configuration that spaces attempts out,
// for deployments where immediate retries overload the status endpoint.
func ExponentialRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       DefaultMaxAttempts,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// normalized fills in zero values so a partially specified config behaves.
func (c RetryConfig) normalized() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = 1
	}
	return c
}

// Backoff returns the delay to wait after the given failed attempt
// (1-based) before the next one starts.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	c = c.normalized()
	if c.InitialBackoff <= 0 || attempt < 1 {
		return 0
	}

	backoff := float64(c.InitialBackoff) * math.Pow(c.BackoffMultiplier, float64(attempt-1))
	if c.MaxBackoff > 0 && backoff > float64(c.MaxBackoff) {
		backoff = float64(c.MaxBackoff)
	}

	if c.Jitter {
		backoff *= 0.8 + rand.Float64()*0.4
	}

	return time.Duration(backoff)
}

// wait blocks for d or until ctx is done. A zero delay still reports a
// cancelled context.
func wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
