// Package resilience keeps the trap running through a flaky camera and a broken capture tool:
// retries with backoff around acquisition, and a circuit breaker around the capture action.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	apperrors "github.com/GriffinCanCode/trapcam/internal/errors"
)

const (
	DefaultMaxRetries   = 3
	DefaultBaseDelay    = 2 * time.Second
	DefaultMaxDelay     = time.Minute
	DefaultJitterFactor = 0.2

	// maxShift caps the exponent so BaseDelay<<n cannot overflow.
	maxShift = 6
)

// RetryConfig is the policy applied when reopening the camera fails.
type RetryConfig struct {
	MaxRetries   int // attempts after the first
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64 // spread as a fraction of the delay, centred on it
	IsRetryable  func(error) bool
	// OnRetry runs before each wait with the 1-based number of the attempt that failed.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryConfig allows three reopen attempts starting two seconds apart.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   DefaultMaxRetries,
		BaseDelay:    DefaultBaseDelay,
		MaxDelay:     DefaultMaxDelay,
		JitterFactor: DefaultJitterFactor,
		IsRetryable:  IsRetryable,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.JitterFactor < 0 {
		c.JitterFactor = DefaultJitterFactor
	}
	if c.IsRetryable == nil {
		c.IsRetryable = IsRetryable
	}
	return c
}

// IsRetryable reports whether err is worth another acquisition. Only hardware
// failures are; cancellation and contract violations are not.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return apperrors.IsRetryable(err)
}

// Backoff returns the wait after the given failed attempt (1-based): BaseDelay
// doubled per attempt, capped at MaxDelay, then jittered.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	shift := min(max(attempt-1, 0), maxShift)
	d := min(c.BaseDelay<<shift, c.MaxDelay)
	if c.JitterFactor == 0 {
		return d
	}
	spread := float64(d) * c.JitterFactor * (rand.Float64() - 0.5)
	return d + time.Duration(spread)
}

// RetryWithResult calls fn until it succeeds, fails with a non-retryable error, or
// has failed MaxRetries+1 times. Exhaustion returns the last error annotated with the
// attempt count; cancellation returns ctx.Err() unwrapped.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	cfg = cfg.withDefaults()
	var zero T

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := fn()
		switch {
		case err == nil:
			return v, nil
		case !cfg.IsRetryable(err):
			return zero, err
		case attempt > cfg.MaxRetries:
			return zero, exhausted(err, attempt)
		}

		delay := cfg.Backoff(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

func exhausted(err error, attempts int) error {
	if ae, ok := apperrors.As(err); ok {
		return apperrors.Wrapf(err, ae.Code, "gave up after %d attempts", attempts).
			WithMetadata("attempts", strconv.Itoa(attempts))
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
