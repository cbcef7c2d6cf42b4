package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/GriffinCanCode/trapcam/internal/errors"
)

func fastRetry(n int) RetryConfig {
	return RetryConfig{MaxRetries: n, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
}

// retry runs fn through RetryWithResult, discarding the value.
func retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

func TestRetrySucceedsFirst(t *testing.T) {
	calls := 0
	err := retry(context.Background(), DefaultRetryConfig(), func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Errorf("retry() = %v after %d calls, want nil after 1", err, calls)
	}
}

func TestRetryRecoversFromHardwareError(t *testing.T) {
	calls := 0
	got, err := RetryWithResult(context.Background(), fastRetry(3), func() (string, error) {
		calls++
		if calls < 3 {
			return "", apperrors.New(apperrors.Hardware, "camera busy")
		}
		return "frame", nil
	})

	if err != nil || got != "frame" {
		t.Errorf("RetryWithResult() = (%q, %v), want (frame, nil)", got, err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	calls := 0
	hwErr := apperrors.New(apperrors.Hardware, "sensor gone")

	err := retry(context.Background(), fastRetry(2), func() error {
		calls++
		return hwErr
	})

	if calls != 3 {
		t.Errorf("calls = %d, want initial + 2 retries", calls)
	}
	if !errors.Is(err, hwErr) || !apperrors.IsCode(err, apperrors.Hardware) {
		t.Fatalf("retry() = %v, want the hardware error", err)
	}
	ae, _ := apperrors.As(err)
	if ae.Metadata["attempts"] != "3" {
		t.Errorf("attempts metadata = %q, want 3", ae.Metadata["attempts"])
	}
	if hwErr.Metadata != nil {
		t.Error("exhaustion mutated the caller's error")
	}
}

func TestRetryExhaustedPlainError(t *testing.T) {
	flaky := errors.New("usb reset")
	cfg := fastRetry(1)
	cfg.IsRetryable = func(error) bool { return true }

	err := retry(context.Background(), cfg, func() error { return flaky })
	if !errors.Is(err, flaky) || err.Error() != "gave up after 2 attempts: usb reset" {
		t.Errorf("retry() = %v", err)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"dimension mismatch", apperrors.New(apperrors.DimensionMismatch, "64x40 vs 128x80")},
		{"plain error", errors.New("unclassified")},
		{"cancelled", context.Canceled},
	}

	for _, tt := range tests {
		calls := 0
		err := retry(context.Background(), fastRetry(5), func() error {
			calls++
			return tt.err
		})
		if err != tt.err {
			t.Errorf("%s: retry() = %v, want %v unchanged", tt.name, err, tt.err)
		}
		if calls != 1 {
			t.Errorf("%s: calls = %d, want 1", tt.name, calls)
		}
	}
}

func TestRetryOnRetryHook(t *testing.T) {
	cfg := fastRetry(2)
	var attempts []int
	cfg.OnRetry = func(attempt int, _ error, _ time.Duration) { attempts = append(attempts, attempt) }

	_ = retry(context.Background(), cfg, func() error {
		return apperrors.New(apperrors.Hardware, "fail")
	})

	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", attempts)
	}
}

func TestRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxRetries: 10, BaseDelay: time.Hour, MaxDelay: time.Hour}
	cfg.OnRetry = func(int, error, time.Duration) { cancel() }

	err := retry(ctx, cfg, func() error {
		return apperrors.New(apperrors.Hardware, "fail")
	})
	if err != context.Canceled {
		t.Errorf("retry() = %v, want context.Canceled unwrapped", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{apperrors.New(apperrors.Hardware, "x"), true},
		{apperrors.Wrap(errors.New("io"), apperrors.Hardware, "x"), true},
		{apperrors.New(apperrors.ActionFailed, "x"), false},
		{apperrors.New(apperrors.ConfigInvalid, "x"), false},
		{context.DeadlineExceeded, false},
	}

	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestBackoff(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 300 * time.Millisecond},
		{60, 300 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := cfg.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: time.Minute, JitterFactor: 0.2}
	for range 50 {
		if d := cfg.Backoff(1); d < 900*time.Millisecond || d > 1100*time.Millisecond {
			t.Fatalf("Backoff(1) = %v, want within 10%% of 1s", d)
		}
	}
}
