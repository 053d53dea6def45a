package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func recordSleeps(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func TestRetry_Success(t *testing.T) {
	var delays []time.Duration
	config := DefaultRetryConfig()
	config.Sleep = recordSleeps(&delays)
	attempts := 0

	err := Retry(context.Background(), config, func() error {
		attempts++
		if attempts < 2 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
	if len(delays) != 1 || delays[0] != time.Second {
		t.Errorf("Expected a single 1s delay, got %v", delays)
	}
}

func TestRetry_ExponentialDelays(t *testing.T) {
	var delays []time.Duration
	config := DefaultRetryConfig()
	config.Sleep = recordSleeps(&delays)
	attempts := 0

	err := Retry(context.Background(), config, func() error {
		attempts++
		return errors.New("persistent error")
	})

	var retryErr *RetryError
	if !errors.As(err, &retryErr) {
		t.Fatalf("Expected RetryError, got %v", err)
	}
	if retryErr.Attempts != 4 {
		t.Errorf("Expected 4 attempts in error, got %d", retryErr.Attempts)
	}
	if attempts != 4 { // Initial attempt + 3 retries
		t.Errorf("Expected 4 attempts, got %d", attempts)
	}
	expected := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(delays) != len(expected) {
		t.Fatalf("Expected %d delays, got %v", len(expected), delays)
	}
	for i := range expected {
		if delays[i] != expected[i] {
			t.Errorf("Delay %d: expected %v, got %v", i, expected[i], delays[i])
		}
	}
	if retryErr.Unwrap().Error() != "persistent error" {
		t.Errorf("Expected last error to be kept, got %v", retryErr.Unwrap())
	}
}

func TestRetry_NonRetryableError(t *testing.T) {
	config := RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Millisecond,
		BackoffMultiplier: 2.0,
		RetryableErrors: func(err error) bool {
			return err.Error() != "non-retryable"
		},
	}

	attempts := 0
	err := Retry(context.Background(), config, func() error {
		attempts++
		return errors.New("non-retryable")
	})

	if err == nil || err.Error() != "non-retryable" {
		t.Errorf("Expected the original error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestRetry_ContextCancellation(t *testing.T) {
	config := RetryConfig{
		MaxRetries:        5,
		InitialBackoff:    100 * time.Millisecond,
		BackoffMultiplier: 2.0,
		RetryableErrors:   DefaultRetryableErrors,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	attempts := 0
	err := Retry(ctx, config, func() error {
		attempts++
		return errors.New("temporary error")
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt before the deadline, got %d", attempts)
	}
}

func TestDefaultRetryableErrors(t *testing.T) {
	if DefaultRetryableErrors(nil) {
		t.Error("nil must not be retryable")
	}
	if DefaultRetryableErrors(context.Canceled) {
		t.Error("cancellation must not be retryable")
	}
	if DefaultRetryableErrors(ErrCircuitBreakerOpen) {
		t.Error("open circuit must not be retryable")
	}
	if !DefaultRetryableErrors(errors.New("connection reset")) {
		t.Error("transport errors must be retryable")
	}
}

func TestBackoff_Cap(t *testing.T) {
	config := RetryConfig{InitialBackoff: time.Second, BackoffMultiplier: 2, MaxBackoff: 3 * time.Second}
	if d := Backoff(5, config); d != 3*time.Second {
		t.Errorf("Expected capped backoff of 3s, got %v", d)
	}
	config.Jitter = true
	if d := Backoff(0, config); d < time.Second || d > 1100*time.Millisecond {
		t.Errorf("Expected jittered backoff within 10%%, got %v", d)
	}
}
