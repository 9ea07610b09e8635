package fetch

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fastRetry keeps test backoff negligible.
var fastRetry = RetryConfig{
	MaxAttempts: 3,
	BaseDelay:   time.Millisecond,
	MaxDelay:    5 * time.Millisecond,
	Multiplier:  2.0,
}

func TestRetryTerminalErrorCalledOnce(t *testing.T) {
	terminalStatuses := []int{400, 401, 403, 404, 422}

	for _, status := range terminalStatuses {
		r := NewRetryer(fastRetry, nil, nil)
		calls := 0
		_, err := RetryValue(context.Background(), r, "test.op", func(ctx context.Context) (int, error) {
			calls++
			return 0, &RemoteError{Op: "test.op", Status: status, Message: "nope"}
		})
		if err == nil {
			t.Fatalf("status %d: expected error", status)
		}
		if calls != 1 {
			t.Errorf("status %d: operation called %d times, want 1", status, calls)
		}
	}
}

func TestRetryRetryableExhaustsAttempts(t *testing.T) {
	r := NewRetryer(fastRetry, nil, nil)
	calls := 0
	underlying := &RemoteError{Op: "test.op", Status: 500, Message: "boom"}

	_, err := RetryValue(context.Background(), r, "test.op", func(ctx context.Context) (int, error) {
		calls++
		return 0, underlying
	})
	if calls != 3 {
		t.Errorf("operation called %d times, want 3", calls)
	}
	if !errors.Is(err, underlying) {
		t.Errorf("expected underlying error to be surfaced, got %v", err)
	}
}

func TestRetryStopsOnFirstSuccess(t *testing.T) {
	r := NewRetryer(fastRetry, nil, nil)
	calls := 0

	got, err := RetryValue(context.Background(), r, "test.op", func(ctx context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", &RemoteError{Op: "test.op", Status: 429, Message: "rate limited"}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("result = %q, want ok", got)
	}
	if calls != 2 {
		t.Errorf("operation called %d times, want 2", calls)
	}
}

func TestRetryBreakerOpenSkipsRemoteCall(t *testing.T) {
	reg := NewBreakerRegistry(BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Hour})
	r := NewRetryer(fastRetry, reg, nil)
	ctx := context.Background()

	// Trip the breaker.
	_ = r.Do(ctx, "test.op", func(ctx context.Context) error {
		return &RemoteError{Op: "test.op", Status: 401, Message: "unauthorized"}
	})
	if got := reg.Get("test.op").State(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}

	calls := 0
	err := r.Do(ctx, "test.op", func(ctx context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if calls != 0 {
		t.Errorf("operation called %d times while breaker open, want 0", calls)
	}
}

func TestRetryAttemptsCompoundBreakerFailures(t *testing.T) {
	// Three retryable attempts from one logical call reach a breaker
	// threshold of three on their own.
	reg := NewBreakerRegistry(BreakerConfig{FailureThreshold: 3, RecoveryTimeout: time.Hour})
	r := NewRetryer(fastRetry, reg, nil)

	_ = r.Do(context.Background(), "test.op", func(ctx context.Context) error {
		return &RemoteError{Op: "test.op", Status: 500, Message: "boom"}
	})
	if got := reg.Get("test.op").State(); got != StateOpen {
		t.Errorf("state = %v, want open after one exhausted logical call", got)
	}
}

func TestRetryContextCancelledDuringBackoff(t *testing.T) {
	cfg := fastRetry
	cfg.BaseDelay = time.Minute
	cfg.MaxDelay = time.Minute
	r := NewRetryer(cfg, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := RetryValue(ctx, r, "test.op", func(ctx context.Context) (int, error) {
		return 0, &RemoteError{Op: "test.op", Status: 500, Message: "boom"}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBackoffGrowthAndCap(t *testing.T) {
	r := NewRetryer(RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    300 * time.Millisecond,
		Multiplier:  2.0,
	}, nil, nil)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 300 * time.Millisecond}, // capped: would be 400ms
		{4, 300 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := r.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	r := NewRetryer(RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
		Multiplier:  2.0,
		Jitter:      true,
	}, nil, nil)

	// Jitter adds 0..1x the computed delay.
	for i := 0; i < 50; i++ {
		got := r.backoff(1)
		if got < 100*time.Millisecond || got > 200*time.Millisecond {
			t.Fatalf("backoff(1) = %v, want within [100ms, 200ms]", got)
		}
	}
}
