package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetry(max int) *RetryConfig {
	return &RetryConfig{
		MaxRetries: max,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}
}

func TestRetryWithValue_EventualSuccess(t *testing.T) {
	calls := 0
	val, result := RetryWithValue(context.Background(), fastRetry(5), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("dial tcp: connection refused")
		}
		return "connected", nil
	})

	if val != "connected" {
		t.Errorf("expected value %q, got %q", "connected", val)
	}
	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", result.Attempts)
	}
	if result.LastError != nil {
		t.Errorf("expected no error, got %v", result.LastError)
	}
}

func TestRetryWithValue_BudgetExhausted(t *testing.T) {
	dialErr := errors.New("no route to host")
	_, result := RetryWithValue(context.Background(), fastRetry(2), func() (int, error) { return 0, dialErr })

	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", result.Attempts)
	}
	if !errors.Is(result.LastError, ErrMaxRetriesExceeded) {
		t.Errorf("expected ErrMaxRetriesExceeded, got %v", result.LastError)
	}
	if !errors.Is(result.LastError, dialErr) {
		t.Errorf("expected wrapped dial error, got %v", result.LastError)
	}
}

func TestRetryWithValue_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	_, result := RetryWithValue(context.Background(), fastRetry(5), func() (int, error) {
		calls++
		return 0, Permanent(errors.New("chain ID mismatch"))
	})

	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
	if !IsPermanent(result.LastError) {
		t.Errorf("expected permanent error, got %v", result.LastError)
	}
}

func TestRetryWithValue_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &RetryConfig{MaxRetries: -1, BaseDelay: time.Hour}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, result := RetryWithValue(ctx, cfg, func() (int, error) { return 0, errors.New("unavailable") })
	if !errors.Is(result.LastError, ErrContextCanceled) {
		t.Errorf("expected ErrContextCanceled, got %v", result.LastError)
	}
}

func TestBackoff_CappedAtMaxDelay(t *testing.T) {
	cfg := &RetryConfig{BaseDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 3 * time.Second},
		{10, 3 * time.Second},
	}
	for _, tt := range tests {
		if got := backoff(cfg, tt.attempt); got != tt.want {
			t.Errorf("backoff(attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestPermanent_Nil(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}
