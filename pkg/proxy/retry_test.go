package proxy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/caching-proxy/pkg/cache"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        40 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", config.MaxAttempts)
	}
	if config.InitialBackoff != 200*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 200ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 2*time.Second {
		t.Errorf("MaxBackoff = %v, want 2s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(), func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_SuccessAfterRetry(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(), func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_MaxAttemptsExhausted(t *testing.T) {
	callCount := 0
	testErr := errors.New("persistent error")
	err := retryWithBackoff(context.Background(), fastRetryConfig(), func() error {
		callCount++
		return testErr
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls (MaxAttempts), got %d", callCount)
	}
}

func TestRetryWithBackoff_InvalidRequestNoRetry(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(), func() error {
		callCount++
		return cache.ErrInvalidRequest
	})

	if callCount != 1 {
		t.Errorf("Expected 1 call (no retry for invalid requests), got %d", callCount)
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("Should not return ErrRetryExhausted when no retry was attempted")
	}
	if !errors.Is(err, cache.ErrInvalidRequest) {
		t.Errorf("Expected original error, got %v", err)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	callCount := 0
	err := retryWithBackoff(ctx, fastRetryConfig(), func() error {
		callCount++
		if callCount == 1 {
			cancel()
		}
		return errors.New("error")
	})

	if err == nil {
		t.Error("Expected error, got nil")
	}
	if callCount >= 3 {
		t.Errorf("Expected fewer than 3 calls due to cancellation, got %d", callCount)
	}
}

func TestRetryWithBackoff_BackoffGrowsWithCap(t *testing.T) {
	timestamps := []time.Time{}
	_ = retryWithBackoff(context.Background(), fastRetryConfig(), func() error {
		timestamps = append(timestamps, time.Now())
		return errors.New("error")
	})

	if len(timestamps) != 3 {
		t.Fatalf("Expected 3 timestamps, got %d", len(timestamps))
	}

	// Jitter is ±20%, so bounds are loose: first delay ~10ms, second ~20ms.
	firstDelay := timestamps[1].Sub(timestamps[0])
	secondDelay := timestamps[2].Sub(timestamps[1])

	if firstDelay < 5*time.Millisecond || firstDelay > 100*time.Millisecond {
		t.Errorf("First retry delay %v outside expected range", firstDelay)
	}
	if secondDelay < 10*time.Millisecond || secondDelay > 200*time.Millisecond {
		t.Errorf("Second retry delay %v outside expected range", secondDelay)
	}
}
