package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	attempts := 0
	wantErr := errors.New("still broken")

	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return wantErr
	})

	if !errors.Is(err, wantErr) {
		t.Fatalf("expected the last error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoPermanentErrorNotRetried(t *testing.T) {
	permanent := errors.New("not found")
	cfg := fastConfig()
	cfg.PermanentErrors = []error{permanent}

	attempts := 0
	err := Do(context.Background(), cfg, func() error {
		attempts++
		return permanent
	})

	if !errors.Is(err, permanent) {
		t.Fatalf("expected the permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("a permanent error was retried %d times", attempts)
	}
}

func TestDoPermanentBeatsRetryable(t *testing.T) {
	sentinel := errors.New("both listed")
	cfg := fastConfig()
	cfg.RetryableErrors = []error{sentinel}
	cfg.PermanentErrors = []error{sentinel}

	attempts := 0
	_ = Do(context.Background(), cfg, func() error {
		attempts++
		return sentinel
	})

	if attempts != 1 {
		t.Errorf("permanent classification must win, got %d attempts", attempts)
	}
}

func TestDoRetryableAllowlist(t *testing.T) {
	retryable := errors.New("timeout")
	other := errors.New("bad input")
	cfg := fastConfig()
	cfg.RetryableErrors = []error{retryable}

	attempts := 0
	_ = Do(context.Background(), cfg, func() error {
		attempts++
		return other
	})

	if attempts != 1 {
		t.Errorf("an unlisted error was retried %d times", attempts)
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	got, err := DoWithResult(context.Background(), fastConfig(), func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("transient")
		}
		return "value", nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "value" {
		t.Errorf("got %q", got)
	}
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastConfig(), func() error {
		return errors.New("should not matter")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
