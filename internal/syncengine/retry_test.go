package syncengine

import (
	"context"
	"errors"
	"testing"
)

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return errors.New("transient network blip")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithRetry: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestWithRetryDoesNotRetryConflictOrUnauthorized(t *testing.T) {
	for _, sentinel := range []error{ErrConflict, ErrUnauthorized} {
		attempts := 0
		err := WithRetry(context.Background(), func() error {
			attempts++
			return sentinel
		})
		if !errors.Is(err, sentinel) {
			t.Errorf("expected %v to surface unwrapped, got %v", sentinel, err)
		}
		if attempts != 1 {
			t.Errorf("%v: attempts = %d, want exactly 1 (no retry)", sentinel, attempts)
		}
	}
}

func TestWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	persistent := errors.New("still failing")
	err := WithRetry(context.Background(), func() error {
		attempts++
		return persistent
	})
	if !errors.Is(err, persistent) {
		t.Errorf("expected the last error to surface, got %v", err)
	}
	if attempts != retryMaxAttempts {
		t.Errorf("attempts = %d, want %d", attempts, retryMaxAttempts)
	}
}
