package syncengine

import (
	"context"
	"errors"
	"time"
)

// retryBackoffBase and retryMaxAttempts bound the request-level retry
// policy for transient sync failures (network errors, 5xx) — not 4xx
// rejections or ErrConflict, which the caller handles explicitly.
const (
	retryBackoffBase = 500 * time.Millisecond
	retryMaxAttempts = 3
)

// WithRetry runs fn up to retryMaxAttempts times with exponential backoff,
// skipping the wait (and further attempts) once ctx is done. It does not
// retry ErrConflict, ErrUnauthorized, or ErrProtocolIncompatible — those need
// caller or user intervention (merge-and-retry, re-authentication, or an
// upgrade), not a blind resend.
func WithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	backoff := retryBackoffBase
	for attempt := 0; attempt < retryMaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrProtocolIncompatible) {
			return err
		}
		lastErr = err

		if attempt == retryMaxAttempts-1 {
			break
		}
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
