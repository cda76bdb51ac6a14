package db

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrRetryExhausted is returned once the retry budget for a transient storage
// failure is spent. It wraps the last underlying error.
var ErrRetryExhausted = errors.New("storage_retry_exhausted")

const (
	defaultRetryAttempts = 3
	retryBaseDelay       = 50 * time.Millisecond
)

// Transient reports whether err looks like a connection-level failure worth
// retrying. Constraint violations, not-found conditions and every other
// database error propagate immediately.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"bad connection",
		"server closed the connection",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// WithRetry runs fn with a bounded exponential backoff on transient storage
// errors. Non-transient errors return on the first attempt; an exhausted
// budget returns ErrRetryExhausted wrapping the last failure.
func WithRetry(ctx context.Context, log *zap.Logger, attempts int, fn func(ctx context.Context) error) error {
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}

	var lastErr error
	delay := retryBaseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !Transient(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}
		if log != nil {
			log.Warn("transient storage error, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(lastErr),
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return errors.Join(ErrRetryExhausted, lastErr)
}
