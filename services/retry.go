package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"stock-forecast/observability"
)

type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// OnRetry is called before each retry with the failed attempt number
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig waits 2s, 4s and 8s between attempts
var DefaultRetryConfig = RetryConfig{
	MaxRetries:     3,
	InitialBackoff: 2 * time.Second,
	MaxBackoff:     8 * time.Second,
}

// TransientError marks a failure worth retrying: network errors, rate
// limiting and upstream 5xx responses.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err should be retried. Explicitly marked
// errors and network failures are transient; everything else is permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// StatusError is an unexpected HTTP status from an upstream
type StatusError struct {
	Service    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
}

// classifyStatus turns a non-2xx status into an error, transient for 429
// and 5xx
func classifyStatus(service string, code int) error {
	if code >= 200 && code < 300 {
		return nil
	}
	err := &StatusError{Service: service, StatusCode: code}
	if code == http.StatusTooManyRequests || code >= 500 {
		return Transient(err)
	}
	return err
}

// WithRetry runs fn until it succeeds, returns a permanent error, or the
// retry budget is spent. Backoff doubles from InitialBackoff up to
// MaxBackoff.
func WithRetry(ctx context.Context, config RetryConfig, fn func() error) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			if config.OnRetry != nil {
				config.OnRetry(attempt, lastErr)
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			case <-time.After(backoff):
			}

			backoff *= 2
			if config.MaxBackoff > 0 && backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if !IsTransient(err) {
			return err
		}
		if attempt < config.MaxRetries {
			observability.Warn("retry attempt failed",
				"attempt", attempt+1,
				"max_retries", config.MaxRetries,
				"error", err.Error())
		}
	}

	return fmt.Errorf("failed after %d retries: %w", config.MaxRetries, lastErr)
}
