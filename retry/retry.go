// Package retry runs an operation again on transient failures, with
// exponential backoff between attempts.
package retry

import (
	"context"
	"fmt"
	"time"
)

type Config struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries     int
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between attempts, zero means no cap.
	MaxBackoff time.Duration
	Multiplier float64
}

// Default mirrors the common retry library defaults: two extra attempts,
// starting at one second and doubling.
func Default() Config {
	return Config{
		MaxRetries:     2,
		InitialBackoff: time.Second,
		Multiplier:     2,
	}
}

// Classifier reports whether err is worth another attempt.
type Classifier func(err error) bool

// Hook is called before sleeping ahead of the next attempt.
type Hook func(attempt int, err error, wait time.Duration)

// Do calls fn until it succeeds, the classifier rejects the error, the
// attempts run out or ctx is done. A rejected error is returned as is, so
// callers can still inspect it with errors.As.
func Do(ctx context.Context, cfg Config, retryable Classifier, onRetry Hook, fn func(context.Context) error) error {
	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		wait := backoff
		if cfg.MaxBackoff > 0 && wait > cfg.MaxBackoff {
			wait = cfg.MaxBackoff
		}
		if onRetry != nil {
			onRetry(attempt+1, err, wait)
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}

		if cfg.Multiplier > 1 {
			backoff = time.Duration(float64(backoff) * cfg.Multiplier)
		}
	}

	return &ExhaustedError{Attempts: cfg.MaxRetries + 1, Err: lastErr}
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}
