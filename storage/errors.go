package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// APIError is a non-2xx answer from the database API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion api: status %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("notion api: status %d", e.StatusCode)
}

// RateLimitError is a 429 answer. Wait is zero when the response
// carried no usable hint.
type RateLimitError struct {
	Wait time.Duration
}

func (e *RateLimitError) Error() string {
	if e.Wait > 0 {
		return fmt.Sprintf("notion api: rate limited, retry after %v", e.Wait)
	}
	return "notion api: rate limited"
}

func (e *RateLimitError) RetryAfter() time.Duration {
	return e.Wait
}

// TimeoutError means a single call ran past its deadline.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// IsClientError reports a 400-409 answer: a malformed request or missing
// permissions, which no retry will fix.
func IsClientError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode >= http.StatusBadRequest && apiErr.StatusCode <= http.StatusConflict
}

// IsTransient reports whether another attempt of the same call may succeed.
// Rate limiting is not transient here, it is handled by the limiter.
func IsTransient(err error) bool {
	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return true
	}
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	// no answer at all, the connection failed
	return true
}
