package fetch

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// StatusRateLimit is the status code the scrape API returns when throttled
const StatusRateLimit = http.StatusTooManyRequests

// RateLimitError indicates the data source throttled the request.
// Always retryable after backoff.
type RateLimitError struct {
	RetryAfter time.Duration
	Endpoint   string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
	}
	return "rate limit exceeded"
}

// NewRateLimitError creates a RateLimitError with optional retry hint
func NewRateLimitError(retryAfter time.Duration, endpoint string) *RateLimitError {
	return &RateLimitError{RetryAfter: retryAfter, Endpoint: endpoint}
}

// ConnectionError indicates a transport-level failure (DNS, dial, timeout).
// Always retryable.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// APIError indicates the scrape API answered with a non-success status.
// Server-side statuses (5xx) are retryable; client-side statuses are not.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("scrape api error: status=%d message=%s", e.StatusCode, e.Message)
}

// IsTransient classifies a fetch error as retryable or permanent. The
// decision is made on error types, never on message text: rate limits and
// connection failures are transient, API errors are transient only for
// server-side statuses, and anything unrecognized is treated as permanent.
func IsTransient(err error) bool {
	var rateLimit *RateLimitError
	if errors.As(err, &rateLimit) {
		return true
	}

	var conn *ConnectionError
	if errors.As(err, &conn) {
		return true
	}

	var api *APIError
	if errors.As(err, &api) {
		return api.StatusCode >= 500
	}

	return false
}
