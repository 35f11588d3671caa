package fetch

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Fetch errors.
var (
	// ErrBodyTooLarge indicates a response body exceeded the configured cap.
	ErrBodyTooLarge = errors.New("fetch: response body too large")

	// ErrInvalidURL indicates a request URL could not be parsed.
	ErrInvalidURL = errors.New("fetch: invalid URL")
)

// StatusError represents a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	URL        string

	// Code is the machine-readable error code from a JSON error body,
	// such as WordPress's "rest_post_invalid_page_number".
	Code string

	// RetryAfter is the server-requested delay, zero if none was sent.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("fetch: HTTP %d %s (%s): %s", e.StatusCode, http.StatusText(e.StatusCode), e.Code, e.URL)
	}
	return fmt.Sprintf("fetch: HTTP %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// IsNotFound checks if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	return StatusCode(err) == http.StatusTooManyRequests
}

// IsUnauthorized checks if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// IsServerError checks if the error is a 5xx response.
func IsServerError(err error) bool {
	code := StatusCode(err)
	return code >= 500 && code <= 599
}

// HasCode checks if the error carries the given JSON error code.
func HasCode(err error, code string) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == code
	}
	return false
}
