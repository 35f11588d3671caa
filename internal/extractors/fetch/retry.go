package fetch

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/custodia-labs/llmsync/internal/core/domain"
)

// Backoff names how the delay grows between attempts.
type Backoff string

// Backoff strategies.
const (
	BackoffFixed       Backoff = "fixed"
	BackoffExponential Backoff = "exponential"
)

// DefaultMaxDelay caps a single retry delay, including Retry-After.
const DefaultMaxDelay = 60 * time.Second

// RetryPolicy decides whether and when a failed request is retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Backoff     Backoff

	// Retryable reports whether err is transient. Nil means DefaultRetryable.
	Retryable func(error) bool
}

// NoRetry performs exactly one attempt.
var NoRetry = RetryPolicy{MaxAttempts: 1}

// PolicyFromConfig builds a policy from the performance settings.
// retry_attempts counts retries, so the first attempt is added on top.
func PolicyFromConfig(p domain.PerformanceConfig) RetryPolicy {
	attempts := p.RetryAttempts + 1
	if attempts < 1 {
		attempts = 1
	}
	backoff := BackoffExponential
	if p.RetryBackoff == string(BackoffFixed) {
		backoff = BackoffFixed
	}
	return RetryPolicy{
		MaxAttempts: attempts,
		BaseDelay:   p.RetryDelayDuration(),
		MaxDelay:    DefaultMaxDelay,
		Backoff:     backoff,
		Retryable:   DefaultRetryable,
	}
}

// ShouldRetry reports whether another attempt follows a failed attempt n (1-based).
func (p RetryPolicy) ShouldRetry(attempt int, err error) bool {
	if err == nil || attempt >= p.MaxAttempts {
		return false
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}
	return retryable(err)
}

// Delay returns how long to wait after failed attempt n (1-based).
// A server-sent Retry-After takes precedence over the computed backoff.
func (p RetryPolicy) Delay(attempt int, err error) time.Duration {
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		return min(statusErr.RetryAfter, maxDelay)
	}

	delay := p.BaseDelay
	if p.Backoff != BackoffFixed {
		for i := 1; i < attempt && delay < maxDelay; i++ {
			delay *= 2
		}
	}
	return min(delay, maxDelay)
}

// DefaultRetryable retries timeouts, connection resets and refusals,
// 429 and 5xx responses. Other 4xx responses and cancellation are final.
// Client timeouts match context.DeadlineExceeded and are retried;
// Client.Get stops once the caller's context is done.
func DefaultRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == 429 || statusErr.StatusCode >= 500
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
