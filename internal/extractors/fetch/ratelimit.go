package fetch

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// HeaderRetryAfter is the retry-after header (seconds or HTTP date).
const HeaderRetryAfter = "Retry-After"

// RateLimiter spaces outbound requests at least delay apart.
// A zero delay disables throttling.
type RateLimiter struct {
	bucket *rate.Limiter
}

// NewRateLimiter creates a limiter allowing one request per delay.
func NewRateLimiter(delay time.Duration) *RateLimiter {
	if delay <= 0 {
		return &RateLimiter{bucket: rate.NewLimiter(rate.Inf, 1)}
	}
	return &RateLimiter{bucket: rate.NewLimiter(rate.Every(delay), 1)}
}

// Wait blocks until the next request may be sent.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.bucket.Wait(ctx)
}

// parseRetryAfter reads a Retry-After header as delta seconds or an HTTP date.
func parseRetryAfter(resp *http.Response, now time.Time) time.Duration {
	value := resp.Header.Get(HeaderRetryAfter)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
