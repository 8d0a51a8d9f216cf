package client

import (
	"net/http"
	"strconv"
	"time"
)

// RetryPolicy controls the retry behavior for a single logical request.
// It is immutable per call.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// BaseDelay is the backoff for the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration

	// RetryableStatuses is the set of HTTP status codes eligible for retry.
	RetryableStatuses map[int]bool
}

// DefaultRetryPolicy returns the default retry policy for the harvester:
// 3 retries, 1s base delay doubling up to 30s, retrying on 429 and
// common transient 5xx statuses.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		RetryableStatuses: map[int]bool{
			http.StatusTooManyRequests:     true,
			http.StatusInternalServerError: true,
			http.StatusBadGateway:          true,
			http.StatusServiceUnavailable:  true,
			http.StatusGatewayTimeout:      true,
		},
	}
}

// normalize clamps the policy into a usable range. BaseDelay must not
// exceed MaxDelay.
func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// retryable reports whether a status code is eligible for retry under
// this policy.
func (p RetryPolicy) retryable(statusCode int) bool {
	return p.RetryableStatuses[statusCode]
}

// backoffDelay computes the backoff before retry number attempt
// (0-based). The server's Retry-After wins when it is a positive numeric
// seconds value; otherwise exponential backoff in the attempt count only,
// so a slow success never inflates subsequent delays. Symmetric ±25%
// jitter is applied, clamped to >= 0.
func (p RetryPolicy) backoffDelay(attempt int, retryAfter string, jitter func() float64) time.Duration {
	delay := p.serverDelay(retryAfter)
	if delay <= 0 {
		delay = p.BaseDelay << uint(attempt)
		if delay > p.MaxDelay || delay <= 0 {
			delay = p.MaxDelay
		}
	}

	// jitter() in [0,1) maps to a factor in [0.75, 1.25).
	delay = time.Duration(float64(delay) * (0.75 + jitter()*0.5))
	if delay < 0 {
		delay = 0
	}
	return delay
}

// serverDelay parses a Retry-After header value. Only positive numeric
// seconds are honored; anything else falls back to exponential backoff.
func (p RetryPolicy) serverDelay(retryAfter string) time.Duration {
	if retryAfter == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(retryAfter, 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
