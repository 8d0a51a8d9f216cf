// Package client provides the resilient HTTP fetcher used by the
// harvester: single-request execution with retry, exponential backoff,
// jitter, and error classification.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for fetch operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_requests_total",
		Help: "Total upstream requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvester_request_duration_seconds",
		Help:    "Upstream request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "harvester_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// Fetcher executes single HTTP GET requests with a retry policy and
// decodes successful responses as schema-agnostic JSON.
type Fetcher struct {
	httpClient *http.Client
	logger     zerolog.Logger

	// sleep and jitter are replaceable for deterministic tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// NewFetcher creates a fetcher with a 30s request timeout.
func NewFetcher(logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
		sleep:  sleepCtx,
		jitter: rand.Float64,
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (f *Fetcher) SetHTTPClient(c *http.Client) {
	f.httpClient = c
}

// GetJSON issues a GET request against url under the given retry policy
// and returns the decoded JSON body of the first successful response.
//
// Retryable statuses and network-level failures are retried with
// exponential backoff (server Retry-After preferred when valid, ±25%
// jitter) until the policy's retries are exhausted. Non-retryable
// statuses and unparsable success bodies are terminal.
func (f *Fetcher) GetJSON(ctx context.Context, url string, policy RetryPolicy) (any, error) {
	policy = policy.normalize()

	var lastErr error
	var lastClass ErrorClass

	for attempt := 0; ; attempt++ {
		value, retryAfter, err := f.attempt(ctx, url)
		if err == nil {
			if attempt > 0 {
				f.logger.Info().
					Str("url", url).
					Int("attempt", attempt+1).
					Msg("Request succeeded after retry")
			}
			return value, nil
		}

		statusErr, retryable := f.classify(err, policy)
		if !retryable {
			return nil, err
		}
		lastErr = err
		lastClass = ErrorClassNetwork
		if statusErr != nil {
			lastClass = classifyStatus(statusErr.StatusCode)
		}

		if attempt >= policy.MaxRetries {
			break
		}

		delay := policy.backoffDelay(attempt, retryAfter, f.jitter)
		retriesTotal.WithLabelValues(string(lastClass)).Inc()
		retryBackoffSeconds.WithLabelValues(string(lastClass)).Observe(delay.Seconds())

		f.logger.Warn().
			Str("url", url).
			Str("error_class", string(lastClass)).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		if err := f.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	retryExhaustedTotal.WithLabelValues(string(lastClass)).Inc()
	f.logger.Warn().
		Str("url", url).
		Int("max_retries", policy.MaxRetries).
		Msg("Retry attempts exhausted")

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, policy.MaxRetries+1, lastErr)
}

// attempt performs one request and returns the decoded body, or the
// Retry-After header value alongside the error for failed attempts.
func (f *Fetcher) attempt(ctx context.Context, url string) (any, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, resp.Header.Get("Retry-After"), &StatusError{
			StatusCode:  resp.StatusCode,
			Status:      resp.Status,
			BodyPreview: previewBody(body),
		}
	}

	var value any
	if err := json.NewDecoder(resp.Body).Decode(&value); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return value, "", nil
}

// classify inspects an attempt error and reports whether it is eligible
// for retry under the policy. Decode errors are terminal; network-level
// failures follow the same retry path as retryable statuses.
func (f *Fetcher) classify(err error, policy RetryPolicy) (*StatusError, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr, policy.retryable(statusErr.StatusCode)
	}
	if errors.Is(err, ErrDecode) {
		return nil, false
	}
	// No response at all: network failure, retryable.
	return nil, true
}

// BoundFetcher binds a Fetcher to a fixed retry policy, giving callers
// that issue many uniform requests a one-argument fetch.
type BoundFetcher struct {
	fetcher *Fetcher
	policy  RetryPolicy
}

// Bind returns a BoundFetcher using the given policy for every request.
func (f *Fetcher) Bind(policy RetryPolicy) *BoundFetcher {
	return &BoundFetcher{fetcher: f, policy: policy}
}

// GetJSON issues a GET under the bound retry policy.
func (b *BoundFetcher) GetJSON(ctx context.Context, url string) (any, error) {
	return b.fetcher.GetJSON(ctx, url, b.policy)
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
