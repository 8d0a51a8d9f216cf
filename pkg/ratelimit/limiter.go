// Package ratelimit implements global request pacing for the harvester.
// A single Limiter instance is shared by all workers so the aggregate
// request rate stays bounded regardless of concurrency.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for request pacing.
var (
	rateLimitGrantsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_rate_limit_grants_total",
		Help: "Total number of grants issued by the rate limiter",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvester_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a rate limit grant",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
)

// Limiter serializes request grants so that successive grants are at
// least minInterval apart, no matter how many goroutines are waiting.
type Limiter struct {
	minInterval time.Duration
	logger      zerolog.Logger

	mu            sync.Mutex
	nextAllowedAt time.Time

	// now/sleep are replaceable for deterministic tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLimiter creates a limiter with the given minimum interval between
// grants. An interval <= 0 degrades to a no-op limiter.
func NewLimiter(minInterval time.Duration, logger zerolog.Logger) *Limiter {
	return &Limiter{
		minInterval: minInterval,
		logger:      logger,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Acquire blocks until the caller may issue its next request. The grant
// instant is computed and the shared schedule advanced under the lock,
// so no two callers can be granted the same instant; the wait itself
// happens outside the lock. Returns ctx.Err() if the context is
// cancelled while waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.minInterval <= 0 {
		return ctx.Err()
	}

	l.mu.Lock()
	now := l.now()
	grant := l.nextAllowedAt
	if grant.Before(now) {
		grant = now
	}
	l.nextAllowedAt = grant.Add(l.minInterval)
	l.mu.Unlock()

	wait := grant.Sub(now)
	if wait > 0 {
		l.logger.Debug().
			Dur("wait", wait).
			Msg("Waiting for rate limit grant")
		rateLimitWaitSeconds.Observe(wait.Seconds())
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	} else {
		rateLimitWaitSeconds.Observe(0)
	}

	rateLimitGrantsTotal.Inc()
	return nil
}

// MinInterval returns the configured minimum interval between grants.
func (l *Limiter) MinInterval() time.Duration {
	return l.minInterval
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
