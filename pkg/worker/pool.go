// Package worker fans a list of independent work items out across a
// bounded set of goroutines. A single shared atomic counter claims
// items, so each item is processed exactly once and idle workers
// naturally load-balance instead of being statically partitioned.
package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/rankwatch/roblox-harvester/pkg/ratelimit"
)

// Concurrency bounds for the pool.
const (
	MinConcurrency = 1
	MaxConcurrency = 10
)

// Prometheus metrics for pool execution.
var (
	itemsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_pool_items_total",
		Help: "Total work items processed by outcome",
	}, []string{"outcome"})
)

// Result is the outcome for one work item. Value is the zero value
// when Err is non-nil; failures are recorded, never omitted.
type Result[T any] struct {
	Value T
	Err   error
}

// Pool executes per-item operations with bounded concurrency, pacing
// every item through a shared rate limiter.
type Pool struct {
	concurrency int
	limiter     *ratelimit.Limiter
	logger      zerolog.Logger
}

// NewPool creates a pool. Concurrency is clamped to [MinConcurrency,
// MaxConcurrency]. A nil limiter disables pacing.
func NewPool(concurrency int, limiter *ratelimit.Limiter, logger zerolog.Logger) *Pool {
	if concurrency < MinConcurrency {
		concurrency = MinConcurrency
	}
	if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}
	return &Pool{
		concurrency: concurrency,
		limiter:     limiter,
		logger:      logger,
	}
}

// Concurrency returns the clamped worker count.
func (p *Pool) Concurrency() int {
	return p.concurrency
}

// Map runs fn over every item and returns one result per item, in
// input order regardless of completion order. A failing item yields a
// Result with Err set; one bad item never aborts the others. Map
// returns only when every worker has drained the shared queue.
func Map[K any, T any](ctx context.Context, p *Pool, items []K, fn func(ctx context.Context, item K) (T, error)) []Result[T] {
	results := make([]Result[T], len(items))
	if len(items) == 0 {
		return results
	}

	workers := p.concurrency
	if workers > len(items) {
		workers = len(items)
	}

	// Shared claim counter: each idle worker atomically takes the next
	// unclaimed index, so no two workers race on the same item.
	var next atomic.Int64

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1)) - 1
				if i >= len(items) {
					return
				}
				results[i] = runOne(ctx, p, items[i], fn)
			}
		}()
	}
	wg.Wait()

	return results
}

// runOne paces one item through the limiter and executes fn,
// converting any failure into a per-item result.
func runOne[K any, T any](ctx context.Context, p *Pool, item K, fn func(ctx context.Context, item K) (T, error)) Result[T] {
	if p.limiter != nil {
		if err := p.limiter.Acquire(ctx); err != nil {
			itemsProcessedTotal.WithLabelValues("failure").Inc()
			return Result[T]{Err: err}
		}
	}

	value, err := fn(ctx, item)
	if err != nil {
		itemsProcessedTotal.WithLabelValues("failure").Inc()
		p.logger.Warn().Err(err).Msg("Work item failed")
		return Result[T]{Err: err}
	}
	itemsProcessedTotal.WithLabelValues("success").Inc()
	return Result[T]{Value: value}
}
