package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rankwatch/roblox-harvester/pkg/ratelimit"
)

func TestNewPool_ClampsConcurrency(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{name: "zero clamps to min", in: 0, want: 1},
		{name: "negative clamps to min", in: -5, want: 1},
		{name: "in range", in: 4, want: 4},
		{name: "excess clamps to max", in: 50, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewPool(tt.in, nil, zerolog.Nop())
			if got := pool.Concurrency(); got != tt.want {
				t.Errorf("Concurrency() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMap_AllItemsOnceInOrder(t *testing.T) {
	pool := NewPool(3, nil, zerolog.Nop())
	items := []int64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

	var mu sync.Mutex
	processed := make(map[int64]int)

	results := Map(context.Background(), pool, items, func(ctx context.Context, id int64) (string, error) {
		mu.Lock()
		processed[id]++
		mu.Unlock()
		time.Sleep(time.Millisecond)
		return fmt.Sprintf("game-%d", id), nil
	})

	if len(results) != len(items) {
		t.Fatalf("results = %d, want %d", len(results), len(items))
	}
	for i, res := range results {
		if res.Err != nil {
			t.Errorf("item %d error = %v", i, res.Err)
		}
		want := fmt.Sprintf("game-%d", items[i])
		if res.Value != want {
			t.Errorf("result[%d] = %q, want %q (input order must be preserved)", i, res.Value, want)
		}
	}
	for id, count := range processed {
		if count != 1 {
			t.Errorf("item %d processed %d times, want 1", id, count)
		}
	}
}

func TestMap_FailuresIsolated(t *testing.T) {
	pool := NewPool(3, nil, zerolog.Nop())
	items := []int64{1, 2, 3, 4, 5}
	boom := errors.New("upstream said no")

	results := Map(context.Background(), pool, items, func(ctx context.Context, id int64) (int64, error) {
		if id == 3 {
			return 0, boom
		}
		return id * 10, nil
	})

	for i, res := range results {
		if items[i] == 3 {
			if !errors.Is(res.Err, boom) {
				t.Errorf("item 3 error = %v, want %v", res.Err, boom)
			}
			if res.Value != 0 {
				t.Errorf("item 3 value = %d, want zero value", res.Value)
			}
			continue
		}
		if res.Err != nil {
			t.Errorf("item %d error = %v, want nil", items[i], res.Err)
		}
		if res.Value != items[i]*10 {
			t.Errorf("item %d value = %d, want %d", items[i], res.Value, items[i]*10)
		}
	}
}

func TestMap_ConcurrencyBounded(t *testing.T) {
	pool := NewPool(3, nil, zerolog.Nop())
	items := make([]int, 20)

	var active, peak atomic.Int32
	Map(context.Background(), pool, items, func(ctx context.Context, _ int) (struct{}, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		active.Add(-1)
		return struct{}{}, nil
	})

	if got := peak.Load(); got > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", got)
	}
}

func TestMap_PacesThroughLimiter(t *testing.T) {
	limiter := ratelimit.NewLimiter(30*time.Millisecond, zerolog.Nop())
	pool := NewPool(5, limiter, zerolog.Nop())
	items := []int{1, 2, 3, 4, 5}

	start := time.Now()
	results := Map(context.Background(), pool, items, func(ctx context.Context, _ int) (struct{}, error) {
		return struct{}{}, nil
	})
	elapsed := time.Since(start)

	for i, res := range results {
		if res.Err != nil {
			t.Errorf("item %d error = %v", i, res.Err)
		}
	}
	// 5 items at 30ms pacing: at least 4 intervals regardless of 5 workers.
	if elapsed < 120*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 120ms (rate limit must bound the pool)", elapsed)
	}
}

func TestMap_EmptyInput(t *testing.T) {
	pool := NewPool(3, nil, zerolog.Nop())

	results := Map(context.Background(), pool, nil, func(ctx context.Context, _ int) (int, error) {
		t.Error("fn called for empty input")
		return 0, nil
	})
	if len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}
}
