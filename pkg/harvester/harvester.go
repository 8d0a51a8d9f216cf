// Package harvester orchestrates one harvest run: walk the ranking,
// partition universes by cache freshness, fetch stale stats through
// the bounded worker pool, and write the daily run snapshot.
package harvester

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/rankwatch/roblox-harvester/pkg/cache"
	"github.com/rankwatch/roblox-harvester/pkg/client"
	"github.com/rankwatch/roblox-harvester/pkg/pagination"
	"github.com/rankwatch/roblox-harvester/pkg/ratelimit"
	"github.com/rankwatch/roblox-harvester/pkg/worker"
)

// Prometheus metrics for harvest runs.
var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_runs_total",
		Help: "Total harvest runs by status",
	}, []string{"status"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvester_run_duration_seconds",
		Help:    "Harvest run duration in seconds",
		Buckets: []float64{10, 30, 60, 120, 300, 600, 1800},
	})
)

// GameResult is the per-universe outcome of a run: either normalized
// stats or an explicit failure marker, never omission.
type GameResult struct {
	Stats *GameStats `json:"stats,omitempty"`
	Err   string     `json:"error,omitempty"`
}

// HarvestResult maps every requested universe ID to its outcome
// exactly once.
type HarvestResult map[int64]GameResult

// RunReport summarizes one completed run.
type RunReport struct {
	Date         string        `json:"date"`
	SortID       string        `json:"sortId"`
	Requested    int           `json:"requested"`
	FromCache    int           `json:"fromCache"`
	Fetched      int           `json:"fetched"`
	Failed       int           `json:"failed"`
	SnapshotPath string        `json:"snapshotPath"`
	Duration     time.Duration `json:"duration"`
}

// Harvester wires the acquisition engine together: one shared rate
// limiter, one retrying fetcher, the freshness cache, and the
// pagination walker.
type Harvester struct {
	config  Config
	logger  zerolog.Logger
	limiter *ratelimit.Limiter
	fetcher *client.Fetcher
	pool    *worker.Pool
	now     func() time.Time
}

// New creates a harvester from the given config (defaults applied and
// knobs clamped).
func New(config Config, logger zerolog.Logger) *Harvester {
	config = config.withDefaults()
	limiter := ratelimit.NewLimiter(config.MinInterval, logger)
	return &Harvester{
		config:  config,
		logger:  logger,
		limiter: limiter,
		fetcher: client.NewFetcher(logger),
		pool:    worker.NewPool(config.Concurrency, limiter, logger),
		now:     time.Now,
	}
}

// Config returns the effective (defaulted, clamped) configuration.
func (h *Harvester) Config() Config {
	return h.config
}

// Run executes one complete harvest: ranking walk, freshness
// partition, paced concurrent stats fetch, cache update, snapshot
// write. A walk failure aborts the run; per-universe stats failures
// degrade only that universe's result.
func (h *Harvester) Run(ctx context.Context) (*RunReport, error) {
	start := h.now()
	date := start.UTC().Format("2006-01-02")

	h.logger.Info().
		Str("sort", h.config.SortID).
		Int("top_n", h.config.TopN).
		Msg("Harvest run starting")

	ranked, err := h.walkRanking(ctx)
	if err != nil {
		runsTotal.WithLabelValues("walk_failed").Inc()
		return nil, fmt.Errorf("ranking walk: %w", err)
	}

	ids := make([]int64, len(ranked))
	rankByID := make(map[int64]int, len(ranked))
	for i, r := range ranked {
		ids[i] = r.UniverseID
		rankByID[r.UniverseID] = r.Rank
	}

	store := cache.Load(h.config.CachePath, h.logger)
	freshIDs, staleIDs := store.PartitionByFreshness(ids, h.config.CacheMaxAgeDays)

	h.logger.Info().
		Int("requested", len(ids)).
		Int("fresh", len(freshIDs)).
		Int("stale_or_missing", len(staleIDs)).
		Msg("Cache partition complete")

	result := make(HarvestResult, len(ids))
	for _, id := range freshIDs {
		payload, _ := store.Get(id, h.config.CacheMaxAgeDays)
		var stats GameStats
		if err := json.Unmarshal(payload, &stats); err != nil {
			// A fresh entry that does not decode is treated as a miss.
			staleIDs = append(staleIDs, id)
			continue
		}
		stats.Rank = rankByID[id]
		result[id] = GameResult{Stats: &stats}
	}
	fromCache := len(result)

	policy := h.config.retryPolicy()
	outcomes := worker.Map(ctx, h.pool, staleIDs, func(ctx context.Context, id int64) (*GameStats, error) {
		return h.fetchStats(ctx, id, policy)
	})

	fetched, failed := 0, 0
	for i, outcome := range outcomes {
		id := staleIDs[i]
		if outcome.Err != nil {
			failed++
			result[id] = GameResult{Err: outcome.Err.Error()}
			continue
		}
		fetched++
		stats := outcome.Value
		stats.Rank = rankByID[id]
		if payload, err := json.Marshal(stats); err == nil {
			store.Set(id, payload)
		}
		result[id] = GameResult{Stats: stats}
	}

	if err := store.Save(h.config.CachePath); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to save cache")
	}

	snapshotPath, err := writeSnapshot(h.config, date, ranked, result)
	if err != nil {
		runsTotal.WithLabelValues("snapshot_failed").Inc()
		return nil, fmt.Errorf("write snapshot: %w", err)
	}

	duration := h.now().Sub(start)
	runsTotal.WithLabelValues("success").Inc()
	runDuration.Observe(duration.Seconds())

	report := &RunReport{
		Date:         date,
		SortID:       h.config.SortID,
		Requested:    len(ids),
		FromCache:    fromCache,
		Fetched:      fetched,
		Failed:       failed,
		SnapshotPath: snapshotPath,
		Duration:     duration,
	}

	h.logger.Info().
		Int("requested", report.Requested).
		Int("from_cache", report.FromCache).
		Int("fetched", report.Fetched).
		Int("failed", report.Failed).
		Dur("duration", duration).
		Str("snapshot", snapshotPath).
		Msg("Harvest run complete")

	return report, nil
}

// walkRanking runs the pagination walk with limiter pacing applied to
// every page request.
func (h *Harvester) walkRanking(ctx context.Context) ([]pagination.RankedID, error) {
	walker := pagination.NewWalker(
		&pacedFetcher{
			limiter: h.limiter,
			bound:   h.fetcher.Bind(h.config.retryPolicy()),
		},
		pagination.Config{
			BaseURL:  h.config.RankingURL,
			SortID:   h.config.SortID,
			Limit:    h.config.TopN,
			PageSize: h.config.PageSize,
			MaxPages: h.config.MaxPages,
			DumpDir:  h.config.DumpDir,
		},
		pagination.DefaultExtractRule(),
		h.logger,
	)
	return walker.Walk(ctx)
}

// fetchStats fetches and normalizes stats for one universe. The worker
// pool has already paced this call through the limiter.
func (h *Harvester) fetchStats(ctx context.Context, universeID int64, policy client.RetryPolicy) (*GameStats, error) {
	params := url.Values{}
	params.Set("universeIds", strconv.FormatInt(universeID, 10))
	statsURL := h.config.GamesURL + "?" + params.Encode()

	response, err := h.fetcher.GetJSON(ctx, statsURL, policy)
	if err != nil {
		return nil, err
	}
	return normalizeStats(response, universeID)
}

// pacedFetcher routes page fetches through the shared rate limiter so
// walk requests honor the same global pacing as worker requests.
type pacedFetcher struct {
	limiter *ratelimit.Limiter
	bound   *client.BoundFetcher
}

func (p *pacedFetcher) GetJSON(ctx context.Context, pageURL string) (any, error) {
	if err := p.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	return p.bound.GetJSON(ctx, pageURL)
}
