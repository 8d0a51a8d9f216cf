package harvester

import (
	"time"

	"github.com/rankwatch/roblox-harvester/pkg/client"
	"github.com/rankwatch/roblox-harvester/pkg/worker"
)

// Default endpoints. Overridable for tests and proxies.
const (
	DefaultRankingURL = "https://games.roblox.com/v1/games/list-ranked"
	DefaultGamesURL   = "https://games.roblox.com/v1/games"
)

// Config is the harvester's value-based configuration surface. All
// numeric knobs have documented defaults and are clamped into sane
// ranges by withDefaults.
type Config struct {
	// SortID selects the ranking to harvest. Default "top-earning".
	SortID string

	// TopN is the number of ranked universes to harvest. Default 1500.
	TopN int

	// Concurrency bounds the stats-fetch worker pool. Default 3,
	// clamped to [1, 10].
	Concurrency int

	// MinInterval is the global minimum interval between upstream
	// requests across all workers. Default 750ms; 0 disables pacing.
	MinInterval time.Duration

	// MaxRetries per request. Default 3, clamped to [0, 10].
	MaxRetries int

	// BaseDelay is the first-retry backoff. Default 1s.
	BaseDelay time.Duration

	// MaxDelay caps the backoff. Default 30s.
	MaxDelay time.Duration

	// RetryableStatuses overrides the retryable status set. Empty
	// means the default (429, 500, 502, 503, 504).
	RetryableStatuses []int

	// PageSize per ranking page. Default 100, clamped to [10, 100].
	PageSize int

	// MaxPages caps pages per walk. Default 30, clamped to [1, 200].
	MaxPages int

	// CacheMaxAgeDays is the freshness window for cached stats.
	// Default 7; 0 means only same-instant entries are fresh.
	CacheMaxAgeDays int

	// RankingURL and GamesURL override the upstream endpoints.
	RankingURL string
	GamesURL   string

	// CachePath is the stats cache document. Default cache/universe_stats.json.
	CachePath string

	// RunsDir receives daily run snapshots. Default runs.
	RunsDir string

	// DumpDir receives diagnostic page dumps. Default dumps.
	DumpDir string
}

// DefaultConfig returns the default harvester configuration.
func DefaultConfig() Config {
	return Config{
		SortID:          "top-earning",
		TopN:            1500,
		Concurrency:     3,
		MinInterval:     750 * time.Millisecond,
		MaxRetries:      3,
		BaseDelay:       1 * time.Second,
		MaxDelay:        30 * time.Second,
		PageSize:        100,
		MaxPages:        30,
		CacheMaxAgeDays: 7,
		RankingURL:      DefaultRankingURL,
		GamesURL:        DefaultGamesURL,
		CachePath:       "cache/universe_stats.json",
		RunsDir:         "runs",
		DumpDir:         "dumps",
	}
}

// withDefaults fills zero values and clamps out-of-range knobs.
func (c Config) withDefaults() Config {
	defaults := DefaultConfig()

	if c.SortID == "" {
		c.SortID = defaults.SortID
	}
	if c.TopN <= 0 {
		c.TopN = defaults.TopN
	}
	if c.Concurrency == 0 {
		c.Concurrency = defaults.Concurrency
	}
	if c.Concurrency < worker.MinConcurrency {
		c.Concurrency = worker.MinConcurrency
	}
	if c.Concurrency > worker.MaxConcurrency {
		c.Concurrency = worker.MaxConcurrency
	}
	if c.MinInterval < 0 {
		c.MinInterval = 0
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.MaxRetries > 10 {
		c.MaxRetries = 10
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaults.BaseDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	if c.PageSize <= 0 {
		c.PageSize = defaults.PageSize
	}
	if c.PageSize < 10 {
		c.PageSize = 10
	}
	if c.PageSize > 100 {
		c.PageSize = 100
	}
	if c.MaxPages <= 0 {
		c.MaxPages = defaults.MaxPages
	}
	if c.MaxPages > 200 {
		c.MaxPages = 200
	}
	if c.CacheMaxAgeDays < 0 {
		c.CacheMaxAgeDays = 0
	}
	if c.RankingURL == "" {
		c.RankingURL = defaults.RankingURL
	}
	if c.GamesURL == "" {
		c.GamesURL = defaults.GamesURL
	}
	if c.CachePath == "" {
		c.CachePath = defaults.CachePath
	}
	if c.RunsDir == "" {
		c.RunsDir = defaults.RunsDir
	}
	if c.DumpDir == "" {
		c.DumpDir = defaults.DumpDir
	}
	return c
}

// retryPolicy converts the config knobs into a client.RetryPolicy.
func (c Config) retryPolicy() client.RetryPolicy {
	policy := client.DefaultRetryPolicy()
	policy.MaxRetries = c.MaxRetries
	policy.BaseDelay = c.BaseDelay
	policy.MaxDelay = c.MaxDelay
	if len(c.RetryableStatuses) > 0 {
		policy.RetryableStatuses = make(map[int]bool, len(c.RetryableStatuses))
		for _, status := range c.RetryableStatuses {
			policy.RetryableStatuses[status] = true
		}
	}
	return policy
}
