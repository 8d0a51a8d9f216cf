package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for pagination walks.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_pages_fetched_total",
		Help: "Total ranking pages fetched by sort",
	}, []string{"sort"})

	walkFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_walk_failures_total",
		Help: "Total failed pagination walks by reason",
	}, []string{"reason"})
)

// ErrShapeDrift is returned when a page yields zero extractable IDs
// after a previously productive page. Retrying cannot fix a shape
// change, so the walk fails and the payload is dumped for inspection.
var ErrShapeDrift = errors.New("no identifiers extractable from page")

// cursorKeys is the fixed, ordered list of key names probed for the
// continuation token, at the top level first and then under common
// wrapper objects.
var cursorKeys = []string{"nextPageToken", "nextPageCursor", "nextCursor", "cursor"}

// cursorWrappers are the nested objects the cursor keys are probed
// under when no top-level key matches.
var cursorWrappers = []string{"paging", "pagination"}

// PageFetcher fetches one URL and returns its decoded JSON body.
// *client.BoundFetcher satisfies this.
type PageFetcher interface {
	GetJSON(ctx context.Context, url string) (any, error)
}

// RankedID is one accepted universe ID tagged with its 1-based
// discovery rank within the walk.
type RankedID struct {
	UniverseID int64 `json:"universeId"`
	Rank       int   `json:"rank"`
}

// Config holds walker configuration for one logical resource.
type Config struct {
	// BaseURL is the ranking endpoint without query parameters.
	BaseURL string

	// SortID selects the ranking (e.g. "top-earning").
	SortID string

	// Limit is the target number of IDs; the walk stops once reached.
	Limit int

	// PageSize is the requested page size.
	PageSize int

	// MaxPages caps the number of pages fetched per walk.
	MaxPages int

	// DumpDir receives raw page payloads on extraction failure.
	DumpDir string
}

// Walker traverses one ranking resource page by page.
type Walker struct {
	fetcher PageFetcher
	config  Config
	rule    ExtractRule
	logger  zerolog.Logger
}

// NewWalker creates a walker. Zero config values get safe defaults.
func NewWalker(fetcher PageFetcher, config Config, rule ExtractRule, logger zerolog.Logger) *Walker {
	if config.Limit <= 0 {
		config.Limit = 1500
	}
	if config.PageSize <= 0 {
		config.PageSize = 100
	}
	if config.MaxPages <= 0 {
		config.MaxPages = 30
	}
	if len(rule.KeyVariants) == 0 {
		rule = DefaultExtractRule()
	}
	return &Walker{
		fetcher: fetcher,
		config:  config,
		rule:    rule,
		logger:  logger,
	}
}

// Walk fetches pages until the target count is reached, the page cap is
// hit, or the API stops returning a continuation token, in that
// precedence order. A page that yields zero new IDs after a productive
// page while the API still advertises a continuation token fails the
// walk with ErrShapeDrift. The returned IDs carry their 1-based
// discovery rank and are truncated to the configured limit.
func (w *Walker) Walk(ctx context.Context) ([]RankedID, error) {
	// One session ID per walk, stable across its pages.
	sessionID := uuid.NewString()

	var collected []RankedID
	seen := make(map[int64]bool)
	cursor := ""
	hadProductivePage := false

	for pageIndex := 1; pageIndex <= w.config.MaxPages; pageIndex++ {
		pageURL := w.pageURL(sessionID, cursor)

		page, err := w.fetcher.GetJSON(ctx, pageURL)
		if err != nil {
			walkFailuresTotal.WithLabelValues("fetch").Inc()
			return nil, fmt.Errorf("fetch page %d: %w", pageIndex, err)
		}
		pagesFetchedTotal.WithLabelValues(w.config.SortID).Inc()

		newIDs := 0
		for _, id := range w.rule.Extract(page) {
			if seen[id] {
				continue
			}
			seen[id] = true
			collected = append(collected, RankedID{
				UniverseID: id,
				Rank:       len(collected) + 1,
			})
			newIDs++
		}

		w.logger.Debug().
			Str("sort", w.config.SortID).
			Int("page", pageIndex).
			Int("new_ids", newIDs).
			Int("collected", len(collected)).
			Msg("Page extracted")

		if newIDs > 0 {
			hadProductivePage = true
		}

		if len(collected) >= w.config.Limit {
			break
		}
		if pageIndex == w.config.MaxPages {
			break
		}

		cursor = probeCursor(page)
		if cursor == "" {
			// Normal exhaustion.
			break
		}

		// The token promises more results, yet the page yielded nothing
		// new after productive pages: the response shape changed.
		if newIDs == 0 && hadProductivePage {
			dumpPath := w.dumpPage(page)
			walkFailuresTotal.WithLabelValues("shape_drift").Inc()
			w.logger.Error().
				Str("sort", w.config.SortID).
				Int("page", pageIndex).
				Str("dump", dumpPath).
				Msg("Page yielded no identifiers after productive pages")
			return nil, fmt.Errorf("page %d: %w", pageIndex, ErrShapeDrift)
		}
	}

	if len(collected) > w.config.Limit {
		collected = collected[:w.config.Limit]
	}

	w.logger.Info().
		Str("sort", w.config.SortID).
		Int("collected", len(collected)).
		Msg("Walk complete")

	return collected, nil
}

// pageURL builds the page request URL. The session ID is duplicated
// client-side the way the upstream web client does.
func (w *Walker) pageURL(sessionID, cursor string) string {
	params := url.Values{}
	params.Set("sortId", w.config.SortID)
	params.Set("sessionId", sessionID)
	params.Set("limit", strconv.Itoa(w.config.PageSize))
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	return w.config.BaseURL + "?" + params.Encode()
}

// probeCursor looks for a continuation token in the fixed location
// list. The first non-empty string wins; absence means the walk is
// done.
func probeCursor(page any) string {
	obj, ok := page.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range cursorKeys {
		if token, ok := obj[key].(string); ok && token != "" {
			return token
		}
	}
	for _, wrapper := range cursorWrappers {
		nested, ok := obj[wrapper].(map[string]any)
		if !ok {
			continue
		}
		for _, key := range cursorKeys {
			if token, ok := nested[key].(string); ok && token != "" {
				return token
			}
		}
	}
	return ""
}

// dumpPage writes the raw page payload to the diagnostics directory
// for offline inspection. The file is never read back by the engine.
func (w *Walker) dumpPage(page any) string {
	dir := w.config.DumpDir
	if dir == "" {
		dir = "dumps"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to create dump dir")
		return ""
	}

	name := fmt.Sprintf("page_dump_%s_%d.json", w.config.SortID, time.Now().UnixNano())
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(page, "", "  ")
	if err != nil {
		data = []byte(fmt.Sprintf("%v", page))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		w.logger.Warn().Err(err).Str("path", path).Msg("Failed to write dump")
		return ""
	}
	return path
}
