// Package cache provides the durable per-universe stats cache with
// age-based freshness. The cache is a single versioned JSON document
// owned by one harvest run from load to save; corruption is never fatal
// and resets to an empty cache.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Version is the on-disk cache document version. A mismatch on load
// resets to an empty cache.
const Version = 1

// Entry is one cached per-universe result. FetchedAt is kept as a
// string so a corrupt timestamp degrades to "not fresh" instead of a
// decode failure.
type Entry struct {
	FetchedAt string          `json:"fetchedAt"`
	Stats     json.RawMessage `json:"stats"`
}

// Store is the in-memory form of the cache document.
type Store struct {
	Version int              `json:"version"`
	Entries map[string]Entry `json:"entries"`

	logger zerolog.Logger
	now    func() time.Time
}

// NewStore returns an empty cache store.
func NewStore(logger zerolog.Logger) *Store {
	return &Store{
		Version: Version,
		Entries: make(map[string]Entry),
		logger:  logger,
		now:     time.Now,
	}
}

// Load reads the cache document at path. A missing file, structural
// corruption, or a version mismatch yields an empty store rather than
// an error: a stale cache only costs extra requests.
func Load(path string, logger zerolog.Logger) *Store {
	store := NewStore(logger)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", path).Msg("Cache unreadable, starting empty")
		}
		return store
	}

	var loaded Store
	if err := json.Unmarshal(data, &loaded); err != nil {
		cacheResetsTotal.WithLabelValues("corrupt").Inc()
		logger.Warn().Err(err).Str("path", path).Msg("Cache corrupt, starting empty")
		return store
	}
	if loaded.Version != Version {
		cacheResetsTotal.WithLabelValues("version_mismatch").Inc()
		logger.Warn().
			Int("found_version", loaded.Version).
			Int("want_version", Version).
			Msg("Cache version mismatch, starting empty")
		return store
	}
	if loaded.Entries != nil {
		store.Entries = loaded.Entries
	}

	logger.Debug().Int("entries", len(store.Entries)).Str("path", path).Msg("Cache loaded")
	return store
}

// Save writes the cache document atomically (temp file + rename).
func (s *Store) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}

	s.logger.Debug().Int("entries", len(s.Entries)).Str("path", path).Msg("Cache saved")
	return nil
}

// IsFresh reports whether an entry's age is within maxAgeDays. An
// unparsable timestamp or a negative age (clock skew, manipulated file)
// is not fresh. The boundary age of exactly maxAgeDays is fresh.
func (s *Store) IsFresh(entry Entry, maxAgeDays int) bool {
	fetchedAt, err := time.Parse(time.RFC3339, entry.FetchedAt)
	if err != nil {
		return false
	}
	age := s.now().Sub(fetchedAt)
	if age < 0 {
		return false
	}
	return age <= time.Duration(maxAgeDays)*24*time.Hour
}

// Get returns the cached payload for id only if it is fresh.
func (s *Store) Get(id int64, maxAgeDays int) (json.RawMessage, bool) {
	entry, ok := s.Entries[key(id)]
	if !ok || !s.IsFresh(entry, maxAgeDays) {
		cacheMissesTotal.Inc()
		return nil, false
	}
	cacheHitsTotal.Inc()
	return entry.Stats, true
}

// Set stamps the current time and overwrites any existing entry.
func (s *Store) Set(id int64, stats json.RawMessage) {
	s.Entries[key(id)] = Entry{
		FetchedAt: s.now().UTC().Format(time.RFC3339),
		Stats:     stats,
	}
}

// PartitionByFreshness splits ids into those with a fresh cache entry
// and those stale or missing, preserving relative order within each
// partition. Callers fetch network data only for the second partition.
func (s *Store) PartitionByFreshness(ids []int64, maxAgeDays int) (fresh, staleOrMissing []int64) {
	for _, id := range ids {
		entry, ok := s.Entries[key(id)]
		if ok && s.IsFresh(entry, maxAgeDays) {
			fresh = append(fresh, id)
		} else {
			staleOrMissing = append(staleOrMissing, id)
		}
	}
	return fresh, staleOrMissing
}

// Len returns the number of cached entries regardless of freshness.
func (s *Store) Len() int {
	return len(s.Entries)
}

func key(id int64) string {
	return strconv.FormatInt(id, 10)
}
