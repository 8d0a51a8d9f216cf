// Package testutil provides a configurable mock of the upstream
// ranking and games APIs for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// MockAPI serves a scripted ranking walk and per-universe stats. It
// tracks request counts so tests can assert pacing and retry behavior.
type MockAPI struct {
	server *httptest.Server

	mu            sync.Mutex
	pages         []RankingPage
	stats         map[int64]GameStats
	failStats     map[int64]int // universe ID -> status to return
	rankingErrors []int         // statuses to return before serving pages

	RankingRequests int
	StatsRequests   int
	SessionIDs      []string
}

// RankingPage is one scripted page of the ranking walk. Cursor "" on
// the last page ends the walk.
type RankingPage struct {
	UniverseIDs []int64
	Cursor      string
	// Raw overrides the generated payload when set, for shape-drift
	// scenarios.
	Raw string
}

// GameStats is the stats payload served for one universe.
type GameStats struct {
	Name      string
	Developer string
	Playing   int64
	Visits    int64
	Favorites int64
	Likes     int64
	Price     float64
}

// NewMockAPI starts a mock upstream server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		stats:     make(map[int64]GameStats),
		failStats: make(map[int64]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/games/list-ranked", mock.handleRanking)
	mux.HandleFunc("/v1/games", mock.handleStats)
	mock.server = httptest.NewServer(mux)
	return mock
}

// URL returns the mock server base URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// RankingURL returns the full ranking endpoint.
func (m *MockAPI) RankingURL() string {
	return m.server.URL + "/v1/games/list-ranked"
}

// GamesURL returns the full stats endpoint.
func (m *MockAPI) GamesURL() string {
	return m.server.URL + "/v1/games"
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// SetPages scripts the ranking walk.
func (m *MockAPI) SetPages(pages ...RankingPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages = pages
}

// SetStats registers the stats payload for a universe.
func (m *MockAPI) SetStats(universeID int64, stats GameStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[universeID] = stats
}

// FailStats makes the stats endpoint return the given status for one
// universe on every request.
func (m *MockAPI) FailStats(universeID int64, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failStats[universeID] = status
}

// FailRankingOnce queues statuses returned by the ranking endpoint
// before the scripted pages are served.
func (m *MockAPI) FailRankingOnce(statuses ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rankingErrors = append(m.rankingErrors, statuses...)
}

func (m *MockAPI) handleRanking(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RankingRequests++
	m.SessionIDs = append(m.SessionIDs, r.URL.Query().Get("sessionId"))

	if len(m.rankingErrors) > 0 {
		status := m.rankingErrors[0]
		m.rankingErrors = m.rankingErrors[1:]
		m.mu.Unlock()
		w.WriteHeader(status)
		return
	}

	cursor := r.URL.Query().Get("cursor")
	pageIndex := -1
	if cursor == "" {
		pageIndex = 0
	} else {
		for i, page := range m.pages {
			if page.Cursor == cursor {
				pageIndex = i + 1
				break
			}
		}
	}
	if pageIndex < 0 || pageIndex >= len(m.pages) {
		m.mu.Unlock()
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, `{"errors": [{"message": "unknown cursor %s"}]}`, cursor)
		return
	}
	page := m.pages[pageIndex]
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if page.Raw != "" {
		fmt.Fprint(w, page.Raw)
		return
	}

	rows := make([]map[string]any, len(page.UniverseIDs))
	for i, id := range page.UniverseIDs {
		rows[i] = map[string]any{"universeId": id}
	}
	doc := map[string]any{"data": rows}
	if page.Cursor != "" {
		doc["nextPageToken"] = page.Cursor
	}
	json.NewEncoder(w).Encode(doc)
}

func (m *MockAPI) handleStats(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("universeIds"), 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.StatsRequests++
	status, failing := m.failStats[id]
	stats, known := m.stats[id]
	m.mu.Unlock()

	if failing {
		w.WriteHeader(status)
		fmt.Fprint(w, `{"errors": [{"message": "scripted failure"}]}`)
		return
	}
	if !known {
		stats = GameStats{Name: fmt.Sprintf("game-%d", id), Playing: id, Visits: id * 100}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"data": []map[string]any{{
			"id":             id,
			"name":           stats.Name,
			"creator":        map[string]any{"name": stats.Developer},
			"playing":        stats.Playing,
			"visits":         stats.Visits,
			"favoritedCount": stats.Favorites,
			"likes":          stats.Likes,
			"price":          stats.Price,
		}},
	})
}
