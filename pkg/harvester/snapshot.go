package harvester

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rankwatch/roblox-harvester/pkg/pagination"
)

// snapshotRecord is one row of the daily run snapshot, ordered by
// discovery rank. Failed universes keep their row with an explicit
// error marker so downstream consumers see every requested ID.
type snapshotRecord struct {
	Rank       int     `json:"rank"`
	UniverseID int64   `json:"universeId"`
	Name       string  `json:"name,omitempty"`
	Developer  string  `json:"developer,omitempty"`
	Playing    int64   `json:"playing"`
	Visits     int64   `json:"visits"`
	Favorites  int64   `json:"favorites"`
	Likes      int64   `json:"likes"`
	Price      float64 `json:"price"`
	Error      string  `json:"error,omitempty"`
}

// writeSnapshot writes the run snapshot under
// runsDir/<date>/<date>_<sortId>_top<N>_enriched.json as a JSON array
// in rank order, the layout the downstream index engine discovers.
func writeSnapshot(config Config, date string, ranked []pagination.RankedID, result HarvestResult) (string, error) {
	records := make([]snapshotRecord, 0, len(ranked))
	for _, r := range ranked {
		record := snapshotRecord{
			Rank:       r.Rank,
			UniverseID: r.UniverseID,
		}
		outcome, ok := result[r.UniverseID]
		switch {
		case !ok:
			record.Error = "no result recorded"
		case outcome.Err != "":
			record.Error = outcome.Err
		default:
			stats := outcome.Stats
			record.Name = stats.Name
			record.Developer = stats.Developer
			record.Playing = stats.Playing
			record.Visits = stats.Visits
			record.Favorites = stats.Favorites
			record.Likes = stats.Likes
			record.Price = stats.Price
		}
		records = append(records, record)
	}

	dir := filepath.Join(config.RunsDir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s_top%d_enriched.json", date, config.SortID, config.TopN)
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}
