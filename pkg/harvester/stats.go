package harvester

import (
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// ErrNoStats is returned when a stats response contains no record for
// the requested universe.
var ErrNoStats = errors.New("no stats record in response")

// GameStats is the normalized per-universe record fed downstream. The
// field set matches what the index computation consumes: player
// metrics, visit/favorite counts, and price.
type GameStats struct {
	UniverseID int64   `json:"universeId"`
	Name       string  `json:"name"`
	Developer  string  `json:"developer"`
	Playing    int64   `json:"playing"`
	Visits     int64   `json:"visits"`
	Favorites  int64   `json:"favorites"`
	Likes      int64   `json:"likes"`
	Price      float64 `json:"price"`
	Rank       int     `json:"rank"`
}

// gameRecord mirrors one entry of the upstream games response. Decoded
// weakly typed: the upstream sometimes serializes counts as strings.
type gameRecord struct {
	ID             int64   `mapstructure:"id"`
	Name           string  `mapstructure:"name"`
	Playing        int64   `mapstructure:"playing"`
	Visits         int64   `mapstructure:"visits"`
	FavoritedCount int64   `mapstructure:"favoritedCount"`
	Likes          int64   `mapstructure:"likes"`
	Price          float64 `mapstructure:"price"`
	Creator        struct {
		Name string `mapstructure:"name"`
	} `mapstructure:"creator"`
}

// normalizeStats extracts the record for universeID from a decoded
// stats response of shape {"data": [...]} and normalizes it. A missing
// or mismatched record is a terminal per-item error.
func normalizeStats(response any, universeID int64) (*GameStats, error) {
	obj, ok := response.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: response is %T, want object", ErrNoStats, response)
	}
	rows, ok := obj["data"].([]any)
	if !ok || len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty data array", ErrNoStats)
	}

	for _, row := range rows {
		var record gameRecord
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &record,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, fmt.Errorf("build stats decoder: %w", err)
		}
		if err := decoder.Decode(row); err != nil {
			continue
		}
		if record.ID != universeID {
			continue
		}
		return &GameStats{
			UniverseID: record.ID,
			Name:       record.Name,
			Developer:  record.Creator.Name,
			Playing:    record.Playing,
			Visits:     record.Visits,
			Favorites:  record.FavoritedCount,
			Likes:      record.Likes,
			Price:      record.Price,
		}, nil
	}
	return nil, fmt.Errorf("%w: universe %d not in response", ErrNoStats, universeID)
}
