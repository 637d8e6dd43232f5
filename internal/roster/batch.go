package roster

import (
	"errors"
	"strings"
)

// DefaultBatchSize is the number of roster entries processed per run
const DefaultBatchSize = 25

// ErrInvalidBatchSize is returned for a batch size below one
var ErrInvalidBatchSize = errors.New("batch size must be positive")

// CityPair is one roster entry
type CityPair struct {
	FetchKey    string `json:"fetch_key"`
	DisplayName string `json:"display_name"`
}

// Name returns the city part of the fetch key
func (p CityPair) Name() string {
	name, _, found := strings.Cut(p.FetchKey, ",")
	if !found {
		return p.DisplayName
	}
	return strings.TrimSpace(name)
}

// Country returns the country code of the fetch key, or "" when it has none
func (p CityPair) Country() string {
	_, country, found := strings.Cut(p.FetchKey, ",")
	if !found {
		return ""
	}
	return strings.TrimSpace(country)
}

// NextBatch returns roster[cursor : cursor+batchSize] and the advanced cursor.
// A cursor at or past the end yields an empty slice and the cursor unchanged;
// a negative cursor is read as 0.
func NextBatch(roster []CityPair, batchSize, cursor int) ([]CityPair, int, error) {
	if batchSize < 1 {
		return nil, cursor, ErrInvalidBatchSize
	}
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= len(roster) {
		return []CityPair{}, cursor, nil
	}

	end := cursor + batchSize
	if end > len(roster) {
		end = len(roster)
	}

	batch := make([]CityPair, end-cursor)
	copy(batch, roster[cursor:end])

	return batch, cursor + len(batch), nil
}

// Remaining reports how many roster entries are left after cursor
func Remaining(roster []CityPair, cursor int) int {
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= len(roster) {
		return 0
	}
	return len(roster) - cursor
}
