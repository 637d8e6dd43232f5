package sources

import (
	"fmt"
	"strings"

	"city-stats-platform/internal/models"
	"city-stats-platform/internal/roster"
)

const (
	fallbackBasePopulation = 150000
	fallbackPopulationStep = 50000
)

// FallbackCityMetadata synthesizes deterministic metadata for the roster
// entry at index idx. It is used only when offline metadata is enabled and
// GeoDB cannot be reached.
func FallbackCityMetadata(pair roster.CityPair, idx int) models.CityMetadataRecord {
	population := int64(fallbackBasePopulation + fallbackPopulationStep*(idx%10))
	name := pair.Name()

	return models.CityMetadataRecord{
		GeoDBID:    fmt.Sprintf("local-%d-%s", idx, strings.ReplaceAll(name, " ", "_")),
		Name:       name,
		Country:    pair.Country(),
		Population: &population,
	}
}
