package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"city-stats-platform/internal/models"
	"city-stats-platform/pkg/logging"
	"city-stats-platform/pkg/metrics"
)

const (
	// DefaultGeoDBURL is the key-less GeoDB free service
	DefaultGeoDBURL = "http://geodb-free-service.wirefreethought.com/v1/geo"

	geoDBRapidAPIHost = "wft-geo-db.p.rapidapi.com"
)

// GeoDBClient fetches city metadata from GeoDB Cities
type GeoDBClient struct {
	http *httpClient
}

// NewGeoDBClient creates a GeoDB Cities adapter
func NewGeoDBClient(cfg ProviderConfig, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *GeoDBClient {
	cfg = cfg.withDefaults(DefaultGeoDBURL)
	return &GeoDBClient{
		http: newHTTPClient("geodb", cfg, logger, metricsCollector),
	}
}

type geoDBResponse struct {
	Data []struct {
		ID          json.RawMessage `json:"id"`
		WikiDataID  string          `json:"wikiDataId"`
		City        string          `json:"city"`
		Name        string          `json:"name"`
		Country     string          `json:"country"`
		CountryCode string          `json:"countryCode"`
		Region      string          `json:"region"`
		Latitude    *float64        `json:"latitude"`
		Longitude   *float64        `json:"longitude"`
		Population  *int64          `json:"population"`
		Elevation   *int64          `json:"elevationMeters"`
	} `json:"data"`
}

// FetchCityMetadata returns the most populous cities matching the query
func (c *GeoDBClient) FetchCityMetadata(ctx context.Context, q models.CityMetadataQuery) ([]models.CityMetadataRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 1
	}

	values := url.Values{}
	if q.NamePrefix != "" {
		values.Set("namePrefix", q.NamePrefix)
	}
	if q.CountryCode != "" {
		values.Set("countryIds", q.CountryCode)
	}
	values.Set("minPopulation", strconv.Itoa(q.MinPopulation))
	values.Set("limit", strconv.Itoa(limit))
	values.Set("offset", "0")
	values.Set("sort", "-population")
	values.Set("hateoasMode", "off")

	var header http.Header
	if c.http.cfg.APIKey != "" {
		header = http.Header{
			"X-RapidAPI-Key":  []string{c.http.cfg.APIKey},
			"X-RapidAPI-Host": []string{geoDBRapidAPIHost},
		}
	}

	var payload geoDBResponse
	if err := c.http.getJSON(ctx, "/cities", values, header, &payload); err != nil {
		return nil, err
	}

	records := make([]models.CityMetadataRecord, 0, len(payload.Data))
	for _, item := range payload.Data {
		name := item.City
		if name == "" {
			name = item.Name
		}
		country := item.CountryCode
		if country == "" {
			country = item.Country
		}

		records = append(records, models.CityMetadataRecord{
			GeoDBID:    geoDBID(item.ID, item.WikiDataID),
			Name:       name,
			Country:    country,
			Region:     item.Region,
			Population: item.Population,
			Elevation:  item.Elevation,
			Latitude:   item.Latitude,
			Longitude:  item.Longitude,
		})
	}

	return records, nil
}

// geoDBID accepts numeric or string ids
func geoDBID(raw json.RawMessage, wikiDataID string) string {
	id := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if id == "" || id == "null" {
		return wikiDataID
	}
	return id
}
