package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"city-stats-platform/internal/models"
	"city-stats-platform/pkg/logging"
	"city-stats-platform/pkg/metrics"
)

const (
	// DefaultOpenAQURL is the OpenAQ v3 API root
	DefaultOpenAQURL = "https://api.openaq.org/v3"

	// openAQPM25ParameterID is OpenAQ's id for PM2.5
	openAQPM25ParameterID = 2
	// openAQMaxRadius is the largest search radius v3 accepts, in meters
	openAQMaxRadius = 25000
)

// OpenAQClient looks up the nearest PM2.5 station and its latest reading
type OpenAQClient struct {
	http   *httpClient
	logger *logging.StructuredLogger
}

// NewOpenAQClient creates an OpenAQ v3 adapter
func NewOpenAQClient(cfg ProviderConfig, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *OpenAQClient {
	cfg = cfg.withDefaults(DefaultOpenAQURL)
	return &OpenAQClient{
		http:   newHTTPClient("openaq", cfg, logger, metricsCollector),
		logger: logger,
	}
}

type openAQCoordinates struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type openAQLocationsResponse struct {
	Results []struct {
		ID          int64             `json:"id"`
		Name        string            `json:"name"`
		Coordinates openAQCoordinates `json:"coordinates"`
		Sensors     []struct {
			ID        int64 `json:"id"`
			Parameter struct {
				ID    int    `json:"id"`
				Name  string `json:"name"`
				Units string `json:"units"`
			} `json:"parameter"`
		} `json:"sensors"`
	} `json:"results"`
}

type openAQLatestResponse struct {
	Results []struct {
		Datetime struct {
			UTC string `json:"utc"`
		} `json:"datetime"`
		Value       *float64          `json:"value"`
		Coordinates openAQCoordinates `json:"coordinates"`
		SensorsID   int64             `json:"sensorsId"`
	} `json:"results"`
}

func (c *OpenAQClient) headers() http.Header {
	return http.Header{"X-API-Key": []string{c.http.cfg.APIKey}}
}

// FetchAirQuality returns the latest PM2.5 reading of the monitoring
// location nearest to the query coordinates
func (c *OpenAQClient) FetchAirQuality(ctx context.Context, q models.AirQualityQuery) (*models.AirQualityRecord, error) {
	if c.http.cfg.APIKey == "" {
		return nil, &ProviderError{Provider: c.http.provider, Err: ErrMissingAPIKey}
	}
	if q.Latitude == nil || q.Longitude == nil {
		return nil, &ProviderError{Provider: c.http.provider, Err: fmt.Errorf("%s: %w", q.City, ErrNoCoordinates)}
	}

	values := url.Values{}
	values.Set("coordinates", fmt.Sprintf("%.4f,%.4f", *q.Latitude, *q.Longitude))
	values.Set("radius", strconv.Itoa(openAQMaxRadius))
	values.Set("parameters_id", strconv.Itoa(openAQPM25ParameterID))
	values.Set("limit", "1")

	var locations openAQLocationsResponse
	if err := c.http.getJSON(ctx, "/locations", values, c.headers(), &locations); err != nil {
		return nil, err
	}
	if len(locations.Results) == 0 {
		return nil, &ProviderError{Provider: c.http.provider, Err: fmt.Errorf("no pm25 location near %s: %w", q.City, ErrNoData)}
	}

	location := locations.Results[0]
	var sensorID int64
	unit := "µg/m³"
	for _, s := range location.Sensors {
		if s.Parameter.ID == openAQPM25ParameterID || models.NormalizeKey(s.Parameter.Name) == models.ParameterPM25 {
			sensorID = s.ID
			if s.Parameter.Units != "" {
				unit = s.Parameter.Units
			}
			break
		}
	}

	var latest openAQLatestResponse
	if err := c.http.getJSON(ctx, fmt.Sprintf("/locations/%d/latest", location.ID), nil, c.headers(), &latest); err != nil {
		return nil, err
	}

	for _, r := range latest.Results {
		if sensorID != 0 && r.SensorsID != sensorID {
			continue
		}
		if r.Value == nil {
			continue
		}

		record := &models.AirQualityRecord{
			City:      q.City,
			Country:   q.Country,
			Location:  location.Name,
			Latitude:  location.Coordinates.Latitude,
			Longitude: location.Coordinates.Longitude,
			Parameter: models.ParameterPM25,
			PM25:      r.Value,
			Unit:      unit,
		}
		if record.Latitude == nil {
			record.Latitude, record.Longitude = r.Coordinates.Latitude, r.Coordinates.Longitude
		}
		if record.Location == "" {
			record.Location = fmt.Sprintf("OpenAQ location %d", location.ID)
		}
		if ts, err := time.Parse(time.RFC3339, r.Datetime.UTC); err == nil {
			ts = ts.UTC()
			record.Timestamp = &ts
		}
		return record, nil
	}

	c.logger.Debug(ctx, "[SOURCE_NO_READING] Location has no pm25 reading", logging.Fields{
		"provider":    c.http.provider,
		"city":        q.City,
		"location_id": location.ID,
	})
	return nil, &ProviderError{Provider: c.http.provider, Err: fmt.Errorf("no pm25 reading for %s: %w", q.City, ErrNoData)}
}
