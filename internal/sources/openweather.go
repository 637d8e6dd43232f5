package sources

import (
	"context"
	"net/url"
	"strings"
	"time"

	"city-stats-platform/internal/models"
	"city-stats-platform/pkg/logging"
	"city-stats-platform/pkg/metrics"
)

// DefaultOpenWeatherURL is the OpenWeatherMap 2.5 API root
const DefaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5"

// OpenWeatherClient fetches current conditions from OpenWeatherMap
type OpenWeatherClient struct {
	http *httpClient
}

// NewOpenWeatherClient creates an OpenWeatherMap adapter
func NewOpenWeatherClient(cfg ProviderConfig, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *OpenWeatherClient {
	cfg = cfg.withDefaults(DefaultOpenWeatherURL)
	return &OpenWeatherClient{
		http: newHTTPClient("openweather", cfg, logger, metricsCollector),
	}
}

type openWeatherResponse struct {
	Name  *string `json:"name"`
	Dt    *int64  `json:"dt"`
	Coord struct {
		Lat *float64 `json:"lat"`
		Lon *float64 `json:"lon"`
	} `json:"coord"`
	Sys struct {
		Country *string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		Humidity  *float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
	Weather []struct {
		Main string `json:"main"`
	} `json:"weather"`
}

// FetchWeather returns the current weather for a "City,CC" query.
// Fields absent from the response stay nil.
func (c *OpenWeatherClient) FetchWeather(ctx context.Context, query string) (*models.WeatherRecord, error) {
	if c.http.cfg.APIKey == "" {
		return nil, &ProviderError{Provider: c.http.provider, Err: ErrMissingAPIKey}
	}

	values := url.Values{}
	values.Set("q", query)
	values.Set("appid", c.http.cfg.APIKey)
	values.Set("units", "metric")

	var payload openWeatherResponse
	if err := c.http.getJSON(ctx, "/weather", values, nil, &payload); err != nil {
		return nil, err
	}

	record := &models.WeatherRecord{
		Latitude:    payload.Coord.Lat,
		Longitude:   payload.Coord.Lon,
		Temperature: payload.Main.Temp,
		FeelsLike:   payload.Main.FeelsLike,
		Humidity:    payload.Main.Humidity,
		WindSpeed:   payload.Wind.Speed,
	}
	if payload.Name != nil {
		record.CityName = strings.TrimSpace(*payload.Name)
	}
	if payload.Sys.Country != nil {
		record.Country = strings.TrimSpace(*payload.Sys.Country)
	}
	if payload.Dt != nil {
		ts := time.Unix(*payload.Dt, 0).UTC()
		record.Timestamp = &ts
	}
	if len(payload.Weather) > 0 {
		record.WeatherMain = payload.Weather[0].Main
	}

	return record, nil
}
