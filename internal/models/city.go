package models

import (
	"strings"
	"time"
)

// City is the canonical city row, identified by (name, country)
type City struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"city" db:"city_name"`
	Country   string    `json:"country" db:"country"`
	Latitude  *float64  `json:"latitude,omitempty" db:"latitude"`
	Longitude *float64  `json:"longitude,omitempty" db:"longitude"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// WeatherObservation is one point of a city's weather time series.
// NULL values are represented as pointers.
type WeatherObservation struct {
	ID          int64      `json:"id" db:"id"`
	CityID      int64      `json:"city_id" db:"city_id"`
	ObservedAt  *time.Time `json:"observed_at,omitempty" db:"observed_at"`
	Temperature *float64   `json:"temperature,omitempty" db:"temperature"`
	FeelsLike   *float64   `json:"feels_like,omitempty" db:"feels_like"`
	Humidity    *float64   `json:"humidity,omitempty" db:"humidity"`
	WindSpeed   *float64   `json:"wind_speed,omitempty" db:"wind_speed"`
	WeatherMain *string    `json:"weather_main,omitempty" db:"weather_main"`
}

// AirQualityStation is a monitoring location attached to a city
type AirQualityStation struct {
	ID           int64    `json:"id" db:"id"`
	CityID       int64    `json:"city_id" db:"city_id"`
	LocationName string   `json:"location_name" db:"location_name"`
	Latitude     *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude    *float64 `json:"longitude,omitempty" db:"longitude"`
}

// AirQualityMeasurement is one pollutant reading at a station
type AirQualityMeasurement struct {
	ID         int64      `json:"id" db:"id"`
	StationID  int64      `json:"station_id" db:"station_id"`
	Parameter  string     `json:"parameter" db:"parameter"`
	Unit       string     `json:"unit" db:"unit"`
	MeasuredAt *time.Time `json:"measured_at,omitempty" db:"measured_at"`
	Value      *float64   `json:"value,omitempty" db:"value"`
}

// GeoCity is the GeoDB view of a city, keyed by the provider's geo id
type GeoCity struct {
	GeoDBID   string   `json:"geodb_id" db:"geodb_id"`
	CityID    int64    `json:"city_id" db:"city_id"`
	CityName  string   `json:"city" db:"city_name"`
	Country   string   `json:"country" db:"country"`
	Region    *string  `json:"region,omitempty" db:"region"`
	Latitude  *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude *float64 `json:"longitude,omitempty" db:"longitude"`
}

// CityDetail holds the replaceable GeoDB extras for one geo id
type CityDetail struct {
	GeoDBID    string   `json:"geodb_id" db:"geodb_id"`
	Population *int64   `json:"population,omitempty" db:"population"`
	Elevation  *int64   `json:"elevation,omitempty" db:"elevation"`
	Density    *float64 `json:"density,omitempty" db:"density"`
}

// ParameterPM25 is the only pollutant consumed by aggregation
const ParameterPM25 = "pm25"

// NormalizeKey prepares a natural-key string for soft matching
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
