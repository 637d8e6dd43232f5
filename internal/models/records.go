package models

import (
	"fmt"
	"strings"
	"time"
)

// WeatherRecord is the provider-agnostic weather adapter output.
// Any field the provider did not send stays nil/empty.
type WeatherRecord struct {
	CityName    string     `json:"city_name"`
	Country     string     `json:"country"`
	Latitude    *float64   `json:"latitude"`
	Longitude   *float64   `json:"longitude"`
	Timestamp   *time.Time `json:"timestamp"`
	Temperature *float64   `json:"temperature"`
	FeelsLike   *float64   `json:"feels_like"`
	Humidity    *float64   `json:"humidity"`
	WindSpeed   *float64   `json:"wind_speed"`
	WeatherMain string     `json:"weather_main"`
}

// Validate checks the natural key needed to resolve the City
func (r *WeatherRecord) Validate() error {
	if strings.TrimSpace(r.CityName) == "" {
		return &ValidationError{Field: "city_name", Message: "weather record has no city name"}
	}
	return nil
}

// ToObservation converts the record into an observation row for cityID
func (r *WeatherRecord) ToObservation(cityID int64) *WeatherObservation {
	obs := &WeatherObservation{
		CityID:      cityID,
		Temperature: r.Temperature,
		FeelsLike:   r.FeelsLike,
		Humidity:    r.Humidity,
		WindSpeed:   r.WindSpeed,
	}
	if r.Timestamp != nil {
		ts := r.Timestamp.UTC()
		obs.ObservedAt = &ts
	}
	if main := strings.TrimSpace(r.WeatherMain); main != "" {
		obs.WeatherMain = &main
	}
	return obs
}

// AirQualityRecord is the provider-agnostic air-quality adapter output
type AirQualityRecord struct {
	City      string     `json:"city"`
	Country   string     `json:"country,omitempty"`
	Location  string     `json:"location"`
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Parameter string     `json:"parameter,omitempty"`
	PM25      *float64   `json:"pm25"`
	Unit      string     `json:"unit"`
}

// Validate checks the keys needed to resolve the City and Station
func (r *AirQualityRecord) Validate() error {
	if strings.TrimSpace(r.City) == "" {
		return &ValidationError{Field: "city", Message: "air quality record has no city"}
	}
	if strings.TrimSpace(r.Location) == "" {
		return &ValidationError{Field: "location", Value: r.City, Message: "air quality record has no location name"}
	}
	return nil
}

// ParameterName returns the pollutant parameter, defaulting to pm25
func (r *AirQualityRecord) ParameterName() string {
	if p := NormalizeKey(r.Parameter); p != "" {
		return p
	}
	return ParameterPM25
}

// ToStation converts the record into a station row for cityID
func (r *AirQualityRecord) ToStation(cityID int64) *AirQualityStation {
	return &AirQualityStation{
		CityID:       cityID,
		LocationName: strings.TrimSpace(r.Location),
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
	}
}

// ToMeasurement converts the record into a measurement row for stationID
func (r *AirQualityRecord) ToMeasurement(stationID int64) *AirQualityMeasurement {
	m := &AirQualityMeasurement{
		StationID: stationID,
		Parameter: r.ParameterName(),
		Unit:      r.Unit,
		Value:     r.PM25,
	}
	if r.Timestamp != nil {
		ts := r.Timestamp.UTC()
		m.MeasuredAt = &ts
	}
	return m
}

// CityMetadataRecord is the provider-agnostic city-metadata adapter output
type CityMetadataRecord struct {
	GeoDBID    string   `json:"geodb_id"`
	Name       string   `json:"name"`
	Country    string   `json:"country"`
	Region     string   `json:"region"`
	Population *int64   `json:"population"`
	Elevation  *int64   `json:"elevation,omitempty"`
	Density    *float64 `json:"density,omitempty"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`

	// ResolveAs names the canonical city this record describes when the
	// provider's spelling differs from it
	ResolveAs *CityKey `json:"-"`
}

// CityKey is a city's natural key
type CityKey struct {
	Name    string
	Country string
}

// TargetCity returns the key used to attach the record to a City
func (r *CityMetadataRecord) TargetCity() CityKey {
	if r.ResolveAs != nil {
		return *r.ResolveAs
	}
	return CityKey{Name: strings.TrimSpace(r.Name), Country: strings.TrimSpace(r.Country)}
}

// Validate checks the city name; a missing geo id is synthesized instead
func (r *CityMetadataRecord) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return &ValidationError{Field: "name", Value: r.GeoDBID, Message: "city metadata record has no name"}
	}
	return nil
}

// ResolvedGeoDBID returns the provider id, or "<name>-<country>" when absent
func (r *CityMetadataRecord) ResolvedGeoDBID() string {
	if id := strings.TrimSpace(r.GeoDBID); id != "" {
		return id
	}
	return fmt.Sprintf("%s-%s", strings.TrimSpace(r.Name), strings.TrimSpace(r.Country))
}

// ToGeoCity converts the record into a geo city row for cityID
func (r *CityMetadataRecord) ToGeoCity(cityID int64) *GeoCity {
	g := &GeoCity{
		GeoDBID:   r.ResolvedGeoDBID(),
		CityID:    cityID,
		CityName:  strings.TrimSpace(r.Name),
		Country:   strings.TrimSpace(r.Country),
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
	}
	if region := strings.TrimSpace(r.Region); region != "" {
		g.Region = &region
	}
	return g
}

// ToDetail converts the record into the replaceable detail row
func (r *CityMetadataRecord) ToDetail() *CityDetail {
	return &CityDetail{
		GeoDBID:    r.ResolvedGeoDBID(),
		Population: r.Population,
		Elevation:  r.Elevation,
		Density:    r.Density,
	}
}

// AirQualityQuery locates the monitoring station nearest to a city
type AirQualityQuery struct {
	City      string
	Country   string
	Latitude  *float64
	Longitude *float64
}

// CityMetadataQuery selects city metadata by name prefix
type CityMetadataQuery struct {
	NamePrefix    string
	CountryCode   string
	MinPopulation int
	Limit         int
}

// ValidationError represents a record that cannot be written
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
