package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"city-stats-platform/internal/models"
	"city-stats-platform/pkg/database"
	"city-stats-platform/pkg/logging"
	"city-stats-platform/pkg/metrics"
)

// CityRepository provides data access for cities and their joined facts
type CityRepository interface {
	// WithinTx runs fn with a writer bound to a single transaction
	WithinTx(ctx context.Context, fn func(w CityWriter) error) error

	// Aggregation
	ComputeCityStats(ctx context.Context) ([]models.CityStatsRow, error)

	// City reads
	ListCities(ctx context.Context, opts models.CityListOptions) ([]*models.City, error)
	CountCities(ctx context.Context, country string) (int, error)
	GetCity(ctx context.Context, name, country string) (*models.City, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// CityWriter holds the ingestion writes. Every insert is idempotent on its
// natural key so a retried batch does not duplicate facts.
type CityWriter interface {
	UpsertCity(ctx context.Context, name, country string, lat, lon *float64) (int64, error)
	ResolveCityID(ctx context.Context, name, country string) (int64, error)
	InsertObservation(ctx context.Context, obs *models.WeatherObservation) (bool, error)
	UpsertPollutant(ctx context.Context, parameter, unit string) (int64, error)
	UpsertStation(ctx context.Context, station *models.AirQualityStation) (int64, error)
	InsertMeasurement(ctx context.Context, m *models.AirQualityMeasurement, pollutantID int64) (bool, error)
	UpsertGeoCity(ctx context.Context, geo *models.GeoCity) error
	ReplaceCityDetail(ctx context.Context, detail *models.CityDetail) error
}

// cityRepository implements CityRepository
type cityRepository struct {
	db      *database.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewCityRepository creates a new city repository
func NewCityRepository(db *database.DB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) CityRepository {
	return &cityRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// WithinTx commits when fn returns nil and rolls back otherwise
func (r *cityRepository) WithinTx(ctx context.Context, fn func(w CityWriter) error) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		return fn(&cityWriter{exec: tx, logger: r.logger})
	})
}

const cityStatsQuery = `
	SELECT c.id AS city_id, c.city_name, c.country,
	       w.avg_temp, a.avg_pm25, p.population,
	       w.observation_count, a.measurement_count
	FROM cities c
	JOIN (
		SELECT city_id, AVG(temperature) AS avg_temp, COUNT(*) AS observation_count
		FROM weather_observations
		GROUP BY city_id
	) w ON w.city_id = c.id
	JOIN (
		SELECT s.city_id, AVG(m.value) AS avg_pm25, COUNT(*) AS measurement_count
		FROM air_quality_measurements m
		JOIN air_quality_stations s ON s.id = m.station_id
		JOIN pollutants pl ON pl.id = m.pollutant_id
		WHERE pl.parameter = ?
		GROUP BY s.city_id
	) a ON a.city_id = c.id
	LEFT JOIN geo_cities g ON g.id = (
		SELECT g2.id
		FROM geo_cities g2
		JOIN city_details d2 ON d2.geodb_id = g2.geodb_id
		WHERE g2.city_id = c.id
		ORDER BY d2.updated_at DESC, g2.id DESC
		LIMIT 1
	)
	LEFT JOIN city_details p ON p.geodb_id = g.geodb_id
	ORDER BY c.city_name, c.country
`

// ComputeCityStats joins weather and pm25 (inner) with population (left).
// Each side is aggregated per city before the join so fan-out between
// observations and measurements cannot skew the means. A city with several
// geo rows takes the population of the most recently replaced detail.
func (r *cityRepository) ComputeCityStats(ctx context.Context) ([]models.CityStatsRow, error) {
	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.metrics.AggregationDuration.Observe(duration.Seconds())
		r.logger.Debug(ctx, "[REPO_CITY_STATS] City statistics computed", logging.Fields{
			"duration_ms": duration.Milliseconds(),
		})
	}()

	var rows []models.CityStatsRow
	if err := r.db.SelectContext(ctx, "compute_city_stats", &rows, cityStatsQuery, models.ParameterPM25); err != nil {
		return nil, fmt.Errorf("failed to compute city stats: %w", err)
	}

	return rows, nil
}

// ListCities retrieves canonical cities with pagination
func (r *cityRepository) ListCities(ctx context.Context, opts models.CityListOptions) ([]*models.City, error) {
	query := `
		SELECT id, city_name, country, latitude, longitude, created_at
		FROM cities
		WHERE 1=1
	`
	args := []interface{}{}

	if opts.Country != "" {
		query += " AND country = ?"
		args = append(args, opts.Country)
	}

	query += " ORDER BY city_name, country LIMIT ? OFFSET ?"
	args = append(args, opts.Limit, opts.Offset)

	var cities []*models.City
	if err := r.db.SelectContext(ctx, "list_cities", &cities, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list cities: %w", err)
	}

	return cities, nil
}

// CountCities counts cities, optionally restricted to one country
func (r *cityRepository) CountCities(ctx context.Context, country string) (int, error) {
	query := "SELECT COUNT(*) FROM cities"
	args := []interface{}{}
	if country != "" {
		query += " WHERE country = ?"
		args = append(args, country)
	}

	var count int
	if err := r.db.GetContext(ctx, "count_cities", &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count cities: %w", err)
	}
	return count, nil
}

// GetCity retrieves a city by its natural key
func (r *cityRepository) GetCity(ctx context.Context, name, country string) (*models.City, error) {
	query := `
		SELECT id, city_name, country, latitude, longitude, created_at
		FROM cities
		WHERE city_name = ? AND country = ?
	`

	var city models.City
	err := r.db.GetContext(ctx, "get_city", &city, query, name, country)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{
			Resource: "city",
			ID:       cityKey(name, country),
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get city: %w", err)
	}

	return &city, nil
}

// HealthCheck performs a repository health check
func (r *cityRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// cityWriter implements CityWriter over any executor
type cityWriter struct {
	exec   database.Executor
	logger *logging.StructuredLogger
}

// UpsertCity inserts the city if its (name, country) key is new and returns
// its id. An existing row, coordinates included, is left untouched.
func (w *cityWriter) UpsertCity(ctx context.Context, name, country string, lat, lon *float64) (int64, error) {
	_, err := w.exec.ExecContext(ctx, "upsert_city", `
		INSERT INTO cities (city_name, name_key, country, latitude, longitude)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (city_name, country) DO NOTHING
	`, name, models.NormalizeKey(name), country, lat, lon)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert city: %w", err)
	}

	var id int64
	if err := w.exec.GetContext(ctx, "get_city_id", &id,
		"SELECT id FROM cities WHERE city_name = ? AND country = ?", name, country); err != nil {
		return 0, fmt.Errorf("failed to read city id: %w", err)
	}

	return id, nil
}

// ResolveCityID finds an existing city by exact key, then by normalized name
// within the same country (any country when none is given; lowest id wins).
// It never creates a city.
func (w *cityWriter) ResolveCityID(ctx context.Context, name, country string) (int64, error) {
	var id int64
	err := w.exec.GetContext(ctx, "resolve_city_exact", &id,
		"SELECT id FROM cities WHERE city_name = ? AND country = ?", name, country)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to resolve city: %w", err)
	}

	code := strings.ToUpper(strings.TrimSpace(country))
	err = w.exec.GetContext(ctx, "resolve_city_name", &id, `
		SELECT id FROM cities
		WHERE name_key = ? AND (? = '' OR UPPER(country) = ?)
		ORDER BY id
		LIMIT 1
	`, models.NormalizeKey(name), code, code)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &NotFoundError{Resource: "city", ID: cityKey(name, country)}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve city: %w", err)
	}

	return id, nil
}

// InsertObservation appends an observation; it reports false when the
// (city, timestamp) pair was already stored
func (w *cityWriter) InsertObservation(ctx context.Context, obs *models.WeatherObservation) (bool, error) {
	result, err := w.exec.ExecContext(ctx, "insert_observation", `
		INSERT INTO weather_observations (
			city_id, observed_at, temperature, feels_like, humidity, wind_speed, weather_main
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (city_id, observed_at) DO NOTHING
	`,
		obs.CityID,
		obs.ObservedAt,
		obs.Temperature,
		obs.FeelsLike,
		obs.Humidity,
		obs.WindSpeed,
		obs.WeatherMain,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert observation: %w", err)
	}

	return inserted(result)
}

// UpsertPollutant returns the id of the pollutant parameter, creating it if needed
func (w *cityWriter) UpsertPollutant(ctx context.Context, parameter, unit string) (int64, error) {
	_, err := w.exec.ExecContext(ctx, "upsert_pollutant", `
		INSERT INTO pollutants (parameter, unit)
		VALUES (?, ?)
		ON CONFLICT (parameter) DO NOTHING
	`, parameter, nullString(unit))
	if err != nil {
		return 0, fmt.Errorf("failed to upsert pollutant: %w", err)
	}

	var id int64
	if err := w.exec.GetContext(ctx, "get_pollutant_id", &id,
		"SELECT id FROM pollutants WHERE parameter = ?", parameter); err != nil {
		return 0, fmt.Errorf("failed to read pollutant id: %w", err)
	}
	return id, nil
}

// UpsertStation returns the id of the station keyed by (city, location name)
func (w *cityWriter) UpsertStation(ctx context.Context, station *models.AirQualityStation) (int64, error) {
	_, err := w.exec.ExecContext(ctx, "upsert_station", `
		INSERT INTO air_quality_stations (city_id, location_name, latitude, longitude)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (city_id, location_name) DO NOTHING
	`, station.CityID, station.LocationName, station.Latitude, station.Longitude)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert station: %w", err)
	}

	if err := w.exec.GetContext(ctx, "get_station_id", &station.ID,
		"SELECT id FROM air_quality_stations WHERE city_id = ? AND location_name = ?",
		station.CityID, station.LocationName); err != nil {
		return 0, fmt.Errorf("failed to read station id: %w", err)
	}
	return station.ID, nil
}

// InsertMeasurement appends a reading; it reports false for a duplicate
// (station, pollutant, timestamp)
func (w *cityWriter) InsertMeasurement(ctx context.Context, m *models.AirQualityMeasurement, pollutantID int64) (bool, error) {
	result, err := w.exec.ExecContext(ctx, "insert_measurement", `
		INSERT INTO air_quality_measurements (station_id, pollutant_id, measured_at, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (station_id, pollutant_id, measured_at) DO NOTHING
	`, m.StationID, pollutantID, m.MeasuredAt, m.Value)
	if err != nil {
		return false, fmt.Errorf("failed to insert measurement: %w", err)
	}

	return inserted(result)
}

// UpsertGeoCity inserts or refreshes the geo row for a geo id
func (w *cityWriter) UpsertGeoCity(ctx context.Context, geo *models.GeoCity) error {
	_, err := w.exec.ExecContext(ctx, "upsert_geo_city", `
		INSERT INTO geo_cities (geodb_id, city_id, city_name, country, region, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (geodb_id) DO UPDATE SET
			city_id = excluded.city_id,
			city_name = excluded.city_name,
			country = excluded.country,
			region = excluded.region,
			latitude = excluded.latitude,
			longitude = excluded.longitude
	`,
		geo.GeoDBID,
		geo.CityID,
		geo.CityName,
		geo.Country,
		geo.Region,
		geo.Latitude,
		geo.Longitude,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert geo city: %w", err)
	}

	w.logger.Debug(ctx, "[REPO_UPSERT_GEO_CITY] Geo city stored", logging.Fields{
		"geodb_id": geo.GeoDBID,
		"city_id":  geo.CityID,
	})

	return nil
}

// ReplaceCityDetail overwrites every detail column, nulls included
func (w *cityWriter) ReplaceCityDetail(ctx context.Context, detail *models.CityDetail) error {
	_, err := w.exec.ExecContext(ctx, "replace_city_detail", `
		INSERT INTO city_details (geodb_id, population, elevation, density, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (geodb_id) DO UPDATE SET
			population = excluded.population,
			elevation = excluded.elevation,
			density = excluded.density,
			updated_at = excluded.updated_at
	`, detail.GeoDBID, detail.Population, detail.Elevation, detail.Density, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to replace city detail: %w", err)
	}
	return nil
}

func inserted(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func cityKey(name, country string) string {
	if country == "" {
		return name
	}
	return name + ", " + country
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
