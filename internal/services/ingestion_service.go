package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"city-stats-platform/internal/models"
	"city-stats-platform/internal/repository"
	"city-stats-platform/pkg/logging"
	"city-stats-platform/pkg/metrics"
)

const (
	kindWeather    = "weather"
	kindAirQuality = "air_quality"
	kindMetadata   = "city_metadata"
)

// IngestionService writes adapter records into the store
type IngestionService struct {
	repo    repository.CityRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// WriteResult contains per-call ingestion statistics
type WriteResult struct {
	Kind       string
	Received   int
	Written    int
	Duplicates int
	Skipped    int
	Duration   time.Duration
	Errors     []string
}

func newWriteResult(kind string, received int) *WriteResult {
	return &WriteResult{Kind: kind, Received: received, Errors: make([]string, 0)}
}

func (r *WriteResult) skip(reason string) {
	r.Skipped++
	r.Errors = append(r.Errors, reason)
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.CityRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// StoreWeather upserts each record's City and appends its observation.
// Records without a city name are skipped; a storage error aborts the call
// and nothing from it is kept.
func (s *IngestionService) StoreWeather(ctx context.Context, records []models.WeatherRecord) (*WriteResult, error) {
	startTime := time.Now()
	result := newWriteResult(kindWeather, len(records))

	err := s.repo.WithinTx(ctx, func(w repository.CityWriter) error {
		for i := range records {
			rec := &records[i]
			if err := rec.Validate(); err != nil {
				s.skipRecord(ctx, result, i, "validation_error", err)
				continue
			}

			name := strings.TrimSpace(rec.CityName)
			country := strings.TrimSpace(rec.Country)

			cityID, err := w.UpsertCity(ctx, name, country, rec.Latitude, rec.Longitude)
			if err != nil {
				return err
			}

			inserted, err := w.InsertObservation(ctx, rec.ToObservation(cityID))
			if err != nil {
				return err
			}
			if inserted {
				result.Written++
			} else {
				result.Duplicates++
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.storeFailed(ctx, kindWeather, err)
	}

	s.finish(ctx, result, startTime)
	return result, nil
}

// StoreAirQuality attaches each reading to an existing City through its
// station. Readings whose city cannot be resolved are skipped.
func (s *IngestionService) StoreAirQuality(ctx context.Context, records []models.AirQualityRecord) (*WriteResult, error) {
	startTime := time.Now()
	result := newWriteResult(kindAirQuality, len(records))
	pollutants := make(map[string]int64)

	err := s.repo.WithinTx(ctx, func(w repository.CityWriter) error {
		for i := range records {
			rec := &records[i]
			if err := rec.Validate(); err != nil {
				s.skipRecord(ctx, result, i, "validation_error", err)
				continue
			}

			cityID, err := w.ResolveCityID(ctx, strings.TrimSpace(rec.City), strings.TrimSpace(rec.Country))
			var nf *repository.NotFoundError
			if errors.As(err, &nf) {
				s.skipRecord(ctx, result, i, "unknown_city", err)
				continue
			}
			if err != nil {
				return err
			}

			parameter := rec.ParameterName()
			pollutantID, ok := pollutants[parameter]
			if !ok {
				pollutantID, err = w.UpsertPollutant(ctx, parameter, rec.Unit)
				if err != nil {
					return err
				}
				pollutants[parameter] = pollutantID
			}

			stationID, err := w.UpsertStation(ctx, rec.ToStation(cityID))
			if err != nil {
				return err
			}

			inserted, err := w.InsertMeasurement(ctx, rec.ToMeasurement(stationID), pollutantID)
			if err != nil {
				return err
			}
			if inserted {
				result.Written++
			} else {
				result.Duplicates++
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.storeFailed(ctx, kindAirQuality, err)
	}

	s.finish(ctx, result, startTime)
	return result, nil
}

// StoreCityMetadata upserts the geo row and replaces the detail row of each
// record, creating its target City when no stored City matches
func (s *IngestionService) StoreCityMetadata(ctx context.Context, records []models.CityMetadataRecord) (*WriteResult, error) {
	startTime := time.Now()
	result := newWriteResult(kindMetadata, len(records))

	err := s.repo.WithinTx(ctx, func(w repository.CityWriter) error {
		for i := range records {
			rec := &records[i]
			if err := rec.Validate(); err != nil {
				s.skipRecord(ctx, result, i, "validation_error", err)
				continue
			}

			target := rec.TargetCity()
			cityID, err := w.ResolveCityID(ctx, target.Name, target.Country)
			var nf *repository.NotFoundError
			if errors.As(err, &nf) {
				cityID, err = w.UpsertCity(ctx, target.Name, target.Country, rec.Latitude, rec.Longitude)
			}
			if err != nil {
				return err
			}

			if err := w.UpsertGeoCity(ctx, rec.ToGeoCity(cityID)); err != nil {
				return err
			}
			if err := w.ReplaceCityDetail(ctx, rec.ToDetail()); err != nil {
				return err
			}
			result.Written++
		}
		return nil
	})
	if err != nil {
		return nil, s.storeFailed(ctx, kindMetadata, err)
	}

	s.finish(ctx, result, startTime)
	return result, nil
}

func (s *IngestionService) skipRecord(ctx context.Context, result *WriteResult, index int, errorType string, err error) {
	result.skip(fmt.Sprintf("record %d: %v", index, err))
	s.metrics.RecordIngestionError(errorType)
	s.logger.Warn(ctx, "[INGEST_RECORD_SKIPPED] Record skipped", logging.Fields{
		"kind":       result.Kind,
		"index":      index,
		"error_type": errorType,
		"error":      err.Error(),
		"stage":      "VALIDATION",
	})
}

func (s *IngestionService) storeFailed(ctx context.Context, kind string, err error) error {
	s.metrics.RecordIngestionError("storage_error")
	s.logger.Error(ctx, "[INGEST_STORE_ERROR] Store write failed, batch rolled back", logging.Fields{
		"kind":  kind,
		"stage": "STORE",
	}, err)
	return fmt.Errorf("failed to store %s records: %w", kind, err)
}

func (s *IngestionService) finish(ctx context.Context, result *WriteResult, startTime time.Time) {
	result.Duration = time.Since(startTime)

	s.metrics.RecordIngestion(result.Kind, "written", result.Written)
	s.metrics.RecordIngestion(result.Kind, "duplicate", result.Duplicates)
	s.metrics.RecordIngestion(result.Kind, "skipped", result.Skipped)

	s.logger.Info(ctx, "[INGEST_COMPLETE] Records stored", logging.Fields{
		"kind":        result.Kind,
		"received":    result.Received,
		"written":     result.Written,
		"duplicates":  result.Duplicates,
		"skipped":     result.Skipped,
		"duration_ms": result.Duration.Milliseconds(),
		"stage":       "COMPLETE",
	})
}
