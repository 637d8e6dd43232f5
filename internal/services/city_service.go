package services

import (
	"context"

	"city-stats-platform/internal/models"
	"city-stats-platform/internal/repository"
	"city-stats-platform/pkg/logging"
	"city-stats-platform/pkg/metrics"
)

// CityService handles canonical city reads
type CityService struct {
	repo    repository.CityRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewCityService creates a new city service
func NewCityService(repo repository.CityRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *CityService {
	return &CityService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ListCities retrieves a page of cities and the total matching count
func (s *CityService) ListCities(ctx context.Context, opts models.CityListOptions) ([]*models.City, int, error) {
	total, err := s.repo.CountCities(ctx, opts.Country)
	if err != nil {
		return nil, 0, err
	}

	cities, err := s.repo.ListCities(ctx, opts)
	if err != nil {
		return nil, 0, err
	}

	return cities, total, nil
}

// HealthCheck reports whether the store is reachable
func (s *CityService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}
