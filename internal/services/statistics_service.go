package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"city-stats-platform/internal/models"
	"city-stats-platform/internal/repository"
	"city-stats-platform/pkg/logging"
	"city-stats-platform/pkg/metrics"
)

// StatisticsService joins the stored sources into per-city summaries
type StatisticsService struct {
	repo    repository.CityRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(repo repository.CityRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *StatisticsService {
	return &StatisticsService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ComputeCityStats returns one summary per city that has both weather and
// pm25 data, ordered by city name then country. The whole store is read,
// not only the latest batch.
func (s *StatisticsService) ComputeCityStats(ctx context.Context) ([]models.CityStatsSummary, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[STATS_CALC_START] Starting city statistics aggregation", logging.Fields{
		"stage": "INITIALIZATION",
	})

	rows, err := s.repo.ComputeCityStats(ctx)
	if err != nil {
		s.logger.Error(ctx, "[STATS_CALC_ERROR] City statistics aggregation failed", logging.Fields{
			"stage": "QUERY",
		}, err)
		return nil, fmt.Errorf("failed to aggregate city stats: %w", err)
	}

	summaries := make([]models.CityStatsSummary, 0, len(rows))
	withoutPopulation := 0
	for i := range rows {
		summary := rows[i].ToSummary()
		if summary.Population == nil {
			withoutPopulation++
		}
		summaries = append(summaries, summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].City != summaries[j].City {
			return summaries[i].City < summaries[j].City
		}
		return summaries[i].Country < summaries[j].Country
	})

	s.metrics.AggregatedCities.Set(float64(len(summaries)))

	s.logger.Info(ctx, "[STATS_CALC_COMPLETE] City statistics aggregated", logging.Fields{
		"cities":             len(summaries),
		"without_population": withoutPopulation,
		"duration_ms":        time.Since(startTime).Milliseconds(),
		"stage":              "COMPLETE",
	})

	return summaries, nil
}

// FilterByCategory keeps the summaries whose category equals category
func FilterByCategory(summaries []models.CityStatsSummary, category models.AQCategory) []models.CityStatsSummary {
	filtered := make([]models.CityStatsSummary, 0, len(summaries))
	for _, s := range summaries {
		if s.AQCategory != nil && *s.AQCategory == category {
			filtered = append(filtered, s)
		}
	}
	return filtered
}
