package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"city-stats-platform/internal/models"
	"city-stats-platform/internal/progress"
	"city-stats-platform/internal/report"
	"city-stats-platform/internal/repository"
	"city-stats-platform/internal/roster"
	"city-stats-platform/internal/sources"
	"city-stats-platform/pkg/logging"
	"city-stats-platform/pkg/metrics"
)

// WeatherSource fetches current weather for a roster fetch key
type WeatherSource interface {
	FetchWeather(ctx context.Context, query string) (*models.WeatherRecord, error)
}

// AirQualitySource fetches the latest PM2.5 reading near a city
type AirQualitySource interface {
	FetchAirQuality(ctx context.Context, q models.AirQualityQuery) (*models.AirQualityRecord, error)
}

// CityMetadataSource fetches population and region metadata
type CityMetadataSource interface {
	FetchCityMetadata(ctx context.Context, q models.CityMetadataQuery) ([]models.CityMetadataRecord, error)
}

// PipelineConfig tunes a pipeline run
type PipelineConfig struct {
	BatchSize        int
	ReportPath       string
	MinPopulation    int
	MetadataFallback bool
}

// PipelineDeps are the collaborators of a pipeline run. Metadata may be nil,
// in which case only the offline fallback (if enabled) provides population.
type PipelineDeps struct {
	Roster     []roster.CityPair
	Cursor     progress.Store
	Weather    WeatherSource
	AirQuality AirQualitySource
	Metadata   CityMetadataSource
	Repo       repository.CityRepository
	Ingestion  *IngestionService
	Statistics *StatisticsService
}

// PipelineService runs one resumable batch: fetch, store, advance, aggregate
type PipelineService struct {
	deps    PipelineDeps
	cfg     PipelineConfig
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// RunResult summarizes a pipeline run
type RunResult struct {
	RunID         string
	StartCursor   int
	NextCursor    int
	BatchSize     int
	Weather       *WriteResult
	AirQuality    *WriteResult
	Metadata      *WriteResult
	FetchFailures map[string]int
	Summaries     []models.CityStatsSummary
	ReportPath    string
	Duration      time.Duration
}

// ProgressStatus reports how far through the roster ingestion is
type ProgressStatus struct {
	NextStart  int  `json:"next_start"`
	RosterSize int  `json:"roster_size"`
	Remaining  int  `json:"remaining"`
	Complete   bool `json:"complete"`
}

// cityTarget is the canonical city a roster entry was stored as
type cityTarget struct {
	Name      string
	Country   string
	Latitude  *float64
	Longitude *float64
}

// NewPipelineService creates a new pipeline service
func NewPipelineService(deps PipelineDeps, cfg PipelineConfig, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *PipelineService {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = roster.DefaultBatchSize
	}
	if deps.Roster == nil {
		deps.Roster = roster.Cities
	}
	return &PipelineService{
		deps:    deps,
		cfg:     cfg,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Run processes the next roster batch and re-aggregates the whole store.
// The cursor is saved only after every store write of the batch succeeded;
// an exhausted roster still aggregates and reports.
func (p *PipelineService) Run(ctx context.Context) (*RunResult, error) {
	startTime := time.Now()
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)

	result := &RunResult{
		RunID:         runID,
		FetchFailures: make(map[string]int),
	}

	p.logger.Info(ctx, "[PIPELINE_START] Starting pipeline run", logging.Fields{
		"batch_size":  p.cfg.BatchSize,
		"roster_size": len(p.deps.Roster),
		"stage":       "INITIALIZATION",
	})

	cursor, err := p.deps.Cursor.Load(ctx)
	if err != nil {
		return nil, p.fail(ctx, "cursor_load", fmt.Errorf("failed to load progress: %w", err))
	}

	batch, next, err := roster.NextBatch(p.deps.Roster, p.cfg.BatchSize, cursor.NextStart)
	if err != nil {
		return nil, p.fail(ctx, "batch_select", err)
	}
	result.StartCursor = cursor.NextStart
	result.NextCursor = cursor.NextStart
	result.BatchSize = len(batch)
	p.metrics.BatchSize.Observe(float64(len(batch)))

	if len(batch) == 0 {
		p.logger.Info(ctx, "[PIPELINE_NO_WORK] All roster cities already processed", logging.Fields{
			"next_start": cursor.NextStart,
			"stage":      "BATCH_SELECT",
		})
	} else {
		p.logger.Info(ctx, "[PIPELINE_BATCH] Processing roster batch", logging.Fields{
			"start": cursor.NextStart,
			"count": len(batch),
			"stage": "BATCH_SELECT",
		})

		if err := p.ingestBatch(ctx, batch, cursor.NextStart, result); err != nil {
			return nil, p.fail(ctx, "ingest", err)
		}

		if err := p.deps.Cursor.Save(ctx, progress.Cursor{NextStart: next}); err != nil {
			return nil, p.fail(ctx, "cursor_save", fmt.Errorf("failed to save progress: %w", err))
		}
		result.NextCursor = next
	}
	p.metrics.ProgressCursor.Set(float64(result.NextCursor))

	summaries, err := p.deps.Statistics.ComputeCityStats(ctx)
	if err != nil {
		return nil, p.fail(ctx, "aggregate", err)
	}
	result.Summaries = summaries

	if len(summaries) == 0 {
		p.logger.Warn(ctx, "[PIPELINE_NO_STATS] No joinable city data yet", logging.Fields{
			"stage": "AGGREGATE",
		})
	}

	if p.cfg.ReportPath != "" {
		if err := report.WriteFile(p.cfg.ReportPath, summaries); err != nil {
			return nil, p.fail(ctx, "report", err)
		}
		result.ReportPath = p.cfg.ReportPath
	}

	result.Duration = time.Since(startTime)
	p.metrics.PipelineRunDuration.Observe(result.Duration.Seconds())
	p.metrics.PipelineRunsTotal.WithLabelValues("success").Inc()

	p.logger.Info(ctx, "[PIPELINE_COMPLETE] Pipeline run completed", logging.Fields{
		"start_cursor":   result.StartCursor,
		"next_cursor":    result.NextCursor,
		"batch_size":     result.BatchSize,
		"fetch_failures": result.FetchFailures,
		"cities":         len(summaries),
		"report_path":    result.ReportPath,
		"duration_ms":    result.Duration.Milliseconds(),
		"stage":          "COMPLETE",
	})

	return result, nil
}

// Progress reports the stored cursor against the roster
func (p *PipelineService) Progress(ctx context.Context) (*ProgressStatus, error) {
	cursor, err := p.deps.Cursor.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	remaining := roster.Remaining(p.deps.Roster, cursor.NextStart)
	return &ProgressStatus{
		NextStart:  cursor.NextStart,
		RosterSize: len(p.deps.Roster),
		Remaining:  remaining,
		Complete:   remaining == 0,
	}, nil
}

// ingestBatch runs the three fetch+store stages in order. A failed fetch
// skips only that city; a failed store aborts the batch.
func (p *PipelineService) ingestBatch(ctx context.Context, batch []roster.CityPair, start int, result *RunResult) error {
	targets := make(map[string]cityTarget, len(batch))

	// Weather
	weatherRecords := make([]models.WeatherRecord, 0, len(batch))
	for _, pair := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := p.deps.Weather.FetchWeather(ctx, pair.FetchKey)
		if err != nil {
			p.fetchFailed(ctx, result, "weather", pair, err)
			continue
		}
		weatherRecords = append(weatherRecords, *rec)

		if name := strings.TrimSpace(rec.CityName); name != "" {
			targets[pair.FetchKey] = cityTarget{
				Name:      name,
				Country:   strings.TrimSpace(rec.Country),
				Latitude:  rec.Latitude,
				Longitude: rec.Longitude,
			}
		}
	}

	var err error
	if result.Weather, err = p.deps.Ingestion.StoreWeather(ctx, weatherRecords); err != nil {
		return err
	}

	// Air quality
	aqRecords := make([]models.AirQualityRecord, 0, len(batch))
	for _, pair := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}

		target, ok, err := p.resolveTarget(ctx, pair, targets)
		if err != nil {
			return err
		}
		if !ok {
			p.fetchFailed(ctx, result, "air_quality", pair, errors.New("city has no stored weather"))
			continue
		}

		rec, err := p.deps.AirQuality.FetchAirQuality(ctx, models.AirQualityQuery{
			City:      target.Name,
			Country:   target.Country,
			Latitude:  target.Latitude,
			Longitude: target.Longitude,
		})
		if err != nil {
			p.fetchFailed(ctx, result, "air_quality", pair, err)
			continue
		}
		aqRecords = append(aqRecords, *rec)
	}

	if result.AirQuality, err = p.deps.Ingestion.StoreAirQuality(ctx, aqRecords); err != nil {
		return err
	}

	// City metadata
	if p.deps.Metadata == nil && !p.cfg.MetadataFallback {
		return nil
	}

	metaRecords := make([]models.CityMetadataRecord, 0, len(batch))
	for i, pair := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}

		target, ok, err := p.resolveTarget(ctx, pair, targets)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		records, err := p.fetchMetadata(ctx, pair, start+i)
		if err != nil {
			p.fetchFailed(ctx, result, "city_metadata", pair, err)
			continue
		}

		for _, rec := range records {
			rec.ResolveAs = &models.CityKey{Name: target.Name, Country: target.Country}
			metaRecords = append(metaRecords, rec)
		}
	}

	result.Metadata, err = p.deps.Ingestion.StoreCityMetadata(ctx, metaRecords)
	return err
}

func (p *PipelineService) fetchMetadata(ctx context.Context, pair roster.CityPair, rosterIndex int) ([]models.CityMetadataRecord, error) {
	if p.deps.Metadata != nil {
		records, err := p.deps.Metadata.FetchCityMetadata(ctx, models.CityMetadataQuery{
			NamePrefix:    pair.Name(),
			CountryCode:   pair.Country(),
			MinPopulation: p.cfg.MinPopulation,
			Limit:         1,
		})
		if err == nil || !p.cfg.MetadataFallback {
			return records, err
		}

		p.logger.Warn(ctx, "[PIPELINE_METADATA_FALLBACK] Using local fallback city metadata", logging.Fields{
			"fetch_key": pair.FetchKey,
			"error":     err.Error(),
			"stage":     "FETCH_METADATA",
		})
	}

	return []models.CityMetadataRecord{sources.FallbackCityMetadata(pair, rosterIndex)}, nil
}

// resolveTarget finds the stored City for a roster entry: the weather
// response of this run first, then a City stored by an earlier run
func (p *PipelineService) resolveTarget(ctx context.Context, pair roster.CityPair, targets map[string]cityTarget) (cityTarget, bool, error) {
	if t, ok := targets[pair.FetchKey]; ok {
		return t, true, nil
	}

	city, err := p.deps.Repo.GetCity(ctx, pair.Name(), pair.Country())
	var nf *repository.NotFoundError
	if errors.As(err, &nf) {
		return cityTarget{}, false, nil
	}
	if err != nil {
		return cityTarget{}, false, err
	}

	t := cityTarget{
		Name:      city.Name,
		Country:   city.Country,
		Latitude:  city.Latitude,
		Longitude: city.Longitude,
	}
	targets[pair.FetchKey] = t
	return t, true, nil
}

func (p *PipelineService) fetchFailed(ctx context.Context, result *RunResult, kind string, pair roster.CityPair, err error) {
	result.FetchFailures[kind]++

	transient := false
	var te interface{ IsTransient() bool }
	if errors.As(err, &te) {
		transient = te.IsTransient()
	}

	p.logger.Warn(ctx, "[PIPELINE_FETCH_FAILED] Source fetch failed, skipping city", logging.Fields{
		"kind":      kind,
		"fetch_key": pair.FetchKey,
		"transient": transient,
		"error":     err.Error(),
		"stage":     "FETCH",
	})
}

func (p *PipelineService) fail(ctx context.Context, stage string, err error) error {
	p.metrics.PipelineRunsTotal.WithLabelValues("failure").Inc()
	p.logger.Error(ctx, "[PIPELINE_FAILED] Pipeline run failed", logging.Fields{
		"stage": strings.ToUpper(stage),
	}, err)
	return err
}
