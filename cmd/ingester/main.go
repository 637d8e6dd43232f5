package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"city-stats-platform/internal/config"
	"city-stats-platform/internal/progress"
	"city-stats-platform/internal/repository"
	"city-stats-platform/internal/services"
	"city-stats-platform/internal/sources"
	"city-stats-platform/pkg/database"
	"city-stats-platform/pkg/logging"
	"city-stats-platform/pkg/metrics"
)

const version = "1.0.0"

var (
	configPath string
	batchSize  int
	reportPath string
)

var rootCmd = &cobra.Command{
	Use:   "ingester",
	Short: "City Stats ingester - resumable weather, air quality and population ingestion",
	Long: `The ingester walks a fixed roster of cities in batches, storing weather,
PM2.5 and population data, and rebuilds the per-city statistics report after
every batch. Progress is kept in a cursor file so runs resume where they left off.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().IntVar(&batchSize, "batch-size", 0, "Roster entries per run (overrides configuration)")
	rootCmd.PersistentFlags().StringVar(&reportPath, "report", "", "Report output path (overrides configuration)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds the wired components shared by every subcommand
type app struct {
	cfg        *config.Config
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
	db         *database.DB
	statistics *services.StatisticsService
	pipeline   *services.PipelineService
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if batchSize != 0 {
		cfg.Pipeline.BatchSize = batchSize
	}
	if reportPath != "" {
		cfg.Pipeline.ReportFile = reportPath
	}

	logger := logging.NewStructuredLogger("city-stats-ingester", version, logging.ParseLevel(cfg.Logging.Level))
	metricsCollector := metrics.NewCollector("city_stats_ingester")

	db, err := database.Open(cfg.StoreConfig(), logger, metricsCollector)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	migrator, err := database.NewMigrator(db)
	if err == nil {
		_, err = migrator.Up(ctx)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	cityRepo := repository.NewCityRepository(db, logger, metricsCollector)
	ingestion := services.NewIngestionService(cityRepo, logger, metricsCollector)
	statistics := services.NewStatisticsService(cityRepo, logger, metricsCollector)

	deps := services.PipelineDeps{
		Cursor:     progress.NewFileStore(cfg.Pipeline.ProgressFile, logger),
		Weather:    sources.NewOpenWeatherClient(cfg.Sources.OpenWeather.ProviderConfig(), logger, metricsCollector),
		AirQuality: sources.NewOpenAQClient(cfg.Sources.OpenAQ.ProviderConfig(), logger, metricsCollector),
		Metadata:   sources.NewGeoDBClient(cfg.Sources.GeoDB.ProviderConfig(), logger, metricsCollector),
		Repo:       cityRepo,
		Ingestion:  ingestion,
		Statistics: statistics,
	}

	pipeline := services.NewPipelineService(deps, services.PipelineConfig{
		BatchSize:        cfg.Pipeline.BatchSize,
		ReportPath:       cfg.Pipeline.ReportFile,
		MinPopulation:    cfg.Pipeline.MinPopulation,
		MetadataFallback: cfg.Pipeline.MetadataFallback,
	}, logger, metricsCollector)

	return &app{
		cfg:        cfg,
		logger:     logger,
		metrics:    metricsCollector,
		db:         db,
		statistics: statistics,
		pipeline:   pipeline,
	}, nil
}

func (a *app) Close() {
	a.db.Close()
}
