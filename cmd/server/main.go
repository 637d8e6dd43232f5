package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"city-stats-platform/internal/config"
	"city-stats-platform/internal/handlers"
	"city-stats-platform/internal/progress"
	"city-stats-platform/internal/repository"
	"city-stats-platform/internal/services"
	"city-stats-platform/pkg/database"
	"city-stats-platform/pkg/logging"
	"city-stats-platform/pkg/metrics"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("city-stats-api", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting city stats API server", logging.Fields{
		"version":     version,
		"server_port": cfg.Server.Port,
		"db_driver":   cfg.Database.Driver,
	})

	metricsCollector := metrics.NewCollector("city_stats")

	db, err := database.Open(cfg.StoreConfig(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	cityRepo := repository.NewCityRepository(db, logger, metricsCollector)

	cityService := services.NewCityService(cityRepo, logger, metricsCollector)
	statsService := services.NewStatisticsService(cityRepo, logger, metricsCollector)
	pipeline := services.NewPipelineService(services.PipelineDeps{
		Cursor: progress.NewFileStore(cfg.Pipeline.ProgressFile, logger),
	}, services.PipelineConfig{BatchSize: cfg.Pipeline.BatchSize}, logger, metricsCollector)

	cityHandler := handlers.NewCityHandler(cityService, statsService, pipeline, logger, metricsCollector)

	router := mux.NewRouter()
	router.Use(handlers.RequestLogging(logger))
	cityHandler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
