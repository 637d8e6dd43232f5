package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"city-stats-platform/internal/config"
	"city-stats-platform/pkg/database"
	"city-stats-platform/pkg/logging"
	"city-stats-platform/pkg/metrics"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	flag.Parse()

	if *direction != "up" && *direction != "down" {
		fmt.Fprintf(os.Stderr, "Invalid direction %q, expected up or down\n", *direction)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("city-stats-migrate", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	ctx := context.Background()

	db, err := database.Open(cfg.StoreConfig(), logger, metrics.NewCollector("city_stats_migrate"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Printf("Connected to %s database successfully\n", db.Driver())

	migrator, err := database.NewMigrator(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load migrations: %v\n", err)
		os.Exit(1)
	}

	var applied int
	if *direction == "up" {
		applied, err = migrator.Up(ctx)
	} else {
		applied, err = migrator.Down(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute migration: %v\n", err)
		os.Exit(1)
	}

	current, err := migrator.Version(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read schema version: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Migration %s completed successfully: %d applied, schema version %d\n", *direction, applied, current)
}
