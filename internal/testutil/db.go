// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"city-stats-platform/pkg/database"
	"city-stats-platform/pkg/logging"
	"city-stats-platform/pkg/metrics"
)

// NewDB opens a migrated in-memory SQLite database that is closed when the
// test finishes.
func NewDB(t testing.TB) *database.DB {
	t.Helper()

	collector := metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry())
	db, err := database.Open(&database.Config{Driver: database.DriverSQLite, DSN: ":memory:"}, logging.NewNopLogger(), collector)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	migrator, err := database.NewMigrator(db)
	if err != nil {
		t.Fatalf("load migrations: %v", err)
	}
	if _, err := migrator.Up(context.Background()); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	return db
}
