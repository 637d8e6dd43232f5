package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"city-stats-platform/pkg/logging"
)

//go:embed migrations/sqlite3/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

// Migration is one versioned schema change for a single dialect
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// Migrator applies the embedded schema for the connected driver
type Migrator struct {
	db         *DB
	migrations []Migration
}

// NewMigrator loads the migrations for db's driver
func NewMigrator(db *DB) (*Migrator, error) {
	migrations, err := loadMigrations(db.Driver())
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	return &Migrator{db: db, migrations: migrations}, nil
}

// loadMigrations reads NNN_name.up.sql / NNN_name.down.sql pairs for a driver
func loadMigrations(driver string) ([]Migration, error) {
	dir := path.Join("migrations", driver)
	entries, err := fs.ReadDir(migrationFiles, dir)
	if err != nil {
		return nil, fmt.Errorf("no migrations for driver %q: %w", driver, err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		filename := entry.Name()

		var direction string
		switch {
		case strings.HasSuffix(filename, ".up.sql"):
			direction = "up"
		case strings.HasSuffix(filename, ".down.sql"):
			direction = "down"
		default:
			continue
		}

		base := strings.TrimSuffix(filename, "."+direction+".sql")
		versionPart, name, ok := strings.Cut(base, "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(versionPart)
		if err != nil {
			continue
		}

		content, err := migrationFiles.ReadFile(path.Join(dir, filename))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		m, exists := byVersion[version]
		if !exists {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if direction == "up" {
			m.UpSQL = string(content)
		} else {
			m.DownSQL = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

func (m *Migrator) createMigrationsTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, "create_schema_migrations", `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (m *Migrator) applied(ctx context.Context) (map[int]bool, error) {
	var versions []int
	if err := m.db.SelectContext(ctx, "list_schema_migrations", &versions,
		"SELECT version FROM schema_migrations ORDER BY version"); err != nil {
		return nil, err
	}

	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

// Up applies every pending migration in version order and returns how many ran
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.createMigrationsTable(ctx); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	count := 0
	for _, migration := range m.migrations {
		if applied[migration.Version] {
			continue
		}

		err := m.db.WithTx(ctx, func(tx *Tx) error {
			if err := execScript(ctx, tx, migration.UpSQL); err != nil {
				return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Name, err)
			}
			if _, err := tx.ExecContext(ctx, "record_migration",
				"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
				migration.Version, migration.Name,
			); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
			}
			return nil
		})
		if err != nil {
			return count, err
		}

		m.db.logger.Info(ctx, "[MIGRATION_APPLIED] Migration applied", logging.Fields{
			"version": migration.Version,
			"name":    migration.Name,
			"driver":  m.db.Driver(),
		})
		count++
	}

	return count, nil
}

// Down reverts every applied migration in reverse version order
func (m *Migrator) Down(ctx context.Context) (int, error) {
	if err := m.createMigrationsTable(ctx); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	count := 0
	for i := len(m.migrations) - 1; i >= 0; i-- {
		migration := m.migrations[i]
		if !applied[migration.Version] {
			continue
		}

		err := m.db.WithTx(ctx, func(tx *Tx) error {
			if err := execScript(ctx, tx, migration.DownSQL); err != nil {
				return fmt.Errorf("failed to revert migration %d (%s): %w", migration.Version, migration.Name, err)
			}
			_, err := tx.ExecContext(ctx, "delete_migration",
				"DELETE FROM schema_migrations WHERE version = ?", migration.Version)
			return err
		})
		if err != nil {
			return count, err
		}

		m.db.logger.Info(ctx, "[MIGRATION_REVERTED] Migration reverted", logging.Fields{
			"version": migration.Version,
			"name":    migration.Name,
		})
		count++
	}

	return count, nil
}

// Version returns the highest applied migration version, 0 when none
func (m *Migrator) Version(ctx context.Context) (int, error) {
	if err := m.createMigrationsTable(ctx); err != nil {
		return 0, err
	}
	var version int
	err := m.db.GetContext(ctx, "schema_version", &version,
		"SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	return version, err
}

// execScript runs a migration file one statement at a time
func execScript(ctx context.Context, exec Executor, script string) error {
	for _, stmt := range strings.Split(script, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := exec.ExecContext(ctx, "migration_statement", stmt); err != nil {
			return err
		}
	}
	return nil
}
