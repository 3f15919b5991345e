// Package database opens the record database and applies its migrations.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"time"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrations returns the embedded migration set for driver.
func Migrations(driver Driver) (fs.FS, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
		return fs.Sub(migrationsFS, path.Join("migrations", string(driver)))
	default:
		return nil, fmt.Errorf("no migrations for driver %q", driver)
	}
}

const createVersionTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    applied_at TEXT NOT NULL
)`

// Migrator applies plain .up.sql migrations in lexical order and remembers
// which ones already ran in schema_migrations.
type Migrator struct {
	db     *sql.DB
	driver Driver
	log    *slog.Logger
}

// NewMigrator constructs a Migrator that logs through the provided logger instance.
func NewMigrator(db *sql.DB, driver Driver, log *slog.Logger) *Migrator {
	if log == nil {
		log = slog.Default()
	}

	return &Migrator{
		db:     db,
		driver: driver,
		log:    log,
	}
}

// Up applies the embedded migrations for the migrator's driver.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	fsys, err := Migrations(m.driver)
	if err != nil {
		return 0, err
	}

	return m.ApplyFS(ctx, fsys, ".")
}

// ApplyDir applies migrations stored on disk under dir.
func (m *Migrator) ApplyDir(ctx context.Context, dir string) (int, error) {
	return m.ApplyFS(ctx, os.DirFS(dir), ".")
}

// ApplyFS runs every pending *.up.sql under root and returns how many ran.
func (m *Migrator) ApplyFS(ctx context.Context, fsys fs.FS, root string) (int, error) {
	files, err := ListMigrations(fsys, root)
	if err != nil {
		return 0, fmt.Errorf("list migrations: %w", err)
	}

	baseLog := m.log.With(slog.String("driver", string(m.driver)))

	if len(files) == 0 {
		baseLog.Info("no .up.sql migrations found")
		return 0, nil
	}

	if _, err := m.db.ExecContext(ctx, createVersionTable); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, name := range files {
		version := strings.TrimSuffix(name, ".up.sql")
		if applied[version] {
			continue
		}

		data, err := fs.ReadFile(fsys, path.Join(root, name))
		if err != nil {
			return count, fmt.Errorf("read migration %q: %w", name, err)
		}

		if err := m.apply(ctx, baseLog.With(slog.String("file", name)), version, string(data)); err != nil {
			return count, err
		}
		count++
	}

	baseLog.Info("migrations applied", slog.Int("count", count), slog.Int("total", len(files)))

	return count, nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("select applied migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

func (m *Migrator) apply(ctx context.Context, scopedLog *slog.Logger, version, statement string) error {
	statement = strings.TrimSpace(statement)

	scopedLog.Info("applying migration")

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for migration %q: %w", version, err)
	}

	rollback := func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			scopedLog.Error("rollback error", slog.Any("error", rbErr))
		}
	}

	if statement == "" {
		scopedLog.Warn("migration is empty, recording it as applied")
	} else if _, execErr := tx.ExecContext(ctx, statement); execErr != nil {
		rollback()
		return fmt.Errorf("execute migration %q: %w", version, execErr)
	}

	record := m.driver.Rebind("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)")
	if _, err := tx.ExecContext(ctx, record, version, time.Now().UTC().Format(time.RFC3339)); err != nil {
		rollback()
		return fmt.Errorf("record migration %q: %w", version, err)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		rollback()
		return fmt.Errorf("commit migration %q: %w", version, commitErr)
	}

	return nil
}

func isUpMigration(name string) bool {
	return strings.HasSuffix(name, ".up.sql")
}

// ListMigrations returns all .up.sql files in dir in lexical order.
func ListMigrations(dir fs.FS, root string) ([]string, error) {
	entries, err := fs.ReadDir(dir, root)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if isUpMigration(e.Name()) {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}
