package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"

	"userctl/internal/config"
)

// Migrations are goose SQL files, one directory per driver:
//
//	migrations/<driver>/00001_name.sql
//
// each carrying "-- +goose Up" and "-- +goose Down" sections.
//
//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// Open opens (or creates) the configured database and applies pending migrations.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = config.DriverSQLite
	}
	path := cfg.Path
	if path == "" && driver == config.DriverSQLite {
		path = "users.db"
	}
	name, err := sqlDriverName(driver)
	if err != nil {
		return nil, err
	}
	if driver == config.DriverSQLite {
		path = withBusyTimeout(path, cfg.BusyTimeoutMS)
	}
	d, err := sql.Open(name, path)
	if err != nil {
		return nil, err
	}
	if err := d.PingContext(ctx); err != nil {
		_ = d.Close()
		return nil, err
	}
	if driver == config.DriverSQLite {
		if err := sqlitePragmas(ctx, d); err != nil {
			_ = d.Close()
			return nil, err
		}
	}
	if _, err := Migrate(ctx, d, driver); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

const defaultBusyTimeoutMS = 5000

// withBusyTimeout adds go-sqlite3's _busy_timeout parameter so every pooled
// connection waits on a locked database. A non-positive ms uses the default;
// a DSN that already sets the parameter is left alone.
func withBusyTimeout(dsn string, ms int) string {
	if strings.Contains(dsn, "_busy_timeout=") {
		return dsn
	}
	if ms <= 0 {
		ms = defaultBusyTimeoutMS
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_busy_timeout=" + strconv.Itoa(ms)
}

func sqlitePragmas(ctx context.Context, d *sql.DB) error {
	// journal_mode may not be supported in some contexts (e.g., in-memory). Ignore errors.
	_, _ = d.ExecContext(ctx, `PRAGMA journal_mode=WAL`)
	if _, err := d.ExecContext(ctx, `PRAGMA foreign_keys=ON`); err != nil {
		return err
	}
	return nil
}

func sqlDriverName(driver string) (string, error) {
	switch driver {
	case config.DriverSQLite:
		return "sqlite3", nil
	case config.DriverPostgres:
		return "pgx", nil
	case config.DriverMySQL:
		return "mysql", nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

func newProvider(d *sql.DB, driver string) (*goose.Provider, error) {
	if d == nil {
		return nil, errors.New("nil db")
	}
	var dialect database.Dialect
	switch driver {
	case config.DriverSQLite:
		dialect = database.DialectSQLite3
	case config.DriverPostgres:
		dialect = database.DialectPostgres
	case config.DriverMySQL:
		dialect = database.DialectMySQL
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	sub, err := fs.Sub(migrationsFS, "migrations/"+driver)
	if err != nil {
		return nil, err
	}
	// The provider must not be closed: it would close d.
	return goose.NewProvider(dialect, d, sub)
}

// Migrate applies pending migrations and returns what ran.
func Migrate(ctx context.Context, d *sql.DB, driver string) ([]*goose.MigrationResult, error) {
	p, err := newProvider(d, driver)
	if err != nil {
		return nil, err
	}
	res, err := p.Up(ctx)
	if err != nil {
		return res, fmt.Errorf("apply migrations: %w", err)
	}
	return res, nil
}

// Reset rolls back every applied migration, dropping all tables, and then
// re-applies them. All data is lost.
func Reset(ctx context.Context, d *sql.DB, driver string) error {
	p, err := newProvider(d, driver)
	if err != nil {
		return err
	}
	if _, err := p.DownTo(ctx, 0); err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("recreate schema: %w", err)
	}
	return nil
}

// Version returns the current schema version.
func Version(ctx context.Context, d *sql.DB, driver string) (int64, error) {
	p, err := newProvider(d, driver)
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(ctx)
}
