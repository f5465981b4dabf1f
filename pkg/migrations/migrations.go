// Package migrations applies the versioned SQL schema for the waitlist table.
// The SQL files ship inside the binary; Config.Dir points at a directory on
// disk instead.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql
var embedded embed.FS

const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite3"

	defaultTable = "schema_migrations"
)

type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type Config struct {
	// Dir overrides the embedded files with a directory on disk.
	Dir             string
	Dialect         string
	MigrationsTable string
	Logger          Logger
}

type migrator interface {
	Up() error
	Close() (sourceErr error, databaseErr error)
}

var driverFactory = func(db *sql.DB, cfg Config) (database.Driver, error) {
	switch cfg.Dialect {
	case DialectPostgres:
		return postgres.WithInstance(db, &postgres.Config{MigrationsTable: cfg.MigrationsTable})
	case DialectMySQL:
		return mysql.WithInstance(db, &mysql.Config{MigrationsTable: cfg.MigrationsTable})
	case DialectSQLite:
		return sqlite3.WithInstance(db, &sqlite3.Config{MigrationsTable: cfg.MigrationsTable})
	}
	return nil, fmt.Errorf("unsupported dialect %q", cfg.Dialect)
}

var migratorFactory = func(src source.Driver, dialect string, driver database.Driver) (migrator, error) {
	return migrate.NewWithInstance("iofs", src, dialect, driver)
}

// NormalizeDialect maps storage backend names onto golang-migrate's.
func NormalizeDialect(dialect string) string {
	d := strings.ToLower(strings.TrimSpace(dialect))
	switch d {
	case "", "sqlite":
		return DialectSQLite
	case "postgresql":
		return DialectPostgres
	}
	return d
}

// Files returns the migration files for dialect, from cfgDir when set.
func Files(dialect, cfgDir string) (fs.FS, error) {
	if strings.TrimSpace(cfgDir) != "" {
		return os.DirFS(cfgDir), nil
	}

	sub := "sqlite"
	switch NormalizeDialect(dialect) {
	case DialectPostgres:
		sub = "postgres"
	case DialectMySQL:
		sub = "mysql"
	}
	return fs.Sub(embedded, path.Join("sql", sub))
}

// Up applies every pending migration. migrate has no context support, so a
// cancelled ctx closes the migrator and returns ctx.Err().
func Up(ctx context.Context, db *sql.DB, cfg Config) error {
	if db == nil {
		return errors.New("migrations: db is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg.Dialect = NormalizeDialect(cfg.Dialect)
	if cfg.MigrationsTable == "" {
		cfg.MigrationsTable = defaultTable
	}

	files, err := Files(cfg.Dialect, cfg.Dir)
	if err != nil {
		return fmt.Errorf("migrations: open files: %w", err)
	}
	src, err := iofs.New(files, ".")
	if err != nil {
		return fmt.Errorf("migrations: source: %w", err)
	}

	driver, err := driverFactory(db, cfg)
	if err != nil {
		return fmt.Errorf("migrations: %s driver: %w", cfg.Dialect, err)
	}

	m, err := migratorFactory(src, cfg.Dialect, driver)
	if err != nil {
		return fmt.Errorf("migrations: init: %w", err)
	}

	var once sync.Once
	closeMigrator := func() {
		once.Do(func() {
			srcErr, dbErr := m.Close()
			if err := errors.Join(srcErr, dbErr); err != nil {
				cfg.logWarn("Closing migrator failed", "error", err)
			}
		})
	}
	defer closeMigrator()

	origin := "embedded"
	if cfg.Dir != "" {
		origin = cfg.Dir
	}
	cfg.logInfo("Running SQL migrations", "source", origin, "dialect", cfg.Dialect, "table", cfg.MigrationsTable)

	done := make(chan error, 1)
	go func() { done <- m.Up() }()

	select {
	case <-ctx.Done():
		closeMigrator()
		return ctx.Err()
	case err := <-done:
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			cfg.logInfo("No migrations to apply")
		case err != nil:
			return fmt.Errorf("migrations: up: %w", err)
		default:
			cfg.logInfo("Migrations applied successfully")
		}
	}
	return nil
}

func (c Config) logInfo(msg string, args ...any) {
	if c.Logger != nil {
		c.Logger.Info(msg, args...)
	}
}

func (c Config) logWarn(msg string, args ...any) {
	if c.Logger != nil {
		c.Logger.Warn(msg, args...)
	}
}
