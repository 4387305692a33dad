package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"

	// File source driver for reading migration files from disk.
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations brings the ingestion log schema up to date and returns the
// resulting version. A database left dirty by an interrupted migration is
// reported as an error; it needs a manual `migrate force` before restarting.
func RunMigrations(db *sql.DB, migrationsPath string) (uint, error) {
	source, err := migrationSource(migrationsPath)
	if err != nil {
		return 0, err
	}

	driver, err := mysql.WithInstance(db, &mysql.Config{})
	if err != nil {
		return 0, fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(source, "mysql", driver)
	if err != nil {
		return 0, fmt.Errorf("creating migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("running migrations from %s: %w", migrationsPath, err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}

	slog.Info("ingestion log schema ready", slog.Uint64("version", uint64(version)))
	return version, nil
}

// migrationSource turns a directory into a file:// source URL. Relative
// paths are resolved against the working directory.
func migrationSource(dir string) (string, error) {
	if dir == "" {
		return "", errors.New("migrations path is empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving migrations path: %w", err)
	}
	return "file://" + filepath.ToSlash(abs), nil
}
