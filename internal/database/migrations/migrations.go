// Package migrations applies the embedded SQL schema with golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var files embed.FS

// Runner handles database migrations
type Runner struct {
	databaseURL string
	migrator    *migrate.Migrate
}

// NewRunner creates a runner for a pgx5:// database URL.
func NewRunner(databaseURL string) *Runner {
	return &Runner{databaseURL: databaseURL}
}

func (r *Runner) init() error {
	if r.migrator != nil {
		return nil
	}
	src, err := iofs.New(files, "sql")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, r.databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	r.migrator = m
	return nil
}

// Up runs all pending migrations and returns the resulting schema version.
func (r *Runner) Up() (uint, error) {
	if err := r.init(); err != nil {
		return 0, err
	}
	if err := r.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migration up failed: %w", err)
	}
	version, dirty, err := r.migrator.Version()
	if err != nil {
		return 0, fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

// Down rolls back all migrations
func (r *Runner) Down() error {
	if err := r.init(); err != nil {
		return err
	}
	if err := r.migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// Close frees resources associated with the migrator
func (r *Runner) Close() error {
	if r.migrator == nil {
		return nil
	}
	sourceErr, databaseErr := r.migrator.Close()
	if sourceErr != nil {
		return fmt.Errorf("error closing migrator source: %w", sourceErr)
	}
	if databaseErr != nil {
		return fmt.Errorf("error closing migrator database: %w", databaseErr)
	}
	return nil
}
