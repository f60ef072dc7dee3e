// Package migrations evolves the device-local schema with goose. Migrations
// run once at startup, before the sync engine is allowed to touch the store,
// and are written so that no step ever clears dirty flags or drops unsynced
// rows: a crash mid-migration leaves the database in a recoverable state
// (the legacy table stays in place until a later version drops it).
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var embedMigrations embed.FS

// ErrMigration wraps every failure of the runner. A wrapped ErrMigration at
// startup is fatal: the app must not sync or serve stale-schema data.
var ErrMigration = errors.New("migration error")

// Migrate applies all pending schema versions in order.
func Migrate(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("%w: db is nil", ErrMigration)
	}

	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("%w: setting dialect: %w", ErrMigration, err)
	}

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("%w: %w", ErrMigration, err)
	}

	return nil
}

// MigrateTo applies schema versions up to and including version. Used by
// tests that need to seed data into an intermediate schema.
func MigrateTo(db *sql.DB, version int64) error {
	if db == nil {
		return fmt.Errorf("%w: db is nil", ErrMigration)
	}

	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("%w: setting dialect: %w", ErrMigration, err)
	}

	if err := goose.UpTo(db, ".", version); err != nil {
		return fmt.Errorf("%w: %w", ErrMigration, err)
	}

	return nil
}
