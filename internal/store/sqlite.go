package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agrobook/agrobook/internal/logger"
	"github.com/agrobook/agrobook/migrations"
)

// DB wraps the sqlite handle shared by the repositories.
type DB struct {
	*sql.DB
}

// OpenSQLite opens (or creates) the device database, applies the WAL and
// busy-timeout pragmas, and runs all pending migrations before returning.
// The migration runner executing here, ahead of any repository use, is what
// keeps the sync engine off a stale schema.
func OpenSQLite(path string, log *logger.Logger) (*DB, error) {
	dsn := buildDSN(path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %w", ErrStorage, err)
	}

	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping sqlite: %w", ErrStorage, err)
	}

	if err = migrations.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info().Str("path", path).Msg("local database ready")
	return &DB{DB: db}, nil
}

func buildDSN(path string) string {
	if path == "" || path == ":memory:" {
		// Shared cache keeps the in-memory database alive across the pooled
		// connections of database/sql.
		return "file::memory:?cache=shared&_busy_timeout=5000"
	}

	params := "_journal=WAL&_busy_timeout=5000"
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}
