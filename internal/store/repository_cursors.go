package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Cursor queries live outside squirrel: the monotonic guard needs an
// ON CONFLICT ... WHERE clause comparing against the stored row.
const (
	selectCursor = `SELECT cursor FROM sync_cursors WHERE table_name = ?;`

	advanceCursor = `
		INSERT INTO sync_cursors (table_name, cursor, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(table_name) DO UPDATE SET
			cursor     = excluded.cursor,
			updated_at = CURRENT_TIMESTAMP
		WHERE excluded.cursor > sync_cursors.cursor;`

	resetCursors = `DELETE FROM sync_cursors;`
)

// Cursor implements [CursorRepository]. A table that has never completed a
// pull has an empty cursor.
func (l *localStore) Cursor(ctx context.Context, table string) (string, error) {
	var cursor string
	err := l.db.QueryRowContext(ctx, selectCursor, table).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: read cursor for %s: %w", ErrStorage, table, err)
	}
	return cursor, nil
}

// AdvanceCursor implements [CursorRepository]. Cursor tokens issued by the
// backend compare lexicographically; an attempt to move a cursor backwards
// is a no-op, so a completed pull can only keep or grow its cursor.
func (l *localStore) AdvanceCursor(ctx context.Context, table, cursor string) error {
	res, err := l.db.ExecContext(ctx, advanceCursor, table, cursor)
	if err != nil {
		return fmt.Errorf("%w: advance cursor for %s: %w", ErrStorage, table, err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		l.logger.Debug().
			Str("table", table).
			Str("cursor", cursor).
			Msg("cursor advance skipped, stored cursor is newer")
	}
	return nil
}

// ResetCursors implements [CursorRepository]. Only an explicit full resync
// rewinds cursors; the next pull then re-downloads every table from the
// beginning.
func (l *localStore) ResetCursors(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, resetCursors); err != nil {
		return fmt.Errorf("%w: reset cursors: %w", ErrStorage, err)
	}
	return nil
}
