// Package store implements the device-local side of the sync engine: a
// sqlite-backed record store with change tracking (dirty flags, tombstones,
// per-table sync cursors) and a per-table change-observation stream for UI
// reactivity.
//
// Dirty marking is not a separate call: every local mutation (Save,
// SoftDelete) sets the dirty flag inside the same transaction as the
// mutation, so a crash can never produce a changed row that future pushes
// would silently skip.
package store

import (
	"context"
	"time"

	"github.com/agrobook/agrobook/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/store_mock.go -package=mock

// RecordRepository is the typed CRUD surface over the synced tables. All
// writes are transactional per call; observers never see a half-written
// record.
type RecordRepository interface {
	// Save persists local mutations. Missing LocalIDs are assigned,
	// UpdatedAt is advanced and the dirty flag is set in the same
	// transaction as the write.
	Save(ctx context.Context, table string, records ...*models.Record) error

	// ApplyRemote writes records that won conflict resolution during a pull.
	// Metadata is stored exactly as given and the row is left clean.
	ApplyRemote(ctx context.Context, table string, records ...*models.Record) error

	// Get returns the record with the given LocalID, tombstones included.
	Get(ctx context.Context, table, localID string) (models.Record, error)

	// List returns all live (non-tombstone) records of a table.
	List(ctx context.Context, table string) ([]models.Record, error)

	// ListDirty returns records awaiting push: dirty, and not parked with a
	// sync error.
	ListDirty(ctx context.Context, table string) ([]models.Record, error)

	// SoftDelete turns a record into a tombstone and marks it dirty. The row
	// stays in place until the backend confirms the delete.
	SoftDelete(ctx context.Context, table, localID string, at time.Time) error

	// MarkSynced records backend acceptance: assigns the CloudID (set-once)
	// and clears the dirty flag. A confirmed tombstone is physically purged
	// instead.
	MarkSynced(ctx context.Context, table, localID, cloudID string) error

	// MarkSyncError parks a record after a permanent remote rejection; it is
	// excluded from automatic pushes until ClearSyncError.
	MarkSyncError(ctx context.Context, table, localID, reason string) error

	// ClearSyncError re-admits a parked record to automatic pushes.
	ClearSyncError(ctx context.Context, table, localID string) error

	// Purge physically removes a row.
	Purge(ctx context.Context, table, localID string) error

	// LocalIDByCloudID resolves the local primary key for a backend id.
	LocalIDByCloudID(ctx context.Context, table, cloudID string) (string, error)

	// CloudIDFor returns the backend id of a local record, empty if the
	// record has not been accepted remotely yet.
	CloudIDFor(ctx context.Context, table, localID string) (string, error)

	// PendingCount counts dirty records across all tables.
	PendingCount(ctx context.Context) (int, error)
}

// CursorRepository persists the per-table sync cursors. Cursors advance
// monotonically and are rewound only by an explicit full resync.
type CursorRepository interface {
	Cursor(ctx context.Context, table string) (string, error)
	AdvanceCursor(ctx context.Context, table, cursor string) error
	ResetCursors(ctx context.Context) error
}

// ChangeStream exposes a lazy, restartable per-table stream of change
// events. Slow consumers never block store writers; events may be dropped
// for a subscriber that stops draining its channel.
type ChangeStream interface {
	Subscribe(table string) (<-chan models.ChangeEvent, func())
}

// LocalStore is the full local persistence boundary consumed by the sync
// engine and the UI layer.
type LocalStore interface {
	RecordRepository
	CursorRepository
	ChangeStream
}
