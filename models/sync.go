package models

import "time"

// SyncMeta is the synchronization envelope every syncable record carries.
// The engine only ever inspects these fields; domain fields travel opaquely
// in [Record.Fields].
type SyncMeta struct {
	// LocalID is a device-generated UUID, the primary key in the local
	// store. It is stable, never reused, and doubles as the idempotency key
	// when pushing the record to the backend.
	LocalID string `json:"local_id"`

	// CloudID is the backend-assigned identifier, empty until the record has
	// been accepted remotely. Once set it never changes.
	CloudID string `json:"cloud_id,omitempty"`

	// CreatedAt is fixed at record creation.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt advances on every local or remote mutation and is the
	// conflict-resolution clock.
	UpdatedAt time.Time `json:"updated_at"`

	// DeletedAt marks a tombstone. A tombstone still propagates through
	// sync and is physically purged only after the backend confirms it.
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	// Dirty reports that local state has not yet been accepted remotely.
	Dirty bool `json:"dirty"`

	// SyncError holds the reason of a permanent remote rejection. A record
	// with a non-empty SyncError is excluded from automatic pushes until
	// cleared by operator intervention.
	SyncError string `json:"sync_error,omitempty"`
}

// Deleted reports whether the record is a tombstone.
func (m SyncMeta) Deleted() bool {
	return m.DeletedAt != nil
}

// Record is the generic envelope the sync engine operates on: sync metadata
// plus domain fields keyed by schema field name. Keeping domain data in a
// plain map with an explicit [TableSchema] mapping keeps the entity structs
// free of storage annotations.
type Record struct {
	Meta   SyncMeta
	Fields map[string]any
}

// SyncEngineState labels the orchestrator state machine.
type SyncEngineState string

const (
	SyncStateIdle          SyncEngineState = "idle"
	SyncStateBootstrapping SyncEngineState = "bootstrapping"
	SyncStateSyncing       SyncEngineState = "syncing"
)

// SyncStatus is the non-blocking status summary consumed by UI-layer
// indicators.
type SyncStatus struct {
	State SyncEngineState `json:"state"`
	// LastSyncAt is the wall-clock time of the last fully successful pass,
	// zero if no pass has succeeded yet.
	LastSyncAt time.Time `json:"last_sync_at"`
	// PendingCount is the number of dirty records awaiting push.
	PendingCount int `json:"pending_count"`
	// LastError describes the most recent failed pass, empty after a
	// successful one.
	LastError string `json:"last_error,omitempty"`
}

// ChangeKind classifies local store change events.
type ChangeKind string

const (
	ChangeSaved   ChangeKind = "saved"
	ChangeDeleted ChangeKind = "deleted"
	ChangeSynced  ChangeKind = "synced"
	ChangePurged  ChangeKind = "purged"
)

// ChangeEvent is published on a table's observation stream after every
// committed mutation, giving the UI layer a reactivity hook without coupling
// it to the sync core.
type ChangeEvent struct {
	Table   string
	LocalID string
	Kind    ChangeKind
	At      time.Time
}
