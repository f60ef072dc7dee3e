package store

import "errors"

// Sentinel errors returned by the local store. Callers should use
// [errors.Is] to match against these values.
var (
	// ErrStorage wraps every sqlite-level failure. It is fatal to the
	// current sync pass but not to the process.
	ErrStorage = errors.New("local storage error")

	// ErrUnknownTable is returned when an operation names a table that has
	// no registered schema.
	ErrUnknownTable = errors.New("unknown table")

	// ErrRecordNotFound is returned when an operation targets a LocalID (or
	// CloudID) that does not exist in the table.
	ErrRecordNotFound = errors.New("record not found")

	// ErrCloudIDMismatch is returned when MarkSynced is asked to assign a
	// CloudID to a record that already carries a different one. The
	// localId-to-cloudId mapping is set once and never reassigned.
	ErrCloudIDMismatch = errors.New("cloud id already assigned with a different value")
)
