package service

import "github.com/agrobook/agrobook/models"

// Winner is the outcome of conflict resolution between a local and a remote
// version of the same record.
type Winner int

const (
	WinnerLocal Winner = iota
	WinnerRemote
)

// Resolve applies last-writer-wins to two versions of one record. The later
// UpdatedAt wins. On an exact tie a tombstone beats a live record, and if
// that still does not separate them the remote side wins, because the
// backend is the authority of record.
//
// Resolve is pure; callers are responsible for acting on the verdict.
func Resolve(local, remote models.SyncMeta) Winner {
	if remote.UpdatedAt.After(local.UpdatedAt) {
		return WinnerRemote
	}
	if local.UpdatedAt.After(remote.UpdatedAt) {
		return WinnerLocal
	}

	if local.Deleted() != remote.Deleted() {
		if local.Deleted() {
			return WinnerLocal
		}
		return WinnerRemote
	}
	return WinnerRemote
}
