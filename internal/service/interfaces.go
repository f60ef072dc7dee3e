// Package service contains the synchronization core: the engine that moves
// records between the local store and the remote backend, the conflict
// resolver, and the background job that schedules sync passes.
package service

import (
	"context"
	"time"

	"github.com/agrobook/agrobook/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/service_mock.go -package=mock

// Syncer defines the synchronization operations exposed to the rest of the
// application. All methods are safe for concurrent use; a sync requested
// while another is running is coalesced into one follow-up pass rather than
// queued.
type Syncer interface {
	// FullSync runs one bidirectional pass: dirty records are pushed first,
	// then remote changes are pulled per table in dependency order. The
	// first pass against an empty cursor set is the bootstrap download.
	// A failing table never aborts the pass; its error is joined into the
	// returned error and its dependent tables are skipped.
	FullSync(ctx context.Context) error

	// SyncFromRemote runs the pull half only.
	SyncFromRemote(ctx context.Context) error

	// PushPending runs the push half only.
	PushPending(ctx context.Context) error

	// Status returns a point-in-time snapshot for UI indicators. It never
	// blocks on network calls.
	Status(ctx context.Context) (models.SyncStatus, error)

	// ResetAndResync drops every sync cursor and runs a full pass, which
	// re-downloads all tables from the beginning. Local dirty records are
	// kept and pushed as usual.
	ResetAndResync(ctx context.Context) error
}

// SyncJob schedules sync passes in the background: on a fixed interval, on
// reconnect, and suspended while the application is backgrounded.
type SyncJob interface {
	// Start launches the scheduling goroutine. It syncs every interval,
	// defaulting to 5 minutes if interval is zero or negative. Any
	// previously running job is stopped before the new one begins.
	Start(ctx context.Context, interval time.Duration)

	// Stop signals the scheduling goroutine to exit and blocks until it has
	// fully terminated.
	Stop()
}
