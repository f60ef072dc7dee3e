// Package adapter provides the transport layer for talking to the remote
// agrobook backend.
//
// The primary abstraction is [RemoteStore], which decouples the sync engine
// from the underlying protocol. The package ships an HTTP/REST
// implementation ([NewHTTPRemoteStore]).
//
// Error values defined in errors.go are mapped from HTTP status codes by
// mapHTTPError so that callers can use [errors.Is] for transport-agnostic
// error handling (e.g. [ErrTransient] for retryable failures,
// [ErrUnauthorized] for 401).
package adapter

import (
	"context"

	"github.com/agrobook/agrobook/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/remote_store_mock.go -package=mock

// RemoteStore defines transport-agnostic communication with the backend sync
// API. Implementations are responsible for serialisation, authentication
// header management, bounded retries of transient failures, and mapping
// transport-level errors to the sentinel values defined in this package.
//
// All record identity on the wire uses CloudIDs for foreign-key fields; the
// engine rewrites them to LocalIDs after a pull and back before a push.
type RemoteStore interface {
	// SetToken stores the bearer token that will be attached to all
	// subsequent requests.
	SetToken(token string)

	// Token returns the bearer token currently stored in the adapter, or an
	// empty string if no token has been set yet.
	Token() string

	// Ping checks connectivity to the backend with a single cheap request.
	// It never retries; the connectivity monitor calls it on its own
	// schedule.
	Ping(ctx context.Context) error

	// Pull fetches every record of table changed since cursor, already
	// converted to engine records, together with the next cursor token. An
	// empty cursor means "from the beginning". Transient failures are
	// retried with exponential backoff before an error is returned.
	Pull(ctx context.Context, table, cursor string) (models.PullResult, error)

	// Push uploads a batch of locally changed records and returns the
	// backend's per-record verdicts in the same order the backend reported
	// them. The record LocalID doubles as the idempotency key, so a retried
	// push of an already accepted record never creates a duplicate remote
	// row. Transient failures of the whole batch are retried with
	// exponential backoff.
	Push(ctx context.Context, table string, records []models.Record) ([]models.PushResult, error)
}
