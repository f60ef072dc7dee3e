package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agrobook/agrobook/internal/adapter"
	"github.com/agrobook/agrobook/internal/logger"
	"github.com/agrobook/agrobook/internal/store"
	"github.com/agrobook/agrobook/models"
)

type syncEngine struct {
	local  store.LocalStore
	remote adapter.RemoteStore
	logger *logger.Logger
	clock  func() time.Time

	mu         sync.Mutex
	state      models.SyncEngineState
	lastSyncAt time.Time
	lastError  string
	running    bool
	rerun      bool
	rerunCtx   context.Context
}

// NewSyncEngine constructs the [Syncer] orchestrating the local store and
// the backend adapter.
func NewSyncEngine(local store.LocalStore, remote adapter.RemoteStore, log *logger.Logger) Syncer {
	return &syncEngine{
		local:  local,
		remote: remote,
		logger: log,
		clock:  time.Now,
		state:  models.SyncStateIdle,
	}
}

// FullSync implements [Syncer].
func (e *syncEngine) FullSync(ctx context.Context) error {
	return e.runExclusive(ctx, true, true)
}

// SyncFromRemote implements [Syncer].
func (e *syncEngine) SyncFromRemote(ctx context.Context) error {
	return e.runExclusive(ctx, false, true)
}

// PushPending implements [Syncer].
func (e *syncEngine) PushPending(ctx context.Context) error {
	return e.runExclusive(ctx, true, false)
}

// runExclusive serializes sync passes. Only one pass runs at a time; a call
// that arrives mid-pass flags a rerun and returns immediately, so any number
// of concurrent triggers collapse into at most one follow-up pass. The
// coalesced rerun is always a full pass, since the scopes of the triggers it
// absorbed are unknown by then, and it runs on the absorbed trigger's
// context: the first caller's context may already be cancelled.
func (e *syncEngine) runExclusive(ctx context.Context, push, pull bool) error {
	e.mu.Lock()
	if e.running {
		e.rerun = true
		e.rerunCtx = ctx
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.mu.Unlock()

	err := e.runPass(ctx, push, pull)

	for {
		e.mu.Lock()
		if !e.rerun {
			e.running = false
			e.mu.Unlock()
			return err
		}
		e.rerun = false
		rerunCtx := e.rerunCtx
		e.rerunCtx = nil
		e.mu.Unlock()

		err = e.runPass(rerunCtx, true, true)
	}
}

// Status implements [Syncer].
func (e *syncEngine) Status(ctx context.Context) (models.SyncStatus, error) {
	pending, err := e.local.PendingCount(ctx)
	if err != nil {
		return models.SyncStatus{}, fmt.Errorf("count pending records: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return models.SyncStatus{
		State:        e.state,
		LastSyncAt:   e.lastSyncAt,
		PendingCount: pending,
		LastError:    e.lastError,
	}, nil
}

// ResetAndResync implements [Syncer].
func (e *syncEngine) ResetAndResync(ctx context.Context) error {
	if err := e.local.ResetCursors(ctx); err != nil {
		return fmt.Errorf("reset cursors: %w", err)
	}
	return e.FullSync(ctx)
}

func (e *syncEngine) runPass(ctx context.Context, push, pull bool) error {
	state := models.SyncStateSyncing
	if bootstrap, err := e.isBootstrap(ctx); err == nil && bootstrap {
		state = models.SyncStateBootstrapping
	}
	e.setState(state)

	var errs []error
	if pull {
		if err := e.pullPass(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if push {
		if err := e.pushPass(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)

	e.mu.Lock()
	e.state = models.SyncStateIdle
	if err != nil {
		e.lastError = err.Error()
	} else {
		e.lastError = ""
		e.lastSyncAt = e.clock()
	}
	e.mu.Unlock()

	return err
}

// isBootstrap reports whether no table has ever completed a pull.
func (e *syncEngine) isBootstrap(ctx context.Context) (bool, error) {
	for _, schema := range models.Tables {
		cursor, err := e.local.Cursor(ctx, schema.Name)
		if err != nil {
			return false, err
		}
		if cursor != "" {
			return false, nil
		}
	}
	return true, nil
}

func (e *syncEngine) setState(state models.SyncEngineState) {
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
}

// pullPass downloads remote changes table by table in dependency order. A
// table that fails poisons its dependents for this pass only; every other
// table still syncs.
func (e *syncEngine) pullPass(ctx context.Context) error {
	failed := make(map[string]bool)
	var errs []error

	for _, schema := range models.Tables {
		if dep, bad := failedDependency(schema, failed); bad {
			failed[schema.Name] = true
			e.logger.Warn().
				Str("table", schema.Name).
				Str("blocked_by", dep).
				Msg("pull skipped, upstream table failed")
			continue
		}

		if err := e.pullTable(ctx, schema); err != nil {
			failed[schema.Name] = true
			errs = append(errs, fmt.Errorf("pull %s: %w", schema.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (e *syncEngine) pullTable(ctx context.Context, schema models.TableSchema) error {
	cursor, err := e.local.Cursor(ctx, schema.Name)
	if err != nil {
		return err
	}

	for {
		result, err := e.remote.Pull(ctx, schema.Name, cursor)
		if err != nil {
			return err
		}

		deferred := false
		for i := range result.Records {
			d, err := e.applyPulled(ctx, schema, result.Records[i])
			if err != nil {
				return err
			}
			deferred = deferred || d
		}

		// A deferred record only exists in the page the backend just served.
		// Advancing past it would drop it forever, so the table's pull ends
		// here and the page replays on the next pass, after the missing
		// referents had a chance to arrive.
		if deferred {
			return nil
		}

		// The cursor only advances after the page has been applied, so an
		// interrupted pull re-downloads the page instead of losing it.
		if result.NextCursor == "" || result.NextCursor == cursor {
			return nil
		}
		if err = e.local.AdvanceCursor(ctx, schema.Name, result.NextCursor); err != nil {
			return err
		}
		cursor = result.NextCursor

		if len(result.Records) == 0 {
			return nil
		}
	}
}

// applyPulled writes one pulled record. deferred is true when the record
// references a parent not known locally yet: the caller must then hold the
// table's cursor so the record is re-delivered.
func (e *syncEngine) applyPulled(ctx context.Context, schema models.TableSchema, rec models.Record) (deferred bool, err error) {
	local, err := e.local.Get(ctx, schema.Name, rec.Meta.LocalID)
	found := err == nil
	if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		return false, err
	}

	// An unpushed local edit is only overwritten when the remote version is
	// strictly newer.
	if found && local.Meta.Dirty && Resolve(local.Meta, rec.Meta) == WinnerLocal {
		e.logger.Debug().
			Str("table", schema.Name).
			Str("local_id", rec.Meta.LocalID).
			Msg("keeping newer local edit over pulled version")
		return false, nil
	}

	if rec.Meta.Deleted() {
		if !found {
			return false, nil
		}
		return false, e.local.Purge(ctx, schema.Name, rec.Meta.LocalID)
	}

	mapped, ok, err := e.remapForApply(ctx, schema, rec)
	if err != nil {
		return false, err
	}
	if !ok {
		e.logger.Warn().
			Str("table", schema.Name).
			Str("local_id", rec.Meta.LocalID).
			Msg("pulled record references unknown parent, holding cursor")
		return true, nil
	}

	return false, e.local.ApplyRemote(ctx, schema.Name, &mapped)
}

// pushPass uploads dirty records table by table in dependency order, so a
// parent's CloudID exists before its children need it.
func (e *syncEngine) pushPass(ctx context.Context) error {
	failed := make(map[string]bool)
	var errs []error

	for _, schema := range models.Tables {
		if dep, bad := failedDependency(schema, failed); bad {
			failed[schema.Name] = true
			e.logger.Warn().
				Str("table", schema.Name).
				Str("blocked_by", dep).
				Msg("push skipped, upstream table failed")
			continue
		}

		if err := e.pushTable(ctx, schema); err != nil {
			failed[schema.Name] = true
			errs = append(errs, fmt.Errorf("push %s: %w", schema.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (e *syncEngine) pushTable(ctx context.Context, schema models.TableSchema) error {
	dirty, err := e.local.ListDirty(ctx, schema.Name)
	if err != nil {
		return err
	}

	batch := make([]models.Record, 0, len(dirty))
	for _, rec := range dirty {
		mapped, ok, err := e.remapForPush(ctx, schema, rec)
		if err != nil {
			return err
		}
		if !ok {
			// Parent not accepted remotely yet; this record rides the next
			// pass.
			continue
		}
		batch = append(batch, mapped)
	}
	if len(batch) == 0 {
		return nil
	}

	results, err := e.remote.Push(ctx, schema.Name, batch)
	if err != nil {
		return err
	}

	for _, res := range results {
		if err = e.applyPushResult(ctx, schema, res); err != nil {
			return err
		}
	}
	return nil
}

func (e *syncEngine) applyPushResult(ctx context.Context, schema models.TableSchema, res models.PushResult) error {
	switch res.Outcome {
	case models.PushAccepted:
		return e.local.MarkSynced(ctx, schema.Name, res.LocalID, res.CloudID)

	case models.PushRejected:
		e.logger.Warn().
			Str("table", schema.Name).
			Str("local_id", res.LocalID).
			Str("reason", res.Reason).
			Msg("record rejected by backend, parked")
		return e.local.MarkSyncError(ctx, schema.Name, res.LocalID, res.Reason)

	case models.PushConflict:
		return e.resolveConflict(ctx, schema, res)

	default:
		return fmt.Errorf("unknown push outcome %q for %s/%s", res.Outcome, schema.Name, res.LocalID)
	}
}

func (e *syncEngine) resolveConflict(ctx context.Context, schema models.TableSchema, res models.PushResult) error {
	if res.Remote == nil {
		// Nothing to compare against; the record stays dirty and the next
		// pull will deliver the remote version.
		e.logger.Warn().
			Str("table", schema.Name).
			Str("local_id", res.LocalID).
			Msg("conflict without remote version, deferred to next pull")
		return nil
	}

	local, err := e.local.Get(ctx, schema.Name, res.LocalID)
	if err != nil {
		return err
	}

	if Resolve(local.Meta, res.Remote.Meta) == WinnerLocal {
		// The local edit is newer; it stays dirty and the next push carries
		// the later timestamp.
		return nil
	}

	if res.Remote.Meta.Deleted() {
		return e.local.Purge(ctx, schema.Name, res.LocalID)
	}

	mapped, ok, err := e.remapForApply(ctx, schema, *res.Remote)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return e.local.ApplyRemote(ctx, schema.Name, &mapped)
}

// remapForPush rewrites foreign-key fields from LocalIDs to CloudIDs. ok is
// false when a required referent has not been assigned a CloudID yet.
func (e *syncEngine) remapForPush(ctx context.Context, schema models.TableSchema, rec models.Record) (models.Record, bool, error) {
	out := cloneRecord(rec)
	for _, ref := range schema.Refs {
		localID := rec.StringField(ref.Field)
		if localID == "" {
			if ref.Optional {
				continue
			}
			return models.Record{}, false, fmt.Errorf("%s/%s: required reference %s is empty", schema.Name, rec.Meta.LocalID, ref.Field)
		}

		cloudID, err := e.local.CloudIDFor(ctx, ref.RefTable, localID)
		if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
			return models.Record{}, false, err
		}
		if cloudID == "" {
			return models.Record{}, false, nil
		}
		out.Fields[ref.Field] = cloudID
	}
	return out, true, nil
}

// remapForApply rewrites foreign-key fields from CloudIDs to LocalIDs. ok is
// false when a required referent is not known locally yet.
func (e *syncEngine) remapForApply(ctx context.Context, schema models.TableSchema, rec models.Record) (models.Record, bool, error) {
	out := cloneRecord(rec)
	for _, ref := range schema.Refs {
		cloudID := rec.StringField(ref.Field)
		if cloudID == "" {
			continue
		}

		localID, err := e.local.LocalIDByCloudID(ctx, ref.RefTable, cloudID)
		if errors.Is(err, store.ErrRecordNotFound) {
			if ref.Optional {
				out.Fields[ref.Field] = ""
				continue
			}
			return models.Record{}, false, nil
		}
		if err != nil {
			return models.Record{}, false, err
		}
		out.Fields[ref.Field] = localID
	}
	return out, true, nil
}

func cloneRecord(rec models.Record) models.Record {
	fields := make(map[string]any, len(rec.Fields))
	for k, v := range rec.Fields {
		fields[k] = v
	}
	return models.Record{Meta: rec.Meta, Fields: fields}
}

func failedDependency(schema models.TableSchema, failed map[string]bool) (string, bool) {
	for _, ref := range schema.Refs {
		if failed[ref.RefTable] {
			return ref.RefTable, true
		}
	}
	return "", false
}
