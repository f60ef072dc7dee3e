package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/agrobook/agrobook/internal/logger"
	"github.com/agrobook/agrobook/internal/utils"
	"github.com/agrobook/agrobook/models"
)

// Sync metadata columns present on every synced table, in scan order.
var metaColumns = []string{"local_id", "cloud_id", "created_at", "updated_at", "deleted_at", "dirty", "sync_error"}

type localStore struct {
	db      *DB
	logger  *logger.Logger
	builder sq.StatementBuilderType
	events  *observer
	ids     *utils.UUIDGenerator
	clock   func() time.Time
}

// NewLocalStore constructs the sqlite implementation of [LocalStore] over an
// already-migrated database handle.
func NewLocalStore(db *DB, log *logger.Logger) LocalStore {
	return &localStore{
		db:      db,
		logger:  log,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
		events:  newObserver(),
		ids:     utils.NewUUIDGenerator(),
		clock:   time.Now,
	}
}

// Save implements [RecordRepository]. Every record gets a LocalID if it has
// none, its UpdatedAt advanced and its dirty flag raised, all inside one
// transaction with the row write itself.
func (l *localStore) Save(ctx context.Context, table string, records ...*models.Record) error {
	schema, ok := models.SchemaFor(table)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	now := l.clock().UTC()
	for _, rec := range records {
		if rec.Meta.LocalID == "" {
			rec.Meta.LocalID = l.ids.Generate()
		}
		if rec.Meta.CreatedAt.IsZero() {
			rec.Meta.CreatedAt = now
		}
		rec.Meta.UpdatedAt = now
		rec.Meta.Dirty = true
	}

	if _, err := l.writeAll(ctx, schema, records, false); err != nil {
		return err
	}

	for _, rec := range records {
		l.events.publish(models.ChangeEvent{Table: table, LocalID: rec.Meta.LocalID, Kind: models.ChangeSaved, At: now})
	}
	return nil
}

// ApplyRemote implements [RecordRepository]. Records are written exactly as
// resolved from the backend: remote timestamps kept, dirty flag down. The
// write is guarded inside the statement: a dirty row whose UpdatedAt is newer
// than the incoming version is left untouched, so a local edit committed
// between the engine's resolution read and this write can never be regressed.
func (l *localStore) ApplyRemote(ctx context.Context, table string, records ...*models.Record) error {
	schema, ok := models.SchemaFor(table)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	for _, rec := range records {
		rec.Meta.Dirty = false
	}

	applied, err := l.writeAll(ctx, schema, records, true)
	if err != nil {
		return err
	}

	now := l.clock().UTC()
	for i, rec := range records {
		if !applied[i] {
			l.logger.Debug().
				Str("table", table).
				Str("local_id", rec.Meta.LocalID).
				Msg("pulled version lost to newer local edit")
			continue
		}
		l.events.publish(models.ChangeEvent{Table: table, LocalID: rec.Meta.LocalID, Kind: models.ChangeSynced, At: now})
	}
	return nil
}

func (l *localStore) writeAll(ctx context.Context, schema models.TableSchema, records []*models.Record, guarded bool) ([]bool, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %w", ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	applied := make([]bool, len(records))
	for i, rec := range records {
		if applied[i], err = l.upsert(ctx, tx, schema, rec, guarded); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %w", ErrStorage, err)
	}
	return applied, nil
}

func (l *localStore) upsert(ctx context.Context, tx *sql.Tx, schema models.TableSchema, rec *models.Record, guarded bool) (bool, error) {
	cols := make([]string, 0, len(metaColumns)+len(schema.Columns))
	cols = append(cols, metaColumns...)

	vals := []any{
		rec.Meta.LocalID,
		rec.Meta.CloudID,
		rec.Meta.CreatedAt.UTC(),
		rec.Meta.UpdatedAt.UTC(),
		nullableTime(rec.Meta.DeletedAt),
		rec.Meta.Dirty,
		rec.Meta.SyncError,
	}
	for _, col := range schema.Columns {
		cols = append(cols, col.Name)
		vals = append(vals, fieldValue(col, rec.Fields))
	}

	query, args, err := l.builder.
		Insert(schema.Name).
		Columns(cols...).
		Values(vals...).
		Suffix(upsertSuffix(schema, guarded)).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("%w: build upsert for %s: %w", ErrStorage, schema.Name, err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%w: upsert %s (local_id=%s): %w", ErrStorage, schema.Name, rec.Meta.LocalID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: upsert %s (local_id=%s): rows affected: %w", ErrStorage, schema.Name, rec.Meta.LocalID, err)
	}
	return n > 0, nil
}

// upsertSuffix builds the ON CONFLICT clause. cloud_id is only taken from
// the incoming row when the stored one is still empty: the mapping is
// assigned once and never overwritten by a write path.
//
// A guarded upsert additionally skips the update when the stored row is
// dirty and strictly newer than the incoming one. Timestamps are stored as
// UTC text, so the string comparison orders them correctly.
func upsertSuffix(schema models.TableSchema, guarded bool) string {
	assigns := []string{
		"cloud_id = CASE WHEN cloud_id = '' THEN excluded.cloud_id ELSE cloud_id END",
		"updated_at = excluded.updated_at",
		"deleted_at = excluded.deleted_at",
		"dirty = excluded.dirty",
		"sync_error = excluded.sync_error",
	}
	for _, col := range schema.Columns {
		assigns = append(assigns, col.Name+" = excluded."+col.Name)
	}
	suffix := "ON CONFLICT(local_id) DO UPDATE SET " + strings.Join(assigns, ", ")
	if guarded {
		suffix += " WHERE dirty = 0 OR excluded.updated_at >= updated_at"
	}
	return suffix
}

// Get implements [RecordRepository].
func (l *localStore) Get(ctx context.Context, table, localID string) (models.Record, error) {
	schema, ok := models.SchemaFor(table)
	if !ok {
		return models.Record{}, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	query, args, err := l.selectBuilder(schema).Where(sq.Eq{"local_id": localID}).ToSql()
	if err != nil {
		return models.Record{}, fmt.Errorf("%w: build select for %s: %w", ErrStorage, table, err)
	}

	row := l.db.QueryRowContext(ctx, query, args...)
	rec, err := scanRecord(schema, row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Record{}, fmt.Errorf("%w: %s/%s", ErrRecordNotFound, table, localID)
	}
	if err != nil {
		return models.Record{}, fmt.Errorf("%w: scan %s row: %w", ErrStorage, table, err)
	}
	return rec, nil
}

// List implements [RecordRepository]. Tombstones are filtered out; they are
// sync bookkeeping, not data the UI should render.
func (l *localStore) List(ctx context.Context, table string) ([]models.Record, error) {
	return l.listWhere(ctx, table, sq.Eq{"deleted_at": nil})
}

// ListDirty implements [RecordRepository]. Records parked with a sync error
// are excluded until an operator clears them.
func (l *localStore) ListDirty(ctx context.Context, table string) ([]models.Record, error) {
	return l.listWhere(ctx, table, sq.And{sq.Eq{"dirty": true}, sq.Eq{"sync_error": ""}})
}

func (l *localStore) listWhere(ctx context.Context, table string, pred any) ([]models.Record, error) {
	schema, ok := models.SchemaFor(table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	query, args, err := l.selectBuilder(schema).Where(pred).OrderBy("created_at ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: build list for %s: %w", ErrStorage, table, err)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrStorage, table, err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Record
	for rows.Next() {
		rec, err := scanRecord(schema, rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%w: scan %s rows: %w", ErrStorage, table, err)
		}
		out = append(out, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate %s rows: %w", ErrStorage, table, err)
	}
	return out, nil
}

// SoftDelete implements [RecordRepository].
func (l *localStore) SoftDelete(ctx context.Context, table, localID string, at time.Time) error {
	if _, ok := models.SchemaFor(table); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	query, args, err := l.builder.
		Update(table).
		Set("deleted_at", at.UTC()).
		Set("updated_at", at.UTC()).
		Set("dirty", true).
		Where(sq.And{sq.Eq{"local_id": localID}, sq.Eq{"deleted_at": nil}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: build soft delete for %s: %w", ErrStorage, table, err)
	}

	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: soft delete %s/%s: %w", ErrStorage, table, localID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrRecordNotFound, table, localID)
	}

	l.events.publish(models.ChangeEvent{Table: table, LocalID: localID, Kind: models.ChangeDeleted, At: at})
	return nil
}

// MarkSynced implements [RecordRepository]. The CloudID assignment is
// guarded: a record that already carries a different CloudID is never
// remapped. A tombstone whose delete the backend just confirmed is purged
// here, and only here.
func (l *localStore) MarkSynced(ctx context.Context, table, localID, cloudID string) error {
	if _, ok := models.SchemaFor(table); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing string
	var deletedAt sql.NullTime
	query, args, err := l.builder.Select("cloud_id", "deleted_at").From(table).Where(sq.Eq{"local_id": localID}).ToSql()
	if err != nil {
		return fmt.Errorf("%w: build select for %s: %w", ErrStorage, table, err)
	}
	err = tx.QueryRowContext(ctx, query, args...).Scan(&existing, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s/%s", ErrRecordNotFound, table, localID)
	}
	if err != nil {
		return fmt.Errorf("%w: read %s/%s: %w", ErrStorage, table, localID, err)
	}
	if existing != "" && existing != cloudID {
		return fmt.Errorf("%w: %s/%s has %s, got %s", ErrCloudIDMismatch, table, localID, existing, cloudID)
	}

	kind := models.ChangeSynced
	if deletedAt.Valid {
		query, args, err = l.builder.Delete(table).Where(sq.Eq{"local_id": localID}).ToSql()
		kind = models.ChangePurged
	} else {
		query, args, err = l.builder.
			Update(table).
			Set("cloud_id", cloudID).
			Set("dirty", false).
			Set("sync_error", "").
			Where(sq.Eq{"local_id": localID}).
			ToSql()
	}
	if err != nil {
		return fmt.Errorf("%w: build mark synced for %s: %w", ErrStorage, table, err)
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: mark synced %s/%s: %w", ErrStorage, table, localID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrStorage, err)
	}

	l.events.publish(models.ChangeEvent{Table: table, LocalID: localID, Kind: kind, At: l.clock().UTC()})
	return nil
}

// MarkSyncError implements [RecordRepository]. The record stays dirty but
// ListDirty skips it until the error is cleared.
func (l *localStore) MarkSyncError(ctx context.Context, table, localID, reason string) error {
	return l.setSyncError(ctx, table, localID, reason)
}

// ClearSyncError implements [RecordRepository].
func (l *localStore) ClearSyncError(ctx context.Context, table, localID string) error {
	return l.setSyncError(ctx, table, localID, "")
}

func (l *localStore) setSyncError(ctx context.Context, table, localID, reason string) error {
	if _, ok := models.SchemaFor(table); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	query, args, err := l.builder.
		Update(table).
		Set("sync_error", reason).
		Where(sq.Eq{"local_id": localID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: build sync error update for %s: %w", ErrStorage, table, err)
	}

	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: set sync error %s/%s: %w", ErrStorage, table, localID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrRecordNotFound, table, localID)
	}
	return nil
}

// Purge implements [RecordRepository].
func (l *localStore) Purge(ctx context.Context, table, localID string) error {
	if _, ok := models.SchemaFor(table); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	query, args, err := l.builder.Delete(table).Where(sq.Eq{"local_id": localID}).ToSql()
	if err != nil {
		return fmt.Errorf("%w: build purge for %s: %w", ErrStorage, table, err)
	}
	if _, err = l.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: purge %s/%s: %w", ErrStorage, table, localID, err)
	}

	l.events.publish(models.ChangeEvent{Table: table, LocalID: localID, Kind: models.ChangePurged, At: l.clock().UTC()})
	return nil
}

// LocalIDByCloudID implements [RecordRepository].
func (l *localStore) LocalIDByCloudID(ctx context.Context, table, cloudID string) (string, error) {
	if _, ok := models.SchemaFor(table); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	query, args, err := l.builder.Select("local_id").From(table).Where(sq.Eq{"cloud_id": cloudID}).ToSql()
	if err != nil {
		return "", fmt.Errorf("%w: build lookup for %s: %w", ErrStorage, table, err)
	}

	var localID string
	err = l.db.QueryRowContext(ctx, query, args...).Scan(&localID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s cloud_id=%s", ErrRecordNotFound, table, cloudID)
	}
	if err != nil {
		return "", fmt.Errorf("%w: lookup %s by cloud_id: %w", ErrStorage, table, err)
	}
	return localID, nil
}

// CloudIDFor implements [RecordRepository].
func (l *localStore) CloudIDFor(ctx context.Context, table, localID string) (string, error) {
	if _, ok := models.SchemaFor(table); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	query, args, err := l.builder.Select("cloud_id").From(table).Where(sq.Eq{"local_id": localID}).ToSql()
	if err != nil {
		return "", fmt.Errorf("%w: build lookup for %s: %w", ErrStorage, table, err)
	}

	var cloudID string
	err = l.db.QueryRowContext(ctx, query, args...).Scan(&cloudID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s/%s", ErrRecordNotFound, table, localID)
	}
	if err != nil {
		return "", fmt.Errorf("%w: lookup %s cloud_id: %w", ErrStorage, table, err)
	}
	return cloudID, nil
}

// PendingCount implements [RecordRepository].
func (l *localStore) PendingCount(ctx context.Context) (int, error) {
	total := 0
	for _, schema := range models.Tables {
		query, args, err := l.builder.Select("COUNT(*)").From(schema.Name).Where(sq.Eq{"dirty": true}).ToSql()
		if err != nil {
			return 0, fmt.Errorf("%w: build count for %s: %w", ErrStorage, schema.Name, err)
		}

		var n int
		if err = l.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
			return 0, fmt.Errorf("%w: count dirty %s: %w", ErrStorage, schema.Name, err)
		}
		total += n
	}
	return total, nil
}

// Subscribe implements [ChangeStream].
func (l *localStore) Subscribe(table string) (<-chan models.ChangeEvent, func()) {
	return l.events.Subscribe(table)
}

func (l *localStore) selectBuilder(schema models.TableSchema) sq.SelectBuilder {
	cols := make([]string, 0, len(metaColumns)+len(schema.Columns))
	cols = append(cols, metaColumns...)
	for _, col := range schema.Columns {
		cols = append(cols, col.Name)
	}
	return l.builder.Select(cols...).From(schema.Name)
}

func scanRecord(schema models.TableSchema, scan func(dest ...any) error) (models.Record, error) {
	var (
		localID, cloudID, syncError string
		createdAt, updatedAt        time.Time
		deletedAt                   sql.NullTime
		dirty                       bool
	)

	dests := []any{&localID, &cloudID, &createdAt, &updatedAt, &deletedAt, &dirty, &syncError}
	fieldDests := make([]any, len(schema.Columns))
	for i, col := range schema.Columns {
		switch col.Type {
		case models.ColReal:
			fieldDests[i] = new(sql.NullFloat64)
		case models.ColInteger:
			fieldDests[i] = new(sql.NullInt64)
		case models.ColTimestamp:
			fieldDests[i] = new(sql.NullTime)
		default:
			fieldDests[i] = new(sql.NullString)
		}
		dests = append(dests, fieldDests[i])
	}

	if err := scan(dests...); err != nil {
		return models.Record{}, err
	}

	fields := make(map[string]any, len(schema.Columns))
	for i, col := range schema.Columns {
		switch v := fieldDests[i].(type) {
		case *sql.NullFloat64:
			fields[col.Field] = v.Float64
		case *sql.NullInt64:
			fields[col.Field] = v.Int64
		case *sql.NullTime:
			if v.Valid {
				fields[col.Field] = v.Time
			}
		case *sql.NullString:
			fields[col.Field] = v.String
		}
	}

	rec := models.Record{
		Meta: models.SyncMeta{
			LocalID:   localID,
			CloudID:   cloudID,
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
			Dirty:     dirty,
			SyncError: syncError,
		},
		Fields: fields,
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		rec.Meta.DeletedAt = &t
	}
	return rec, nil
}

func fieldValue(col models.Column, fields map[string]any) any {
	v, ok := fields[col.Field]
	if !ok || v == nil {
		return defaultFor(col.Type)
	}
	if col.Type == models.ColTimestamp {
		t, ok := v.(time.Time)
		if !ok || t.IsZero() {
			return nil
		}
		return t.UTC()
	}
	return v
}

func defaultFor(t models.ColumnType) any {
	switch t {
	case models.ColReal:
		return float64(0)
	case models.ColInteger:
		return int64(0)
	case models.ColTimestamp:
		return nil
	default:
		return ""
	}
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
