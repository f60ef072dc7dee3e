package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/agrobook/agrobook/internal/adapter"
	"github.com/agrobook/agrobook/internal/logger"
	"github.com/agrobook/agrobook/internal/mock"
	"github.com/agrobook/agrobook/internal/store"
	"github.com/agrobook/agrobook/models"
)

func newTestEngine(t *testing.T, ctrl *gomock.Controller) (*syncEngine, *mock.MockLocalStore, *mock.MockRemoteStore) {
	t.Helper()

	local := mock.NewMockLocalStore(ctrl)
	remote := mock.NewMockRemoteStore(ctrl)
	e := NewSyncEngine(local, remote, logger.Nop()).(*syncEngine)
	return e, local, remote
}

func notFound(table, id string) error {
	return fmt.Errorf("%w: %s/%s", store.ErrRecordNotFound, table, id)
}

// ── Pull ─────────────────────────────────────────────────────────────────────

func TestSyncFromRemote_AppliesNewRecord(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	e, local, remote := newTestEngine(t, ctrl)
	ctx := context.Background()

	pulled := models.Record{
		Meta:   models.SyncMeta{LocalID: "p-1", CloudID: "c-1", UpdatedAt: time.Now()},
		Fields: map[string]any{"name": "Ravi", "role": "farmer"},
	}

	local.EXPECT().Cursor(gomock.Any(), gomock.Any()).Return("", nil).AnyTimes()
	remote.EXPECT().Pull(ctx, models.TablePartners, "").
		Return(models.PullResult{Records: []models.Record{pulled}, NextCursor: "cur-1"}, nil)
	local.EXPECT().Get(ctx, models.TablePartners, "p-1").
		Return(models.Record{}, notFound(models.TablePartners, "p-1"))
	local.EXPECT().ApplyRemote(ctx, models.TablePartners, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, recs ...*models.Record) error {
			require.Len(t, recs, 1)
			assert.Equal(t, "p-1", recs[0].Meta.LocalID)
			assert.Equal(t, "c-1", recs[0].Meta.CloudID)
			return nil
		})
	local.EXPECT().AdvanceCursor(ctx, models.TablePartners, "cur-1").Return(nil)
	remote.EXPECT().Pull(ctx, models.TablePartners, "cur-1").
		Return(models.PullResult{NextCursor: "cur-1"}, nil)

	remote.EXPECT().Pull(ctx, gomock.Any(), "").Return(models.PullResult{}, nil).AnyTimes()

	require.NoError(t, e.SyncFromRemote(ctx))
}

func TestSyncFromRemote_KeepsNewerLocalEdit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	e, local, remote := newTestEngine(t, ctrl)
	ctx := context.Background()

	now := time.Now()
	pulled := models.Record{
		Meta:   models.SyncMeta{LocalID: "p-1", CloudID: "c-1", UpdatedAt: now.Add(-time.Hour)},
		Fields: map[string]any{"name": "Stale"},
	}
	localVersion := models.Record{
		Meta:   models.SyncMeta{LocalID: "p-1", CloudID: "c-1", UpdatedAt: now, Dirty: true},
		Fields: map[string]any{"name": "Fresh"},
	}

	local.EXPECT().Cursor(gomock.Any(), gomock.Any()).Return("", nil).AnyTimes()
	remote.EXPECT().Pull(ctx, models.TablePartners, "").
		Return(models.PullResult{Records: []models.Record{pulled}}, nil)
	local.EXPECT().Get(ctx, models.TablePartners, "p-1").Return(localVersion, nil)
	// No ApplyRemote: the dirty local edit is newer and must survive the pull.

	remote.EXPECT().Pull(ctx, gomock.Any(), "").Return(models.PullResult{}, nil).AnyTimes()

	require.NoError(t, e.SyncFromRemote(ctx))
}

func TestSyncFromRemote_RemoteDeletePurges(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	e, local, remote := newTestEngine(t, ctrl)
	ctx := context.Background()

	deletedAt := time.Now()
	pulled := models.Record{
		Meta: models.SyncMeta{LocalID: "p-1", CloudID: "c-1", UpdatedAt: deletedAt, DeletedAt: &deletedAt},
	}

	local.EXPECT().Cursor(gomock.Any(), gomock.Any()).Return("", nil).AnyTimes()
	remote.EXPECT().Pull(ctx, models.TablePartners, "").
		Return(models.PullResult{Records: []models.Record{pulled}}, nil)
	local.EXPECT().Get(ctx, models.TablePartners, "p-1").
		Return(models.Record{Meta: models.SyncMeta{LocalID: "p-1", UpdatedAt: deletedAt.Add(-time.Hour)}}, nil)
	local.EXPECT().Purge(ctx, models.TablePartners, "p-1").Return(nil)

	remote.EXPECT().Pull(ctx, gomock.Any(), "").Return(models.PullResult{}, nil).AnyTimes()

	require.NoError(t, e.SyncFromRemote(ctx))
}

func TestSyncFromRemote_RemapsForeignKeyToLocalID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	e, local, remote := newTestEngine(t, ctrl)
	ctx := context.Background()

	pulled := models.Record{
		Meta: models.SyncMeta{LocalID: "i-1", CloudID: "ci-1", UpdatedAt: time.Now()},
		Fields: map[string]any{
			"partner_local_id": "cp-7", // CloudID on the wire
			"invoice_no":       "INV-1",
		},
	}

	local.EXPECT().Cursor(gomock.Any(), gomock.Any()).Return("", nil).AnyTimes()
	remote.EXPECT().Pull(ctx, models.TableInvoices, "").
		Return(models.PullResult{Records: []models.Record{pulled}}, nil)
	local.EXPECT().Get(ctx, models.TableInvoices, "i-1").
		Return(models.Record{}, notFound(models.TableInvoices, "i-1"))
	local.EXPECT().LocalIDByCloudID(ctx, models.TablePartners, "cp-7").Return("p-7", nil)
	local.EXPECT().ApplyRemote(ctx, models.TableInvoices, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, recs ...*models.Record) error {
			assert.Equal(t, "p-7", recs[0].StringField("partner_local_id"))
			return nil
		})

	remote.EXPECT().Pull(ctx, gomock.Any(), "").Return(models.PullResult{}, nil).AnyTimes()

	require.NoError(t, e.SyncFromRemote(ctx))
}

func TestSyncFromRemote_UnknownParentHoldsCursor(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	e, local, remote := newTestEngine(t, ctrl)
	ctx := context.Background()

	orphan := models.Record{
		Meta: models.SyncMeta{LocalID: "i-1", CloudID: "ci-1", UpdatedAt: time.Now()},
		Fields: map[string]any{
			"partner_local_id": "cp-404",
			"invoice_no":       "INV-1",
		},
	}

	local.EXPECT().Cursor(gomock.Any(), gomock.Any()).Return("", nil).AnyTimes()
	remote.EXPECT().Pull(ctx, models.TableInvoices, "").
		Return(models.PullResult{Records: []models.Record{orphan}, NextCursor: "cur-9"}, nil)
	local.EXPECT().Get(ctx, models.TableInvoices, "i-1").
		Return(models.Record{}, notFound(models.TableInvoices, "i-1"))
	local.EXPECT().LocalIDByCloudID(ctx, models.TablePartners, "cp-404").
		Return("", notFound(models.TablePartners, "cp-404"))

	// The invoice exists only in this page. The cursor must not move past it:
	// the page replays on a later pass, once the partner has arrived.
	local.EXPECT().ApplyRemote(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	local.EXPECT().AdvanceCursor(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	remote.EXPECT().Pull(ctx, gomock.Any(), "").Return(models.PullResult{}, nil).AnyTimes()

	require.NoError(t, e.SyncFromRemote(ctx))
}

func TestSyncFromRemote_FailedTableSkipsDependents(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	e, local, remote := newTestEngine(t, ctrl)
	ctx := context.Background()

	local.EXPECT().Cursor(gomock.Any(), gomock.Any()).Return("", nil).AnyTimes()

	remote.EXPECT().Pull(ctx, models.TableCategories, "").Return(models.PullResult{}, nil)
	remote.EXPECT().Pull(ctx, models.TableRoles, "").Return(models.PullResult{}, nil)
	remote.EXPECT().Pull(ctx, models.TablePartners, "").
		Return(models.PullResult{}, fmt.Errorf("%w: http 503", adapter.ErrTransient))
	remote.EXPECT().Pull(ctx, models.TableStockItems, "").Return(models.PullResult{}, nil)
	// No Pull for purchases, invoices or charges: they all depend on
	// partners, directly or through invoices.

	err := e.SyncFromRemote(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrTransient)
	assert.Contains(t, err.Error(), "pull partners")
}

// ── Push ─────────────────────────────────────────────────────────────────────

func TestPushPending_AcceptedMarksSynced(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	e, local, remote := newTestEngine(t, ctrl)
	ctx := context.Background()

	dirty := models.Record{
		Meta:   models.SyncMeta{LocalID: "p-1", UpdatedAt: time.Now(), Dirty: true},
		Fields: map[string]any{"name": "Ravi"},
	}

	local.EXPECT().Cursor(gomock.Any(), gomock.Any()).Return("", nil).AnyTimes()
	local.EXPECT().ListDirty(ctx, models.TablePartners).Return([]models.Record{dirty}, nil)
	remote.EXPECT().Push(ctx, models.TablePartners, gomock.Any()).
		Return([]models.PushResult{{LocalID: "p-1", Outcome: models.PushAccepted, CloudID: "c-1"}}, nil)
	local.EXPECT().MarkSynced(ctx, models.TablePartners, "p-1", "c-1").Return(nil)

	local.EXPECT().ListDirty(ctx, gomock.Any()).Return(nil, nil).AnyTimes()

	require.NoError(t, e.PushPending(ctx))
}

func TestPushPending_RejectedParksRecord(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	e, local, remote := newTestEngine(t, ctrl)
	ctx := context.Background()

	dirty := models.Record{
		Meta:   models.SyncMeta{LocalID: "p-1", UpdatedAt: time.Now(), Dirty: true},
		Fields: map[string]any{"name": ""},
	}

	local.EXPECT().Cursor(gomock.Any(), gomock.Any()).Return("", nil).AnyTimes()
	local.EXPECT().ListDirty(ctx, models.TablePartners).Return([]models.Record{dirty}, nil)
	remote.EXPECT().Push(ctx, models.TablePartners, gomock.Any()).
		Return([]models.PushResult{{LocalID: "p-1", Outcome: models.PushRejected, Reason: "name required"}}, nil)
	local.EXPECT().MarkSyncError(ctx, models.TablePartners, "p-1", "name required").Return(nil)

	local.EXPECT().ListDirty(ctx, gomock.Any()).Return(nil, nil).AnyTimes()

	require.NoError(t, e.PushPending(ctx))
}

func TestPushPending_RemapsForeignKeyToCloudID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	e, local, remote := newTestEngine(t, ctrl)
	ctx := context.Background()

	dirty := models.Record{
		Meta: models.SyncMeta{LocalID: "i-1", UpdatedAt: time.Now(), Dirty: true},
		Fields: map[string]any{
			"partner_local_id": "p-7",
			"invoice_no":       "INV-1",
		},
	}

	local.EXPECT().Cursor(gomock.Any(), gomock.Any()).Return("", nil).AnyTimes()
	local.EXPECT().ListDirty(ctx, models.TableInvoices).Return([]models.Record{dirty}, nil)
	local.EXPECT().CloudIDFor(ctx, models.TablePartners, "p-7").Return("cp-7", nil)
	remote.EXPECT().Push(ctx, models.TableInvoices, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, batch []models.Record) ([]models.PushResult, error) {
			require.Len(t, batch, 1)
			assert.Equal(t, "cp-7", batch[0].StringField("partner_local_id"))
			return []models.PushResult{{LocalID: "i-1", Outcome: models.PushAccepted, CloudID: "ci-1"}}, nil
		})
	local.EXPECT().MarkSynced(ctx, models.TableInvoices, "i-1", "ci-1").Return(nil)

	local.EXPECT().ListDirty(ctx, gomock.Any()).Return(nil, nil).AnyTimes()

	require.NoError(t, e.PushPending(ctx))
}

func TestPushPending_DefersChildOfUnsyncedParent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	e, local, remote := newTestEngine(t, ctrl)
	ctx := context.Background()

	dirty := models.Record{
		Meta: models.SyncMeta{LocalID: "i-1", UpdatedAt: time.Now(), Dirty: true},
		Fields: map[string]any{
			"partner_local_id": "p-7",
			"invoice_no":       "INV-1",
		},
	}

	local.EXPECT().Cursor(gomock.Any(), gomock.Any()).Return("", nil).AnyTimes()
	local.EXPECT().ListDirty(ctx, models.TableInvoices).Return([]models.Record{dirty}, nil)
	// Parent has no CloudID yet, so the invoice must not be pushed.
	local.EXPECT().CloudIDFor(ctx, models.TablePartners, "p-7").Return("", nil)

	local.EXPECT().ListDirty(ctx, gomock.Any()).Return(nil, nil).AnyTimes()
	remote.EXPECT().Push(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	require.NoError(t, e.PushPending(ctx))
}

func TestPushPending_ConflictRemoteWins(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	e, local, remote := newTestEngine(t, ctrl)
	ctx := context.Background()

	now := time.Now()
	dirty := models.Record{
		Meta:   models.SyncMeta{LocalID: "p-1", CloudID: "c-1", UpdatedAt: now.Add(-time.Hour), Dirty: true},
		Fields: map[string]any{"name": "Old Local"},
	}
	remoteVersion := models.Record{
		Meta:   models.SyncMeta{LocalID: "p-1", CloudID: "c-1", UpdatedAt: now},
		Fields: map[string]any{"name": "Newer Remote"},
	}

	local.EXPECT().Cursor(gomock.Any(), gomock.Any()).Return("", nil).AnyTimes()
	local.EXPECT().ListDirty(ctx, models.TablePartners).Return([]models.Record{dirty}, nil)
	remote.EXPECT().Push(ctx, models.TablePartners, gomock.Any()).
		Return([]models.PushResult{{
			LocalID: "p-1",
			Outcome: models.PushConflict,
			CloudID: "c-1",
			Remote:  &remoteVersion,
		}}, nil)
	local.EXPECT().Get(ctx, models.TablePartners, "p-1").Return(dirty, nil)
	local.EXPECT().ApplyRemote(ctx, models.TablePartners, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, recs ...*models.Record) error {
			assert.Equal(t, "Newer Remote", recs[0].StringField("name"))
			return nil
		})

	local.EXPECT().ListDirty(ctx, gomock.Any()).Return(nil, nil).AnyTimes()

	require.NoError(t, e.PushPending(ctx))
}

func TestPushPending_ConflictLocalWinsStaysDirty(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	e, local, remote := newTestEngine(t, ctrl)
	ctx := context.Background()

	now := time.Now()
	dirty := models.Record{
		Meta:   models.SyncMeta{LocalID: "p-1", CloudID: "c-1", UpdatedAt: now, Dirty: true},
		Fields: map[string]any{"name": "Newer Local"},
	}
	remoteVersion := models.Record{
		Meta:   models.SyncMeta{LocalID: "p-1", CloudID: "c-1", UpdatedAt: now.Add(-time.Hour)},
		Fields: map[string]any{"name": "Old Remote"},
	}

	local.EXPECT().Cursor(gomock.Any(), gomock.Any()).Return("", nil).AnyTimes()
	local.EXPECT().ListDirty(ctx, models.TablePartners).Return([]models.Record{dirty}, nil)
	remote.EXPECT().Push(ctx, models.TablePartners, gomock.Any()).
		Return([]models.PushResult{{
			LocalID: "p-1",
			Outcome: models.PushConflict,
			CloudID: "c-1",
			Remote:  &remoteVersion,
		}}, nil)
	local.EXPECT().Get(ctx, models.TablePartners, "p-1").Return(dirty, nil)
	// No ApplyRemote and no MarkSynced: the record stays dirty and the next
	// push carries the newer local timestamp.

	local.EXPECT().ListDirty(ctx, gomock.Any()).Return(nil, nil).AnyTimes()

	require.NoError(t, e.PushPending(ctx))
}

// ── Orchestration ────────────────────────────────────────────────────────────

func TestFullSync_CoalescesConcurrentRequests(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	e, local, remote := newTestEngine(t, ctrl)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	var passes atomic.Int32

	local.EXPECT().Cursor(gomock.Any(), gomock.Any()).Return("", nil).AnyTimes()
	local.EXPECT().ListDirty(gomock.Any(), models.TableCategories).
		DoAndReturn(func(context.Context, string) ([]models.Record, error) {
			if passes.Add(1) == 1 {
				close(started)
				<-release
			}
			return nil, nil
		}).AnyTimes()
	local.EXPECT().ListDirty(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	remote.EXPECT().Pull(gomock.Any(), gomock.Any(), gomock.Any()).Return(models.PullResult{}, nil).AnyTimes()

	done := make(chan error, 1)
	go func() { done <- e.FullSync(ctx) }()
	<-started

	// A trigger landing mid-pass returns immediately and schedules a rerun.
	require.NoError(t, e.FullSync(ctx))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(2), passes.Load())
}

func TestFullSync_RerunSurvivesFirstCallerCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	e, local, remote := newTestEngine(t, ctrl)

	started := make(chan struct{})
	release := make(chan struct{})
	var passes atomic.Int32

	local.EXPECT().Cursor(gomock.Any(), gomock.Any()).Return("", nil).AnyTimes()
	local.EXPECT().ListDirty(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	remote.EXPECT().Pull(gomock.Any(), models.TableCategories, gomock.Any()).
		DoAndReturn(func(ctx context.Context, _, _ string) (models.PullResult, error) {
			if passes.Add(1) == 1 {
				close(started)
				<-release
			}
			return models.PullResult{}, ctx.Err()
		}).AnyTimes()
	remote.EXPECT().Pull(gomock.Any(), gomock.Any(), gomock.Any()).Return(models.PullResult{}, nil).AnyTimes()

	ctx1, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.FullSync(ctx1) }()
	<-started

	// The first caller goes away mid-pass; the trigger that arrives while the
	// pass runs is absorbed into a rerun, which must execute on the live
	// context of that trigger, not the dead one.
	cancel()
	require.NoError(t, e.FullSync(context.Background()))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(2), passes.Load())
}

func TestResetAndResync(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	e, local, remote := newTestEngine(t, ctrl)
	ctx := context.Background()

	local.EXPECT().ResetCursors(ctx).Return(nil)
	local.EXPECT().Cursor(gomock.Any(), gomock.Any()).Return("", nil).AnyTimes()
	local.EXPECT().ListDirty(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	remote.EXPECT().Pull(gomock.Any(), gomock.Any(), "").Return(models.PullResult{}, nil).Times(len(models.Tables))

	require.NoError(t, e.ResetAndResync(ctx))
}

func TestStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	e, local, _ := newTestEngine(t, ctrl)
	ctx := context.Background()

	local.EXPECT().PendingCount(ctx).Return(3, nil)

	st, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStateIdle, st.State)
	assert.Equal(t, 3, st.PendingCount)
	assert.Empty(t, st.LastError)
}

func TestStatus_RecordsLastError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	e, local, remote := newTestEngine(t, ctrl)
	ctx := context.Background()

	local.EXPECT().Cursor(gomock.Any(), gomock.Any()).Return("", nil).AnyTimes()
	remote.EXPECT().Pull(gomock.Any(), gomock.Any(), "").
		Return(models.PullResult{}, errors.New("backend down")).AnyTimes()

	require.Error(t, e.SyncFromRemote(ctx))

	local.EXPECT().PendingCount(ctx).Return(0, nil)
	st, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Contains(t, st.LastError, "backend down")
	assert.True(t, st.LastSyncAt.IsZero())
}
