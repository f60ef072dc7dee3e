package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrobook/agrobook/internal/logger"
	"github.com/agrobook/agrobook/internal/utils"
	"github.com/agrobook/agrobook/models"
)

// Driver failures are hard to provoke against a real sqlite file, so the
// error paths run against a mocked database.
func newMockedStore(t *testing.T) (*localStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return &localStore{
		db:      &DB{DB: db},
		logger:  logger.Nop(),
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
		events:  newObserver(),
		ids:     utils.NewUUIDGenerator(),
		clock:   time.Now,
	}, mock
}

func TestCursor_WrapsDriverError(t *testing.T) {
	s, mock := newMockedStore(t)

	mock.ExpectQuery("SELECT cursor FROM sync_cursors").
		WillReturnError(errors.New("disk I/O error"))

	_, err := s.Cursor(context.Background(), models.TablePartners)
	assert.ErrorIs(t, err, ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceCursor_WrapsDriverError(t *testing.T) {
	s, mock := newMockedStore(t)

	mock.ExpectExec("INSERT INTO sync_cursors").
		WillReturnError(errors.New("database is locked"))

	err := s.AdvanceCursor(context.Background(), models.TablePartners, "2026-06-01T00:00:00Z")
	assert.ErrorIs(t, err, ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_RollsBackOnUpsertError(t *testing.T) {
	s, mock := newMockedStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO partners").
		WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	rec := testPartner("Ravi")
	err := s.Save(context.Background(), models.TablePartners, rec)
	assert.ErrorIs(t, err, ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingCount_WrapsDriverError(t *testing.T) {
	s, mock := newMockedStore(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnError(errors.New("disk I/O error"))

	_, err := s.PendingCount(context.Background())
	assert.ErrorIs(t, err, ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}
