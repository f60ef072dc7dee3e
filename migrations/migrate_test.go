package migrations

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrate_NilDB(t *testing.T) {
	err := Migrate(nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMigration)
	assert.Contains(t, err.Error(), "db is nil")
}

func TestMigrate_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, Migrate(db))

	// Post-migration schema: partners exists, farmers is gone.
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='partners'`).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='farmers'`).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))
}

// Unsynced rows seeded into the legacy schema must survive the rename with
// their dirty flags intact and their foreign keys repointed.
func TestMigrate_PreservesDirtyRowsAcrossRename(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, MigrateTo(db, 1))

	now := time.Now().UTC()
	_, err := db.Exec(`
		INSERT INTO farmers (local_id, cloud_id, created_at, updated_at, dirty, name, phone)
		VALUES ('f-1', '', ?, ?, 1, 'Ravi', '555-0101')`, now, now)
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO purchases (local_id, created_at, updated_at, dirty, farmer_local_id, quantity, amount)
		VALUES ('p-1', ?, ?, 1, 'f-1', 10, 250)`, now, now)
	require.NoError(t, err)

	require.NoError(t, Migrate(db))

	var dirty int
	var role string
	err = db.QueryRow(`SELECT dirty, role FROM partners WHERE local_id = 'f-1'`).Scan(&dirty, &role)
	require.NoError(t, err)
	assert.Equal(t, 1, dirty, "dirty flag must survive the migration")
	assert.Equal(t, "farmer", role, "copied rows get the default discriminator")

	var partnerID string
	err = db.QueryRow(`SELECT partner_local_id FROM purchases WHERE local_id = 'p-1'`).Scan(&partnerID)
	require.NoError(t, err)
	assert.Equal(t, "f-1", partnerID, "dependent FK must be repointed")

	err = db.QueryRow(`SELECT dirty FROM purchases WHERE local_id = 'p-1'`).Scan(&dirty)
	require.NoError(t, err)
	assert.Equal(t, 1, dirty)
}

func TestMigrate_TombstonesSurvive(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, MigrateTo(db, 1))

	now := time.Now().UTC()
	_, err := db.Exec(`
		INSERT INTO farmers (local_id, cloud_id, created_at, updated_at, deleted_at, dirty, name)
		VALUES ('f-del', 'c-9', ?, ?, ?, 1, 'Removed')`, now, now, now)
	require.NoError(t, err)

	require.NoError(t, Migrate(db))

	var deletedAt sql.NullTime
	err = db.QueryRow(`SELECT deleted_at FROM partners WHERE local_id = 'f-del'`).Scan(&deletedAt)
	require.NoError(t, err)
	assert.True(t, deletedAt.Valid, "tombstone must propagate into partners")
}
