package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CreatesDirectoryAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.db")

	db, err := New(Config{Path: path, Profile: ProfileLedger, Name: "audit"})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate())
	// Reapplying is harmless
	require.NoError(t, db.Migrate())

	var count int
	err = db.Conn().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('cycles','actions')`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, "audit", db.Name())
	assert.Equal(t, ProfileLedger, db.Profile())
	assert.Equal(t, path, db.Path())
	assert.NoError(t, db.HealthCheck(context.Background()))
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "x.db"), Name: "scratch"})
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Migrate())
	assert.Equal(t, ProfileStandard, db.Profile())
}

func TestWithTransaction(t *testing.T) {
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "tx.db"), Name: "tx"})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Conn().Exec(`CREATE TABLE t (v INTEGER)`)
	require.NoError(t, err)

	count := func() int {
		var n int
		require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
		return n
	}

	t.Run("commits on success", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			_, err := tx.Exec(`INSERT INTO t VALUES (1)`)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			_, _ = tx.Exec(`INSERT INTO t VALUES (2)`)
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, count())
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			_, _ = tx.Exec(`INSERT INTO t VALUES (3)`)
			panic("bad")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panic in transaction")
		assert.Equal(t, 1, count())
	})

	t.Run("nil connection", func(t *testing.T) {
		assert.Error(t, WithTransaction(nil, func(*sql.Tx) error { return nil }))
	})
}

func TestSnapshotAndCheckpoint(t *testing.T) {
	dir := t.TempDir()
	db, err := New(Config{Path: filepath.Join(dir, "audit.db"), Profile: ProfileLedger, Name: "audit"})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	_, err = db.Conn().Exec(`INSERT INTO cycles (run_id, started_at, duration_ms, steps, last_action) VALUES ('r1', 0, 5, 1, 'noop')`)
	require.NoError(t, err)
	require.NoError(t, db.Checkpoint(context.Background()))

	dest := filepath.Join(dir, "copy.db")
	require.NoError(t, db.Snapshot(context.Background(), dest))
	assert.Error(t, db.Snapshot(context.Background(), dest), "existing target is refused")

	copyDB, err := New(Config{Path: dest, Name: "copy"})
	require.NoError(t, err)
	defer copyDB.Close()

	var runID string
	require.NoError(t, copyDB.Conn().QueryRow(`SELECT run_id FROM cycles`).Scan(&runID))
	assert.Equal(t, "r1", runID)
}
