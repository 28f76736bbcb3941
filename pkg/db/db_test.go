package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesDirectoryAndEnablesWAL(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "storage.db")

	db, err := Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(filepath.Dir(dbPath))
	require.NoError(t, err)

	var mode string
	require.NoError(t, db.Get(&mode, "PRAGMA journal_mode"))
	assert.Equal(t, "wal", mode)
}

func testMigrations() []Migration {
	return []Migration{
		{
			Version:     20260101000002,
			Description: "Add column",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec("ALTER TABLE kv ADD COLUMN note TEXT")
				return err
			},
		},
		{
			Version:     20260101000001,
			Description: "Create kv",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec("CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)")
				return err
			},
		},
	}
}

func TestMigrationRunner_SortsAndRecords(t *testing.T) {
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run(context.Background(), testMigrations()))

	versions, err := runner.AppliedVersions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{20260101000001, 20260101000002}, versions)

	_, err = db.Exec("INSERT INTO kv (k, v, note) VALUES ('a', 'b', 'c')")
	assert.NoError(t, err)
}

func TestMigrationRunner_Idempotent(t *testing.T) {
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run(context.Background(), testMigrations()))
	require.NoError(t, runner.Run(context.Background(), testMigrations()))

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM schema_migrations"))
	assert.Equal(t, 2, count)
}

func TestMigrationRunner_FailureRollsBack(t *testing.T) {
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	err = NewMigrationRunner(db).Run(context.Background(), []Migration{
		{
			Version:     20260101000001,
			Description: "Broken",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec("CREATE TABLE")
				return err
			},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply migration 20260101000001")

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM schema_migrations"))
	assert.Equal(t, 0, count)
}

func TestOpenAndMigrate(t *testing.T) {
	db, err := OpenAndMigrate(context.Background(), filepath.Join(t.TempDir(), "test.db"), testMigrations())
	require.NoError(t, err)
	defer db.Close()

	var exists bool
	require.NoError(t, db.Get(&exists, "SELECT COUNT(*) > 0 FROM sqlite_master WHERE type='table' AND name='kv'"))
	assert.True(t, exists)
}
