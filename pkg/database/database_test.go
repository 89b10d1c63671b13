package database

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "data", "test.db"), MaxOpenConns: 1}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrator_RunMigrations(t *testing.T) {
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"002_add_notes.sql":  {Data: []byte("ALTER TABLE batches ADD COLUMN notes TEXT;")},
		"001_batches.sql":    {Data: []byte("CREATE TABLE batches (id TEXT PRIMARY KEY);")},
		"README.md":          {Data: []byte("ignored")},
		"nested/003_idx.sql": {Data: []byte("CREATE INDEX idx_notes ON batches(notes);")},
	}

	migrator := NewMigrator(db, zap.NewNop())

	applied, err := migrator.RunMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, 3, applied)

	applied, err = migrator.RunMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	var names []string
	rows, err := db.Query("SELECT name FROM schema_migrations ORDER BY version")
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	assert.Equal(t, []string{"batches", "add_notes", "idx"}, names)
}

func TestMigrator_FailedMigrationRollsBack(t *testing.T) {
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"001_broken.sql": {Data: []byte("CREATE TABLE ok (id INTEGER); CREATE TABL broken;")},
	}

	_, err := NewMigrator(db, zap.NewNop()).RunMigrations(fsys)
	require.Error(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Zero(t, count)
}

func TestLoadMigrations_Errors(t *testing.T) {
	_, err := LoadMigrations(fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"001_b.sql": {Data: []byte("SELECT 1;")},
	})
	assert.ErrorContains(t, err, "duplicate migration version 1")

	_, err = LoadMigrations(fstest.MapFS{"init.sql": {Data: []byte("SELECT 1;")}})
	assert.ErrorContains(t, err, "invalid migration filename")
}
