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
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "portal.db"), MaxOpenConns: 1}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunEmbedded_CreatesSchemaOnce(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db, zap.NewNop())

	require.NoError(t, m.RunEmbedded())
	require.NoError(t, m.RunEmbedded(), "second run must be a no-op")

	for _, table := range []string{"employees", "services", "requests", "request_history"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestRun_OrdersByVersion(t *testing.T) {
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"002_add_column.sql": {Data: []byte("ALTER TABLE things ADD COLUMN label TEXT;")},
		"001_things.sql":     {Data: []byte("CREATE TABLE things (id INTEGER PRIMARY KEY);")},
		"README.md":          {Data: []byte("ignored")},
	}

	require.NoError(t, NewMigrator(db, zap.NewNop()).Run(fsys))

	var name string
	require.NoError(t, db.QueryRow("SELECT name FROM schema_migrations WHERE version = 2").Scan(&name))
	assert.Equal(t, "add_column", name)
}

func TestRun_RejectsBadFilename(t *testing.T) {
	db := openTestDB(t)
	fsys := fstest.MapFS{"initial.sql": {Data: []byte("SELECT 1;")}}

	err := NewMigrator(db, zap.NewNop()).Run(fsys)
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	dsn := DSN("data/portal.db")
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.Contains(t, dsn, "_foreign_keys=on")
}
