package iostore

import (
	"os"
	"testing"

	"github.com/huangsam/callstat/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_NoneBackend(t *testing.T) {
	err := Migrate(schema.NoneBackend, "", "", -1)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "migrations are not supported for NoneBackend")
}

func TestMigrate_SQLite(t *testing.T) {
	dbPath := tempDB(t, "migrate.db")

	// Run migration to latest version (should go to version 1)
	require.NoError(t, Migrate(schema.SQLiteBackend, dbPath, "", -1))
	_, err := os.Stat(dbPath)
	assert.NoError(t, err)

	version, dirty, err := SchemaVersion(schema.SQLiteBackend, dbPath, "")
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// Re-running is a no-op
	assert.NoError(t, Migrate(schema.SQLiteBackend, dbPath, "", -1))
	assert.NoError(t, Migrate(schema.SQLiteBackend, dbPath, "", 1))

	// Roll back everything, then come back up
	require.NoError(t, Migrate(schema.SQLiteBackend, dbPath, "", 0))
	version, _, err = SchemaVersion(schema.SQLiteBackend, dbPath, "")
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	assert.NoError(t, Migrate(schema.SQLiteBackend, dbPath, "", 1))
}

func TestMigrate_DefaultPath(t *testing.T) {
	dbPath := tempDB(t, "default.db")
	require.NoError(t, ensureSchema(schema.SQLiteBackend, "", dbPath))
	_, err := os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestMigrationDir(t *testing.T) {
	for backend, dir := range map[schema.DatabaseBackend]string{
		schema.SQLiteBackend:     "migrations/sqlite",
		schema.MySQLBackend:      "migrations/mysql",
		schema.PostgreSQLBackend: "migrations/postgres",
	} {
		got, err := migrationDir(backend)
		require.NoError(t, err)
		assert.Equal(t, dir, got)

		entries, err := migrationsFS.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 2, "up and down for %s", backend)
	}

	_, err := migrationDir(schema.NoneBackend)
	assert.ErrorIs(t, err, schema.ErrUnsupportedBackend)
}
