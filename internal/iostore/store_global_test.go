package iostore

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, backend schema.DatabaseBackend) *contract.Config {
	t.Helper()
	cfg := &contract.Config{
		SourceBackend:  backend,
		StoreBackend:   backend,
		TicketBackend:  backend,
		Location:       central,
		BatchTolerance: time.Second,
	}
	if backend == schema.SQLiteBackend {
		cfg.SourceDBConnect = tempDB(t, "source.db")
		cfg.StoreDBConnect = tempDB(t, "store.db")
		cfg.TicketDBConnect = cfg.SourceDBConnect
	}
	return cfg
}

func resetManager() {
	initOnce = sync.Once{}  // Reset for test
	closeOnce = sync.Once{} // Reset for test
	Manager = &StoreManagerImpl{}
}

func TestStores(t *testing.T) {
	t.Run("single setup", func(t *testing.T) {
		resetManager()
		cfg := testConfig(t, schema.SQLiteBackend)

		require.NoError(t, InitStores(cfg))
		assert.NotNil(t, Manager.GetSourceStore())
		assert.NotNil(t, Manager.GetStatStore())
		assert.NotNil(t, Manager.GetLedger())
		assert.NotNil(t, Manager.GetRollupStore())
		assert.NotNil(t, Manager.GetTicketStore())

		status, err := CollectStatus(context.Background(), cfg, Manager)
		require.NoError(t, err)
		assert.True(t, status.Connected)
		assert.Equal(t, uint(1), status.Version)
		assert.Contains(t, status.TableSizes, "weekly_summaries")

		CloseStores()

		_, err = os.Stat(cfg.StoreDBConnect)
		assert.NoError(t, err, "Database file should be created")
	})

	t.Run("idempotent setup", func(t *testing.T) {
		resetManager()
		cfg := testConfig(t, schema.SQLiteBackend)

		// Multiple initializations should be safe (sync.Once)
		assert.NoError(t, InitStores(cfg))
		assert.NoError(t, InitStores(cfg))

		// Multiple closes should be safe (sync.Once)
		CloseStores()
		CloseStores()
	})

	t.Run("none backend", func(t *testing.T) {
		resetManager()
		require.NoError(t, InitStores(testConfig(t, schema.NoneBackend)))

		stats := Manager.GetStatStore()
		require.NotNil(t, stats)
		status, err := stats.GetStatus()
		assert.NoError(t, err)
		assert.False(t, status.Connected)
		CloseStores()
	})

	t.Run("uninitialized getters are nil", func(t *testing.T) {
		resetManager()
		assert.Nil(t, Manager.GetSourceStore())
		assert.Nil(t, Manager.GetLedger())
		CloseStores()
	})
}

func TestClearStore(t *testing.T) {
	dbPath := tempDB(t, "clear.db")
	store, err := NewStatStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	require.NoError(t, ClearStore(schema.SQLiteBackend, dbPath, ""))
	_, err = os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err))

	// Clearing twice is fine
	assert.NoError(t, ClearStore(schema.SQLiteBackend, dbPath, ""))
	assert.NoError(t, ClearStore(schema.NoneBackend, "", ""))
	assert.Error(t, ClearStore(schema.SQLiteBackend, "", ""))
	assert.Error(t, ClearStore("oracle", "", ""))
}

func TestStoreTables(t *testing.T) {
	tables := storeTables()
	assert.Contains(t, tables, "batch_stats")
	assert.Contains(t, tables, "closed_call_ledger")
	assert.Contains(t, tables, "monthly_summaries")
	assert.Contains(t, tables, "schema_migrations")
}
