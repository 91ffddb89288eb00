package iostore

import (
	"fmt"
	"os"
	"sync"

	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/schema"
)

// Global Manager instance for main logic.
var (
	Manager   = &StoreManagerImpl{}
	initOnce  sync.Once
	closeOnce sync.Once
)

// StoreManagerImpl holds every store the engine talks to.
type StoreManagerImpl struct {
	sync.RWMutex // Protects the store pointers during initialization
	source       *SourceStoreImpl
	stats        *StatStoreImpl
	ledger       *LedgerImpl
	rollups      *RollupStoreImpl
	tickets      *TicketStoreImpl
}

var _ contract.StoreManager = &StoreManagerImpl{} // Compile-time check

// GetSourceStore returns the snapshot source.
func (mgr *StoreManagerImpl) GetSourceStore() contract.SourceStore {
	mgr.RLock()
	defer mgr.RUnlock()
	if mgr.source == nil {
		return nil
	}
	return mgr.source
}

// GetStatStore returns the statistics store.
func (mgr *StoreManagerImpl) GetStatStore() contract.StatStore {
	mgr.RLock()
	defer mgr.RUnlock()
	if mgr.stats == nil {
		return nil
	}
	return mgr.stats
}

// GetLedger returns the closed-call ledger.
func (mgr *StoreManagerImpl) GetLedger() contract.Ledger {
	mgr.RLock()
	defer mgr.RUnlock()
	if mgr.ledger == nil {
		return nil
	}
	return mgr.ledger
}

// GetRollupStore returns the rollup store.
func (mgr *StoreManagerImpl) GetRollupStore() contract.RollupStore {
	mgr.RLock()
	defer mgr.RUnlock()
	if mgr.rollups == nil {
		return nil
	}
	return mgr.rollups
}

// GetTicketStore returns the ticket lookup.
func (mgr *StoreManagerImpl) GetTicketStore() contract.TicketLookup {
	mgr.RLock()
	defer mgr.RUnlock()
	if mgr.tickets == nil {
		return nil
	}
	return mgr.tickets
}

// Stats returns the concrete statistics store for exports.
func (mgr *StoreManagerImpl) Stats() *StatStoreImpl {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.stats
}

// Rollups returns the concrete rollup store for exports.
func (mgr *StoreManagerImpl) Rollups() *RollupStoreImpl {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.rollups
}

// InitStores opens every store of the configuration on the global manager.
func InitStores(cfg *contract.Config) error {
	var initErr error

	initOnce.Do(func() {
		// This function body runs exactly once, even with concurrent calls.
		var opened []interface{ Close() error }
		fail := func(msg string, err error) {
			for _, s := range opened {
				_ = s.Close()
			}
			initErr = fmt.Errorf("%s: %w", msg, err)
		}

		source, err := NewSourceStore(cfg.SourceBackend, cfg.SourceDBConnect, cfg.SourceTable, cfg.Location, cfg.BatchTolerance)
		if err != nil {
			fail("failed to initialize snapshot source", err)
			return
		}
		opened = append(opened, source)

		stats, err := NewStatStore(cfg.StoreBackend, cfg.StoreDBConnect)
		if err != nil {
			fail("failed to initialize statistics store", err)
			return
		}
		opened = append(opened, stats)

		ledger, err := NewLedger(cfg.StoreBackend, cfg.StoreDBConnect)
		if err != nil {
			fail("failed to initialize closed-call ledger", err)
			return
		}
		opened = append(opened, ledger)

		rollups, err := NewRollupStore(cfg.StoreBackend, cfg.StoreDBConnect)
		if err != nil {
			fail("failed to initialize rollup store", err)
			return
		}
		opened = append(opened, rollups)

		tickets, err := NewTicketStore(cfg.TicketBackend, cfg.TicketDBConnect, cfg.TicketTable)
		if err != nil {
			fail("failed to initialize ticket lookup", err)
			return
		}

		Manager.Lock()
		defer Manager.Unlock()
		Manager.source = source
		Manager.stats = stats
		Manager.ledger = ledger
		Manager.rollups = rollups
		Manager.tickets = tickets
	})

	// After once.Do, initErr will contain any error from the initialization block.
	return initErr
}

// CloseStores should be called on application shutdown.
func CloseStores() { // called in main defer
	closeOnce.Do(func() {
		Manager.Lock()
		defer Manager.Unlock()
		if Manager.source != nil {
			_ = Manager.source.Close()
		}
		if Manager.stats != nil {
			_ = Manager.stats.Close()
		}
		if Manager.ledger != nil {
			_ = Manager.ledger.Close()
		}
		if Manager.rollups != nil {
			_ = Manager.rollups.Close()
		}
		if Manager.tickets != nil {
			_ = Manager.tickets.Close()
		}
	})
}

// storeTables lists the tables owned by the statistics database.
func storeTables() []string {
	tables := []string{batchStatsTable, ledgerTable}
	for _, level := range schema.Levels {
		tables = append(tables, rollupTables[level])
	}
	return append(tables, "schema_migrations")
}

// ClearStore clears the statistics database for the specified backend.
// For SQLite, it deletes the database file.
// For SQL backends (MySQL/PostgreSQL), it drops the tables.
// For NoneBackend, it does nothing.
func ClearStore(backend schema.DatabaseBackend, dbFilePath, connStr string) error {
	switch backend {
	case schema.SQLiteBackend:
		if dbFilePath == "" {
			return fmt.Errorf("dbFilePath cannot be empty for SQLite backend")
		}
		// Remove the file; ignore if it doesn't exist
		if err := os.Remove(dbFilePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove SQLite database file %s: %w", dbFilePath, err)
		}
		return nil

	case schema.MySQLBackend, schema.PostgreSQLBackend:
		return clearSQLTables(backend, connStr, storeTables())

	case schema.NoneBackend:
		return nil

	default:
		return fmt.Errorf("unsupported store backend for clearing: %s", backend)
	}
}

// clearSQLTables connects to the SQL database and drops the tables if they exist.
func clearSQLTables(backend schema.DatabaseBackend, connStr string, tables []string) error {
	db, _, err := openDB(backend, connStr, "")
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	for _, table := range tables {
		query := fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteTableName(table, backend))
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return nil
}
