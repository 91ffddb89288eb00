package iostore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/schema"
)

const ledgerColumns = "service_call_id, closed_at, category, opened_at, equipment_id, vendor_reference, appointment"

// LedgerImpl implements the Ledger interface on the statistics database.
type LedgerImpl struct {
	sqlStore
}

var _ contract.Ledger = &LedgerImpl{} // Compile-time check

// NewLedger creates a new Ledger with the specified backend.
func NewLedger(backend schema.DatabaseBackend, connStr string) (*LedgerImpl, error) {
	if backend == schema.NoneBackend {
		return &LedgerImpl{sqlStore: sqlStore{backend: backend}}, nil
	}
	if err := ensureSchema(backend, connStr, contract.GetStoreDBFilePath()); err != nil {
		return nil, fmt.Errorf("failed to prepare ledger schema: %w", err)
	}
	db, driverName, err := openDB(backend, connStr, contract.GetStoreDBFilePath())
	if err != nil {
		return nil, err
	}
	return &LedgerImpl{sqlStore: sqlStore{db: db, backend: backend, driverName: driverName}}, nil
}

// RecordClosures inserts entries not yet present by (service call, closed at)
// and returns how many were new. All entries are written in one transaction.
func (l *LedgerImpl) RecordClosures(ctx context.Context, entries []schema.LedgerEntry) (int, error) {
	if l.disabled() || len(entries) == 0 {
		return 0, nil
	}

	prefix, suffix := l.insertIgnore()
	query := l.bind(fmt.Sprintf("%s %s (%s) VALUES (%s)%s",
		prefix, l.table(ledgerTable), ledgerColumns, placeholders(7), suffix))

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare ledger insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, e := range entries {
		var opened any
		if !e.OpenedAt.IsZero() {
			opened = l.timeArg(e.OpenedAt)
		}
		result, err := stmt.ExecContext(ctx, e.ServiceCallID, l.timeArg(e.ClosedAt), string(e.Category),
			opened, e.EquipmentID, e.VendorReference, e.Appointment)
		if err != nil {
			return 0, fmt.Errorf("failed to record closure of %s: %w", e.ServiceCallID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read ledger insert result: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit ledger transaction: %w", err)
	}
	return inserted, nil
}

// CountReopened counts the distinct IDs with a closure of the category at or after since.
func (l *LedgerImpl) CountReopened(ctx context.Context, category schema.Category, ids []string, since time.Time) (int, error) {
	if l.disabled() || len(ids) == 0 {
		return 0, nil
	}

	total := 0
	for _, part := range chunk(ids, inChunkSize) {
		query := fmt.Sprintf(
			"SELECT COUNT(DISTINCT service_call_id) FROM %s WHERE category = ? AND closed_at >= ? AND service_call_id IN (%s)",
			l.table(ledgerTable), placeholders(len(part)))
		args := make([]any, 0, len(part)+2)
		args = append(args, string(category), l.timeArg(since))
		for _, id := range part {
			args = append(args, id)
		}
		var n int64
		if err := l.db.QueryRowContext(ctx, l.bind(query), args...).Scan(&n); err != nil {
			return 0, fmt.Errorf("failed to count reopened calls: %w", err)
		}
		total += int(n)
	}
	return total, nil
}

// ClosuresBetween returns the category's closures detected in [from, to), oldest first.
func (l *LedgerImpl) ClosuresBetween(ctx context.Context, category schema.Category, from, to time.Time) ([]schema.LedgerEntry, error) {
	if l.disabled() {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE category = ? AND closed_at >= ? AND closed_at < ? ORDER BY closed_at, service_call_id",
		ledgerColumns, l.table(ledgerTable))
	rows, err := l.db.QueryContext(ctx, l.bind(query), string(category), l.timeArg(from), l.timeArg(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query closures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []schema.LedgerEntry
	for rows.Next() {
		var (
			e                  schema.LedgerEntry
			closedAt, openedAt dbTime
			cat                string
			equipment, vendor  sql.NullString
		)
		if err := rows.Scan(&e.ServiceCallID, &closedAt, &cat, &openedAt, &equipment, &vendor, &e.Appointment); err != nil {
			return nil, fmt.Errorf("failed to scan closure: %w", err)
		}
		e.ClosedAt = closedAt.Time
		e.OpenedAt = openedAt.Time
		e.Category = schema.Category(cat)
		e.EquipmentID = equipment.String
		e.VendorReference = vendor.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating closures: %w", err)
	}
	return entries, nil
}
