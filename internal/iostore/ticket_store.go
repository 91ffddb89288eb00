package iostore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/schema"
)

// TicketStoreImpl reads ticket summaries from the ticketing database.
type TicketStoreImpl struct {
	sqlStore
	tableName string
}

var _ contract.TicketLookup = &TicketStoreImpl{} // Compile-time check

// NewTicketStore creates a new TicketLookup on the named table.
// Like the snapshot source, only SQLite databases are migrated on open.
func NewTicketStore(backend schema.DatabaseBackend, connStr, tableName string) (*TicketStoreImpl, error) {
	if tableName == "" {
		tableName = contract.DefaultTicketTable
	}
	if err := validateTableName(tableName); err != nil {
		return nil, err
	}
	t := &TicketStoreImpl{sqlStore: sqlStore{backend: backend}, tableName: tableName}
	if backend == schema.NoneBackend {
		return t, nil
	}
	if backend == schema.SQLiteBackend {
		if err := ensureSchema(backend, connStr, contract.GetSourceDBFilePath()); err != nil {
			return nil, fmt.Errorf("failed to prepare ticket schema: %w", err)
		}
	}
	db, driverName, err := openDB(backend, connStr, contract.GetSourceDBFilePath())
	if err != nil {
		return nil, err
	}
	t.db, t.driverName = db, driverName
	return t, nil
}

// LookupTicket returns the summary of a vendor call number, or false when unknown.
func (t *TicketStoreImpl) LookupTicket(ctx context.Context, callNumber string) (schema.TicketSummary, bool, error) {
	if t.disabled() {
		return schema.TicketSummary{}, false, nil
	}
	query := fmt.Sprintf(`SELECT call_num, case_num, call_text, all_pack_numbers, all_bins, all_tracking_statuses, all_parts
	FROM %s WHERE call_num = ?`, t.table(t.tableName))

	var (
		ts                                  schema.TicketSummary
		caseNum, text, packs, bins, tracked sql.NullString
		parts                               sql.NullString
	)
	err := t.db.QueryRowContext(ctx, t.bind(query), callNumber).Scan(&ts.CallNumber, &caseNum, &text, &packs, &bins, &tracked, &parts)
	if errNoRows(err) {
		return schema.TicketSummary{}, false, nil
	}
	if err != nil {
		return schema.TicketSummary{}, false, fmt.Errorf("failed to look up ticket %s: %w", callNumber, err)
	}
	ts.CaseNumber = caseNum.String
	ts.CallText = text.String
	ts.AllPackNumbers = packs.String
	ts.AllBins = bins.String
	ts.AllTrackingStatuses = tracked.String
	ts.AllParts = parts.String
	return ts, true, nil
}

// UpsertTicket writes a ticket summary, replacing any row with the same call number.
func (t *TicketStoreImpl) UpsertTicket(ctx context.Context, ts schema.TicketSummary) error {
	if t.disabled() {
		return nil
	}
	table := t.table(t.tableName)
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin ticket transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, t.bind(fmt.Sprintf("DELETE FROM %s WHERE call_num = ?", table)), ts.CallNumber); err != nil {
		return fmt.Errorf("failed to replace ticket %s: %w", ts.CallNumber, err)
	}
	insert := fmt.Sprintf(`INSERT INTO %s (call_num, case_num, call_text, all_pack_numbers, all_bins, all_tracking_statuses, all_parts)
	VALUES (%s)`, table, placeholders(7))
	if _, err := tx.ExecContext(ctx, t.bind(insert), ts.CallNumber, ts.CaseNumber, ts.CallText, ts.AllPackNumbers,
		ts.AllBins, ts.AllTrackingStatuses, ts.AllParts); err != nil {
		return fmt.Errorf("failed to insert ticket %s: %w", ts.CallNumber, err)
	}
	return tx.Commit()
}
