package iostore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/schema"
)

const sourceColumns = `id, service_call_id, appt_status, appointment, open_datetime, batch_id,
	pushed_at, equipment_id, vendor_call_number, des_note, part_note`

// SourceStoreImpl reads pushed snapshot batches from the operational table.
// Its timestamps are zone-less business wall clock; the store converts them
// to and from instants in loc.
type SourceStoreImpl struct {
	sqlStore
	tableName string
	loc       *time.Location
	tolerance time.Duration
}

var _ contract.SourceStore = &SourceStoreImpl{} // Compile-time check

// NewSourceStore creates a new SourceStore on the named table.
// SQLite sources are created and migrated on open; other backends are expected to exist.
func NewSourceStore(backend schema.DatabaseBackend, connStr, tableName string, loc *time.Location, tolerance time.Duration) (*SourceStoreImpl, error) {
	if tableName == "" {
		tableName = contract.DefaultSourceTable
	}
	if err := validateTableName(tableName); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	s := &SourceStoreImpl{
		sqlStore:  sqlStore{backend: backend},
		tableName: tableName,
		loc:       loc,
		tolerance: tolerance,
	}
	if backend == schema.NoneBackend {
		return s, nil
	}
	if backend == schema.SQLiteBackend {
		if err := ensureSchema(backend, connStr, contract.GetSourceDBFilePath()); err != nil {
			return nil, fmt.Errorf("failed to prepare source schema: %w", err)
		}
	}
	db, driverName, err := openDB(backend, connStr, contract.GetSourceDBFilePath())
	if err != nil {
		return nil, err
	}
	s.db, s.driverName = db, driverName
	return s, nil
}

// wall converts an instant to the source's zone-less representation.
func (s *SourceStoreImpl) wall(t time.Time) any {
	return s.wallArg(t, s.loc)
}

// batchRef selects the newest distinct batch matching the condition.
func (s *SourceStoreImpl) batchRef(ctx context.Context, cond string, args ...any) (schema.BatchRef, bool, error) {
	refs, err := s.batchRefs(ctx, cond, "DESC LIMIT 1", args...)
	if err != nil || len(refs) == 0 {
		return schema.BatchRef{}, false, err
	}
	return refs[0], true, nil
}

// batchRefs groups rows by push time, taking the highest batch ID of each group.
func (s *SourceStoreImpl) batchRefs(ctx context.Context, cond, order string, args ...any) ([]schema.BatchRef, error) {
	query := fmt.Sprintf("SELECT pushed_at, COALESCE(MAX(batch_id), 0) FROM %s %s GROUP BY pushed_at ORDER BY pushed_at %s",
		s.table(s.tableName), cond, order)
	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches of %s: %w", s.tableName, err)
	}
	defer func() { _ = rows.Close() }()

	var refs []schema.BatchRef
	for rows.Next() {
		var pushed dbTime
		var ref schema.BatchRef
		if err := rows.Scan(&pushed, &ref.BatchID); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		ref.PushedAt = pushed.In(s.loc)
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batches: %w", err)
	}
	return refs, nil
}

// LatestBatch returns the most recent distinct batch, or false when the source is empty.
func (s *SourceStoreImpl) LatestBatch(ctx context.Context) (schema.BatchRef, bool, error) {
	if s.disabled() {
		return schema.BatchRef{}, false, nil
	}
	return s.batchRef(ctx, "")
}

// BatchAtOrBefore returns the most recent batch pushed at or before t, within tolerance.
func (s *SourceStoreImpl) BatchAtOrBefore(ctx context.Context, t time.Time) (schema.BatchRef, bool, error) {
	if s.disabled() {
		return schema.BatchRef{}, false, nil
	}
	return s.batchRef(ctx, "WHERE pushed_at <= ?", s.wall(t.Add(s.tolerance)))
}

// BatchBefore returns the most recent batch pushed more than the tolerance before t.
func (s *SourceStoreImpl) BatchBefore(ctx context.Context, t time.Time) (schema.BatchRef, bool, error) {
	if s.disabled() {
		return schema.BatchRef{}, false, nil
	}
	return s.batchRef(ctx, "WHERE pushed_at < ?", s.wall(t.Add(-s.tolerance)))
}

// BatchesBetween returns the distinct batches pushed in [from, to), oldest first.
func (s *SourceStoreImpl) BatchesBetween(ctx context.Context, from, to time.Time) ([]schema.BatchRef, error) {
	if s.disabled() {
		return nil, nil
	}
	return s.batchRefs(ctx, "WHERE pushed_at >= ? AND pushed_at < ?", "ASC", s.wall(from), s.wall(to))
}

// FetchBatch returns the raw rows pushed at the batch time, matched within the tolerance.
func (s *SourceStoreImpl) FetchBatch(ctx context.Context, at time.Time) ([]schema.SnapshotRecord, error) {
	if s.disabled() {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE pushed_at >= ? AND pushed_at <= ? ORDER BY id",
		sourceColumns, s.table(s.tableName))
	rows, err := s.db.QueryContext(ctx, s.bind(query), s.wall(at.Add(-s.tolerance)), s.wall(at.Add(s.tolerance)))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch batch at %s: %w", at.Format(time.RFC3339), err)
	}
	defer func() { _ = rows.Close() }()

	var records []schema.SnapshotRecord
	for rows.Next() {
		var (
			r                                    schema.SnapshotRecord
			status, equipment, vendor, des, part sql.NullString
			batchID                              sql.NullInt64
			opened, pushed                       dbTime
		)
		if err := rows.Scan(&r.ID, &r.ServiceCallID, &status, &r.Appointment, &opened, &batchID,
			&pushed, &equipment, &vendor, &des, &part); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		r.Status = status.String
		r.OpenedAt = opened.In(s.loc)
		r.BatchID = batchID.Int64
		r.PushedAt = pushed.In(s.loc)
		r.EquipmentID = equipment.String
		r.VendorReference = vendor.String
		r.Description = des.String
		r.PartNote = part.String
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}
	return records, nil
}

// InsertRecords appends snapshot rows, as the upstream push job does.
func (s *SourceStoreImpl) InsertRecords(ctx context.Context, records []schema.SnapshotRecord) error {
	if s.disabled() || len(records) == 0 {
		return nil
	}
	query := s.bind(fmt.Sprintf(`INSERT INTO %s (service_call_id, appt_status, appointment, open_datetime, batch_id,
	pushed_at, equipment_id, vendor_call_number, des_note, part_note) VALUES (%s)`, s.table(s.tableName), placeholders(10)))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range records {
		var opened any
		if !r.OpenedAt.IsZero() {
			opened = s.wall(r.OpenedAt)
		}
		if _, err := tx.ExecContext(ctx, query, r.ServiceCallID, r.Status, r.Appointment, opened, r.BatchID,
			s.wall(r.PushedAt), r.EquipmentID, r.VendorReference, r.Description, r.PartNote); err != nil {
			return fmt.Errorf("failed to insert snapshot row %s: %w", r.ServiceCallID, err)
		}
	}
	return tx.Commit()
}

// UpdateTracking writes enrichment results onto the matching rows of their batch.
func (s *SourceStoreImpl) UpdateTracking(ctx context.Context, results []schema.TrackingResult) error {
	if s.disabled() || len(results) == 0 {
		return nil
	}
	query := s.bind(fmt.Sprintf(`UPDATE %s SET query_tracking_number = ?, parts_list = ?, tracking_match = ?,
	tracking_status = ?, tracking_checked_at = ? WHERE service_call_id = ? AND pushed_at >= ? AND pushed_at <= ?`,
		s.table(s.tableName)))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tracking transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range results {
		if _, err := tx.ExecContext(ctx, query, r.TrackingNumber, strings.Join(r.Parts, ", "), r.Match,
			r.CarrierStatus, s.wall(r.CheckedAt), r.ServiceCallID,
			s.wall(r.PushedAt.Add(-s.tolerance)), s.wall(r.PushedAt.Add(s.tolerance))); err != nil {
			return fmt.Errorf("failed to update tracking of %s: %w", r.ServiceCallID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tracking transaction: %w", err)
	}
	return nil
}

// GetStatus returns status information about the snapshot source.
func (s *SourceStoreImpl) GetStatus() (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:    string(s.backend),
		Connected:  s.db != nil,
		TableSizes: make(map[string]int64),
	}
	if s.disabled() {
		return status, nil
	}
	count, err := s.countRows(s.tableName)
	if err != nil {
		return status, fmt.Errorf("failed to get count for table %s: %w", s.tableName, err)
	}
	status.TableSizes[s.tableName] = count
	return status, nil
}
