package iostore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/schema"
)

// Table names of the statistics store.
const (
	batchStatsTable = "batch_stats"
	ledgerTable     = "closed_call_ledger"
)

// statColumns lists batch_stats columns in scan order, excluding id.
const statColumns = `category, batch_id, batch_time, total_open, closed_since_last, same_day_closures,
	multi_appt, not_serviced_yet, avg_appointment, status_summary, same_day_close_rate,
	avg_appts_per_completed, first_time_fixes, first_time_fix_rate, closed_appointment_sum,
	new_calls, reopened_calls, reopen_rate_14d, follow_ups, unique_appointments,
	appointment_numbers, repeat_dispatch_rate, created_at`

// StatStoreImpl implements the StatStore interface.
type StatStoreImpl struct {
	sqlStore
	now func() time.Time
}

var _ contract.StatStore = &StatStoreImpl{} // Compile-time check

// NewStatStore creates a new StatStore with the specified backend.
// The schema is migrated to the latest version on open.
func NewStatStore(backend schema.DatabaseBackend, connStr string) (*StatStoreImpl, error) {
	if backend == schema.NoneBackend {
		// Return a no-op store for disabled persistence
		return &StatStoreImpl{sqlStore: sqlStore{backend: backend}, now: time.Now}, nil
	}
	if err := ensureSchema(backend, connStr, contract.GetStoreDBFilePath()); err != nil {
		return nil, fmt.Errorf("failed to prepare statistics schema: %w", err)
	}
	db, driverName, err := openDB(backend, connStr, contract.GetStoreDBFilePath())
	if err != nil {
		return nil, err
	}
	return &StatStoreImpl{
		sqlStore: sqlStore{db: db, backend: backend, driverName: driverName},
		now:      time.Now,
	}, nil
}

// InsertStat appends a statistics row and returns its ID.
func (s *StatStoreImpl) InsertStat(ctx context.Context, stat schema.BatchStat) (int64, error) {
	if s.disabled() {
		return 0, nil
	}

	summary, err := json.Marshal(stat.StatusSummary)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal status summary: %w", err)
	}
	numbers := stat.AppointmentNumbers
	if numbers == nil {
		numbers = []int{}
	}
	apptNumbers, err := json.Marshal(numbers)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal appointment numbers: %w", err)
	}

	createdAt := stat.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	args := []any{
		string(stat.Category), stat.BatchID, s.timeArg(stat.BatchTime), stat.TotalOpen, stat.ClosedSinceLast,
		stat.SameDayClosures, stat.MultiAppt, stat.NotServicedYet, stat.AvgAppointment, string(summary),
		stat.SameDayCloseRate, stat.AvgApptsPerCompleted, stat.FirstTimeFixes, stat.FirstTimeFixRate,
		stat.ClosedAppointmentSum, stat.NewCalls, stat.ReopenedCalls, stat.ReopenRate14d, stat.FollowUps,
		stat.UniqueAppointments, string(apptNumbers), stat.RepeatDispatchRate, s.timeArg(createdAt),
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.table(batchStatsTable), statColumns, placeholders(len(args)))

	if s.backend == schema.PostgreSQLBackend {
		var id int64
		if err := s.db.QueryRowContext(ctx, s.bind(query)+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to insert batch stat: %w", err)
		}
		return id, nil
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert batch stat: %w", err)
	}
	return result.LastInsertId()
}

// HasBatch reports whether the category already has a row for the batch ID.
func (s *StatStoreImpl) HasBatch(ctx context.Context, category schema.Category, batchID int64) (bool, error) {
	if s.disabled() {
		return false, nil
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE category = ? AND batch_id = ?", s.table(batchStatsTable))
	var count int64
	if err := s.db.QueryRowContext(ctx, s.bind(query), string(category), batchID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check batch %d: %w", batchID, err)
	}
	return count > 0, nil
}

// LatestStat returns the category's most recent row by batch time.
func (s *StatStoreImpl) LatestStat(ctx context.Context, category schema.Category) (schema.BatchStat, bool, error) {
	if s.disabled() {
		return schema.BatchStat{}, false, nil
	}
	query := fmt.Sprintf("SELECT id, %s FROM %s WHERE category = ? ORDER BY batch_time DESC, id DESC LIMIT 1",
		statColumns, s.table(batchStatsTable))
	stats, err := s.queryStats(ctx, query, string(category))
	if err != nil {
		return schema.BatchStat{}, false, err
	}
	if len(stats) == 0 {
		return schema.BatchStat{}, false, nil
	}
	return stats[0], true, nil
}

// FirstStatTime returns the batch time of the category's oldest row.
func (s *StatStoreImpl) FirstStatTime(ctx context.Context, category schema.Category) (time.Time, bool, error) {
	if s.disabled() {
		return time.Time{}, false, nil
	}
	query := fmt.Sprintf("SELECT MIN(batch_time) FROM %s WHERE category = ?", s.table(batchStatsTable))
	var first dbTime
	if err := s.db.QueryRowContext(ctx, s.bind(query), string(category)).Scan(&first); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get first batch time: %w", err)
	}
	return first.Time, first.Valid, nil
}

// StatsBetween returns the category's rows with batch time in [from, to), oldest first.
func (s *StatStoreImpl) StatsBetween(ctx context.Context, category schema.Category, from, to time.Time) ([]schema.BatchStat, error) {
	if s.disabled() {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT id, %s FROM %s WHERE category = ? AND batch_time >= ? AND batch_time < ? ORDER BY batch_time, id",
		statColumns, s.table(batchStatsTable))
	return s.queryStats(ctx, query, string(category), s.timeArg(from), s.timeArg(to))
}

// SumClosedBetween sums closed calls over rows with batch time in [from, to).
func (s *StatStoreImpl) SumClosedBetween(ctx context.Context, category schema.Category, from, to time.Time) (int, error) {
	if s.disabled() {
		return 0, nil
	}
	query := fmt.Sprintf("SELECT COALESCE(SUM(closed_since_last), 0) FROM %s WHERE category = ? AND batch_time >= ? AND batch_time < ?",
		s.table(batchStatsTable))
	var sum int64
	if err := s.db.QueryRowContext(ctx, s.bind(query), string(category), s.timeArg(from), s.timeArg(to)).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum closed calls: %w", err)
	}
	return int(sum), nil
}

// RecentStats returns up to limit of the category's newest rows, newest first.
func (s *StatStoreImpl) RecentStats(ctx context.Context, category schema.Category, limit int) ([]schema.BatchStat, error) {
	if s.disabled() {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT id, %s FROM %s WHERE category = ? ORDER BY batch_time DESC, id DESC LIMIT %d",
		statColumns, s.table(batchStatsTable), limit)
	return s.queryStats(ctx, query, string(category))
}

// AllStats returns every row of every category, oldest first.
func (s *StatStoreImpl) AllStats(ctx context.Context) ([]schema.BatchStat, error) {
	if s.disabled() {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT id, %s FROM %s ORDER BY batch_time, id", statColumns, s.table(batchStatsTable))
	return s.queryStats(ctx, query)
}

// queryStats runs a batch_stats query and scans every row.
func (s *StatStoreImpl) queryStats(ctx context.Context, query string, args ...any) ([]schema.BatchStat, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.BatchStat
	for rows.Next() {
		stat, err := scanStat(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batch stats: %w", err)
	}
	return results, nil
}

// scanStat scans one batch_stats row selected as id followed by statColumns.
func scanStat(rows *sql.Rows) (schema.BatchStat, error) {
	var (
		stat        schema.BatchStat
		category    string
		batchTime   dbTime
		createdAt   dbTime
		summary     string
		apptNumbers string
	)
	if err := rows.Scan(&stat.ID, &category, &stat.BatchID, &batchTime, &stat.TotalOpen, &stat.ClosedSinceLast,
		&stat.SameDayClosures, &stat.MultiAppt, &stat.NotServicedYet, &stat.AvgAppointment, &summary,
		&stat.SameDayCloseRate, &stat.AvgApptsPerCompleted, &stat.FirstTimeFixes, &stat.FirstTimeFixRate,
		&stat.ClosedAppointmentSum, &stat.NewCalls, &stat.ReopenedCalls, &stat.ReopenRate14d, &stat.FollowUps,
		&stat.UniqueAppointments, &apptNumbers, &stat.RepeatDispatchRate, &createdAt); err != nil {
		return stat, fmt.Errorf("failed to scan batch stat: %w", err)
	}
	stat.Category = schema.Category(category)
	stat.BatchTime = batchTime.Time
	stat.CreatedAt = createdAt.Time
	if err := json.Unmarshal([]byte(summary), &stat.StatusSummary); err != nil {
		return stat, fmt.Errorf("failed to decode status summary of stat %d: %w", stat.ID, err)
	}
	if err := json.Unmarshal([]byte(apptNumbers), &stat.AppointmentNumbers); err != nil {
		return stat, fmt.Errorf("failed to decode appointment numbers of stat %d: %w", stat.ID, err)
	}
	return stat, nil
}

// GetStatus returns status information about the statistics tables.
func (s *StatStoreImpl) GetStatus() (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:    string(s.backend),
		Connected:  s.db != nil,
		TableSizes: make(map[string]int64),
	}
	if s.disabled() {
		return status, nil
	}

	for _, table := range []string{batchStatsTable, ledgerTable} {
		count, err := s.countRows(table)
		if err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}

	for _, category := range schema.Categories {
		cs := schema.CategoryStatus{Category: category, LastPeriodEnd: make(map[schema.Level]time.Time)}
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE category = ?", s.table(batchStatsTable))
		if err := s.db.QueryRow(s.bind(query), string(category)).Scan(&cs.BatchStats); err != nil {
			return status, fmt.Errorf("failed to count stats of %s: %w", category, err)
		}
		latest, ok, err := s.LatestStat(context.Background(), category)
		if err != nil {
			return status, err
		}
		if ok {
			cs.LastBatchID = latest.BatchID
			cs.LastBatchTime = latest.BatchTime
		}
		status.Categories = append(status.Categories, cs)
	}
	return status, nil
}

// errNoRows reports whether err is sql.ErrNoRows.
func errNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
