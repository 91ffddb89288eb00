package iostore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/schema"
)

// rollupTables maps each level to its table.
var rollupTables = map[schema.Level]string{
	schema.LevelBatch:   "batch_aggregates",
	schema.LevelDaily:   "daily_summaries",
	schema.LevelWeekly:  "weekly_summaries",
	schema.LevelMonthly: "monthly_summaries",
}

// rollupColumns lists rollup columns in scan order, excluding id.
const rollupColumns = `category, period_key, period_start, period_end, business_date, period_year,
	period_index, child_count, missing, computed_at, total_open, avg_appointment, multi_appt,
	not_serviced_yet, closed_calls, same_day_closures, first_time_fixes, closed_appointment_sum,
	follow_ups, new_calls, reopened_calls, first_time_fix_rate, avg_appts_per_completed, reopen_rate,
	rolling_same_day_closures, rolling_closed_calls, same_day_close_rate, rolling_first_time_fixes,
	first_time_fix_rate_running, rolling_follow_ups, rolling_unique_appointments, repeat_dispatch_rate`

const rollupColumnCount = 32

// RollupStoreImpl implements the RollupStore interface.
type RollupStoreImpl struct {
	sqlStore
}

var _ contract.RollupStore = &RollupStoreImpl{} // Compile-time check

// NewRollupStore creates a new RollupStore with the specified backend.
func NewRollupStore(backend schema.DatabaseBackend, connStr string) (*RollupStoreImpl, error) {
	if backend == schema.NoneBackend {
		return &RollupStoreImpl{sqlStore: sqlStore{backend: backend}}, nil
	}
	if err := ensureSchema(backend, connStr, contract.GetStoreDBFilePath()); err != nil {
		return nil, fmt.Errorf("failed to prepare rollup schema: %w", err)
	}
	db, driverName, err := openDB(backend, connStr, contract.GetStoreDBFilePath())
	if err != nil {
		return nil, err
	}
	return &RollupStoreImpl{sqlStore: sqlStore{db: db, backend: backend, driverName: driverName}}, nil
}

// levelTable returns the quoted table of a level.
func (r *RollupStoreImpl) levelTable(level schema.Level) (string, error) {
	name, ok := rollupTables[level]
	if !ok {
		return "", fmt.Errorf("%w: %s", schema.ErrInvalidLevel, level)
	}
	return r.table(name), nil
}

// InsertAggregate commits the aggregate unless its period key is taken.
// It reports whether a row was inserted.
func (r *RollupStoreImpl) InsertAggregate(ctx context.Context, agg schema.PeriodAggregate) (bool, error) {
	if r.disabled() {
		return false, nil
	}
	table, err := r.levelTable(agg.Level)
	if err != nil {
		return false, err
	}

	m := agg.PeriodMetrics
	args := []any{
		string(agg.Category), agg.Key, r.timeArg(agg.PeriodStart), r.timeArg(agg.PeriodEnd), agg.BusinessDate, agg.Year,
		agg.Index, agg.ChildCount, agg.Missing, r.timeArg(agg.ComputedAt), m.TotalOpen, m.AvgAppointment, m.MultiAppt,
		m.NotServicedYet, m.ClosedCalls, m.SameDayClosures, m.FirstTimeFixes, m.ClosedAppointmentSum,
		m.FollowUps, m.NewCalls, m.ReopenedCalls, m.FirstTimeFixRate, m.AvgApptsPerCompleted, m.ReopenRate,
		m.RollingSameDayClosures, m.RollingClosedCalls, m.SameDayCloseRate, m.RollingFirstTimeFixes,
		m.FirstTimeFixRateRunning, m.RollingFollowUps, m.RollingUniqueAppointments, m.RepeatDispatchRate,
	}
	prefix, suffix := r.insertIgnore()
	query := fmt.Sprintf("%s %s (%s) VALUES (%s)%s", prefix, table, rollupColumns, placeholders(rollupColumnCount), suffix)

	result, err := r.db.ExecContext(ctx, r.bind(query), args...)
	if err != nil {
		return false, fmt.Errorf("failed to insert %s aggregate %s: %w", agg.Level, agg.Key, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read %s insert result: %w", agg.Level, err)
	}
	return n > 0, nil
}

// HasPeriod reports whether the period key is committed.
func (r *RollupStoreImpl) HasPeriod(ctx context.Context, level schema.Level, category schema.Category, key string) (bool, error) {
	if r.disabled() {
		return false, nil
	}
	table, err := r.levelTable(level)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE category = ? AND period_key = ?", table)
	var one int
	err = r.db.QueryRowContext(ctx, r.bind(query), string(category), key).Scan(&one)
	if errNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check %s period %s: %w", level, key, err)
	}
	return true, nil
}

// LatestAggregate returns the committed aggregate with the latest period end.
func (r *RollupStoreImpl) LatestAggregate(ctx context.Context, level schema.Level, category schema.Category) (schema.PeriodAggregate, bool, error) {
	if r.disabled() {
		return schema.PeriodAggregate{}, false, nil
	}
	aggs, err := r.query(ctx, level, "WHERE category = ? ORDER BY period_end DESC, id DESC LIMIT 1", string(category))
	if err != nil || len(aggs) == 0 {
		return schema.PeriodAggregate{}, false, err
	}
	return aggs[0], true, nil
}

// AggregatesStartingIn returns aggregates whose period starts in [from, to), oldest first.
func (r *RollupStoreImpl) AggregatesStartingIn(ctx context.Context, level schema.Level, category schema.Category, from, to time.Time) ([]schema.PeriodAggregate, error) {
	if r.disabled() {
		return nil, nil
	}
	return r.query(ctx, level, "WHERE category = ? AND period_start >= ? AND period_start < ? ORDER BY period_start, id",
		string(category), r.timeArg(from), r.timeArg(to))
}

// AggregatesOverlapping returns aggregates whose period intersects [from, to), oldest first.
func (r *RollupStoreImpl) AggregatesOverlapping(ctx context.Context, level schema.Level, category schema.Category, from, to time.Time) ([]schema.PeriodAggregate, error) {
	if r.disabled() {
		return nil, nil
	}
	return r.query(ctx, level, "WHERE category = ? AND period_start < ? AND period_end > ? ORDER BY period_start, id",
		string(category), r.timeArg(to), r.timeArg(from))
}

// RecentAggregates returns up to limit of the newest aggregates, newest first.
func (r *RollupStoreImpl) RecentAggregates(ctx context.Context, level schema.Level, category schema.Category, limit int) ([]schema.PeriodAggregate, error) {
	if r.disabled() {
		return nil, nil
	}
	return r.query(ctx, level, fmt.Sprintf("WHERE category = ? ORDER BY period_end DESC, id DESC LIMIT %d", limit), string(category))
}

// AllAggregates returns every aggregate of a level, oldest first.
func (r *RollupStoreImpl) AllAggregates(ctx context.Context, level schema.Level) ([]schema.PeriodAggregate, error) {
	if r.disabled() {
		return nil, nil
	}
	return r.query(ctx, level, "ORDER BY period_start, category, id")
}

// query selects aggregates of a level with the given clause.
func (r *RollupStoreImpl) query(ctx context.Context, level schema.Level, clause string, args ...any) ([]schema.PeriodAggregate, error) {
	table, err := r.levelTable(level)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT id, %s FROM %s %s", rollupColumns, table, clause)
	rows, err := r.db.QueryContext(ctx, r.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s aggregates: %w", level, err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.PeriodAggregate
	for rows.Next() {
		agg, err := scanAggregate(rows)
		if err != nil {
			return nil, err
		}
		agg.Level = level
		results = append(results, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s aggregates: %w", level, err)
	}
	return results, nil
}

// scanAggregate scans one rollup row selected as id followed by rollupColumns.
func scanAggregate(rows *sql.Rows) (schema.PeriodAggregate, error) {
	var (
		agg                    schema.PeriodAggregate
		category               string
		start, end, computedAt dbTime
	)
	m := &agg.PeriodMetrics
	if err := rows.Scan(&agg.ID, &category, &agg.Key, &start, &end, &agg.BusinessDate, &agg.Year,
		&agg.Index, &agg.ChildCount, &agg.Missing, &computedAt, &m.TotalOpen, &m.AvgAppointment, &m.MultiAppt,
		&m.NotServicedYet, &m.ClosedCalls, &m.SameDayClosures, &m.FirstTimeFixes, &m.ClosedAppointmentSum,
		&m.FollowUps, &m.NewCalls, &m.ReopenedCalls, &m.FirstTimeFixRate, &m.AvgApptsPerCompleted, &m.ReopenRate,
		&m.RollingSameDayClosures, &m.RollingClosedCalls, &m.SameDayCloseRate, &m.RollingFirstTimeFixes,
		&m.FirstTimeFixRateRunning, &m.RollingFollowUps, &m.RollingUniqueAppointments, &m.RepeatDispatchRate); err != nil {
		return agg, fmt.Errorf("failed to scan aggregate: %w", err)
	}
	agg.Category = schema.Category(category)
	agg.PeriodStart = start.Time
	agg.PeriodEnd = end.Time
	agg.ComputedAt = computedAt.Time
	return agg, nil
}

// GetStatus returns row counts of every rollup table.
func (r *RollupStoreImpl) GetStatus() (map[string]int64, error) {
	sizes := make(map[string]int64)
	if r.disabled() {
		return sizes, nil
	}
	for _, level := range schema.Levels {
		count, err := r.countRows(rollupTables[level])
		if err != nil {
			return sizes, fmt.Errorf("failed to get count for table %s: %w", rollupTables[level], err)
		}
		sizes[rollupTables[level]] = count
	}
	return sizes, nil
}
