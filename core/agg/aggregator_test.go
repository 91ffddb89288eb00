package agg

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/callstat/internal/clock"
	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/internal/iostore"
	"github.com/huangsam/callstat/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// central is a fixed UTC-6 business zone for rollup tests.
var central = time.FixedZone("CST", -6*60*60)

const cat = schema.CategoryRecyclers

type testEnv struct {
	agg     *Aggregator
	source  *iostore.SourceStoreImpl
	stats   *iostore.StatStoreImpl
	ledger  *iostore.LedgerImpl
	rollups *iostore.RollupStoreImpl
}

func allLevels() contract.AggregationConfig {
	return contract.AggregationConfig{
		HourlyEnabled:     true,
		DailyEnabled:      true,
		WeeklyEnabled:     true,
		MonthlyEnabled:    true,
		ValidationEnabled: true,
		MaxCatchupHours:   72,
		DailySource:       schema.DailyFromHourly,
	}
}

func newTestEnv(t *testing.T, cfg contract.AggregationConfig) *testEnv {
	t.Helper()
	path := filepath.Join(t.TempDir(), "callstat.db")
	pc, err := clock.New(central, 23, 59, time.Sunday)
	require.NoError(t, err)

	env := &testEnv{}
	env.stats, err = iostore.NewStatStore(schema.SQLiteBackend, path)
	require.NoError(t, err)
	env.ledger, err = iostore.NewLedger(schema.SQLiteBackend, path)
	require.NoError(t, err)
	env.rollups, err = iostore.NewRollupStore(schema.SQLiteBackend, path)
	require.NoError(t, err)
	env.source, err = iostore.NewSourceStore(schema.SQLiteBackend, path, "", central, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = env.stats.Close()
		_ = env.ledger.Close()
		_ = env.rollups.Close()
		_ = env.source.Close()
	})

	load := func(ctx context.Context, _ schema.Category, at time.Time) (schema.DedupedBatch, error) {
		rows, err := env.source.FetchBatch(ctx, at)
		if err != nil {
			return nil, err
		}
		batch := make(schema.DedupedBatch)
		for _, r := range rows {
			if cur, ok := batch[r.ServiceCallID]; !ok || r.ID > cur.ID {
				batch[r.ServiceCallID] = r
			}
		}
		return batch, nil
	}

	stores := Stores{Source: env.source, Stats: env.stats, Ledger: env.ledger, Rollups: env.rollups}
	env.agg = NewAggregator(pc, cfg, stores, load, zap.NewNop())
	env.agg.now = func() time.Time { return time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC) }
	return env
}

func (e *testEnv) stat(t *testing.T, at time.Time, open, closed, sameDay int, appts ...int) {
	t.Helper()
	_, err := e.stats.InsertStat(context.Background(), schema.BatchStat{
		Category:           cat,
		BatchID:            at.Unix(),
		BatchTime:          at,
		TotalOpen:          open,
		ClosedSinceLast:    closed,
		SameDayClosures:    sameDay,
		FirstTimeFixes:     closed,
		FirstTimeFixRate:   ratio(closed, closed),
		AvgAppointment:     1,
		StatusSummary:      map[string]int{"OPEN": open},
		AppointmentNumbers: appts,
		UniqueAppointments: len(appts),
	})
	require.NoError(t, err)
}

func (e *testEnv) period(t *testing.T, level schema.Level, key string, start, end time.Time, open, closed int) {
	t.Helper()
	ok, err := e.rollups.InsertAggregate(context.Background(), schema.PeriodAggregate{
		Level: level, Category: cat, Key: key, PeriodStart: start, PeriodEnd: end,
		BusinessDate: key, ChildCount: 1, ComputedAt: end,
		PeriodMetrics: schema.PeriodMetrics{TotalOpen: open, ClosedCalls: closed},
	})
	require.NoError(t, err)
	require.True(t, ok)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, central)
}

func TestEnabled(t *testing.T) {
	env := newTestEnv(t, allLevels())
	for _, l := range schema.Levels {
		assert.True(t, env.agg.Enabled(l), l)
	}

	cfg := allLevels()
	cfg.HourlyEnabled = false
	env.agg.cfg = cfg
	assert.False(t, env.agg.Enabled(schema.LevelDaily), "daily from hourly needs hourly")
	assert.False(t, env.agg.Enabled(schema.LevelMonthly))

	cfg.DailySource = schema.DailyFromRaw
	env.agg.cfg = cfg
	assert.True(t, env.agg.Enabled(schema.LevelDaily))
	assert.True(t, env.agg.Enabled(schema.LevelWeekly))

	cfg.WeeklyEnabled = false
	env.agg.cfg = cfg
	assert.False(t, env.agg.Enabled(schema.LevelMonthly), "monthly needs weekly")
	assert.False(t, env.agg.Enabled(schema.Level("yearly")))
}

func TestRollBatches(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, allLevels())

	env.stat(t, time.Date(2025, 3, 4, 9, 10, 0, 0, central), 10, 2, 1, 1, 2)
	env.stat(t, time.Date(2025, 3, 4, 9, 40, 0, 0, central), 11, 1, 1, 1, 3)
	env.stat(t, time.Date(2025, 3, 4, 11, 20, 0, 0, central), 8, 3, 0, 1)

	res, err := env.agg.RollBatches(ctx, cat, time.Date(2025, 3, 4, 12, 5, 0, 0, central))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Committed)

	hours, err := env.rollups.AllAggregates(ctx, schema.LevelBatch)
	require.NoError(t, err)
	require.Len(t, hours, 3)

	nine, ten, eleven := hours[0], hours[1], hours[2]
	assert.Equal(t, "2025-03-04T09:00-06:00", nine.Key)
	assert.Equal(t, 9, nine.Index)
	assert.Equal(t, "2025-03-04", nine.BusinessDate)
	assert.Equal(t, 2, nine.ChildCount)
	assert.Equal(t, 11, nine.TotalOpen)
	assert.Equal(t, 3, nine.ClosedCalls)
	assert.Equal(t, 2, nine.RollingSameDayClosures)
	assert.Equal(t, 3, nine.RollingUniqueAppointments)

	assert.True(t, ten.Missing)
	assert.Equal(t, 11, ten.TotalOpen, "missing hour carries the previous snapshot")
	assert.Equal(t, 0, ten.ClosedCalls)
	assert.Equal(t, 3, ten.RollingClosedCalls, "rolling totals continue through gaps")

	assert.False(t, eleven.Missing)
	assert.Equal(t, 8, eleven.TotalOpen)
	assert.Equal(t, 6, eleven.RollingClosedCalls)
	assert.InDelta(t, 2.0/6, eleven.SameDayCloseRate, 1e-9)

	again, err := env.agg.RollBatches(ctx, cat, time.Date(2025, 3, 4, 12, 35, 0, 0, central))
	require.NoError(t, err)
	assert.Equal(t, Result{}, again, "no new completed hour")
}

func TestRollBatches_NoStats(t *testing.T) {
	env := newTestEnv(t, allLevels())
	res, err := env.agg.RollBatches(context.Background(), cat, time.Date(2025, 3, 4, 12, 0, 0, 0, central))
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestRollBatches_CatchupLimit(t *testing.T) {
	ctx := context.Background()
	cfg := allLevels()
	cfg.MaxCatchupHours = 2
	env := newTestEnv(t, cfg)

	env.stat(t, time.Date(2025, 3, 4, 1, 10, 0, 0, central), 5, 0, 0, 1)
	env.stat(t, time.Date(2025, 3, 4, 9, 20, 0, 0, central), 6, 1, 1, 1)

	res, err := env.agg.RollBatches(ctx, cat, time.Date(2025, 3, 4, 10, 5, 0, 0, central))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Committed, "only the 09:00 hour is within reach")

	latest, ok, err := env.rollups.LatestAggregate(ctx, schema.LevelBatch, cat)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 9, latest.Index)
}

func TestRollBatches_Disabled(t *testing.T) {
	cfg := allLevels()
	cfg.HourlyEnabled = false
	env := newTestEnv(t, cfg)
	env.stat(t, time.Date(2025, 3, 4, 9, 10, 0, 0, central), 10, 2, 1, 1)

	res, err := env.agg.RollBatches(context.Background(), cat, time.Date(2025, 3, 4, 12, 5, 0, 0, central))
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestRollDay_FromHourly(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, allLevels())

	env.stat(t, time.Date(2025, 3, 4, 10, 10, 0, 0, central), 10, 2, 1, 1)
	env.stat(t, time.Date(2025, 3, 4, 15, 10, 0, 0, central), 7, 4, 2, 1, 2)

	t.Run("waits for coverage", func(t *testing.T) {
		res, err := env.agg.RollDay(ctx, cat, day(2025, 3, 4))
		require.NoError(t, err)
		assert.Equal(t, Result{}, res)
	})

	_, err := env.agg.RollBatches(ctx, cat, time.Date(2025, 3, 5, 0, 35, 0, 0, central))
	require.NoError(t, err)

	t.Run("commits once covered", func(t *testing.T) {
		res, err := env.agg.RollDay(ctx, cat, day(2025, 3, 4))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Committed)

		daily, ok, err := env.rollups.LatestAggregate(ctx, schema.LevelDaily, cat)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "2025-03-04", daily.Key)
		assert.Equal(t, 4, daily.Index)
		assert.Equal(t, 14, daily.ChildCount, "hours 10:00 through 23:00")
		assert.Equal(t, 7, daily.TotalOpen)
		assert.Equal(t, 6, daily.ClosedCalls)
		assert.Equal(t, 3, daily.RollingSameDayClosures)
		assert.Equal(t, 0.5, daily.SameDayCloseRate)
		assert.True(t, daily.PeriodStart.Equal(day(2025, 3, 4)))
		assert.True(t, daily.PeriodEnd.Equal(day(2025, 3, 5)))
	})

	t.Run("second roll is a no-op", func(t *testing.T) {
		res, err := env.agg.RollDay(ctx, cat, day(2025, 3, 4))
		require.NoError(t, err)
		assert.Equal(t, Result{Skipped: 1}, res)
	})

	t.Run("covered day without hours is skipped", func(t *testing.T) {
		res, err := env.agg.RollDay(ctx, cat, day(2025, 3, 1))
		require.NoError(t, err)
		assert.Equal(t, Result{}, res)
	})
}

func TestRollDay_FromRaw(t *testing.T) {
	ctx := context.Background()
	cfg := allLevels()
	cfg.DailySource = schema.DailyFromRaw
	env := newTestEnv(t, cfg)

	b0 := time.Date(2025, 3, 3, 20, 0, 0, 0, central)
	b1 := time.Date(2025, 3, 4, 9, 0, 0, 0, central)
	b2 := time.Date(2025, 3, 4, 15, 0, 0, 0, central)
	row := func(id string, appt int, at time.Time) schema.SnapshotRecord {
		return schema.SnapshotRecord{ServiceCallID: id, Status: "OPEN", Appointment: appt, EquipmentID: "N4R-" + id,
			OpenedAt: b0.Add(-time.Hour), BatchID: at.Unix(), PushedAt: at}
	}
	require.NoError(t, env.source.InsertRecords(ctx, []schema.SnapshotRecord{
		row("A", 1, b0), row("B", 1, b0),
		row("A", 1, b1), row("B", 2, b1), row("C", 1, b1),
		row("B", 2, b2), row("C", 1, b2), row("D", 3, b2),
	}))
	_, err := env.ledger.RecordClosures(ctx, []schema.LedgerEntry{
		// Appointment unknown: recovered from the last batch that still had A
		{ServiceCallID: "A", ClosedAt: b2, Category: cat, OpenedAt: b0.Add(-time.Hour)},
		{ServiceCallID: "E", ClosedAt: b1.Add(3 * time.Hour), Category: cat,
			OpenedAt: time.Date(2025, 3, 4, 8, 0, 0, 0, central), Appointment: 2},
	})
	require.NoError(t, err)

	res, err := env.agg.RollDay(ctx, cat, day(2025, 3, 4))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Committed)

	daily, ok, err := env.rollups.LatestAggregate(ctx, schema.LevelDaily, cat)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, daily.ChildCount)
	assert.Equal(t, 3, daily.TotalOpen)
	assert.Equal(t, 2.0, daily.AvgAppointment)
	assert.Equal(t, 2, daily.MultiAppt)
	assert.Equal(t, 1, daily.NotServicedYet)
	assert.Equal(t, 2, daily.ClosedCalls)
	assert.Equal(t, 1, daily.SameDayClosures)
	assert.Equal(t, 1, daily.FirstTimeFixes)
	assert.Equal(t, 3, daily.ClosedAppointmentSum)
	assert.Equal(t, 0.5, daily.FirstTimeFixRate)
	assert.Equal(t, 1.5, daily.AvgApptsPerCompleted)
	assert.Equal(t, 2, daily.NewCalls)
	assert.Equal(t, 1, daily.FollowUps)
	assert.Equal(t, 0.0, daily.ReopenRate)

	empty, err := env.agg.RollDay(ctx, cat, day(2025, 3, 10))
	require.NoError(t, err)
	assert.Equal(t, Result{}, empty, "no batches in window")
}

func TestRollDay_RawNeedsLoader(t *testing.T) {
	cfg := allLevels()
	cfg.DailySource = schema.DailyFromRaw
	env := newTestEnv(t, cfg)
	env.agg.load = nil
	_, err := env.agg.RollDay(context.Background(), cat, day(2025, 3, 4))
	assert.ErrorIs(t, err, errNoLoader)
}

func TestRollWeek(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, allLevels())

	// Week of Sunday Mar 2 through Saturday Mar 8, 2025.
	for i := 0; i < 6; i++ {
		d := day(2025, 3, 2+i)
		env.period(t, schema.LevelDaily, d.Format(clock.DateLayout), d, d.AddDate(0, 0, 1), 10+i, i)
	}

	res, err := env.agg.RollWeek(ctx, cat, day(2025, 3, 5))
	require.NoError(t, err)
	assert.Equal(t, Result{}, res, "waits for the last day")

	last := day(2025, 3, 8)
	env.period(t, schema.LevelDaily, "2025-03-08", last, last.AddDate(0, 0, 1), 30, 6)

	res, err = env.agg.RollWeek(ctx, cat, day(2025, 3, 8))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Committed)

	week, ok, err := env.rollups.LatestAggregate(ctx, schema.LevelWeekly, cat)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2025-W09", week.Key)
	assert.Equal(t, 9, week.Index)
	assert.Equal(t, 2025, week.Year)
	assert.Equal(t, "2025-03-08", week.BusinessDate)
	assert.Equal(t, 7, week.ChildCount)
	assert.Equal(t, 30, week.TotalOpen)
	assert.Equal(t, 21, week.ClosedCalls)
	assert.True(t, week.PeriodStart.Equal(day(2025, 3, 2)))
	assert.True(t, week.PeriodEnd.Equal(day(2025, 3, 9)))

	res, err = env.agg.RollWeek(ctx, cat, day(2025, 3, 3))
	require.NoError(t, err)
	assert.Equal(t, Result{Skipped: 1}, res)
}

func TestRollMonth(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, allLevels())

	// March 2025 ends on a Monday, so the last week is only two days in.
	env.period(t, schema.LevelWeekly, "2025-W09", day(2025, 3, 2), day(2025, 3, 9), 20, 5)
	env.period(t, schema.LevelWeekly, "2025-W10", day(2025, 3, 9), day(2025, 3, 16), 22, 7)
	env.period(t, schema.LevelWeekly, "2025-W13", day(2025, 3, 30), day(2025, 4, 6), 99, 99)
	env.period(t, schema.LevelDaily, "2025-03-30", day(2025, 3, 30), day(2025, 3, 31), 25, 1)
	env.period(t, schema.LevelDaily, "2025-03-31", day(2025, 3, 31), day(2025, 4, 1), 26, 2)

	res, err := env.agg.RollMonth(ctx, cat, day(2025, 3, 31))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Committed)

	month, ok, err := env.rollups.LatestAggregate(ctx, schema.LevelMonthly, cat)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2025-03", month.Key)
	assert.Equal(t, 3, month.Index)
	assert.Equal(t, 4, month.ChildCount, "two weeks plus the two trailing days")
	assert.Equal(t, 26, month.TotalOpen)
	assert.Equal(t, 15, month.ClosedCalls)
	assert.Equal(t, "2025-03-31", month.BusinessDate)

	res, err = env.agg.RollMonth(ctx, cat, day(2025, 3, 15))
	require.NoError(t, err)
	assert.Equal(t, Result{Skipped: 1}, res)
}

func TestRollMonth_ConsecutiveMonths(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, allLevels())

	// One closure per day from Sunday Feb 23 through Saturday May 3, 2025.
	// The weeks of Feb 23 and Mar 30 straddle month boundaries.
	first, last := day(2025, 2, 23), day(2025, 5, 3)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		env.period(t, schema.LevelDaily, d.Format(clock.DateLayout), d, d.AddDate(0, 0, 1), 10, 1)
	}
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday {
			_, err := env.agg.RollWeek(ctx, cat, d)
			require.NoError(t, err)
		}
		if d.AddDate(0, 0, 1).Day() == 1 {
			res, err := env.agg.RollMonth(ctx, cat, d)
			require.NoError(t, err)
			require.Equal(t, 1, res.Committed, d.Format(clock.DateLayout))
		}
	}

	months, err := env.rollups.AggregatesStartingIn(ctx, schema.LevelMonthly, cat, day(2025, 1, 1), day(2026, 1, 1))
	require.NoError(t, err)
	require.Len(t, months, 3)

	closed := map[string]int{}
	for _, m := range months {
		closed[m.Key] = m.ClosedCalls
	}
	assert.Equal(t, map[string]int{"2025-02": 6, "2025-03": 31, "2025-04": 30}, closed)

	// Mar 30-31 live in March only; Apr 1-5 come from April's days, not week W13.
	assert.Equal(t, 61, closed["2025-03"]+closed["2025-04"])
}

func TestMonthChildren(t *testing.T) {
	start, end := day(2025, 4, 1), day(2025, 5, 1)
	agg := func(level schema.Level, from, to time.Time, closed int) schema.PeriodAggregate {
		return schema.PeriodAggregate{Level: level, PeriodStart: from, PeriodEnd: to,
			PeriodMetrics: schema.PeriodMetrics{ClosedCalls: closed}}
	}
	weeks := []schema.PeriodAggregate{
		agg(schema.LevelWeekly, day(2025, 3, 30), day(2025, 4, 6), 70),
		agg(schema.LevelWeekly, day(2025, 4, 6), day(2025, 4, 13), 7),
	}
	var days []schema.PeriodAggregate
	for d := start; d.Before(day(2025, 4, 13)); d = d.AddDate(0, 0, 1) {
		days = append(days, agg(schema.LevelDaily, d, d.AddDate(0, 0, 1), 1))
	}

	children := monthChildren(weeks, days, start, end)
	require.Len(t, children, 6, "five leading days then one whole week")
	for i, c := range children[:5] {
		assert.Equal(t, schema.LevelDaily, c.Level)
		assert.True(t, c.PeriodStart.Equal(day(2025, 4, 1+i)))
	}
	assert.Equal(t, schema.LevelWeekly, children[5].Level)

	total := 0
	for _, c := range children {
		total += c.ClosedCalls
	}
	assert.Equal(t, 12, total)
}

func TestRollMonth_WaitsForDaily(t *testing.T) {
	env := newTestEnv(t, allLevels())
	env.period(t, schema.LevelWeekly, "2025-W09", day(2025, 3, 2), day(2025, 3, 9), 20, 5)

	res, err := env.agg.RollMonth(context.Background(), cat, day(2025, 3, 31))
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}
