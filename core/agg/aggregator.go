package agg

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/huangsam/callstat/internal/clock"
	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/schema"
	"go.uber.org/zap"
)

// hourKeyLayout keeps the zone offset so the repeated hour of a DST fall-back gets its own key.
const hourKeyLayout = "2006-01-02T15:04Z07:00"

// Stores bundles the persistence the Aggregator reads and writes.
type Stores struct {
	Source  contract.SnapshotSource
	Stats   contract.StatStore
	Ledger  contract.Ledger
	Rollups contract.RollupStore
}

// SnapshotLoader returns a category's deduplicated batch pushed at the given time.
type SnapshotLoader func(ctx context.Context, category schema.Category, at time.Time) (schema.DedupedBatch, error)

// Result counts the periods a roll committed or found already committed.
type Result struct {
	Committed int
	Skipped   int
}

func (r *Result) add(o Result) {
	r.Committed += o.Committed
	r.Skipped += o.Skipped
}

// Aggregator commits period aggregates for one level at a time. Every commit is
// guarded by the period key, so rolling the same period twice is a no-op.
type Aggregator struct {
	clock  *clock.PeriodClock
	cfg    contract.AggregationConfig
	stores Stores
	load   SnapshotLoader
	logger *zap.Logger
	now    func() time.Time
}

// NewAggregator creates an Aggregator. The loader is only used by the raw daily source.
func NewAggregator(pc *clock.PeriodClock, cfg contract.AggregationConfig, stores Stores, load SnapshotLoader, logger *zap.Logger) *Aggregator {
	return &Aggregator{clock: pc, cfg: cfg, stores: stores, load: load, logger: logger, now: time.Now}
}

// Enabled reports whether a level runs, taking the levels it depends on into account.
func (a *Aggregator) Enabled(level schema.Level) bool {
	c := a.cfg
	daily := c.DailyEnabled && (c.DailySource == schema.DailyFromRaw || c.HourlyEnabled)
	switch level {
	case schema.LevelBatch:
		return c.HourlyEnabled
	case schema.LevelDaily:
		return daily
	case schema.LevelWeekly:
		return daily && c.WeeklyEnabled
	case schema.LevelMonthly:
		return daily && c.WeeklyEnabled && c.MonthlyEnabled
	}
	return false
}

// RollBatches commits every completed business hour of the category up to the
// hour containing batchTime. An hour without batches is committed as missing.
func (a *Aggregator) RollBatches(ctx context.Context, category schema.Category, batchTime time.Time) (Result, error) {
	var res Result
	if !a.Enabled(schema.LevelBatch) {
		return res, nil
	}
	log := a.logger.With(zap.String("category", string(category)), zap.String("level", string(schema.LevelBatch)))

	current := a.clock.HourStart(batchTime)
	last, ok, err := a.stores.Rollups.LatestAggregate(ctx, schema.LevelBatch, category)
	if err != nil {
		return res, fmt.Errorf("failed to read latest batch aggregate: %w", err)
	}

	var start time.Time
	var previous *schema.PeriodAggregate
	isFirst := !ok
	if ok {
		start = a.clock.HourStart(last.PeriodEnd)
		previous = &last
	} else {
		first, found, err := a.stores.Stats.FirstStatTime(ctx, category)
		if err != nil {
			return res, fmt.Errorf("failed to read first stat time: %w", err)
		}
		if !found {
			return res, nil
		}
		start = a.clock.HourStart(first)
	}

	if limit := time.Duration(a.cfg.MaxCatchupHours) * time.Hour; limit > 0 && current.Sub(start) > limit {
		log.Warn("batch aggregation is behind, skipping oldest hours",
			zap.Time("from", start), zap.Time("resume", current.Add(-limit)))
		start = current.Add(-limit)
	}

	for h := start; h.Before(current); h = h.Add(time.Hour) {
		agg, r, err := a.rollHour(ctx, category, h, previous, isFirst, log)
		if err != nil {
			return res, err
		}
		res.add(r)
		if agg != nil {
			previous = agg
			isFirst = false
		}
	}
	return res, nil
}

func (a *Aggregator) rollHour(ctx context.Context, category schema.Category, h time.Time, previous *schema.PeriodAggregate, isFirst bool, log *zap.Logger) (*schema.PeriodAggregate, Result, error) {
	end := h.Add(time.Hour)
	bh := a.clock.ToBusiness(h)
	key := bh.Format(hourKeyLayout)

	done, err := a.stores.Rollups.HasPeriod(ctx, schema.LevelBatch, category, key)
	if err != nil {
		return nil, Result{}, fmt.Errorf("failed to check batch aggregate %s: %w", key, err)
	}
	if done {
		return nil, Result{Skipped: 1}, nil
	}

	stats, err := a.stores.Stats.StatsBetween(ctx, category, h, end)
	if err != nil {
		return nil, Result{}, fmt.Errorf("failed to read stats for %s: %w", key, err)
	}
	children := make([]schema.PeriodMetrics, len(stats))
	for i, s := range stats {
		children[i] = FromStat(s)
	}

	agg, ok := Aggregate(schema.LevelBatch, children, previous, isFirst)
	if !ok {
		return nil, Result{}, nil
	}
	agg.Category = category
	agg.Key = key
	agg.PeriodStart = h
	agg.PeriodEnd = end
	agg.BusinessDate = a.clock.DateKey(h)
	agg.Year = bh.Year()
	agg.Index = bh.Hour()

	if agg.Missing {
		log.Warn("no batches in hour, carrying previous snapshot", zap.String("key", key))
	} else if a.cfg.ValidationEnabled {
		a.validate(ctx, category, agg, log)
	}

	res, err := a.commit(ctx, &agg, log)
	if err != nil {
		return nil, res, err
	}
	return &agg, res, nil
}

// validate cross-checks the folded closed count against the stat store's own sum.
func (a *Aggregator) validate(ctx context.Context, category schema.Category, agg schema.PeriodAggregate, log *zap.Logger) {
	sum, err := a.stores.Stats.SumClosedBetween(ctx, category, agg.PeriodStart, agg.PeriodEnd)
	if err != nil {
		log.Warn("validation query failed", zap.String("key", agg.Key), zap.Error(err))
		return
	}
	if diff := sum - agg.ClosedCalls; diff > 1 || diff < -1 {
		log.Warn("closed call mismatch",
			zap.String("key", agg.Key), zap.Int("aggregated", agg.ClosedCalls), zap.Int("stored", sum))
	}
}

// RollDay commits the daily summary of a business date. From batch aggregates it
// waits until the hourly level covers the whole day window.
func (a *Aggregator) RollDay(ctx context.Context, category schema.Category, day time.Time) (Result, error) {
	if !a.Enabled(schema.LevelDaily) {
		return Result{}, nil
	}
	log := a.logger.With(zap.String("category", string(category)), zap.String("level", string(schema.LevelDaily)))
	key := a.clock.DateKey(day)
	start, end := a.clock.DayWindow(day)

	done, err := a.stores.Rollups.HasPeriod(ctx, schema.LevelDaily, category, key)
	if err != nil {
		return Result{}, fmt.Errorf("failed to check daily summary %s: %w", key, err)
	}
	if done {
		return Result{Skipped: 1}, nil
	}

	var agg schema.PeriodAggregate
	if a.cfg.DailySource == schema.DailyFromRaw {
		m, n, ok, err := a.dailyFromRaw(ctx, category, start, end)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			log.Debug("no batches in day window", zap.String("key", key))
			return Result{}, nil
		}
		agg = schema.PeriodAggregate{Level: schema.LevelDaily, ChildCount: n, PeriodMetrics: m}
	} else {
		covered, err := a.covered(ctx, schema.LevelBatch, category, end)
		if err != nil {
			return Result{}, err
		}
		if !covered {
			log.Info("waiting for batch aggregates to cover the day", zap.String("key", key), zap.Time("until", end))
			return Result{}, nil
		}
		hours, err := a.stores.Rollups.AggregatesStartingIn(ctx, schema.LevelBatch, category, start, end)
		if err != nil {
			return Result{}, fmt.Errorf("failed to read batch aggregates for %s: %w", key, err)
		}
		var ok bool
		if agg, ok = Aggregate(schema.LevelDaily, Metrics(hours), nil, false); !ok {
			log.Debug("no batch aggregates in day window", zap.String("key", key))
			return Result{}, nil
		}
	}

	bd := a.clock.StartOfDay(day)
	agg.Category = category
	agg.Key = key
	agg.PeriodStart = start
	agg.PeriodEnd = end
	agg.BusinessDate = key
	agg.Year = bd.Year()
	agg.Index = bd.Day()
	return a.commit(ctx, &agg, log)
}

// RollWeek commits the weekly summary of the week containing day once the
// daily level covers its last day.
func (a *Aggregator) RollWeek(ctx context.Context, category schema.Category, day time.Time) (Result, error) {
	if !a.Enabled(schema.LevelWeekly) {
		return Result{}, nil
	}
	log := a.logger.With(zap.String("category", string(category)), zap.String("level", string(schema.LevelWeekly)))
	first, last := a.clock.WeekBounds(day)
	year, week := a.clock.WeekNumber(day)
	key := fmt.Sprintf("%d-W%02d", year, week)

	done, err := a.stores.Rollups.HasPeriod(ctx, schema.LevelWeekly, category, key)
	if err != nil {
		return Result{}, fmt.Errorf("failed to check weekly summary %s: %w", key, err)
	}
	if done {
		return Result{Skipped: 1}, nil
	}

	start, _ := a.clock.DayWindow(first)
	_, end := a.clock.DayWindow(last)
	covered, err := a.covered(ctx, schema.LevelDaily, category, end)
	if err != nil {
		return Result{}, err
	}
	if !covered {
		log.Info("waiting for daily summaries to cover the week", zap.String("key", key))
		return Result{}, nil
	}

	days, err := a.stores.Rollups.AggregatesStartingIn(ctx, schema.LevelDaily, category, start, end)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read daily summaries for %s: %w", key, err)
	}
	agg, ok := Aggregate(schema.LevelWeekly, Metrics(days), nil, false)
	if !ok {
		log.Debug("no daily summaries in week", zap.String("key", key))
		return Result{}, nil
	}
	agg.Category = category
	agg.Key = key
	agg.PeriodStart = start
	agg.PeriodEnd = end
	agg.BusinessDate = a.clock.DateKey(last)
	agg.Year = year
	agg.Index = week
	return a.commit(ctx, &agg, log)
}

// RollMonth commits the monthly summary of the month containing day. Children
// are the committed weeks lying wholly inside the month plus the daily
// summaries of every day those weeks leave uncovered, so each day of the
// month is counted exactly once and no day of a neighbouring month is.
func (a *Aggregator) RollMonth(ctx context.Context, category schema.Category, day time.Time) (Result, error) {
	if !a.Enabled(schema.LevelMonthly) {
		return Result{}, nil
	}
	log := a.logger.With(zap.String("category", string(category)), zap.String("level", string(schema.LevelMonthly)))
	first, last := a.clock.MonthBounds(day)
	key := fmt.Sprintf("%d-%02d", first.Year(), int(first.Month()))

	done, err := a.stores.Rollups.HasPeriod(ctx, schema.LevelMonthly, category, key)
	if err != nil {
		return Result{}, fmt.Errorf("failed to check monthly summary %s: %w", key, err)
	}
	if done {
		return Result{Skipped: 1}, nil
	}

	start, _ := a.clock.DayWindow(first)
	_, end := a.clock.DayWindow(last)
	covered, err := a.covered(ctx, schema.LevelDaily, category, end)
	if err != nil {
		return Result{}, err
	}
	if !covered {
		log.Info("waiting for daily summaries to cover the month", zap.String("key", key))
		return Result{}, nil
	}

	weeks, err := a.stores.Rollups.AggregatesOverlapping(ctx, schema.LevelWeekly, category, start, end)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read weekly summaries for %s: %w", key, err)
	}
	days, err := a.stores.Rollups.AggregatesStartingIn(ctx, schema.LevelDaily, category, start, end)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read daily summaries for %s: %w", key, err)
	}
	children := monthChildren(weeks, days, start, end)

	agg, ok := Aggregate(schema.LevelMonthly, Metrics(children), nil, false)
	if !ok {
		log.Debug("no summaries in month", zap.String("key", key))
		return Result{}, nil
	}
	agg.Category = category
	agg.Key = key
	agg.PeriodStart = start
	agg.PeriodEnd = end
	agg.BusinessDate = a.clock.DateKey(last)
	agg.Year = first.Year()
	agg.Index = int(first.Month())
	return a.commit(ctx, &agg, log)
}

// monthChildren picks the weeks inside [start, end) and the days outside those
// weeks, ordered by period start.
func monthChildren(weeks, days []schema.PeriodAggregate, start, end time.Time) []schema.PeriodAggregate {
	var inside []schema.PeriodAggregate
	for _, w := range weeks {
		if !w.PeriodStart.Before(start) && !w.PeriodEnd.After(end) {
			inside = append(inside, w)
		}
	}
	children := slices.Clone(inside)
	for _, d := range days {
		covered := slices.ContainsFunc(inside, func(w schema.PeriodAggregate) bool {
			return !d.PeriodStart.Before(w.PeriodStart) && d.PeriodStart.Before(w.PeriodEnd)
		})
		if !covered {
			children = append(children, d)
		}
	}
	slices.SortFunc(children, func(x, y schema.PeriodAggregate) int {
		return x.PeriodStart.Compare(y.PeriodStart)
	})
	return children
}

// covered reports whether the level's latest committed period reaches end.
func (a *Aggregator) covered(ctx context.Context, level schema.Level, category schema.Category, end time.Time) (bool, error) {
	latest, ok, err := a.stores.Rollups.LatestAggregate(ctx, level, category)
	if err != nil {
		return false, fmt.Errorf("failed to read latest %s aggregate: %w", level, err)
	}
	return ok && !latest.PeriodEnd.Before(end), nil
}

// commit re-derives the rolling fields and inserts the aggregate.
func (a *Aggregator) commit(ctx context.Context, agg *schema.PeriodAggregate, log *zap.Logger) (Result, error) {
	stats, err := a.stores.Stats.StatsBetween(ctx, agg.Category, a.clock.RollingStart(agg.PeriodEnd), agg.PeriodEnd)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read rolling stats for %s: %w", agg.Key, err)
	}
	SumRolling(stats).Apply(&agg.PeriodMetrics)
	agg.ComputedAt = a.now().UTC()

	inserted, err := a.stores.Rollups.InsertAggregate(ctx, *agg)
	if err != nil {
		return Result{}, fmt.Errorf("failed to commit %s aggregate %s: %w", agg.Level, agg.Key, err)
	}
	if !inserted {
		log.Debug("period already committed", zap.String("key", agg.Key))
		return Result{Skipped: 1}, nil
	}
	log.Info("committed period",
		zap.String("key", agg.Key),
		zap.Int("children", agg.ChildCount),
		zap.Bool("missing", agg.Missing),
		zap.Int("open", agg.TotalOpen),
		zap.Int("closed", agg.ClosedCalls),
		zap.Float64("same_day_rate", agg.SameDayCloseRate),
		zap.Float64("repeat_dispatch_rate", agg.RepeatDispatchRate),
	)
	return Result{Committed: 1}, nil
}
