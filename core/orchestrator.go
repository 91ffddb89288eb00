package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/callstat/core/agg"
	"github.com/huangsam/callstat/internal/clock"
	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/internal/metrics"
	"github.com/huangsam/callstat/schema"
	"go.uber.org/zap"
)

// Orchestrator drives one batch at a time through scoring and every rollup level.
type Orchestrator struct {
	clock      *clock.PeriodClock
	cfg        *contract.Config
	stores     agg.Stores
	engine     *DiffEngine
	aggregator *agg.Aggregator
	enricher   contract.TrackingEnricher
	logger     *zap.Logger

	enriching atomic.Bool
	wg        sync.WaitGroup
}

// NewOrchestrator wires the diff engine and aggregator over the stores.
// The enricher is optional.
func NewOrchestrator(pc *clock.PeriodClock, cfg *contract.Config, stores agg.Stores, enricher contract.TrackingEnricher, logger *zap.Logger) *Orchestrator {
	o := &Orchestrator{
		clock:    pc,
		cfg:      cfg,
		stores:   stores,
		engine:   NewDiffEngine(pc, stores.Ledger, stores.Stats, logger),
		enricher: enricher,
		logger:   logger,
	}
	o.aggregator = agg.NewAggregator(pc, cfg.Aggregation, stores, o.categoryBatch, logger)
	return o
}

// categories returns the categories this orchestrator processes.
func (o *Orchestrator) categories() []schema.Category {
	if o.cfg.Category != "" {
		return []schema.Category{o.cfg.Category}
	}
	return schema.Categories
}

// batchCache holds the deduplicated batches loaded during one cycle.
type batchCache map[int64]schema.DedupedBatch

// load fetches and deduplicates the batch pushed at t.
func (o *Orchestrator) load(ctx context.Context, cache batchCache, at time.Time) (schema.DedupedBatch, error) {
	if b, ok := cache[at.UnixNano()]; ok {
		return b, nil
	}
	records, err := o.stores.Source.FetchBatch(ctx, at)
	if err != nil {
		return nil, err
	}
	b := Deduplicate(records)
	if cache != nil {
		cache[at.UnixNano()] = b
	}
	return b, nil
}

// categoryBatch loads one category of a batch for the raw daily source.
func (o *Orchestrator) categoryBatch(ctx context.Context, category schema.Category, at time.Time) (schema.DedupedBatch, error) {
	b, err := o.load(ctx, nil, at)
	if err != nil {
		return nil, err
	}
	return FilterBatch(b, category), nil
}

// ProcessOnce runs one cycle: score the latest batch for every category that
// has not seen it yet, then roll up whatever periods have completed.
// A missing batch is not an error.
func (o *Orchestrator) ProcessOnce(ctx context.Context) (schema.CycleResult, error) {
	res := schema.CycleResult{
		CycleID:   uuid.NewString(),
		Closures:  make(map[schema.Category]int),
		Committed: make(map[schema.Level]int),
	}
	log := o.logger.With(zap.String("cycle_id", res.CycleID))

	latest, ok, err := o.stores.Source.LatestBatch(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to read latest batch: %w", err)
	}
	if !ok {
		log.Info("no batches in source")
		return res, nil
	}
	res.Batch = latest
	log = log.With(zap.Int64("batch_id", latest.BatchID), zap.Time("pushed_at", latest.PushedAt))

	cache := make(batchCache)
	for _, category := range o.categories() {
		scored, err := o.scoreCategory(ctx, cache, category, latest, log)
		if err != nil {
			return res, err
		}
		if scored != nil {
			res.Scored = append(res.Scored, category)
			res.Closures[category] = scored.ClosedSinceLast
			metrics.BatchesScoredTotal.WithLabelValues(string(category)).Inc()
			metrics.ClosuresTotal.WithLabelValues(string(category)).Add(float64(scored.ClosedSinceLast))
		}
	}
	res.Processed = len(res.Scored) > 0
	if res.Processed {
		metrics.LastBatchTimestamp.Set(float64(latest.PushedAt.Unix()))
		o.enrichAsync(ctx, cache[latest.PushedAt.UnixNano()], log)
	} else {
		log.Debug("latest batch already scored")
	}

	// Rollups run every cycle so a cycle that failed after scoring is retried.
	for _, category := range o.categories() {
		if err := o.rollUp(ctx, category, latest.PushedAt, res.Committed); err != nil {
			return res, err
		}
	}
	return res, nil
}

// scoreCategory scores the latest batch for a category, returning nil when the
// category has already seen it.
func (o *Orchestrator) scoreCategory(ctx context.Context, cache batchCache, category schema.Category, latest schema.BatchRef, log *zap.Logger) (*schema.BatchStat, error) {
	log = log.With(zap.String("category", string(category)))

	if !latest.Unreliable() {
		done, err := o.stores.Stats.HasBatch(ctx, category, latest.BatchID)
		if err != nil {
			return nil, fmt.Errorf("failed to check batch for %s: %w", category, err)
		}
		if done {
			return nil, nil
		}
	}

	last, hasLast, err := o.stores.Stats.LatestStat(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest stat for %s: %w", category, err)
	}
	// Never score a batch at or before the one already scored.
	if hasLast && !last.BatchTime.Before(latest.PushedAt.Add(-o.cfg.BatchTolerance)) {
		return nil, nil
	}

	var prevRef schema.BatchRef
	var found bool
	if hasLast {
		prevRef, found, err = o.stores.Source.BatchAtOrBefore(ctx, last.BatchTime)
	} else {
		prevRef, found, err = o.stores.Source.BatchBefore(ctx, latest.PushedAt)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find previous batch for %s: %w", category, err)
	}

	cur, err := o.load(ctx, cache, latest.PushedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest batch: %w", err)
	}
	var previous schema.DedupedBatch
	if found {
		prev, err := o.load(ctx, cache, prevRef.PushedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to load previous batch: %w", err)
		}
		previous = FilterBatch(prev, category)
		log.Debug("comparing against previous batch", zap.Int64("previous_batch_id", prevRef.BatchID), zap.Time("previous_pushed_at", prevRef.PushedAt))
	}

	stat, err := o.engine.Score(ctx, category, FilterBatch(cur, category), previous, latest)
	if err != nil {
		return nil, err
	}
	return &stat, nil
}

// rollUp commits completed hours, then on a day-end trigger the closing day and
// up to the configured number of earlier days, each followed by its week and
// month when that day closes them.
func (o *Orchestrator) rollUp(ctx context.Context, category schema.Category, at time.Time, committed map[schema.Level]int) error {
	record := func(level schema.Level, r agg.Result) {
		committed[level] += r.Committed
		metrics.ObserveRollup(string(level), r.Committed, r.Skipped)
	}

	r, err := o.aggregator.RollBatches(ctx, category, at)
	if err != nil {
		return fmt.Errorf("batch aggregation failed for %s: %w", category, err)
	}
	record(schema.LevelBatch, r)

	if !o.clock.IsEndOfDay(at) {
		return nil
	}
	closing := o.clock.ClosingDay(at)
	for i := max(o.cfg.Aggregation.CatchupDays, 0); i >= 0; i-- {
		day := o.clock.AddDays(closing, -i)
		if r, err = o.aggregator.RollDay(ctx, category, day); err != nil {
			return fmt.Errorf("daily rollup failed for %s: %w", category, err)
		}
		record(schema.LevelDaily, r)

		eod := o.clock.EOD(day)
		if o.clock.IsEndOfWeek(eod) {
			if r, err = o.aggregator.RollWeek(ctx, category, day); err != nil {
				return fmt.Errorf("weekly rollup failed for %s: %w", category, err)
			}
			record(schema.LevelWeekly, r)
		}
		if o.clock.IsEndOfMonth(eod) {
			if r, err = o.aggregator.RollMonth(ctx, category, day); err != nil {
				return fmt.Errorf("monthly rollup failed for %s: %w", category, err)
			}
			record(schema.LevelMonthly, r)
		}
	}
	return nil
}

// enrichAsync starts a background enrichment of the batch unless one is running.
func (o *Orchestrator) enrichAsync(ctx context.Context, batch schema.DedupedBatch, log *zap.Logger) {
	if o.enricher == nil || len(batch) == 0 {
		return
	}
	if !o.enriching.CompareAndSwap(false, true) {
		log.Info("tracking enrichment still running, skipping this batch")
		return
	}
	records := Records(batch)
	o.wg.Go(func() {
		defer o.enriching.Store(false)
		metrics.TrackingRunsInFlight.Set(1)
		defer metrics.TrackingRunsInFlight.Set(0)

		summary, err := o.enricher.Enrich(ctx, records)
		if err != nil {
			log.Error("tracking enrichment failed", zap.Error(err))
			return
		}
		log.Info("tracking enrichment finished",
			zap.Int("records", summary.Total),
			zap.Int("updated", summary.Updated),
			zap.Int("skipped", summary.Skipped),
			zap.Int("failed", summary.Failed))
	})
}

// Wait blocks until background enrichment finishes.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Poll runs a cycle immediately and then once per interval until ctx is done.
// A failed cycle is logged and the loop keeps its interval.
func (o *Orchestrator) Poll(ctx context.Context) error {
	interval := o.cfg.PollInterval
	if interval <= 0 {
		interval = contract.DefaultPollInterval
	}
	o.logger.Info("starting poll loop", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	o.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("poll loop stopping")
			o.Wait()
			return nil
		case <-ticker.C:
			o.cycle(ctx)
		}
	}
}

// cycle runs ProcessOnce and records its outcome.
func (o *Orchestrator) cycle(ctx context.Context) {
	start := time.Now()
	res, err := o.ProcessOnce(ctx)
	metrics.CycleDurationSeconds.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		metrics.CyclesTotal.WithLabelValues(metrics.ResultFailed).Inc()
		o.logger.Error("cycle failed", zap.String("cycle_id", res.CycleID), zap.Error(err))
	case res.Processed:
		metrics.CyclesTotal.WithLabelValues(metrics.ResultProcessed).Inc()
		o.logger.Info("cycle complete",
			zap.String("cycle_id", res.CycleID),
			zap.Int("categories", len(res.Scored)),
			zap.Any("committed", res.Committed),
			zap.Duration("duration", time.Since(start)))
	default:
		metrics.CyclesTotal.WithLabelValues(metrics.ResultIdle).Inc()
	}
}
