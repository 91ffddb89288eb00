package core

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/huangsam/callstat/internal/clock"
	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/schema"
	"go.uber.org/zap"
)

// reopenWindowDays is how many calendar days back a closure counts toward the reopen rate.
const reopenWindowDays = 14

// Diff is the comparison of two consecutive batches of one category.
// Stat carries everything except the reopen counts, which need the ledger.
type Diff struct {
	Stat   schema.BatchStat
	Closed []schema.LedgerEntry // Calls in previous but not latest, by service call ID
	NewIDs []string             // Calls in latest but not previous, sorted
}

// ratio divides with a zero denominator yielding zero.
func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// ComputeDiff compares the latest batch of a category against the previous one.
// An empty previous batch is a first run: nothing is closed and every call is new.
func ComputeDiff(pc *clock.PeriodClock, category schema.Category, latest, previous schema.DedupedBatch, batch schema.BatchRef) Diff {
	stat := schema.BatchStat{
		Category:      category,
		BatchID:       batch.BatchID,
		BatchTime:     batch.PushedAt,
		TotalOpen:     len(latest),
		StatusSummary: make(map[string]int),
	}

	// Open-call state of the latest batch.
	apptSum := 0
	distinct := make(map[int]struct{})
	for _, r := range latest {
		stat.StatusSummary[r.Status]++
		apptSum += r.Appointment
		if r.Appointment >= 2 {
			stat.MultiAppt++
		}
		if r.Appointment == 1 {
			stat.NotServicedYet++
		}
		distinct[r.Appointment] = struct{}{}
	}
	stat.AvgAppointment = ratio(apptSum, stat.TotalOpen)
	stat.UniqueAppointments = len(distinct)
	stat.AppointmentNumbers = make([]int, 0, len(distinct))
	for n := range distinct {
		stat.AppointmentNumbers = append(stat.AppointmentNumbers, n)
	}
	slices.Sort(stat.AppointmentNumbers)

	var d Diff

	// Closures and follow-ups need a previous batch.
	if len(previous) > 0 {
		for id, prev := range previous {
			cur, ok := latest[id]
			if !ok {
				if pc.SameDay(prev.OpenedAt, batch.PushedAt) {
					stat.SameDayClosures++
				}
				if prev.Appointment == 1 {
					stat.FirstTimeFixes++
				}
				stat.ClosedAppointmentSum += prev.Appointment
				d.Closed = append(d.Closed, schema.LedgerEntry{
					ServiceCallID:   id,
					ClosedAt:        batch.PushedAt,
					Category:        category,
					OpenedAt:        prev.OpenedAt,
					EquipmentID:     prev.EquipmentID,
					VendorReference: prev.VendorReference,
					Appointment:     prev.Appointment,
				})
				continue
			}
			if cur.Appointment > prev.Appointment && cur.Appointment > 1 {
				stat.FollowUps++
			}
		}
		slices.SortFunc(d.Closed, func(a, b schema.LedgerEntry) int {
			return strings.Compare(a.ServiceCallID, b.ServiceCallID)
		})
	}
	stat.ClosedSinceLast = len(d.Closed)
	stat.SameDayCloseRate = ratio(stat.SameDayClosures, stat.ClosedSinceLast)
	stat.FirstTimeFixRate = ratio(stat.FirstTimeFixes, stat.ClosedSinceLast)
	stat.AvgApptsPerCompleted = ratio(stat.ClosedAppointmentSum, stat.ClosedSinceLast)
	stat.RepeatDispatchRate = ratio(stat.FollowUps, stat.UniqueAppointments)

	for id := range latest {
		if _, ok := previous[id]; !ok {
			d.NewIDs = append(d.NewIDs, id)
		}
	}
	slices.Sort(d.NewIDs)
	stat.NewCalls = len(d.NewIDs)

	d.Stat = stat
	return d
}

// ApplyReopened sets the reopen counts on a stat.
func ApplyReopened(stat *schema.BatchStat, reopened int) {
	stat.ReopenedCalls = reopened
	stat.ReopenRate14d = ratio(reopened, stat.NewCalls)
}

// ReopenCutoff returns the earliest closure time that counts as a reopen for a batch at t.
func ReopenCutoff(pc *clock.PeriodClock, t time.Time) time.Time {
	return pc.ToBusiness(t).AddDate(0, 0, -reopenWindowDays)
}

// DiffEngine scores batches and records the closures it detects.
type DiffEngine struct {
	clock  *clock.PeriodClock
	ledger contract.Ledger
	stats  contract.StatStore
	logger *zap.Logger
}

// NewDiffEngine creates a DiffEngine.
func NewDiffEngine(pc *clock.PeriodClock, ledger contract.Ledger, stats contract.StatStore, logger *zap.Logger) *DiffEngine {
	return &DiffEngine{clock: pc, ledger: ledger, stats: stats, logger: logger}
}

// Score diffs a category's batch against its previous batch, records closures
// in the ledger and appends the resulting stat. Inputs must already be
// deduplicated and filtered to the category; the engine does not guard against
// scoring the same batch twice.
func (e *DiffEngine) Score(ctx context.Context, category schema.Category, latest, previous schema.DedupedBatch, batch schema.BatchRef) (schema.BatchStat, error) {
	log := e.logger.With(zap.String("category", string(category)), zap.Int64("batch_id", batch.BatchID))
	d := ComputeDiff(e.clock, category, latest, previous, batch)

	if len(d.Closed) > 0 {
		inserted, err := e.ledger.RecordClosures(ctx, d.Closed)
		if err != nil {
			return schema.BatchStat{}, fmt.Errorf("failed to record closures for %s: %w", category, err)
		}
		log.Debug("recorded closures", zap.Int("closed", len(d.Closed)), zap.Int("new_entries", inserted))
	}

	reopened := 0
	if len(d.NewIDs) > 0 {
		var err error
		reopened, err = e.ledger.CountReopened(ctx, category, d.NewIDs, ReopenCutoff(e.clock, batch.PushedAt))
		if err != nil {
			return schema.BatchStat{}, fmt.Errorf("failed to count reopened calls for %s: %w", category, err)
		}
	}
	ApplyReopened(&d.Stat, reopened)

	id, err := e.stats.InsertStat(ctx, d.Stat)
	if err != nil {
		return schema.BatchStat{}, fmt.Errorf("failed to insert batch stat for %s: %w", category, err)
	}
	d.Stat.ID = id

	if len(previous) == 0 {
		log.Info("first batch for category, no comparison data", zap.Int("open", d.Stat.TotalOpen))
	}
	log.Info("scored batch",
		zap.Int("open", d.Stat.TotalOpen),
		zap.Int("closed", d.Stat.ClosedSinceLast),
		zap.Int("new", d.Stat.NewCalls),
		zap.Int("reopened", d.Stat.ReopenedCalls),
		zap.Int("follow_ups", d.Stat.FollowUps),
		zap.Float64("same_day_rate", d.Stat.SameDayCloseRate),
		zap.Float64("first_time_fix_rate", d.Stat.FirstTimeFixRate),
	)
	return d.Stat, nil
}
