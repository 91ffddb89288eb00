package agg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/callstat/schema"
)

var errNoLoader = errors.New("raw daily source needs a snapshot loader")

// dailyFromRaw derives a day window's metrics from the snapshot source and the
// ledger instead of batch aggregates. It reports false when the window has no batches.
func (a *Aggregator) dailyFromRaw(ctx context.Context, category schema.Category, start, end time.Time) (schema.PeriodMetrics, int, bool, error) {
	var m schema.PeriodMetrics
	if a.load == nil {
		return m, 0, false, errNoLoader
	}
	batches, err := a.stores.Source.BatchesBetween(ctx, start, end)
	if err != nil {
		return m, 0, false, fmt.Errorf("failed to list batches: %w", err)
	}
	if len(batches) == 0 {
		return m, 0, false, nil
	}
	closures, err := a.stores.Ledger.ClosuresBetween(ctx, category, start, end)
	if err != nil {
		return m, 0, false, fmt.Errorf("failed to read closures: %w", err)
	}

	// The batch before the window is the baseline for follow-ups and new calls.
	var previous schema.DedupedBatch
	baseline, ok, err := a.stores.Source.BatchBefore(ctx, start)
	if err != nil {
		return m, 0, false, fmt.Errorf("failed to find baseline batch: %w", err)
	}
	if ok {
		if previous, err = a.load(ctx, category, baseline.PushedAt); err != nil {
			return m, 0, false, fmt.Errorf("failed to load baseline batch: %w", err)
		}
	}

	lastSeen := make(map[string]int)
	remember := func(b schema.DedupedBatch) {
		for id, r := range b {
			lastSeen[id] = r.Appointment
		}
	}
	remember(previous)

	appts := make([]int, len(closures))
	next := 0
	// resolve fills in closure appointment numbers from the last batch before the closure.
	resolve := func(before time.Time) {
		for ; next < len(closures) && closures[next].ClosedAt.Before(before); next++ {
			appts[next] = closureAppointment(closures[next], lastSeen)
		}
	}

	for _, ref := range batches {
		cur, err := a.load(ctx, category, ref.PushedAt)
		if err != nil {
			return m, 0, false, fmt.Errorf("failed to load batch at %s: %w", ref.PushedAt, err)
		}
		resolve(ref.PushedAt)
		if previous != nil {
			for id, r := range cur {
				p, seen := previous[id]
				if !seen {
					m.NewCalls++
					continue
				}
				if r.Appointment > p.Appointment && r.Appointment > 1 {
					m.FollowUps++
				}
			}
		}
		remember(cur)
		previous = cur
	}
	resolve(end.Add(time.Nanosecond))

	// End-of-window state comes from the last batch.
	for _, r := range previous {
		m.TotalOpen++
		m.AvgAppointment += float64(r.Appointment)
		if r.Appointment >= 2 {
			m.MultiAppt++
		}
		if r.Appointment == 1 {
			m.NotServicedYet++
		}
	}
	if m.TotalOpen > 0 {
		m.AvgAppointment /= float64(m.TotalOpen)
	}

	for i, c := range closures {
		m.ClosedCalls++
		if a.clock.SameDay(c.OpenedAt, c.ClosedAt) {
			m.SameDayClosures++
		}
		if appts[i] == 1 {
			m.FirstTimeFixes++
		}
		m.ClosedAppointmentSum += appts[i]
	}
	m.FirstTimeFixRate = ratio(m.FirstTimeFixes, m.ClosedCalls)
	m.AvgApptsPerCompleted = ratio(m.ClosedAppointmentSum, m.ClosedCalls)

	// Reopen matches depend on the ledger as it stood when each batch was scored.
	stats, err := a.stores.Stats.StatsBetween(ctx, category, start, end)
	if err != nil {
		return m, 0, false, fmt.Errorf("failed to read stats: %w", err)
	}
	for _, s := range stats {
		m.ReopenedCalls += s.ReopenedCalls
	}
	m.ReopenRate = ratio(m.ReopenedCalls, m.NewCalls)
	return m, len(batches), true, nil
}

// closureAppointment prefers the ledger's own appointment number and defaults to 1.
func closureAppointment(c schema.LedgerEntry, lastSeen map[string]int) int {
	if c.Appointment > 0 {
		return c.Appointment
	}
	if n, ok := lastSeen[c.ServiceCallID]; ok && n > 0 {
		return n
	}
	return 1
}
