package agg

import "github.com/huangsam/callstat/schema"

// RollingTotals are the day-to-date counters behind the rolling fields.
type RollingTotals struct {
	SameDayClosures    int
	ClosedCalls        int
	FirstTimeFixes     int
	FollowUps          int
	UniqueAppointments int // Distinct appointment numbers seen in any batch
}

// SumRolling totals batch stats of one business day up to a period end.
// Unique appointments count distinct appointment numbers across all batches,
// not distinct calls.
func SumRolling(stats []schema.BatchStat) RollingTotals {
	var r RollingTotals
	seen := make(map[int]struct{})
	for _, s := range stats {
		r.SameDayClosures += s.SameDayClosures
		r.ClosedCalls += s.ClosedSinceLast
		r.FirstTimeFixes += s.FirstTimeFixes
		r.FollowUps += s.FollowUps
		for _, n := range s.AppointmentNumbers {
			seen[n] = struct{}{}
		}
	}
	r.UniqueAppointments = len(seen)
	return r
}

// Apply writes the totals and their rates into m.
func (r RollingTotals) Apply(m *schema.PeriodMetrics) {
	m.RollingSameDayClosures = r.SameDayClosures
	m.RollingClosedCalls = r.ClosedCalls
	m.SameDayCloseRate = ratio(r.SameDayClosures, r.ClosedCalls)
	m.RollingFirstTimeFixes = r.FirstTimeFixes
	m.FirstTimeFixRateRunning = ratio(r.FirstTimeFixes, r.ClosedCalls)
	m.RollingFollowUps = r.FollowUps
	m.RollingUniqueAppointments = r.UniqueAppointments
	m.RepeatDispatchRate = ratio(r.FollowUps, r.UniqueAppointments)
}
