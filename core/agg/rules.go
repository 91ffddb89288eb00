// Package agg rolls batch statistics up into hourly, daily, weekly and monthly summaries.
package agg

import "github.com/huangsam/callstat/schema"

// Rule is how a field combines child values into the period value.
type Rule int

// Combination rules.
const (
	Snapshot Rule = iota // Last child's value
	Sum                  // Total over children
	Weighted             // Average weighted by each child's closed calls
	Ratio                // Derived from two summed fields
	Rolling              // Cumulative since the start of the business day
)

// String returns the rule name.
func (r Rule) String() string {
	switch r {
	case Snapshot:
		return "snapshot"
	case Sum:
		return "sum"
	case Weighted:
		return "weighted"
	case Ratio:
		return "ratio"
	case Rolling:
		return "rolling"
	}
	return "unknown"
}

// Field binds a metric to its combination rule. Exactly one of Int or Float is set.
type Field struct {
	Name   string
	Rule   Rule
	Int    func(*schema.PeriodMetrics) *int
	Float  func(*schema.PeriodMetrics) *float64
	Derive func(*schema.PeriodMetrics) float64 // Ratio only
}

func (f Field) copy(dst, src *schema.PeriodMetrics) {
	if f.Int != nil {
		*f.Int(dst) = *f.Int(src)
		return
	}
	*f.Float(dst) = *f.Float(src)
}

// Fields is the rule table shared by every level.
// Rolling fields default to the last child; the Aggregator re-derives them from batch stats.
var Fields = []Field{
	{Name: "total_open", Rule: Snapshot, Int: func(m *schema.PeriodMetrics) *int { return &m.TotalOpen }},
	{Name: "avg_appointment", Rule: Snapshot, Float: func(m *schema.PeriodMetrics) *float64 { return &m.AvgAppointment }},
	{Name: "multi_appt", Rule: Snapshot, Int: func(m *schema.PeriodMetrics) *int { return &m.MultiAppt }},
	{Name: "not_serviced_yet", Rule: Snapshot, Int: func(m *schema.PeriodMetrics) *int { return &m.NotServicedYet }},

	{Name: "closed_calls", Rule: Sum, Int: func(m *schema.PeriodMetrics) *int { return &m.ClosedCalls }},
	{Name: "same_day_closures", Rule: Sum, Int: func(m *schema.PeriodMetrics) *int { return &m.SameDayClosures }},
	{Name: "first_time_fixes", Rule: Sum, Int: func(m *schema.PeriodMetrics) *int { return &m.FirstTimeFixes }},
	{Name: "closed_appointment_sum", Rule: Sum, Int: func(m *schema.PeriodMetrics) *int { return &m.ClosedAppointmentSum }},
	{Name: "follow_ups", Rule: Sum, Int: func(m *schema.PeriodMetrics) *int { return &m.FollowUps }},
	{Name: "new_calls", Rule: Sum, Int: func(m *schema.PeriodMetrics) *int { return &m.NewCalls }},
	{Name: "reopened_calls", Rule: Sum, Int: func(m *schema.PeriodMetrics) *int { return &m.ReopenedCalls }},

	{Name: "first_time_fix_rate", Rule: Weighted, Float: func(m *schema.PeriodMetrics) *float64 { return &m.FirstTimeFixRate }},
	{Name: "avg_appts_per_completed", Rule: Weighted, Float: func(m *schema.PeriodMetrics) *float64 { return &m.AvgApptsPerCompleted }},

	{
		Name:   "reopen_rate",
		Rule:   Ratio,
		Float:  func(m *schema.PeriodMetrics) *float64 { return &m.ReopenRate },
		Derive: func(m *schema.PeriodMetrics) float64 { return ratio(m.ReopenedCalls, m.NewCalls) },
	},

	{Name: "rolling_same_day_closures", Rule: Rolling, Int: func(m *schema.PeriodMetrics) *int { return &m.RollingSameDayClosures }},
	{Name: "rolling_closed_calls", Rule: Rolling, Int: func(m *schema.PeriodMetrics) *int { return &m.RollingClosedCalls }},
	{Name: "same_day_close_rate", Rule: Rolling, Float: func(m *schema.PeriodMetrics) *float64 { return &m.SameDayCloseRate }},
	{Name: "rolling_first_time_fixes", Rule: Rolling, Int: func(m *schema.PeriodMetrics) *int { return &m.RollingFirstTimeFixes }},
	{Name: "first_time_fix_rate_running", Rule: Rolling, Float: func(m *schema.PeriodMetrics) *float64 { return &m.FirstTimeFixRateRunning }},
	{Name: "rolling_follow_ups", Rule: Rolling, Int: func(m *schema.PeriodMetrics) *int { return &m.RollingFollowUps }},
	{Name: "rolling_unique_appointments", Rule: Rolling, Int: func(m *schema.PeriodMetrics) *int { return &m.RollingUniqueAppointments }},
	{Name: "repeat_dispatch_rate", Rule: Rolling, Float: func(m *schema.PeriodMetrics) *float64 { return &m.RepeatDispatchRate }},
}

// ratio divides with a zero denominator yielding zero.
func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// FromStat lifts a batch stat into the metrics of a one-batch period.
func FromStat(s schema.BatchStat) schema.PeriodMetrics {
	return schema.PeriodMetrics{
		TotalOpen:                 s.TotalOpen,
		AvgAppointment:            s.AvgAppointment,
		MultiAppt:                 s.MultiAppt,
		NotServicedYet:            s.NotServicedYet,
		ClosedCalls:               s.ClosedSinceLast,
		SameDayClosures:           s.SameDayClosures,
		FirstTimeFixes:            s.FirstTimeFixes,
		ClosedAppointmentSum:      s.ClosedAppointmentSum,
		FollowUps:                 s.FollowUps,
		NewCalls:                  s.NewCalls,
		ReopenedCalls:             s.ReopenedCalls,
		FirstTimeFixRate:          s.FirstTimeFixRate,
		AvgApptsPerCompleted:      s.AvgApptsPerCompleted,
		ReopenRate:                s.ReopenRate14d,
		RollingSameDayClosures:    s.SameDayClosures,
		RollingClosedCalls:        s.ClosedSinceLast,
		SameDayCloseRate:          s.SameDayCloseRate,
		RollingFirstTimeFixes:     s.FirstTimeFixes,
		FirstTimeFixRateRunning:   s.FirstTimeFixRate,
		RollingFollowUps:          s.FollowUps,
		RollingUniqueAppointments: s.UniqueAppointments,
		RepeatDispatchRate:        s.RepeatDispatchRate,
	}
}

// Metrics extracts the metrics of committed aggregates.
func Metrics(aggs []schema.PeriodAggregate) []schema.PeriodMetrics {
	out := make([]schema.PeriodMetrics, len(aggs))
	for i, a := range aggs {
		out[i] = a.PeriodMetrics
	}
	return out
}

// Aggregate combines chronologically ordered child metrics into one period of the level.
// It reports false when nothing should be committed. Only the batch level emits a
// period without children: it is flagged missing and carries the previous period's
// snapshot fields, unless this is the first period and there is nothing to carry.
func Aggregate(level schema.Level, children []schema.PeriodMetrics, previous *schema.PeriodAggregate, isFirst bool) (schema.PeriodAggregate, bool) {
	out := schema.PeriodAggregate{Level: level, ChildCount: len(children)}

	if len(children) == 0 {
		if level != schema.LevelBatch || (previous == nil && isFirst) {
			return out, false
		}
		out.Missing = true
		if previous != nil {
			for _, f := range Fields {
				if f.Rule == Snapshot {
					f.copy(&out.PeriodMetrics, &previous.PeriodMetrics)
				}
			}
		}
		return out, true
	}

	m := &out.PeriodMetrics
	last := children[len(children)-1]
	weight := 0
	for _, c := range children {
		weight += c.ClosedCalls
	}

	for _, f := range Fields {
		switch f.Rule {
		case Snapshot, Rolling:
			f.copy(m, &last)
		case Sum:
			total := 0
			for i := range children {
				total += *f.Int(&children[i])
			}
			*f.Int(m) = total
		case Weighted:
			if weight == 0 {
				continue
			}
			var acc float64
			for i := range children {
				acc += *f.Float(&children[i]) * float64(children[i].ClosedCalls)
			}
			*f.Float(m) = acc / float64(weight)
		}
	}
	// Ratios read the sums above.
	for _, f := range Fields {
		if f.Rule == Ratio {
			*f.Float(m) = f.Derive(m)
		}
	}
	return out, true
}
