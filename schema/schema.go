// Package schema has models and constants for all parts of callstat.
package schema

import "time"

// SnapshotRecord is one raw row of a pushed batch of open service calls.
type SnapshotRecord struct {
	ID              int64     `json:"id"`              // Insertion sequence, unique per row
	ServiceCallID   string    `json:"service_call_id"` // Stable entity ID
	Status          string    `json:"status"`          // Appointment status code
	Appointment     int       `json:"appointment"`     // Visit sequence number, >= 1
	OpenedAt        time.Time `json:"opened_at"`       // Business-local wall clock
	EquipmentID     string    `json:"equipment_id"`
	BatchID         int64     `json:"batch_id"`
	PushedAt        time.Time `json:"pushed_at"` // Batch timestamp, business-local wall clock
	VendorReference string    `json:"vendor_reference"`
	Description     string    `json:"description"`
	PartNote        string    `json:"part_note"`
}

// DedupedBatch maps service call ID to the canonical record of one batch.
type DedupedBatch map[string]SnapshotRecord

// BatchRef identifies a pushed batch.
type BatchRef struct {
	PushedAt time.Time `json:"pushed_at"`
	BatchID  int64     `json:"batch_id"`
}

// Unreliable reports whether the upstream batch ID cannot be used to detect reprocessing.
func (r BatchRef) Unreliable() bool {
	return r.BatchID <= 0
}

// BatchStat is the statistics row computed for one (category, batch).
type BatchStat struct {
	ID                   int64          `json:"id"`
	Category             Category       `json:"category"`
	BatchID              int64          `json:"batch_id"`
	BatchTime            time.Time      `json:"batch_time"`
	TotalOpen            int            `json:"total_open"`
	ClosedSinceLast      int            `json:"closed_since_last"`
	SameDayClosures      int            `json:"same_day_closures"`
	MultiAppt            int            `json:"multi_appt"`
	NotServicedYet       int            `json:"not_serviced_yet"`
	AvgAppointment       float64        `json:"avg_appointment"`
	StatusSummary        map[string]int `json:"status_summary"`
	SameDayCloseRate     float64        `json:"same_day_close_rate"`
	AvgApptsPerCompleted float64        `json:"avg_appts_per_completed"`
	FirstTimeFixes       int            `json:"first_time_fixes"`
	FirstTimeFixRate     float64        `json:"first_time_fix_rate"`
	ClosedAppointmentSum int            `json:"closed_appointment_sum"`
	NewCalls             int            `json:"new_calls"`
	ReopenedCalls        int            `json:"reopened_calls"`
	ReopenRate14d        float64        `json:"reopen_rate_14d"`
	FollowUps            int            `json:"follow_ups"`
	UniqueAppointments   int            `json:"unique_appointments"`
	AppointmentNumbers   []int          `json:"appointment_numbers"`
	RepeatDispatchRate   float64        `json:"repeat_dispatch_rate"`
	CreatedAt            time.Time      `json:"created_at"`
}

// LedgerEntry records one detected closure, keyed by (ServiceCallID, ClosedAt).
type LedgerEntry struct {
	ServiceCallID   string    `json:"service_call_id"`
	ClosedAt        time.Time `json:"closed_at"` // Batch time the closure was detected at
	Category        Category  `json:"category"`
	OpenedAt        time.Time `json:"opened_at"`
	EquipmentID     string    `json:"equipment_id"`
	VendorReference string    `json:"vendor_reference"`
	Appointment     int       `json:"appointment"` // Appointment number at closure
}

// PeriodMetrics holds the numeric fields shared by every rollup level.
type PeriodMetrics struct {
	// End-of-period state.
	TotalOpen      int     `json:"total_open"`
	AvgAppointment float64 `json:"avg_appointment"`
	MultiAppt      int     `json:"multi_appt"`
	NotServicedYet int     `json:"not_serviced_yet"`

	// Totals over the period.
	ClosedCalls          int `json:"closed_calls"`
	SameDayClosures      int `json:"same_day_closures"`
	FirstTimeFixes       int `json:"first_time_fixes"`
	ClosedAppointmentSum int `json:"closed_appointment_sum"`
	FollowUps            int `json:"follow_ups"`
	NewCalls             int `json:"new_calls"`
	ReopenedCalls        int `json:"reopened_calls"`

	// Closed-call weighted averages.
	FirstTimeFixRate     float64 `json:"first_time_fix_rate"`
	AvgApptsPerCompleted float64 `json:"avg_appts_per_completed"`

	// Ratio of the reopened and new call totals.
	ReopenRate float64 `json:"reopen_rate"`

	// Cumulative since the start of the business day the period ends in.
	RollingSameDayClosures    int     `json:"rolling_same_day_closures"`
	RollingClosedCalls        int     `json:"rolling_closed_calls"`
	SameDayCloseRate          float64 `json:"same_day_close_rate"`
	RollingFirstTimeFixes     int     `json:"rolling_first_time_fixes"`
	FirstTimeFixRateRunning   float64 `json:"first_time_fix_rate_running"`
	RollingFollowUps          int     `json:"rolling_follow_ups"`
	RollingUniqueAppointments int     `json:"rolling_unique_appointments"`
	RepeatDispatchRate        float64 `json:"repeat_dispatch_rate"`
}

// PeriodAggregate is one committed rollup row at any level.
type PeriodAggregate struct {
	ID           int64     `json:"id"`
	Level        Level     `json:"level"`
	Category     Category  `json:"category"`
	Key          string    `json:"period_key"`
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
	BusinessDate string    `json:"business_date"` // YYYY-MM-DD of the period's business day or last day
	Year         int       `json:"year"`
	Index        int       `json:"index"` // Hour of day, week number or month
	ChildCount   int       `json:"child_count"`
	Missing      bool      `json:"missing"`
	ComputedAt   time.Time `json:"computed_at"`
	PeriodMetrics
}

// CycleResult summarizes one orchestrator cycle.
type CycleResult struct {
	CycleID   string           `json:"cycle_id"`
	Batch     BatchRef         `json:"batch"`
	Processed bool             `json:"processed"`
	Scored    []Category       `json:"scored"`
	Closures  map[Category]int `json:"closures"`
	Committed map[Level]int    `json:"committed"`
}
