// Package parquet exports batch statistics and rollup periods to Parquet files
// using github.com/parquet-go/parquet-go.
package parquet

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/huangsam/callstat/schema"
	"github.com/parquet-go/parquet-go"
)

// BatchStatRow is one batch statistics row.
type BatchStatRow struct {
	Category             string    `parquet:"category,snappy,dict"`
	BatchID              int64     `parquet:"batch_id,snappy"`
	BatchTime            time.Time `parquet:"batch_time,snappy"`
	TotalOpen            int32     `parquet:"total_open,snappy"`
	ClosedSinceLast      int32     `parquet:"closed_since_last,snappy"`
	SameDayClosures      int32     `parquet:"same_day_closures,snappy"`
	SameDayCloseRate     float64   `parquet:"same_day_close_rate,snappy"`
	FirstTimeFixes       int32     `parquet:"first_time_fixes,snappy"`
	FirstTimeFixRate     float64   `parquet:"first_time_fix_rate,snappy"`
	AvgAppointment       float64   `parquet:"avg_appointment,snappy"`
	AvgApptsPerCompleted float64   `parquet:"avg_appts_per_completed,snappy"`
	MultiAppt            int32     `parquet:"multi_appt,snappy"`
	NotServicedYet       int32     `parquet:"not_serviced_yet,snappy"`
	NewCalls             int32     `parquet:"new_calls,snappy"`
	ReopenedCalls        int32     `parquet:"reopened_calls,snappy"`
	ReopenRate14d        float64   `parquet:"reopen_rate_14d,snappy"`
	FollowUps            int32     `parquet:"follow_ups,snappy"`
	UniqueAppointments   int32     `parquet:"unique_appointments,snappy"`
	RepeatDispatchRate   float64   `parquet:"repeat_dispatch_rate,snappy"`

	// StatusSummary is the JSON-encoded count per status code (nullable)
	StatusSummary *string `parquet:"status_summary,optional,snappy"`
}

// PeriodRow is one rollup period at any level.
type PeriodRow struct {
	Level        string    `parquet:"level,snappy,dict"`
	Category     string    `parquet:"category,snappy,dict"`
	PeriodKey    string    `parquet:"period_key,snappy"`
	PeriodStart  time.Time `parquet:"period_start,snappy"`
	PeriodEnd    time.Time `parquet:"period_end,snappy"`
	BusinessDate string    `parquet:"business_date,snappy"`
	Year         int32     `parquet:"year,snappy"`
	Index        int32     `parquet:"index,snappy"`
	ChildCount   int32     `parquet:"child_count,snappy"`
	Missing      bool      `parquet:"missing"`

	TotalOpen                 int32   `parquet:"total_open,snappy"`
	AvgAppointment            float64 `parquet:"avg_appointment,snappy"`
	ClosedCalls               int32   `parquet:"closed_calls,snappy"`
	SameDayClosures           int32   `parquet:"same_day_closures,snappy"`
	FirstTimeFixes            int32   `parquet:"first_time_fixes,snappy"`
	FirstTimeFixRate          float64 `parquet:"first_time_fix_rate,snappy"`
	NewCalls                  int32   `parquet:"new_calls,snappy"`
	ReopenedCalls             int32   `parquet:"reopened_calls,snappy"`
	ReopenRate                float64 `parquet:"reopen_rate,snappy"`
	SameDayCloseRate          float64 `parquet:"same_day_close_rate,snappy"`
	FirstTimeFixRateRunning   float64 `parquet:"first_time_fix_rate_running,snappy"`
	RollingUniqueAppointments int32   `parquet:"rolling_unique_appointments,snappy"`
	RepeatDispatchRate        float64 `parquet:"repeat_dispatch_rate,snappy"`

	// ComputedAt is when the period was committed (nullable)
	ComputedAt *time.Time `parquet:"computed_at,optional,snappy"`
}

// writeRows writes rows to a new Parquet file, inferring the schema from T.
func writeRows[T any](rows []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return file.Close()
}

// WriteBatchStatsParquet writes batch statistics to a Parquet file.
func WriteBatchStatsParquet(stats []schema.BatchStat, outputPath string) error {
	return writeRows(ConvertBatchStats(stats), outputPath)
}

// WritePeriodsParquet writes rollup periods to a Parquet file.
func WritePeriodsParquet(rows []schema.PeriodAggregate, outputPath string) error {
	return writeRows(ConvertPeriods(rows), outputPath)
}

// ConvertBatchStats converts batch statistics to Parquet rows.
func ConvertBatchStats(stats []schema.BatchStat) []BatchStatRow {
	result := make([]BatchStatRow, len(stats))
	for i, s := range stats {
		result[i] = BatchStatRow{
			Category:             string(s.Category),
			BatchID:              s.BatchID,
			BatchTime:            s.BatchTime.UTC(),
			TotalOpen:            int32(s.TotalOpen),
			ClosedSinceLast:      int32(s.ClosedSinceLast),
			SameDayClosures:      int32(s.SameDayClosures),
			SameDayCloseRate:     s.SameDayCloseRate,
			FirstTimeFixes:       int32(s.FirstTimeFixes),
			FirstTimeFixRate:     s.FirstTimeFixRate,
			AvgAppointment:       s.AvgAppointment,
			AvgApptsPerCompleted: s.AvgApptsPerCompleted,
			MultiAppt:            int32(s.MultiAppt),
			NotServicedYet:       int32(s.NotServicedYet),
			NewCalls:             int32(s.NewCalls),
			ReopenedCalls:        int32(s.ReopenedCalls),
			ReopenRate14d:        s.ReopenRate14d,
			FollowUps:            int32(s.FollowUps),
			UniqueAppointments:   int32(s.UniqueAppointments),
			RepeatDispatchRate:   s.RepeatDispatchRate,
		}
		if len(s.StatusSummary) > 0 {
			if b, err := json.Marshal(s.StatusSummary); err == nil {
				summary := string(b)
				result[i].StatusSummary = &summary
			}
		}
	}
	return result
}

// ConvertPeriods converts rollup periods to Parquet rows.
func ConvertPeriods(rows []schema.PeriodAggregate) []PeriodRow {
	result := make([]PeriodRow, len(rows))
	for i, p := range rows {
		result[i] = PeriodRow{
			Level:                     string(p.Level),
			Category:                  string(p.Category),
			PeriodKey:                 p.Key,
			PeriodStart:               p.PeriodStart.UTC(),
			PeriodEnd:                 p.PeriodEnd.UTC(),
			BusinessDate:              p.BusinessDate,
			Year:                      int32(p.Year),
			Index:                     int32(p.Index),
			ChildCount:                int32(p.ChildCount),
			Missing:                   p.Missing,
			TotalOpen:                 int32(p.TotalOpen),
			AvgAppointment:            p.AvgAppointment,
			ClosedCalls:               int32(p.ClosedCalls),
			SameDayClosures:           int32(p.SameDayClosures),
			FirstTimeFixes:            int32(p.FirstTimeFixes),
			FirstTimeFixRate:          p.FirstTimeFixRate,
			NewCalls:                  int32(p.NewCalls),
			ReopenedCalls:             int32(p.ReopenedCalls),
			ReopenRate:                p.ReopenRate,
			SameDayCloseRate:          p.SameDayCloseRate,
			FirstTimeFixRateRunning:   p.FirstTimeFixRateRunning,
			RollingUniqueAppointments: int32(p.RollingUniqueAppointments),
			RepeatDispatchRate:        p.RepeatDispatchRate,
		}
		if !p.ComputedAt.IsZero() {
			computed := p.ComputedAt.UTC()
			result[i].ComputedAt = &computed
		}
	}
	return result
}
