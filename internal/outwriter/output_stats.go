package outwriter

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteBatchStats outputs batch statistics in the configured format.
func WriteBatchStats(stats []schema.BatchStat, cfg *contract.Config) error {
	f := newFormatters(cfg)
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, stats)
		}, "Wrote JSON batch stats")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeStatsCSV(w, stats, f)
		}, "Wrote CSV batch stats")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeStatsTable(w, stats, f, cfg.UseColors, wideTables())
		}, "Wrote batch stats table")
	}
}

var statsCSVHeader = []string{
	"category", "batch_id", "batch_time", "total_open", "closed_since_last", "same_day_closures",
	"same_day_close_rate", "first_time_fixes", "first_time_fix_rate", "avg_appointment",
	"avg_appts_per_completed", "multi_appt", "not_serviced_yet", "new_calls", "reopened_calls",
	"reopen_rate_14d", "follow_ups", "unique_appointments", "repeat_dispatch_rate", "status_summary",
}

func writeStatsCSV(w io.Writer, stats []schema.BatchStat, f formatters) error {
	return writeCSV(w, statsCSVHeader, stats, func(s schema.BatchStat) []string {
		return []string{
			string(s.Category), f.int(int(s.BatchID)), f.instant(s.BatchTime), f.int(s.TotalOpen),
			f.int(s.ClosedSinceLast), f.int(s.SameDayClosures), f.float(s.SameDayCloseRate),
			f.int(s.FirstTimeFixes), f.float(s.FirstTimeFixRate), f.float(s.AvgAppointment),
			f.float(s.AvgApptsPerCompleted), f.int(s.MultiAppt), f.int(s.NotServicedYet),
			f.int(s.NewCalls), f.int(s.ReopenedCalls), f.float(s.ReopenRate14d), f.int(s.FollowUps),
			f.int(s.UniqueAppointments), f.float(s.RepeatDispatchRate), formatStatusSummary(s.StatusSummary),
		}
	})
}

// formatStatusSummary renders status counts as "A=1|B=2", sorted by status.
func formatStatusSummary(summary map[string]int) string {
	keys := slices.Sorted(maps.Keys(summary))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, summary[k]))
	}
	return strings.Join(parts, "|")
}

func writeStatsTable(w io.Writer, stats []schema.BatchStat, f formatters, useColors, wide bool) error {
	table := tablewriter.NewWriter(w)
	headers := []string{"Category", "Batch Time", "Open", "Closed", "Same Day", "FTF Rate", "Label", "New", "Reopen 14d"}
	if wide {
		headers = append(headers, "Avg Appt", "Multi", "Not Serviced", "Follow Ups", "Repeat Rate")
	}
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(stats))
	for _, s := range stats {
		label := contract.GetPlainLabel(s.FirstTimeFixRate, s.ClosedSinceLast)
		if useColors {
			label = contract.GetColorLabel(s.FirstTimeFixRate, s.ClosedSinceLast)
		}
		row := []string{
			s.Category.Title(), f.clock(s.BatchTime), f.int(s.TotalOpen), f.int(s.ClosedSinceLast),
			f.percent(s.SameDayCloseRate), f.percent(s.FirstTimeFixRate), label,
			f.int(s.NewCalls), f.percent(s.ReopenRate14d),
		}
		if wide {
			row = append(row, f.float(s.AvgAppointment), f.int(s.MultiAppt), f.int(s.NotServicedYet),
				f.int(s.FollowUps), f.percent(s.RepeatDispatchRate))
		}
		data = append(data, row)
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
