package outwriter

import (
	"io"
	"strconv"

	"github.com/huangsam/callstat/core/agg"
	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteRollups outputs period aggregates in the configured format.
func WriteRollups(rows []schema.PeriodAggregate, cfg *contract.Config) error {
	f := newFormatters(cfg)
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, rows)
		}, "Wrote JSON rollups")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRollupsCSV(w, rows, f)
		}, "Wrote CSV rollups")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRollupsTable(w, rows, f, cfg.UseColors, wideTables())
		}, "Wrote rollup table")
	}
}

// rollupCSVHeader lists the period columns followed by every metric field.
func rollupCSVHeader() []string {
	header := []string{"level", "category", "period_key", "period_start", "period_end", "business_date",
		"year", "index", "child_count", "missing"}
	for _, field := range agg.Fields {
		header = append(header, field.Name)
	}
	return header
}

func writeRollupsCSV(w io.Writer, rows []schema.PeriodAggregate, f formatters) error {
	return writeCSV(w, rollupCSVHeader(), rows, func(p schema.PeriodAggregate) []string {
		row := []string{
			string(p.Level), string(p.Category), p.Key, f.instant(p.PeriodStart), f.instant(p.PeriodEnd),
			p.BusinessDate, f.int(p.Year), f.int(p.Index), f.int(p.ChildCount), strconv.FormatBool(p.Missing),
		}
		m := p.PeriodMetrics
		for _, field := range agg.Fields {
			if field.Int != nil {
				row = append(row, f.int(*field.Int(&m)))
			} else {
				row = append(row, f.float(*field.Float(&m)))
			}
		}
		return row
	})
}

func writeRollupsTable(w io.Writer, rows []schema.PeriodAggregate, f formatters, useColors, wide bool) error {
	table := tablewriter.NewWriter(w)
	headers := []string{"Category", "Period", "Open", "Closed", "Same Day", "FTF Rate", "Label", "Reopen", "Children"}
	if wide {
		headers = append(headers, "Avg Appt", "Follow Ups", "Unique Appts", "Repeat Rate", "Computed")
	}
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(rows))
	for _, p := range rows {
		label := contract.GetPlainLabel(p.FirstTimeFixRate, p.ClosedCalls)
		if useColors {
			label = contract.GetColorLabel(p.FirstTimeFixRate, p.ClosedCalls)
		}
		children := f.int(p.ChildCount)
		if p.Missing {
			children = "missing"
		}
		row := []string{
			p.Category.Title(), p.Key, f.int(p.TotalOpen), f.int(p.ClosedCalls),
			f.percent(p.SameDayCloseRate), f.percent(p.FirstTimeFixRate), label,
			f.percent(p.ReopenRate), children,
		}
		if wide {
			row = append(row, f.float(p.AvgAppointment), f.int(p.FollowUps),
				f.int(p.RollingUniqueAppointments), f.percent(p.RepeatDispatchRate), f.clock(p.ComputedAt))
		}
		data = append(data, row)
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
