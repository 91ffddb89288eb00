// Package outwriter renders statistics and rollups as tables, JSON or CSV.
package outwriter

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/schema"
)

// OutWriter is the output surface used by the commands.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteStats prints batch statistics.
func (ow *OutWriter) WriteStats(stats []schema.BatchStat, cfg *contract.Config) error {
	return WriteBatchStats(stats, cfg)
}

// WriteRollups prints period aggregates.
func (ow *OutWriter) WriteRollups(rows []schema.PeriodAggregate, cfg *contract.Config) error {
	return WriteRollups(rows, cfg)
}

// WriteCycle prints the outcome of one processing cycle.
func (ow *OutWriter) WriteCycle(res schema.CycleResult, cfg *contract.Config) error {
	if cfg.Output == schema.JSONOut {
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, res)
		}, "Wrote JSON cycle result")
	}
	return writeCycleSummary(os.Stdout, res, newFormatters(cfg))
}

func writeCycleSummary(w io.Writer, res schema.CycleResult, f formatters) error {
	if res.Batch.PushedAt.IsZero() {
		_, err := fmt.Fprintf(w, "Cycle %s: no batches in source\n", res.CycleID)
		return err
	}
	if _, err := fmt.Fprintf(w, "Cycle %s: batch %d pushed %s\n", res.CycleID, res.Batch.BatchID, f.clock(res.Batch.PushedAt)); err != nil {
		return err
	}
	if !res.Processed {
		if _, err := fmt.Fprintln(w, "  already scored"); err != nil {
			return err
		}
	}
	for _, c := range res.Scored {
		if _, err := fmt.Fprintf(w, "  %s: %d closed\n", c.Title(), res.Closures[c]); err != nil {
			return err
		}
	}
	for _, l := range slices.Sorted(maps.Keys(res.Committed)) {
		if res.Committed[l] == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "  %s periods committed: %d\n", l, res.Committed[l]); err != nil {
			return err
		}
	}
	return nil
}
