package cmd

import (
	"fmt"

	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/internal/iostore"
	"github.com/huangsam/callstat/internal/outwriter"
	"github.com/huangsam/callstat/schema"
	"github.com/spf13/cobra"
)

// reportCmd groups the read-only reports.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show stored batch statistics and period summaries",
	Long: `Show the most recent rows of the statistics store, newest first.

Subcommands:
  stats   - Per-batch statistics
  batch   - Hourly batch aggregates
  daily   - Daily summaries
  weekly  - Weekly summaries
  monthly - Monthly summaries

Examples:
  # Last 24 batch stats of both categories
  callstat report stats

  # Last 4 weekly summaries for recyclers as CSV
  callstat report weekly --category recyclers --limit 4 --output csv`,
}

// reportStatsCmd prints per-batch statistics.
var reportStatsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show per-batch statistics",
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		store := iostore.Manager.GetStatStore()
		var all []schema.BatchStat
		for _, category := range reportCategories() {
			stats, err := store.RecentStats(rootCtx, category, cfg.ResultLimit)
			if err != nil {
				contract.LogFatal("Cannot read batch stats", err)
			}
			all = append(all, stats...)
		}
		if err := outwriter.NewOutWriter().WriteStats(all, cfg); err != nil {
			contract.LogFatal("Cannot write batch stats", err)
		}
	},
}

// newReportLevelCmd builds the report subcommand of one rollup level.
func newReportLevelCmd(level schema.Level) *cobra.Command {
	return &cobra.Command{
		Use:     string(level),
		Short:   fmt.Sprintf("Show %s period summaries", level),
		PreRunE: sharedSetupWrapper,
		Run: func(_ *cobra.Command, _ []string) {
			store := iostore.Manager.GetRollupStore()
			var all []schema.PeriodAggregate
			for _, category := range reportCategories() {
				rows, err := store.RecentAggregates(rootCtx, level, category, cfg.ResultLimit)
				if err != nil {
					contract.LogFatal(fmt.Sprintf("Cannot read %s summaries", level), err)
				}
				all = append(all, rows...)
			}
			if err := outwriter.NewOutWriter().WriteRollups(all, cfg); err != nil {
				contract.LogFatal(fmt.Sprintf("Cannot write %s summaries", level), err)
			}
		},
	}
}

func reportCategories() []schema.Category {
	if cfg.Category != "" {
		return []schema.Category{cfg.Category}
	}
	return schema.Categories
}
