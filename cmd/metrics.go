package cmd

import (
	"github.com/huangsam/callstat/core/agg"
	"github.com/spf13/cobra"
)

// metricsCmd displays how every summary field is combined across periods.
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display how each summary field rolls up from batches to months",
	Long: `Show every metric of the period summaries and the rule that combines it.

Rules:
- snapshot: value of the last child period
- sum:      total over child periods
- weighted: average weighted by each child's closed calls
- ratio:    derived from two summed fields
- rolling:  cumulative since the start of the business day

No store is read - this is purely informational.

Examples:
  callstat metrics`,
	Run: func(cmd *cobra.Command, _ []string) {
		for _, field := range agg.Fields {
			cmd.Printf("%-30s %s\n", field.Name, field.Rule)
		}
		cmd.Printf("\n%d fields\n", len(agg.Fields))
	},
}
