package cmd

import (
	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/internal/logger"
	"github.com/huangsam/callstat/internal/outwriter"
	"github.com/spf13/cobra"
)

// processCmd runs a single cycle.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run one processing cycle against the latest batch",
	Long: `Run a single processing cycle and print what it did.

The latest batch is scored only for categories that have not seen it yet,
so running process repeatedly is safe. Rollups are always brought up to date.

Examples:
  # Process the latest batch
  callstat process

  # Process and print the cycle result as JSON
  callstat process --output json`,
	PreRunE: sharedSetupWrapper,
	Run: func(cmd *cobra.Command, _ []string) {
		log := logger.FromContext(cmd.Context())
		defer func() { _ = log.Sync() }()

		o, err := newOrchestrator(log)
		if err != nil {
			contract.LogFatal("Cannot build orchestrator", err)
		}
		res, err := o.ProcessOnce(rootCtx)
		if err != nil {
			contract.LogFatal("Cycle failed", err)
		}
		// Let background enrichment finish before exiting
		o.Wait()
		if err := outwriter.NewOutWriter().WriteCycle(res, cfg); err != nil {
			contract.LogFatal("Cannot write cycle result", err)
		}
	},
}
