package cmd

import (
	"errors"
	"fmt"

	"github.com/huangsam/callstat/core"
	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/internal/iostore"
	"github.com/huangsam/callstat/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// trackCmd enriches the latest batch without scoring it.
var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Annotate the latest batch with shipment tracking",
	Long: `Run the tracking enricher over the latest batch only.

For every service call with a vendor call number, callstat looks up the
ticket, determines the tracking number and parts set, checks whether the
call's notes mention the tracking number and asks UPS or FedEx for the
shipment status. Results are written back to the snapshot source.

Carrier credentials are read from ups.* and fedex.* (or CALLSTAT_UPS_CLIENT_ID,
CALLSTAT_FEDEX_API_KEY and friends, optionally from a .env file).

Examples:
  # Enrich the latest batch
  callstat track`,
	PreRunE: sharedSetupWrapper,
	Run: func(cmd *cobra.Command, _ []string) {
		log := logger.FromContext(cmd.Context())
		defer func() { _ = log.Sync() }()

		if err := executeTrack(log); err != nil {
			contract.LogFatal("Tracking failed", err)
		}
	},
}

func executeTrack(log *zap.Logger) error {
	cfg.Tracking.Enabled = true
	enricher := newEnricher(log)

	source := iostore.Manager.GetSourceStore()
	latest, ok, err := source.LatestBatch(rootCtx)
	if err != nil {
		return fmt.Errorf("failed to read latest batch: %w", err)
	}
	if !ok {
		return errors.New("no batches in source")
	}
	records, err := source.FetchBatch(rootCtx, latest.PushedAt)
	if err != nil {
		return fmt.Errorf("failed to fetch batch %d: %w", latest.BatchID, err)
	}

	summary, err := enricher.Enrich(rootCtx, core.Records(core.Deduplicate(records)))
	fmt.Printf("Batch %d: %d records, %d updated, %d skipped, %d failed\n",
		latest.BatchID, summary.Total, summary.Updated, summary.Skipped, summary.Failed)
	return err
}
