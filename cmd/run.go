package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/internal/logger"
	"github.com/huangsam/callstat/internal/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runCmd polls the snapshot source until interrupted.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the snapshot source and keep statistics and rollups current",
	Long: `Run the processing loop until interrupted.

Every poll interval callstat:
- Reads the latest pushed batch from the snapshot source
- Scores it against the previous batch for each category
- Records closures in the closed-call ledger
- Commits completed hourly, daily, weekly and monthly periods
- Enriches the batch with shipment tracking in the background (when enabled)

A failed cycle is logged and retried on the next tick.

Examples:
  # Poll every 5 minutes with metrics on :9090
  callstat run --metrics-addr :9090

  # Poll MySQL every minute (connection strings via env variables)
  CALLSTAT_SOURCE_BACKEND=mysql CALLSTAT_SOURCE_DB_CONNECT="..." callstat run --poll-interval 1m`,
	PreRunE: sharedSetupWrapper,
	Run: func(cmd *cobra.Command, _ []string) {
		log := logger.FromContext(cmd.Context())
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		o, err := newOrchestrator(log)
		if err != nil {
			contract.LogFatal("Cannot build orchestrator", err)
		}

		if cfg.MetricsAddr != "" {
			srv := serveMetrics(cfg.MetricsAddr, log)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}

		if err := o.Poll(ctx); err != nil {
			contract.LogFatal("Poll loop failed", err)
		}
	},
}

// serveMetrics starts the Prometheus endpoint in the background.
func serveMetrics(addr string, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
