package cmd

import (
	"github.com/huangsam/callstat/core"
	"github.com/huangsam/callstat/core/agg"
	"github.com/huangsam/callstat/internal/clock"
	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/internal/iostore"
	"github.com/huangsam/callstat/internal/tracking"
	"go.uber.org/zap"
)

// newEnricher builds the tracking enricher, or nil when tracking is disabled.
func newEnricher(log *zap.Logger) *tracking.Enricher {
	if !cfg.Tracking.Enabled {
		return nil
	}
	carriers := tracking.NewCarriers(rootCtx, cfg.Tracking)
	if len(carriers) == 0 {
		log.Warn("tracking enabled without carrier credentials; carrier status will be unavailable")
	}
	return tracking.NewEnricher(iostore.Manager.GetTicketStore(), iostore.Manager.GetSourceStore(), carriers, cfg.Tracking.Workers, log)
}

// newOrchestrator wires the stores of the global manager into an orchestrator.
func newOrchestrator(log *zap.Logger) (*core.Orchestrator, error) {
	pc, err := clock.New(cfg.Location, cfg.EODHour, cfg.EODMinute, cfg.WeekStart)
	if err != nil {
		return nil, err
	}
	stores := agg.Stores{
		Source:  iostore.Manager.GetSourceStore(),
		Stats:   iostore.Manager.GetStatStore(),
		Ledger:  iostore.Manager.GetLedger(),
		Rollups: iostore.Manager.GetRollupStore(),
	}

	var enricher contract.TrackingEnricher
	if e := newEnricher(log); e != nil {
		enricher = e
	}
	return core.NewOrchestrator(pc, cfg, stores, enricher, log), nil
}
