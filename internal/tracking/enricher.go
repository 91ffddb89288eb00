package tracking

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/internal/metrics"
	"github.com/huangsam/callstat/schema"
	"go.uber.org/zap"
)

// Per-record lookup results.
const (
	resultEnriched = "enriched"
	resultSkipped  = "skipped"
	resultFailed   = "failed"
)

// Enricher looks up the ticket of every snapshot row and writes the tracking
// value, latest parts, match flag and carrier status back to the source.
type Enricher struct {
	tickets  contract.TicketLookup
	sink     contract.TrackingSink
	carriers []contract.CarrierClient
	workers  int
	logger   *zap.Logger
	now      func() time.Time
}

var _ contract.TrackingEnricher = &Enricher{} // Compile-time check

// NewEnricher creates an enricher running lookups on a pool of workers.
func NewEnricher(tickets contract.TicketLookup, sink contract.TrackingSink, carriers []contract.CarrierClient, workers int, logger *zap.Logger) *Enricher {
	if workers <= 0 {
		workers = contract.DefaultTrackingWorkers
	}
	return &Enricher{
		tickets:  tickets,
		sink:     sink,
		carriers: carriers,
		workers:  workers,
		logger:   logger,
		now:      time.Now,
	}
}

// NewCarriers builds a client for every carrier with credentials configured.
func NewCarriers(ctx context.Context, cfg contract.TrackingConfig) []contract.CarrierClient {
	var carriers []contract.CarrierClient
	if cfg.FedExAPIKey != "" && cfg.FedExAPISecret != "" {
		ep := FedExSandbox
		if cfg.FedExUseProduction {
			ep = FedExProduction
		}
		carriers = append(carriers, NewFedExClient(ctx, cfg.FedExAPIKey, cfg.FedExAPISecret, ep, cfg.Timeout))
	}
	if cfg.UPSClientID != "" && cfg.UPSClientSecret != "" {
		carriers = append(carriers, NewUPSClient(ctx, cfg.UPSClientID, cfg.UPSClientSecret, UPSEndpoints, cfg.Timeout))
	}
	return carriers
}

type lookup struct {
	result  schema.TrackingResult
	outcome string
}

// Enrich implements the TrackingEnricher interface. A failed lookup is logged
// and counted; only a failed write of the results is returned as an error.
func (e *Enricher) Enrich(ctx context.Context, records []schema.SnapshotRecord) (schema.EnrichSummary, error) {
	summary := schema.EnrichSummary{Total: len(records)}
	if len(records) == 0 {
		return summary, nil
	}

	recordCh := make(chan schema.SnapshotRecord, len(records))
	lookupCh := make(chan lookup, len(records))
	var wg sync.WaitGroup

	for range min(e.workers, len(records)) {
		wg.Go(func() {
			for r := range recordCh {
				lookupCh <- e.enrichOne(ctx, r)
			}
		})
	}
	for _, r := range records {
		recordCh <- r
	}
	close(recordCh)
	wg.Wait()
	close(lookupCh)

	results := make([]schema.TrackingResult, 0, len(records))
	for l := range lookupCh {
		metrics.TrackingLookupsTotal.WithLabelValues(l.outcome).Inc()
		switch l.outcome {
		case resultEnriched:
			results = append(results, l.result)
		case resultSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}

	if err := e.sink.UpdateTracking(ctx, results); err != nil {
		summary.Failed += len(results)
		return summary, fmt.Errorf("failed to write tracking results: %w", err)
	}
	summary.Updated = len(results)
	return summary, nil
}

// enrichOne resolves one snapshot row. Rows without a vendor call or ticket are skipped.
func (e *Enricher) enrichOne(ctx context.Context, r schema.SnapshotRecord) lookup {
	log := e.logger.With(zap.String("service_call_id", r.ServiceCallID))

	call, ok := VendorCall(r.VendorReference)
	if !ok {
		return lookup{outcome: resultSkipped}
	}
	ts, found, err := e.tickets.LookupTicket(ctx, call)
	if err != nil {
		log.Warn("ticket lookup failed", zap.String("vendor_call", call), zap.Error(err))
		return lookup{outcome: resultFailed}
	}
	if !found {
		log.Debug("no ticket for vendor call", zap.String("vendor_call", call))
		return lookup{outcome: resultSkipped}
	}

	value := TrackingValue(ts)
	res := schema.TrackingResult{
		ServiceCallID:  r.ServiceCallID,
		PushedAt:       r.PushedAt,
		VendorCall:     call,
		TrackingNumber: value,
		Parts:          LatestParts(ts.AllParts),
		Match:          Match(value, r.Description, r.PartNote),
		CheckedAt:      e.now().UTC(),
	}
	if !Placeholder(value) {
		res.CarrierStatus = e.carrierStatus(ctx, value, log)
	}
	log.Debug("resolved tracking",
		zap.String("vendor_call", call),
		zap.String("tracking", value),
		zap.Int("parts", len(res.Parts)),
		zap.Bool("match", res.Match))
	return lookup{result: res, outcome: resultEnriched}
}

// carrierStatus queries the carrier of every number in the tracking value and
// joins the answers as "Carrier number: status".
func (e *Enricher) carrierStatus(ctx context.Context, value string, log *zap.Logger) string {
	var statuses []string
	for _, n := range TrackingNumbers(value) {
		carrier := e.carrierFor(n)
		if carrier == nil {
			continue
		}
		status, err := carrier.Status(ctx, n)
		switch {
		case err != nil:
			log.Warn("carrier lookup failed", zap.String("carrier", carrier.Name()), zap.String("tracking", n), zap.Error(err))
			statuses = append(statuses, fmt.Sprintf("%s %s: Error - %v", carrier.Name(), n, err))
		case status == "":
			statuses = append(statuses, fmt.Sprintf("%s %s: Status unavailable", carrier.Name(), n))
		default:
			statuses = append(statuses, fmt.Sprintf("%s %s: %s", carrier.Name(), n, status))
		}
	}
	return strings.Join(statuses, "; ")
}

func (e *Enricher) carrierFor(n string) contract.CarrierClient {
	for _, c := range e.carriers {
		if c.Handles(n) {
			return c
		}
	}
	return nil
}
