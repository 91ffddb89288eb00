// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/callstat/schema"
)

// SnapshotSource reads pushed batches of open service calls.
// Batch times are instants; implementations translate to and from the
// source's zone-less storage.
type SnapshotSource interface {
	// LatestBatch returns the most recent distinct batch, or false when the source is empty.
	LatestBatch(ctx context.Context) (schema.BatchRef, bool, error)

	// FetchBatch returns the raw rows pushed at the batch time, matched within the configured tolerance.
	FetchBatch(ctx context.Context, at time.Time) ([]schema.SnapshotRecord, error)

	// BatchesBetween returns the distinct batches pushed in [from, to), oldest first.
	BatchesBetween(ctx context.Context, from, to time.Time) ([]schema.BatchRef, error)

	// BatchAtOrBefore returns the most recent batch pushed at or before t.
	BatchAtOrBefore(ctx context.Context, t time.Time) (schema.BatchRef, bool, error)

	// BatchBefore returns the most recent batch pushed strictly before t.
	BatchBefore(ctx context.Context, t time.Time) (schema.BatchRef, bool, error)

	Close() error
}

// TrackingSink persists tracking enrichment onto snapshot rows.
type TrackingSink interface {
	UpdateTracking(ctx context.Context, results []schema.TrackingResult) error
}

// SourceStore is a snapshot source that also accepts tracking results.
type SourceStore interface {
	SnapshotSource
	TrackingSink
	GetStatus() (schema.StoreStatus, error)
}

// StatStore persists one statistics row per (category, batch).
type StatStore interface {
	// InsertStat appends a statistics row and returns its ID.
	InsertStat(ctx context.Context, stat schema.BatchStat) (int64, error)

	// HasBatch reports whether the category already has a row for the batch ID.
	HasBatch(ctx context.Context, category schema.Category, batchID int64) (bool, error)

	// LatestStat returns the category's most recent row by batch time.
	LatestStat(ctx context.Context, category schema.Category) (schema.BatchStat, bool, error)

	// FirstStatTime returns the batch time of the category's oldest row.
	FirstStatTime(ctx context.Context, category schema.Category) (time.Time, bool, error)

	// StatsBetween returns the category's rows with batch time in [from, to), oldest first.
	StatsBetween(ctx context.Context, category schema.Category, from, to time.Time) ([]schema.BatchStat, error)

	// SumClosedBetween sums closed calls over rows with batch time in [from, to).
	SumClosedBetween(ctx context.Context, category schema.Category, from, to time.Time) (int, error)

	// RecentStats returns up to limit of the category's newest rows, newest first.
	RecentStats(ctx context.Context, category schema.Category, limit int) ([]schema.BatchStat, error)

	GetStatus() (schema.StoreStatus, error)
	Close() error
}

// Ledger is the insert-once record of detected closures.
type Ledger interface {
	// RecordClosures inserts entries not yet present by (service call, closed at)
	// and returns how many were new.
	RecordClosures(ctx context.Context, entries []schema.LedgerEntry) (int, error)

	// CountReopened counts the distinct IDs with a closure at or after since.
	CountReopened(ctx context.Context, category schema.Category, ids []string, since time.Time) (int, error)

	// ClosuresBetween returns the category's closures detected in [from, to), oldest first.
	ClosuresBetween(ctx context.Context, category schema.Category, from, to time.Time) ([]schema.LedgerEntry, error)

	Close() error
}

// RollupStore persists period aggregates at every level.
type RollupStore interface {
	// InsertAggregate commits the aggregate unless its period key is taken.
	// It reports whether a row was inserted.
	InsertAggregate(ctx context.Context, agg schema.PeriodAggregate) (bool, error)

	// HasPeriod reports whether the period key is committed.
	HasPeriod(ctx context.Context, level schema.Level, category schema.Category, key string) (bool, error)

	// LatestAggregate returns the committed aggregate with the latest period end.
	LatestAggregate(ctx context.Context, level schema.Level, category schema.Category) (schema.PeriodAggregate, bool, error)

	// AggregatesStartingIn returns aggregates whose period starts in [from, to), oldest first.
	AggregatesStartingIn(ctx context.Context, level schema.Level, category schema.Category, from, to time.Time) ([]schema.PeriodAggregate, error)

	// AggregatesOverlapping returns aggregates whose period intersects [from, to), oldest first.
	AggregatesOverlapping(ctx context.Context, level schema.Level, category schema.Category, from, to time.Time) ([]schema.PeriodAggregate, error)

	// RecentAggregates returns up to limit of the newest aggregates, newest first.
	RecentAggregates(ctx context.Context, level schema.Level, category schema.Category, limit int) ([]schema.PeriodAggregate, error)

	Close() error
}

// TicketLookup reads the ticketing system's view of a vendor call.
type TicketLookup interface {
	LookupTicket(ctx context.Context, callNumber string) (schema.TicketSummary, bool, error)
	Close() error
}

// CarrierClient reports the shipment status of a tracking number.
type CarrierClient interface {
	Name() string
	// Handles reports whether the tracking number belongs to this carrier.
	Handles(trackingNumber string) bool
	Status(ctx context.Context, trackingNumber string) (string, error)
}

// TrackingEnricher annotates snapshot rows with shipment tracking.
type TrackingEnricher interface {
	Enrich(ctx context.Context, records []schema.SnapshotRecord) (schema.EnrichSummary, error)
}

// StoreManager defines the interface for managing the persistence stores.
// This allows the persistence layer to be mocked for testing.
type StoreManager interface {
	GetSourceStore() SourceStore
	GetStatStore() StatStore
	GetLedger() Ledger
	GetRollupStore() RollupStore
	GetTicketStore() TicketLookup
}
