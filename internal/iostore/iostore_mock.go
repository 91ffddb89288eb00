package iostore

import (
	"context"
	"time"

	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/schema"
	"github.com/stretchr/testify/mock"
)

// MockStoreManager is a mock implementation of StoreManager for testing.
type MockStoreManager struct {
	mock.Mock
}

var _ contract.StoreManager = &MockStoreManager{} // Compile-time check

// GetSourceStore implements the StoreManager interface.
func (m *MockStoreManager) GetSourceStore() contract.SourceStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.SourceStore)
	return store
}

// GetStatStore implements the StoreManager interface.
func (m *MockStoreManager) GetStatStore() contract.StatStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.StatStore)
	return store
}

// GetLedger implements the StoreManager interface.
func (m *MockStoreManager) GetLedger() contract.Ledger {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.Ledger)
	return store
}

// GetRollupStore implements the StoreManager interface.
func (m *MockStoreManager) GetRollupStore() contract.RollupStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.RollupStore)
	return store
}

// GetTicketStore implements the StoreManager interface.
func (m *MockStoreManager) GetTicketStore() contract.TicketLookup {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.TicketLookup)
	return store
}

// MockSourceStore is a mock implementation of SourceStore for testing.
type MockSourceStore struct {
	mock.Mock
}

var _ contract.SourceStore = &MockSourceStore{} // Compile-time check

// LatestBatch implements the SnapshotSource interface.
func (m *MockSourceStore) LatestBatch(ctx context.Context) (schema.BatchRef, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(schema.BatchRef), args.Bool(1), args.Error(2)
}

// FetchBatch implements the SnapshotSource interface.
func (m *MockSourceStore) FetchBatch(ctx context.Context, at time.Time) ([]schema.SnapshotRecord, error) {
	args := m.Called(ctx, at)
	records, _ := args.Get(0).([]schema.SnapshotRecord)
	return records, args.Error(1)
}

// BatchesBetween implements the SnapshotSource interface.
func (m *MockSourceStore) BatchesBetween(ctx context.Context, from, to time.Time) ([]schema.BatchRef, error) {
	args := m.Called(ctx, from, to)
	refs, _ := args.Get(0).([]schema.BatchRef)
	return refs, args.Error(1)
}

// BatchAtOrBefore implements the SnapshotSource interface.
func (m *MockSourceStore) BatchAtOrBefore(ctx context.Context, t time.Time) (schema.BatchRef, bool, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(schema.BatchRef), args.Bool(1), args.Error(2)
}

// BatchBefore implements the SnapshotSource interface.
func (m *MockSourceStore) BatchBefore(ctx context.Context, t time.Time) (schema.BatchRef, bool, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(schema.BatchRef), args.Bool(1), args.Error(2)
}

// UpdateTracking implements the TrackingSink interface.
func (m *MockSourceStore) UpdateTracking(ctx context.Context, results []schema.TrackingResult) error {
	args := m.Called(ctx, results)
	return args.Error(0)
}

// GetStatus implements the SourceStore interface.
func (m *MockSourceStore) GetStatus() (schema.StoreStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.StoreStatus), args.Error(1)
}

// Close implements the SnapshotSource interface.
func (m *MockSourceStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockStatStore is a mock implementation of StatStore for testing.
type MockStatStore struct {
	mock.Mock
}

var _ contract.StatStore = &MockStatStore{} // Compile-time check

// InsertStat implements the StatStore interface.
func (m *MockStatStore) InsertStat(ctx context.Context, stat schema.BatchStat) (int64, error) {
	args := m.Called(ctx, stat)
	return args.Get(0).(int64), args.Error(1)
}

// HasBatch implements the StatStore interface.
func (m *MockStatStore) HasBatch(ctx context.Context, category schema.Category, batchID int64) (bool, error) {
	args := m.Called(ctx, category, batchID)
	return args.Bool(0), args.Error(1)
}

// LatestStat implements the StatStore interface.
func (m *MockStatStore) LatestStat(ctx context.Context, category schema.Category) (schema.BatchStat, bool, error) {
	args := m.Called(ctx, category)
	return args.Get(0).(schema.BatchStat), args.Bool(1), args.Error(2)
}

// FirstStatTime implements the StatStore interface.
func (m *MockStatStore) FirstStatTime(ctx context.Context, category schema.Category) (time.Time, bool, error) {
	args := m.Called(ctx, category)
	return args.Get(0).(time.Time), args.Bool(1), args.Error(2)
}

// StatsBetween implements the StatStore interface.
func (m *MockStatStore) StatsBetween(ctx context.Context, category schema.Category, from, to time.Time) ([]schema.BatchStat, error) {
	args := m.Called(ctx, category, from, to)
	stats, _ := args.Get(0).([]schema.BatchStat)
	return stats, args.Error(1)
}

// SumClosedBetween implements the StatStore interface.
func (m *MockStatStore) SumClosedBetween(ctx context.Context, category schema.Category, from, to time.Time) (int, error) {
	args := m.Called(ctx, category, from, to)
	return args.Int(0), args.Error(1)
}

// RecentStats implements the StatStore interface.
func (m *MockStatStore) RecentStats(ctx context.Context, category schema.Category, limit int) ([]schema.BatchStat, error) {
	args := m.Called(ctx, category, limit)
	stats, _ := args.Get(0).([]schema.BatchStat)
	return stats, args.Error(1)
}

// GetStatus implements the StatStore interface.
func (m *MockStatStore) GetStatus() (schema.StoreStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.StoreStatus), args.Error(1)
}

// Close implements the StatStore interface.
func (m *MockStatStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockLedger is a mock implementation of Ledger for testing.
type MockLedger struct {
	mock.Mock
}

var _ contract.Ledger = &MockLedger{} // Compile-time check

// RecordClosures implements the Ledger interface.
func (m *MockLedger) RecordClosures(ctx context.Context, entries []schema.LedgerEntry) (int, error) {
	args := m.Called(ctx, entries)
	return args.Int(0), args.Error(1)
}

// CountReopened implements the Ledger interface.
func (m *MockLedger) CountReopened(ctx context.Context, category schema.Category, ids []string, since time.Time) (int, error) {
	args := m.Called(ctx, category, ids, since)
	return args.Int(0), args.Error(1)
}

// ClosuresBetween implements the Ledger interface.
func (m *MockLedger) ClosuresBetween(ctx context.Context, category schema.Category, from, to time.Time) ([]schema.LedgerEntry, error) {
	args := m.Called(ctx, category, from, to)
	entries, _ := args.Get(0).([]schema.LedgerEntry)
	return entries, args.Error(1)
}

// Close implements the Ledger interface.
func (m *MockLedger) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockRollupStore is a mock implementation of RollupStore for testing.
type MockRollupStore struct {
	mock.Mock
}

var _ contract.RollupStore = &MockRollupStore{} // Compile-time check

// InsertAggregate implements the RollupStore interface.
func (m *MockRollupStore) InsertAggregate(ctx context.Context, agg schema.PeriodAggregate) (bool, error) {
	args := m.Called(ctx, agg)
	return args.Bool(0), args.Error(1)
}

// HasPeriod implements the RollupStore interface.
func (m *MockRollupStore) HasPeriod(ctx context.Context, level schema.Level, category schema.Category, key string) (bool, error) {
	args := m.Called(ctx, level, category, key)
	return args.Bool(0), args.Error(1)
}

// LatestAggregate implements the RollupStore interface.
func (m *MockRollupStore) LatestAggregate(ctx context.Context, level schema.Level, category schema.Category) (schema.PeriodAggregate, bool, error) {
	args := m.Called(ctx, level, category)
	return args.Get(0).(schema.PeriodAggregate), args.Bool(1), args.Error(2)
}

// AggregatesStartingIn implements the RollupStore interface.
func (m *MockRollupStore) AggregatesStartingIn(ctx context.Context, level schema.Level, category schema.Category, from, to time.Time) ([]schema.PeriodAggregate, error) {
	args := m.Called(ctx, level, category, from, to)
	aggs, _ := args.Get(0).([]schema.PeriodAggregate)
	return aggs, args.Error(1)
}

// AggregatesOverlapping implements the RollupStore interface.
func (m *MockRollupStore) AggregatesOverlapping(ctx context.Context, level schema.Level, category schema.Category, from, to time.Time) ([]schema.PeriodAggregate, error) {
	args := m.Called(ctx, level, category, from, to)
	aggs, _ := args.Get(0).([]schema.PeriodAggregate)
	return aggs, args.Error(1)
}

// RecentAggregates implements the RollupStore interface.
func (m *MockRollupStore) RecentAggregates(ctx context.Context, level schema.Level, category schema.Category, limit int) ([]schema.PeriodAggregate, error) {
	args := m.Called(ctx, level, category, limit)
	aggs, _ := args.Get(0).([]schema.PeriodAggregate)
	return aggs, args.Error(1)
}

// Close implements the RollupStore interface.
func (m *MockRollupStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockTicketLookup is a mock implementation of TicketLookup for testing.
type MockTicketLookup struct {
	mock.Mock
}

var _ contract.TicketLookup = &MockTicketLookup{} // Compile-time check

// LookupTicket implements the TicketLookup interface.
func (m *MockTicketLookup) LookupTicket(ctx context.Context, callNumber string) (schema.TicketSummary, bool, error) {
	args := m.Called(ctx, callNumber)
	return args.Get(0).(schema.TicketSummary), args.Bool(1), args.Error(2)
}

// Close implements the TicketLookup interface.
func (m *MockTicketLookup) Close() error {
	args := m.Called()
	return args.Error(0)
}
