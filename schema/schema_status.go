package schema

import "time"

// StoreStatus represents the status of the statistics store.
type StoreStatus struct {
	Backend    string           `json:"backend"`
	Connected  bool             `json:"connected"`
	Version    uint             `json:"schema_version"`
	Dirty      bool             `json:"dirty"`
	TableSizes map[string]int64 `json:"table_sizes"`
	Categories []CategoryStatus `json:"categories"`
}

// CategoryStatus describes the progress of one category.
type CategoryStatus struct {
	Category      Category            `json:"category"`
	BatchStats    int64               `json:"batch_stats"`
	LastBatchID   int64               `json:"last_batch_id"`
	LastBatchTime time.Time           `json:"last_batch_time"`
	LastPeriodEnd map[Level]time.Time `json:"last_period_end"`
}
