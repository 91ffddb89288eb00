package iostore

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/schema"
)

// CollectStatus gathers the statistics store status, including migration
// state and the last committed period of every level.
func CollectStatus(ctx context.Context, cfg *contract.Config, mgr *StoreManagerImpl) (schema.StoreStatus, error) {
	stats, rollups := mgr.Stats(), mgr.Rollups()
	if stats == nil || rollups == nil {
		return schema.StoreStatus{Backend: string(cfg.StoreBackend)}, nil
	}

	status, err := stats.GetStatus()
	if err != nil {
		return status, err
	}
	if !status.Connected {
		return status, nil
	}

	version, dirty, err := SchemaVersion(cfg.StoreBackend, cfg.StoreDBConnect, contract.GetStoreDBFilePath())
	if err != nil {
		return status, fmt.Errorf("failed to get schema version: %w", err)
	}
	status.Version, status.Dirty = version, dirty

	sizes, err := rollups.GetStatus()
	if err != nil {
		return status, err
	}
	maps.Copy(status.TableSizes, sizes)

	for i, cs := range status.Categories {
		for _, level := range schema.Levels {
			latest, ok, err := rollups.LatestAggregate(ctx, level, cs.Category)
			if err != nil {
				return status, err
			}
			if ok {
				status.Categories[i].LastPeriodEnd[level] = latest.PeriodEnd
			}
		}
	}
	return status, nil
}

// PrintStoreStatus prints statistics store status information.
func PrintStoreStatus(status schema.StoreStatus) {
	fmt.Printf("Store Backend: %s\n", status.Backend)
	fmt.Printf("Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	fmt.Printf("Schema Version: %d (dirty: %t)\n", status.Version, status.Dirty)
	for _, cs := range status.Categories {
		fmt.Printf("%s:\n", cs.Category.Title())
		fmt.Printf("  Batch Stats: %d\n", cs.BatchStats)
		if cs.BatchStats > 0 {
			fmt.Printf("  Last Batch ID: %d\n", cs.LastBatchID)
			fmt.Printf("  Last Batch: %s\n", cs.LastBatchTime.Local().Format("2006-01-02 15:04:05"))
		}
		for _, level := range schema.Levels {
			if end, ok := cs.LastPeriodEnd[level]; ok {
				fmt.Printf("  Last %s Period End: %s\n", level, end.Local().Format("2006-01-02 15:04:05"))
			}
		}
	}
	fmt.Println("Table Sizes:")
	for _, table := range slices.Sorted(maps.Keys(status.TableSizes)) {
		fmt.Printf("  %s: %d rows\n", table, status.TableSizes[table])
	}
}

// PrintSourceStatus prints snapshot source status information.
func PrintSourceStatus(status schema.StoreStatus) {
	fmt.Printf("Source Backend: %s\n", status.Backend)
	fmt.Printf("Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	for _, table := range slices.Sorted(maps.Keys(status.TableSizes)) {
		fmt.Printf("  %s: %d rows\n", table, status.TableSizes[table])
	}
}
