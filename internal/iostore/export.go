package iostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/huangsam/callstat/internal/parquet"
	"github.com/huangsam/callstat/schema"
)

// ExecuteExport writes every batch statistics row and every committed period to
// Parquet files named after outputFile.
func ExecuteExport(ctx context.Context, outputFile string) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}

	stats, rollups := Manager.Stats(), Manager.Rollups()
	if stats == nil || rollups == nil {
		return errors.New("statistics store is not initialized")
	}

	status, err := stats.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get store status: %w", err)
	}
	if status.TableSizes["batch_stats"] == 0 {
		return errors.New("no batch statistics found to export")
	}

	fmt.Printf("Exporting data from %s backend...\n", status.Backend)

	all, err := stats.AllStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve batch stats: %w", err)
	}
	statsFile := outputFile + ".batch_stats.parquet"
	if err := parquet.WriteBatchStatsParquet(all, statsFile); err != nil {
		return fmt.Errorf("failed to write batch stats: %w", err)
	}
	fmt.Printf("Exported %d batch stats to: %s\n", len(all), statsFile)

	for _, level := range schema.Levels {
		rows, err := rollups.AllAggregates(ctx, level)
		if err != nil {
			return fmt.Errorf("failed to retrieve %s periods: %w", level, err)
		}
		if len(rows) == 0 {
			continue
		}
		levelFile := fmt.Sprintf("%s.%s_periods.parquet", outputFile, level)
		if err := parquet.WritePeriodsParquet(rows, levelFile); err != nil {
			return fmt.Errorf("failed to write %s periods: %w", level, err)
		}
		fmt.Printf("Exported %d %s periods to: %s\n", len(rows), level, levelFile)
	}

	fmt.Println("\nExport complete! The Parquet files can be used with DuckDB, pandas or Spark.")
	return nil
}
