package cmd

import (
	"fmt"

	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/internal/iostore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// statusCmd shows store status.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display store health and per-category progress",
	Long: `Show detailed information about the snapshot source and the statistics store.

Displays:
- Backend type and connection status
- Schema version and dirty flag
- Last scored batch per category
- Last committed period end per category and level
- Table sizes

Examples:
  # Check status
  callstat status`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		source, err := iostore.Manager.GetSourceStore().GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get source status", err)
		}
		iostore.PrintSourceStatus(source)

		status, err := iostore.CollectStatus(rootCtx, cfg, iostore.Manager)
		if err != nil {
			contract.LogFatal("Failed to get store status", err)
		}
		iostore.PrintStoreStatus(status)
	},
}

// exportCmd exports the statistics store to Parquet files.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export statistics and summaries to Parquet for BI tools and analytics",
	Long: `Export all stored batch statistics and period summaries to Parquet format.

Writes one file for batch statistics and one per rollup level with data.

Requires: --output-file parameter (used as the file name prefix)

Examples:
  # Export all data
  callstat export --output-file callstat

  # Use with DuckDB for analysis
  duckdb -c "SELECT * FROM read_parquet('callstat.daily_periods.parquet') LIMIT 10"`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iostore.ExecuteExport(rootCtx, cfg.OutputFile); err != nil {
			contract.LogFatal("Failed to export data", err)
		}
	},
}

// migrateCmd runs database migrations for the statistics store.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run statistics store schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the statistics store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  callstat migrate

  # Rollback to initial state
  callstat migrate --target-version 0`,
	PreRunE: storeSetup,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := iostore.Migrate(cfg.StoreBackend, cfg.StoreDBConnect, contract.GetStoreDBFilePath(), targetVersion); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
		fmt.Println("Migrations applied successfully.")
	},
}

// clearCmd removes the statistics store.
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all batch statistics, closures and summaries",
	Long: `Delete the statistics store. The snapshot source is never touched.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the statistics tables

WARNING: This action cannot be undone. Consider exporting data first.

Examples:
  # Export before clearing
  callstat export --output-file backup
  callstat clear`,
	PreRunE: storeSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iostore.ClearStore(cfg.StoreBackend, cfg.StoreDBConnect, cfg.StoreDBConnect); err != nil {
			contract.LogFatal("Failed to clear statistics store", err)
		}
		fmt.Println("Statistics store cleared successfully.")
	},
}
