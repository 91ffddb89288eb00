// Package cmd defines the command-line interface for callstat.
package cmd

import (
	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the report subcommands to the parent report command
	reportCmd.AddCommand(reportStatsCmd)
	for _, level := range schema.Levels {
		reportCmd.AddCommand(newReportLevelCmd(level))
	}

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("category", "", "Limit to one category: recyclers (a) or smart_safes (b)")
	rootCmd.PersistentFlags().IntP("limit", "l", contract.DefaultResultLimit, "Number of rows to display per category")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format: console or json")
	rootCmd.PersistentFlags().String("source-backend", string(schema.SQLiteBackend), "Snapshot source backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("source-db-connect", "", "Database connection string for the snapshot source (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("source-table", contract.DefaultSourceTable, "Snapshot source table")
	rootCmd.PersistentFlags().String("store-backend", string(schema.SQLiteBackend), "Statistics store backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("store-db-connect", "", "Database connection string for the statistics store")
	rootCmd.PersistentFlags().String("ticket-backend", "", "Ticket view backend (defaults to the source backend)")
	rootCmd.PersistentFlags().String("ticket-db-connect", "", "Database connection string for the ticket view")
	rootCmd.PersistentFlags().String("ticket-table", contract.DefaultTicketTable, "Ticket view table")
	rootCmd.PersistentFlags().String("timezone", contract.DefaultTimezone, "Business time zone")
	rootCmd.PersistentFlags().Int("eod-hour", contract.DefaultEODHour, "Hour of the business end of day")
	rootCmd.PersistentFlags().Int("eod-minute", contract.DefaultEODMinute, "Minute of the business end of day")
	rootCmd.PersistentFlags().String("week-starts-on", contract.DefaultWeekStart, "First day of the week: Sunday or Monday")
	rootCmd.PersistentFlags().String("batch-tolerance", contract.DefaultBatchTolerance.String(), "Tolerance when matching batch timestamps")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of runCmd to Viper
	runCmd.Flags().String("poll-interval", contract.DefaultPollInterval.String(), "Time between processing cycles")
	runCmd.Flags().String("metrics-addr", "", "Address to serve Prometheus metrics on (e.g., :9090)")
	if err := viper.BindPFlags(runCmd.Flags()); err != nil {
		contract.LogFatal("Error binding run flags", err)
	}

	// Bind all flags of migrateCmd to Viper
	migrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(migrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding migrate flags", err)
	}
}
