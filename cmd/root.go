package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/huangsam/callstat/internal/contract"
	"github.com/huangsam/callstat/internal/iostore"
	"github.com/huangsam/callstat/internal/logger"
	"github.com/huangsam/callstat/schema"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:                "callstat",
	Short:              "Turn service-call snapshots into batch, daily, weekly and monthly statistics.",
	Long:               `Callstat diffs every pushed batch of open service calls against the one before it and rolls the results up into period summaries.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in .env, config file and ENV variables if set.
func initConfig() {
	// Credentials and DSNs usually live in .env; a missing file is fine
	_ = godotenv.Load()

	setConfigPaths()

	// Set environment variable prefix
	viper.SetEnvPrefix("CALLSTAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv() // Read in environment variables that match

	// Set defaults in Viper
	viper.SetDefault("limit", contract.DefaultResultLimit)
	viper.SetDefault("precision", contract.DefaultPrecision)
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("color", "yes")
	viper.SetDefault("log-level", "info")
	viper.SetDefault("log-format", logger.FormatConsole)
	viper.SetDefault("source-backend", schema.SQLiteBackend)
	viper.SetDefault("source-db-connect", "")
	viper.SetDefault("source-table", contract.DefaultSourceTable)
	viper.SetDefault("store-backend", schema.SQLiteBackend)
	viper.SetDefault("store-db-connect", "")
	viper.SetDefault("ticket-backend", "")
	viper.SetDefault("ticket-db-connect", "")
	viper.SetDefault("ticket-table", contract.DefaultTicketTable)
	viper.SetDefault("timezone", contract.DefaultTimezone)
	viper.SetDefault("eod-hour", contract.DefaultEODHour)
	viper.SetDefault("eod-minute", contract.DefaultEODMinute)
	viper.SetDefault("week-starts-on", contract.DefaultWeekStart)
	viper.SetDefault("poll-interval", contract.DefaultPollInterval.String())
	viper.SetDefault("batch-tolerance", contract.DefaultBatchTolerance.String())
	viper.SetDefault("metrics-addr", "")

	viper.SetDefault("aggregation.hourly.enabled", true)
	viper.SetDefault("aggregation.hourly.validation-enabled", false)
	viper.SetDefault("aggregation.hourly.max-catchup-hours", contract.DefaultMaxCatchupHours)
	viper.SetDefault("aggregation.daily.enabled", true)
	viper.SetDefault("aggregation.daily.aggregate-from", schema.DailyFromHourly)
	viper.SetDefault("aggregation.weekly.enabled", true)
	viper.SetDefault("aggregation.monthly.enabled", true)
	viper.SetDefault("aggregation.catchup-days", contract.DefaultCatchupDays)

	viper.SetDefault("tracking.enabled", false)
	viper.SetDefault("tracking.workers", contract.DefaultTrackingWorkers)
	viper.SetDefault("tracking.timeout", contract.DefaultTrackingTimeout.String())
	viper.SetDefault("ups.client-id", "")
	viper.SetDefault("ups.client-secret", "")
	viper.SetDefault("fedex.api-key", "")
	viper.SetDefault("fedex.api-secret", "")
	viper.SetDefault("fedex.use-production", false)
}

// setConfigPaths points viper at --config or the default .callstat.yaml locations.
func setConfigPaths() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		return
	}
	viper.SetConfigName(".callstat") // Name of config file (without extension)
	viper.SetConfigType("yaml")      // We'll use YAML format
	viper.AddConfigPath(".")         // Look in the current directory
	viper.AddConfigPath("$HOME")     // Look in the home directory
}

// readConfig merges defaults, file, env, and flags.
func readConfig() error {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}
	return nil
}

// loadConfig reads and validates the configuration without touching any store.
// The logger built from it travels on the command's context.
func loadConfig(cmd *cobra.Command) error {
	if err := readConfig(); err != nil {
		return err
	}
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := contract.ProcessAndValidate(cfg, input); err != nil {
		return err
	}

	l, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	cmd.SetContext(logger.WithContext(cmd.Context(), l))
	return nil
}

// sharedSetup validates the configuration and opens every store.
func sharedSetup(_ context.Context, cmd *cobra.Command, _ []string) error {
	if err := loadConfig(cmd); err != nil {
		return err
	}
	if err := iostore.InitStores(cfg); err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}
	return nil
}

// sharedSetupWrapper wraps sharedSetup to provide context for Cobra's PreRunE.
func sharedSetupWrapper(cmd *cobra.Command, args []string) error {
	return sharedSetup(rootCtx, cmd, args)
}

// storeSetup loads the configuration needed for schema operations.
// It does NOT open stores, so migrations can run on a fresh database.
func storeSetup(cmd *cobra.Command, _ []string) error {
	if err := loadConfig(cmd); err != nil {
		return err
	}
	// For SQLite backend with empty connection string, use default path
	if cfg.StoreBackend == schema.SQLiteBackend && cfg.StoreDBConnect == "" {
		cfg.StoreDBConnect = contract.GetStoreDBFilePath()
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	defer iostore.CloseStores()
	return rootCmd.Execute()
}
