package contract

import (
	"fmt"
	"strings"
	"time"

	"github.com/huangsam/callstat/schema"
)

// Default values for configuration.
const (
	DefaultResultLimit     = 24
	MaxResultLimit         = 1000
	DefaultPrecision       = 2
	DefaultTimezone        = "America/Chicago"
	DefaultEODHour         = 23
	DefaultEODMinute       = 59
	DefaultWeekStart       = "Sunday"
	DefaultPollInterval    = 5 * time.Minute
	DefaultBatchTolerance  = time.Second
	DefaultMaxCatchupHours = 72
	DefaultCatchupDays     = 7
	DefaultTrackingWorkers = 8
	DefaultTrackingTimeout = 10 * time.Second
	DefaultSourceTable     = "open_calls"
	DefaultTicketTable     = "ticket_summaries"
)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// AggregationConfig holds the rollup toggles and catch-up bounds.
type AggregationConfig struct {
	HourlyEnabled     bool
	DailyEnabled      bool
	WeeklyEnabled     bool
	MonthlyEnabled    bool
	ValidationEnabled bool
	MaxCatchupHours   int
	CatchupDays       int
	DailySource       schema.DailySource
}

// TrackingConfig holds the tracking enricher settings.
type TrackingConfig struct {
	Enabled            bool
	Workers            int
	Timeout            time.Duration
	UPSClientID        string // Please use env var as this is plaintext
	UPSClientSecret    string // Please use env var as this is plaintext
	FedExAPIKey        string // Please use env var as this is plaintext
	FedExAPISecret     string // Please use env var as this is plaintext
	FedExUseProduction bool
}

// Config holds the runtime configuration for callstat.
// This struct remains the "final, validated" config.
type Config struct {
	SourceBackend   schema.DatabaseBackend
	SourceDBConnect string // Please use env var as this is plaintext
	SourceTable     string

	StoreBackend   schema.DatabaseBackend
	StoreDBConnect string // Please use env var as this is plaintext

	TicketBackend   schema.DatabaseBackend
	TicketDBConnect string // Please use env var as this is plaintext
	TicketTable     string

	Location       *time.Location
	EODHour        int
	EODMinute      int
	WeekStart      time.Weekday
	PollInterval   time.Duration
	BatchTolerance time.Duration

	Aggregation AggregationConfig
	Tracking    TrackingConfig

	LogLevel    string
	LogFormat   string
	MetricsAddr string

	Category    schema.Category // Empty means every category
	ResultLimit int
	Precision   int
	Output      schema.OutputMode
	OutputFile  string
	UseColors   bool // Enable colored labels in table output
}

// HourlyRawInput holds the batch-aggregate level settings.
type HourlyRawInput struct {
	Enabled           bool `mapstructure:"enabled"`
	ValidationEnabled bool `mapstructure:"validation-enabled"`
	MaxCatchupHours   int  `mapstructure:"max-catchup-hours"`
}

// DailyRawInput holds the daily level settings.
type DailyRawInput struct {
	Enabled       bool   `mapstructure:"enabled"`
	AggregateFrom string `mapstructure:"aggregate-from"`
}

// LevelRawInput holds a level that can only be toggled.
type LevelRawInput struct {
	Enabled bool `mapstructure:"enabled"`
}

// AggregationRawInput holds the aggregation section of the config file.
type AggregationRawInput struct {
	Hourly      HourlyRawInput `mapstructure:"hourly"`
	Daily       DailyRawInput  `mapstructure:"daily"`
	Weekly      LevelRawInput  `mapstructure:"weekly"`
	Monthly     LevelRawInput  `mapstructure:"monthly"`
	CatchupDays int            `mapstructure:"catchup-days"`
}

// TrackingRawInput holds the tracking section of the config file.
type TrackingRawInput struct {
	Enabled bool   `mapstructure:"enabled"`
	Workers int    `mapstructure:"workers"`
	Timeout string `mapstructure:"timeout"`
}

// UPSRawInput holds UPS API credentials.
type UPSRawInput struct {
	ClientID     string `mapstructure:"client-id"`
	ClientSecret string `mapstructure:"client-secret"`
}

// FedExRawInput holds FedEx API credentials.
type FedExRawInput struct {
	APIKey        string `mapstructure:"api-key"`
	APISecret     string `mapstructure:"api-secret"`
	UseProduction bool   `mapstructure:"use-production"`
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	SourceBackend   string `mapstructure:"source-backend"`
	SourceDBConnect string `mapstructure:"source-db-connect"`
	SourceTable     string `mapstructure:"source-table"`
	StoreBackend    string `mapstructure:"store-backend"`
	StoreDBConnect  string `mapstructure:"store-db-connect"`
	TicketBackend   string `mapstructure:"ticket-backend"`
	TicketDBConnect string `mapstructure:"ticket-db-connect"`
	TicketTable     string `mapstructure:"ticket-table"`
	Timezone        string `mapstructure:"timezone"`
	EODHour         int    `mapstructure:"eod-hour"`
	EODMinute       int    `mapstructure:"eod-minute"`
	WeekStartsOn    string `mapstructure:"week-starts-on"`
	LogLevel        string `mapstructure:"log-level"`
	LogFormat       string `mapstructure:"log-format"`
	Category        string `mapstructure:"category"`
	Limit           int    `mapstructure:"limit"`
	Precision       int    `mapstructure:"precision"`
	Output          string `mapstructure:"output"`
	OutputFile      string `mapstructure:"output-file"`
	Color           string `mapstructure:"color"`

	// --- Fields from runCmd.Flags() ---
	PollInterval   string `mapstructure:"poll-interval"`
	BatchTolerance string `mapstructure:"batch-tolerance"`
	MetricsAddr    string `mapstructure:"metrics-addr"`

	// --- Sections from the config file ---
	Aggregation AggregationRawInput `mapstructure:"aggregation"`
	Tracking    TrackingRawInput    `mapstructure:"tracking"`
	UPS         UPSRawInput         `mapstructure:"ups"`
	FedEx       FedExRawInput       `mapstructure:"fedex"`
}

// ProcessAndValidate performs all complex parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processCalendar(cfg, input); err != nil {
		return err
	}
	if err := processAggregation(cfg, input); err != nil {
		return err
	}
	if err := processTracking(cfg, input); err != nil {
		return err
	}
	return validateBackendConfigs(cfg, input)
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(flag string, backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("%s is required when using %s backend", flag, backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("%s is required when using %s backend", flag, backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// parseBackend normalizes and validates a backend name.
func parseBackend(name, raw string) (schema.DatabaseBackend, error) {
	backend := schema.DatabaseBackend(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := schema.ValidDatabaseBackends[backend]; !ok {
		return "", fmt.Errorf("invalid %s backend '%s'. must be sqlite, mysql, postgresql, none: %w", name, raw, schema.ErrUnsupportedBackend)
	}
	return backend, nil
}

// validateBackendConfigs validates source, store and ticket backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	var err error

	// --- Source Backend Validation ---
	if cfg.SourceBackend, err = parseBackend("source", input.SourceBackend); err != nil {
		return err
	}
	cfg.SourceDBConnect = input.SourceDBConnect
	if err := ValidateDatabaseConnectionString("source-db-connect", cfg.SourceBackend, cfg.SourceDBConnect); err != nil {
		return err
	}
	cfg.SourceTable = strings.TrimSpace(input.SourceTable)
	if cfg.SourceTable == "" {
		cfg.SourceTable = DefaultSourceTable
	}

	// --- Store Backend Validation ---
	if cfg.StoreBackend, err = parseBackend("store", input.StoreBackend); err != nil {
		return err
	}
	cfg.StoreDBConnect = input.StoreDBConnect
	if err := ValidateDatabaseConnectionString("store-db-connect", cfg.StoreBackend, cfg.StoreDBConnect); err != nil {
		return err
	}

	// --- Ticket Backend Validation ---
	// The ticket view lives next to the source unless configured otherwise.
	if strings.TrimSpace(input.TicketBackend) == "" {
		cfg.TicketBackend = cfg.SourceBackend
		cfg.TicketDBConnect = cfg.SourceDBConnect
	} else {
		if cfg.TicketBackend, err = parseBackend("ticket", input.TicketBackend); err != nil {
			return err
		}
		cfg.TicketDBConnect = input.TicketDBConnect
	}
	if err := ValidateDatabaseConnectionString("ticket-db-connect", cfg.TicketBackend, cfg.TicketDBConnect); err != nil {
		return err
	}
	cfg.TicketTable = strings.TrimSpace(input.TicketTable)
	if cfg.TicketTable == "" {
		cfg.TicketTable = DefaultTicketTable
	}

	return nil
}

// validateSimpleInputs processes and validates the output and logging fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	// --- 0. Transfer simple non-validated fields from input -> cfg ---
	cfg.OutputFile = input.OutputFile
	cfg.MetricsAddr = strings.TrimSpace(input.MetricsAddr)

	// Parse color flag
	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	// --- 1. ResultLimit Validation ---
	if input.Limit <= 0 || input.Limit > MaxResultLimit {
		return fmt.Errorf("limit must be greater than 0 and cannot exceed %d (received %d)", MaxResultLimit, input.Limit)
	}
	cfg.ResultLimit = input.Limit

	// --- 2. Precision and Output Validation ---
	if input.Precision < 0 || input.Precision > 4 {
		return fmt.Errorf("precision must be between 0 and 4 (received %d)", input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json", cfg.Output)
	}

	// --- 3. Category Filter ---
	cfg.Category = ""
	if strings.TrimSpace(input.Category) != "" {
		category, err := schema.ParseCategory(input.Category)
		if err != nil {
			return err
		}
		cfg.Category = category
	}

	// --- 4. Logging ---
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(input.LogLevel))
	switch cfg.LogLevel {
	case "":
		cfg.LogLevel = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level '%s'. must be debug, info, warn, error", input.LogLevel)
	}
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(input.LogFormat))
	switch cfg.LogFormat {
	case "":
		cfg.LogFormat = "console"
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format '%s'. must be console or json", input.LogFormat)
	}

	return nil
}

// processCalendar handles the business zone, end of day and polling cadence.
func processCalendar(cfg *Config, input *ConfigRawInput) error {
	tz := strings.TrimSpace(input.Timezone)
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", input.Timezone, err)
	}
	cfg.Location = loc

	if input.EODHour < 0 || input.EODHour > 23 {
		return fmt.Errorf("eod-hour must be between 0 and 23 (received %d)", input.EODHour)
	}
	if input.EODMinute < 0 || input.EODMinute > 59 {
		return fmt.Errorf("eod-minute must be between 0 and 59 (received %d)", input.EODMinute)
	}
	cfg.EODHour = input.EODHour
	cfg.EODMinute = input.EODMinute

	cfg.WeekStart, err = ParseWeekday(input.WeekStartsOn)
	if err != nil {
		return err
	}

	cfg.PollInterval, err = parseDurationOr(input.PollInterval, DefaultPollInterval)
	if err != nil {
		return fmt.Errorf("invalid poll-interval: %w", err)
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll-interval must be positive (received %s)", cfg.PollInterval)
	}

	cfg.BatchTolerance, err = parseDurationOr(input.BatchTolerance, DefaultBatchTolerance)
	if err != nil {
		return fmt.Errorf("invalid batch-tolerance: %w", err)
	}
	if cfg.BatchTolerance < 0 {
		return fmt.Errorf("batch-tolerance cannot be negative (received %s)", cfg.BatchTolerance)
	}

	return nil
}

// processAggregation resolves the level toggles. A disabled level disables its dependents.
func processAggregation(cfg *Config, input *ConfigRawInput) error {
	raw := input.Aggregation
	agg := AggregationConfig{
		HourlyEnabled:     raw.Hourly.Enabled,
		DailyEnabled:      raw.Daily.Enabled,
		WeeklyEnabled:     raw.Weekly.Enabled,
		MonthlyEnabled:    raw.Monthly.Enabled,
		ValidationEnabled: raw.Hourly.ValidationEnabled,
		MaxCatchupHours:   raw.Hourly.MaxCatchupHours,
		CatchupDays:       raw.CatchupDays,
	}

	switch strings.ToLower(strings.TrimSpace(raw.Daily.AggregateFrom)) {
	case "", string(schema.DailyFromHourly):
		agg.DailySource = schema.DailyFromHourly
	case string(schema.DailyFromRaw):
		agg.DailySource = schema.DailyFromRaw
	default:
		return fmt.Errorf("invalid aggregation.daily.aggregate-from '%s'. must be hourly or raw", raw.Daily.AggregateFrom)
	}

	if agg.MaxCatchupHours < 1 {
		return fmt.Errorf("aggregation.hourly.max-catchup-hours must be at least 1 (received %d)", agg.MaxCatchupHours)
	}
	if agg.CatchupDays < 0 {
		return fmt.Errorf("aggregation.catchup-days cannot be negative (received %d)", agg.CatchupDays)
	}

	// Daily built from batch aggregates needs the hourly level.
	if !agg.HourlyEnabled && agg.DailySource == schema.DailyFromHourly {
		agg.DailyEnabled = false
	}
	if !agg.DailyEnabled {
		agg.WeeklyEnabled = false
	}
	if !agg.WeeklyEnabled {
		agg.MonthlyEnabled = false
	}

	cfg.Aggregation = agg
	return nil
}

// processTracking validates the tracking enricher settings.
func processTracking(cfg *Config, input *ConfigRawInput) error {
	raw := input.Tracking
	if raw.Workers <= 0 {
		return fmt.Errorf("tracking.workers must be greater than 0 (received %d)", raw.Workers)
	}
	timeout, err := parseDurationOr(raw.Timeout, DefaultTrackingTimeout)
	if err != nil {
		return fmt.Errorf("invalid tracking.timeout: %w", err)
	}
	if timeout <= 0 {
		return fmt.Errorf("tracking.timeout must be positive (received %s)", timeout)
	}
	cfg.Tracking = TrackingConfig{
		Enabled:            raw.Enabled,
		Workers:            raw.Workers,
		Timeout:            timeout,
		UPSClientID:        input.UPS.ClientID,
		UPSClientSecret:    input.UPS.ClientSecret,
		FedExAPIKey:        input.FedEx.APIKey,
		FedExAPISecret:     input.FedEx.APISecret,
		FedExUseProduction: input.FedEx.UseProduction,
	}
	return nil
}

// ParseWeekday parses the configured first day of the week.
func ParseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sunday", "sun":
		return time.Sunday, nil
	case "monday", "mon":
		return time.Monday, nil
	default:
		return time.Sunday, fmt.Errorf("invalid week-starts-on '%s'. must be Sunday or Monday", s)
	}
}

// parseDurationOr parses s as a duration, using def when s is empty.
func parseDurationOr(s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

// Clone returns a shallow copy of the config for per-request overrides.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
