package contract

import (
	"errors"
	"testing"
	"time"

	"github.com/huangsam/callstat/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validInput returns raw input matching the CLI defaults.
func validInput() *ConfigRawInput {
	return &ConfigRawInput{
		SourceBackend: string(schema.SQLiteBackend),
		StoreBackend:  string(schema.SQLiteBackend),
		Timezone:      DefaultTimezone,
		EODHour:       DefaultEODHour,
		EODMinute:     DefaultEODMinute,
		WeekStartsOn:  DefaultWeekStart,
		Limit:         DefaultResultLimit,
		Precision:     DefaultPrecision,
		Output:        "text",
		Color:         "yes",
		Aggregation: AggregationRawInput{
			Hourly:      HourlyRawInput{Enabled: true, ValidationEnabled: true, MaxCatchupHours: DefaultMaxCatchupHours},
			Daily:       DailyRawInput{Enabled: true, AggregateFrom: "hourly"},
			Weekly:      LevelRawInput{Enabled: true},
			Monthly:     LevelRawInput{Enabled: true},
			CatchupDays: DefaultCatchupDays,
		},
		Tracking: TrackingRawInput{Workers: DefaultTrackingWorkers, Timeout: "10s"},
	}
}

func TestProcessAndValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*ConfigRawInput)
		expectError bool
	}{
		{name: "valid defaults", mutate: func(*ConfigRawInput) {}},
		{name: "invalid limit (zero)", mutate: func(in *ConfigRawInput) { in.Limit = 0 }, expectError: true},
		{name: "invalid limit (too large)", mutate: func(in *ConfigRawInput) { in.Limit = MaxResultLimit + 1 }, expectError: true},
		{name: "invalid precision", mutate: func(in *ConfigRawInput) { in.Precision = 5 }, expectError: true},
		{name: "invalid output format", mutate: func(in *ConfigRawInput) { in.Output = "xml" }, expectError: true},
		{name: "invalid color", mutate: func(in *ConfigRawInput) { in.Color = "maybe" }, expectError: true},
		{name: "invalid timezone", mutate: func(in *ConfigRawInput) { in.Timezone = "Mars/Olympus" }, expectError: true},
		{name: "invalid eod hour", mutate: func(in *ConfigRawInput) { in.EODHour = 24 }, expectError: true},
		{name: "invalid eod minute", mutate: func(in *ConfigRawInput) { in.EODMinute = -1 }, expectError: true},
		{name: "invalid week start", mutate: func(in *ConfigRawInput) { in.WeekStartsOn = "Friday" }, expectError: true},
		{name: "invalid poll interval", mutate: func(in *ConfigRawInput) { in.PollInterval = "soon" }, expectError: true},
		{name: "zero poll interval", mutate: func(in *ConfigRawInput) { in.PollInterval = "0s" }, expectError: true},
		{name: "negative tolerance", mutate: func(in *ConfigRawInput) { in.BatchTolerance = "-1s" }, expectError: true},
		{name: "invalid daily source", mutate: func(in *ConfigRawInput) { in.Aggregation.Daily.AggregateFrom = "weekly" }, expectError: true},
		{name: "invalid catchup hours", mutate: func(in *ConfigRawInput) { in.Aggregation.Hourly.MaxCatchupHours = 0 }, expectError: true},
		{name: "invalid tracking workers", mutate: func(in *ConfigRawInput) { in.Tracking.Workers = 0 }, expectError: true},
		{name: "invalid log level", mutate: func(in *ConfigRawInput) { in.LogLevel = "verbose" }, expectError: true},
		{name: "invalid log format", mutate: func(in *ConfigRawInput) { in.LogFormat = "xml" }, expectError: true},
		{name: "invalid category", mutate: func(in *ConfigRawInput) { in.Category = "atms" }, expectError: true},
		{name: "invalid store backend", mutate: func(in *ConfigRawInput) { in.StoreBackend = "oracle" }, expectError: true},
		{name: "mysql store without dsn", mutate: func(in *ConfigRawInput) { in.StoreBackend = "mysql" }, expectError: true},
		{
			name: "postgres source with dsn",
			mutate: func(in *ConfigRawInput) {
				in.SourceBackend = "postgresql"
				in.SourceDBConnect = "host=localhost port=5432 dbname=calls"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(input)
			cfg := &Config{}
			err := ProcessAndValidate(cfg, input)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProcessAndValidateDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, validInput()))

	assert.Equal(t, "America/Chicago", cfg.Location.String())
	assert.Equal(t, time.Sunday, cfg.WeekStart)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, DefaultBatchTolerance, cfg.BatchTolerance)
	assert.Equal(t, DefaultSourceTable, cfg.SourceTable)
	assert.Equal(t, DefaultTicketTable, cfg.TicketTable)
	assert.Equal(t, schema.SQLiteBackend, cfg.TicketBackend)
	assert.Equal(t, schema.DailyFromHourly, cfg.Aggregation.DailySource)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, DefaultTrackingTimeout, cfg.Tracking.Timeout)
	assert.Empty(t, cfg.Category)
	assert.True(t, cfg.UseColors)
}

func TestProcessAggregationDependencies(t *testing.T) {
	t.Run("hourly off disables daily from hourly", func(t *testing.T) {
		input := validInput()
		input.Aggregation.Hourly.Enabled = false
		cfg := &Config{}
		require.NoError(t, ProcessAndValidate(cfg, input))
		assert.False(t, cfg.Aggregation.DailyEnabled)
		assert.False(t, cfg.Aggregation.WeeklyEnabled)
		assert.False(t, cfg.Aggregation.MonthlyEnabled)
	})

	t.Run("hourly off keeps daily from raw", func(t *testing.T) {
		input := validInput()
		input.Aggregation.Hourly.Enabled = false
		input.Aggregation.Daily.AggregateFrom = "raw"
		cfg := &Config{}
		require.NoError(t, ProcessAndValidate(cfg, input))
		assert.True(t, cfg.Aggregation.DailyEnabled)
		assert.True(t, cfg.Aggregation.MonthlyEnabled)
	})

	t.Run("weekly off disables monthly", func(t *testing.T) {
		input := validInput()
		input.Aggregation.Weekly.Enabled = false
		cfg := &Config{}
		require.NoError(t, ProcessAndValidate(cfg, input))
		assert.True(t, cfg.Aggregation.DailyEnabled)
		assert.False(t, cfg.Aggregation.MonthlyEnabled)
	})
}

func TestTicketBackendOverride(t *testing.T) {
	input := validInput()
	input.TicketBackend = "mysql"
	input.TicketDBConnect = "user:pass@tcp(localhost:3306)/tickets"
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, input))
	assert.Equal(t, schema.MySQLBackend, cfg.TicketBackend)
	assert.Equal(t, input.TicketDBConnect, cfg.TicketDBConnect)
}

func TestInvalidBackendIsSentinel(t *testing.T) {
	input := validInput()
	input.SourceBackend = "mongodb"
	err := ProcessAndValidate(&Config{}, input)
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrUnsupportedBackend))
}

func TestValidateDatabaseConnectionString(t *testing.T) {
	tests := []struct {
		name        string
		backend     schema.DatabaseBackend
		connStr     string
		expectError bool
	}{
		{"sqlite accepts anything", schema.SQLiteBackend, "", false},
		{"none accepts anything", schema.NoneBackend, "whatever", false},
		{"mysql valid", schema.MySQLBackend, "user:pass@tcp(localhost:3306)/db", false},
		{"mysql empty", schema.MySQLBackend, "", true},
		{"mysql missing tcp", schema.MySQLBackend, "user:pass@localhost/db", true},
		{"mysql missing db", schema.MySQLBackend, "user:pass@tcp(localhost:3306)", true},
		{"postgres valid", schema.PostgreSQLBackend, "host=localhost dbname=db", false},
		{"postgres missing host", schema.PostgreSQLBackend, "dbname=db", true},
		{"postgres missing dbname", schema.PostgreSQLBackend, "host=localhost", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDatabaseConnectionString("store-db-connect", tt.backend, tt.connStr)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseWeekday(t *testing.T) {
	for in, want := range map[string]time.Weekday{
		"":       time.Sunday,
		"Sunday": time.Sunday,
		"mon":    time.Monday,
		"MONDAY": time.Monday,
	} {
		got, err := ParseWeekday(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseWeekday("Tuesday")
	assert.Error(t, err)
}
