package schema

import "errors"

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for a store.
	DatabaseBackend string

	// Category is one of the two disjoint equipment classes.
	Category string

	// Level is a rollup level above the per-batch statistics.
	Level string

	// DailySource selects what the daily summary is folded from.
	DailySource string
)

// All output modes supported.
const (
	CSVOut  OutputMode = "csv"
	TextOut OutputMode = "text" // default
	JSONOut OutputMode = "json"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// Equipment categories. Recyclers are matched by ID prefix, everything else is a smart safe.
const (
	CategoryRecyclers  Category = "recyclers"
	CategorySmartSafes Category = "smart_safes"
)

// Rollup levels, ordered from finest to coarsest.
const (
	LevelBatch   Level = "batch"
	LevelDaily   Level = "daily"
	LevelWeekly  Level = "weekly"
	LevelMonthly Level = "monthly"
)

// Daily summary sources.
const (
	DailyFromHourly DailySource = "hourly" // default
	DailyFromRaw    DailySource = "raw"
)

// Categories lists every category in processing order.
var Categories = []Category{CategoryRecyclers, CategorySmartSafes}

// Levels lists every rollup level in processing order.
var Levels = []Level{LevelBatch, LevelDaily, LevelWeekly, LevelMonthly}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:  {},
	TextOut: {},
	JSONOut: {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// Sentinel errors shared across packages.
var (
	ErrUnsupportedBackend = errors.New("unsupported backend")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidLevel       = errors.New("invalid level")
)

// ParseCategory resolves a category name, accepting the short aliases "a" and "b".
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryRecyclers, "a", "A":
		return CategoryRecyclers, nil
	case CategorySmartSafes, "b", "B":
		return CategorySmartSafes, nil
	}
	return "", ErrInvalidCategory
}

// ParseLevel resolves a rollup level name.
func ParseLevel(s string) (Level, error) {
	for _, l := range Levels {
		if string(l) == s {
			return l, nil
		}
	}
	return "", ErrInvalidLevel
}

// Title returns a human-readable category label.
func (c Category) Title() string {
	switch c {
	case CategoryRecyclers:
		return "Recyclers"
	case CategorySmartSafes:
		return "Smart Safes"
	}
	return string(c)
}
