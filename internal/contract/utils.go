package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
)

// Rate label constants.
const (
	GoodValue  = "Good"  // Rate at or above the good threshold
	FairValue  = "Fair"  // Rate between the thresholds
	PoorValue  = "Poor"  // Rate below the fair threshold
	EmptyValue = "Empty" // Nothing to rate yet
)

// Color variables for console output.
var (
	GoodColor  = color.New(color.FgGreen, color.Bold) // GoodColor signals a healthy rate.
	FairColor  = color.New(color.FgYellow)            // FairColor signals caution, not bold.
	PoorColor  = color.New(color.FgRed, color.Bold)   // PoorColor signals a rate worth looking into.
	EmptyColor = color.New(color.FgCyan)              // EmptyColor is informational.
)

// GetPlainLabel returns a plain text label for a first-time-fix style rate in [0, 1].
// Closed is the number of calls the rate is computed over; zero means nothing to rate.
func GetPlainLabel(rate float64, closed int) string {
	switch {
	case closed == 0:
		return EmptyValue
	case rate >= 0.8:
		return GoodValue
	case rate >= 0.6:
		return FairValue
	default:
		return PoorValue
	}
}

// GetColorLabel returns a colored text label for console output (table).
// It uses GetPlainLabel to determine the string, and then applies the appropriate color.
func GetColorLabel(rate float64, closed int) string {
	text := GetPlainLabel(rate, closed)

	switch text {
	case GoodValue:
		return GoodColor.Sprint(text)
	case FairValue:
		return FairColor.Sprint(text)
	case PoorValue:
		return PoorColor.Sprint(text)
	default:
		return EmptyColor.Sprint(text)
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. An empty path means os.Stdout.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// homeFile returns name under the home directory, or name itself when there is none.
func homeFile(name string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(homeDir, name)
}

// GetStoreDBFilePath returns the path to the SQLite DB file for statistics storage.
func GetStoreDBFilePath() string {
	return homeFile(".callstat.db")
}

// GetSourceDBFilePath returns the path to the SQLite DB file holding the snapshot source.
func GetSourceDBFilePath() string {
	return homeFile(".callstat_source.db")
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
