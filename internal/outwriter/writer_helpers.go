package outwriter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/huangsam/callstat/internal/contract"
)

// writeWithFile opens the output file (stdout when empty), runs writer on it
// and reports where the output went.
func writeWithFile(outputFile string, writer func(io.Writer) error, successMsg string) error {
	file, err := contract.SelectOutputFile(outputFile)
	if err != nil {
		return err
	}
	if file != os.Stdout {
		defer func() { _ = file.Close() }()
	}

	if err := writer(file); err != nil {
		return err
	}

	if file != os.Stdout {
		fmt.Fprintf(os.Stderr, "💾 %s to %s\n", successMsg, outputFile)
	}
	return nil
}

// writeJSON encodes data with two-space indentation.
func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// writeCSV writes a header and one row per item.
func writeCSV[T any](w io.Writer, header []string, items []T, row func(T) []string) error {
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, item := range items {
		if err := csvWriter.Write(row(item)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

// formatters holds the number and time renderers for one output run.
type formatters struct {
	precision int
	loc       *time.Location
}

func newFormatters(cfg *contract.Config) formatters {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return formatters{precision: cfg.Precision, loc: loc}
}

func (f formatters) float(v float64) string {
	return fmt.Sprintf("%.*f", f.precision, v)
}

func (f formatters) percent(v float64) string {
	return fmt.Sprintf("%.*f%%", f.precision, v*100)
}

func (f formatters) int(v int) string {
	return fmt.Sprintf("%d", v)
}

// clock renders an instant on the business wall clock.
func (f formatters) clock(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(f.loc).Format("2006-01-02 15:04")
}

// instant renders an instant for machine-readable output.
func (f formatters) instant(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(contract.DateTimeFormat)
}
