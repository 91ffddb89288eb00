// Package main provides a performance benchmarking tool for the callstat CLI.
// It seeds a SQLite snapshot source with batches of increasing size and times
// one `callstat process` run per batch, treating the first run as cold and
// averaging the rest as warm, generating CSV output for performance analysis.
//
// Prerequisites:
// - callstat binary installed and available in PATH
//
// Usage: go run benchmark/main.go [calls-per-batch ...]
//
//	calls-per-batch: open calls in each pushed batch (default 100 1000 10000)
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/callstat/internal/iostore"
	"github.com/huangsam/callstat/schema"
)

// BenchmarkResult holds the result of a benchmark run (cold run and average of warm runs).
type BenchmarkResult struct {
	Calls    int
	ColdTime string
	WarmTime string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	Timeout     time.Duration
	Batches     int
	ClosedEach  int
	BatchSizes  []int
	TimeZone    string
	BatchPeriod time.Duration
}

func main() {
	sizes := []int{100, 1000, 10000}
	if len(os.Args) > 1 {
		sizes = sizes[:0]
		for _, arg := range os.Args[1:] {
			n, err := strconv.Atoi(arg)
			if err != nil || n <= 0 {
				fmt.Printf("Usage: %s [calls-per-batch ...]\n", os.Args[0])
				os.Exit(1)
			}
			sizes = append(sizes, n)
		}
	}

	config := BenchmarkConfig{
		Timeout:     5 * time.Minute,
		Batches:     5,
		ClosedEach:  10,
		BatchSizes:  sizes,
		TimeZone:    "America/Chicago",
		BatchPeriod: 30 * time.Minute,
	}

	if _, err := exec.LookPath("callstat"); err != nil {
		fmt.Printf("Prerequisites check failed: callstat binary not found in PATH\n")
		os.Exit(1)
	}

	results, err := runBenchmarks(config)
	if err != nil {
		fmt.Printf("Benchmark failed: %v\n", err)
		os.Exit(1)
	}

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results)
}

// runBenchmarks times processing for every configured batch size.
func runBenchmarks(config BenchmarkConfig) ([]BenchmarkResult, error) {
	fmt.Printf("Starting benchmark: %d sizes, %d batches each, %v timeout\n",
		len(config.BatchSizes), config.Batches, config.Timeout)

	var results []BenchmarkResult
	for _, size := range config.BatchSizes {
		result, err := runBenchmarkSuite(config, size)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// runBenchmarkSuite seeds a fresh SQLite file and processes each batch as it lands.
func runBenchmarkSuite(config BenchmarkConfig, size int) (BenchmarkResult, error) {
	fmt.Printf("Benchmarking %d calls per batch\n", size)

	dir, err := os.MkdirTemp("", "callstat-benchmark-*")
	if err != nil {
		return BenchmarkResult{}, err
	}
	defer func() { _ = os.RemoveAll(dir) }()

	dbPath := filepath.Join(dir, "callstat.db")
	env := []string{
		"CALLSTAT_SOURCE_BACKEND=sqlite",
		"CALLSTAT_SOURCE_DB_CONNECT=" + dbPath,
		"CALLSTAT_STORE_BACKEND=sqlite",
		"CALLSTAT_STORE_DB_CONNECT=" + dbPath,
		"CALLSTAT_TIMEZONE=" + config.TimeZone,
		"CALLSTAT_LOG_LEVEL=error",
	}
	if _, err := runCallstat(config, dir, env, "migrate"); err != nil {
		return BenchmarkResult{}, fmt.Errorf("migrate failed: %w", err)
	}

	loc, err := time.LoadLocation(config.TimeZone)
	if err != nil {
		return BenchmarkResult{}, err
	}
	source, err := iostore.NewSourceStore(schema.SQLiteBackend, dbPath, "", loc, time.Second)
	if err != nil {
		return BenchmarkResult{}, err
	}
	defer func() { _ = source.Close() }()

	start := time.Date(2025, 3, 4, 8, 0, 0, 0, loc)
	var times []float64
	for i := range config.Batches {
		pushedAt := start.Add(time.Duration(i) * config.BatchPeriod)
		records := seedBatch(int64(i+1), pushedAt, size, i*config.ClosedEach)
		if err := source.InsertRecords(context.Background(), records); err != nil {
			return BenchmarkResult{}, fmt.Errorf("seeding batch %d failed: %w", i+1, err)
		}

		began := time.Now()
		output, err := runCallstat(config, dir, env, "process", "--output", "json")
		if err == nil && isSuccess(output) {
			times = append(times, time.Since(began).Seconds())
		}
	}

	result := BenchmarkResult{Calls: size, ColdTime: "TIMEOUT", WarmTime: "TIMEOUT"}
	if len(times) > 0 {
		result.ColdTime = fmt.Sprintf("%.3fs", times[0])
	}
	if len(times) > 1 {
		var sum float64
		for _, t := range times[1:] {
			sum += t
		}
		result.WarmTime = fmt.Sprintf("%.3fs", sum/float64(len(times)-1))
	}
	fmt.Printf("  Cold time: %s, Warm average: %s\n", result.ColdTime, result.WarmTime)
	return result, nil
}

// seedBatch builds a batch of open calls with the first closed IDs already gone.
func seedBatch(batchID int64, pushedAt time.Time, size, closed int) []schema.SnapshotRecord {
	records := make([]schema.SnapshotRecord, 0, size)
	for i := closed; i < closed+size; i++ {
		equipment := fmt.Sprintf("SS-%06d", i)
		if i%2 == 0 {
			equipment = fmt.Sprintf("N4R-%06d", i)
		}
		records = append(records, schema.SnapshotRecord{
			ServiceCallID: fmt.Sprintf("SC-%06d", i),
			Status:        "OPEN",
			Appointment:   1 + i%4,
			OpenedAt:      pushedAt.Add(-time.Duration(i%48) * time.Hour),
			EquipmentID:   equipment,
			BatchID:       batchID,
			PushedAt:      pushedAt,
		})
	}
	return records
}

// runCallstat executes the CLI with a timeout and returns its stdout.
func runCallstat(config BenchmarkConfig, dir string, env []string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "callstat", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	return cmd.Output()
}

// isSuccess checks if the cycle result reports a processed batch.
func isSuccess(output []byte) bool {
	return strings.Contains(string(output), `"processed": true`)
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("/tmp/callstat_benchmark_%s.csv", timestamp)

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"calls", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, result := range results {
		if err := writer.Write([]string{strconv.Itoa(result.Calls), result.ColdTime, result.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, result := range results {
		fmt.Printf("  %8d calls: Cold: %s, Warm: %s\n", result.Calls, result.ColdTime, result.WarmTime)
	}
}
