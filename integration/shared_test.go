//go:build basic || database

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/callstat/internal/iostore"
	"github.com/huangsam/callstat/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	// sharedCallstatPath holds the path to a shared callstat binary built once for all tests.
	sharedCallstatPath string

	// buildOnce ensures we only build the binary once.
	buildOnce sync.Once

	// buildMutex protects the shared binary path.
	buildMutex sync.Mutex

	// tempDir holds the temp directory for cleanup.
	tempDir string
)

// TestMain handles setup and cleanup for all integration tests.
func TestMain(m *testing.M) {
	// Run all tests
	code := m.Run()

	// Cleanup the shared binary after all tests
	if tempDir != "" {
		_ = os.RemoveAll(tempDir)
	}

	os.Exit(code)
}

// getCallstatBinary returns the path to the callstat binary, building it once if needed.
func getCallstatBinary() string {
	buildMutex.Lock()
	defer buildMutex.Unlock()

	buildOnce.Do(func() {
		// Create a temp directory for the binary
		var err error
		tempDir, err = os.MkdirTemp("", "callstat-integration-*")
		if err != nil {
			panic(fmt.Sprintf("failed to create temp dir: %v", err))
		}

		callstatPath := filepath.Join(tempDir, "callstat")
		buildCmd := exec.Command("go", "build", "-o", callstatPath, ".")
		buildCmd.Dir = ".." // Build from parent directory (project root)
		if err := buildCmd.Run(); err != nil {
			panic(fmt.Sprintf("failed to build callstat: %v", err))
		}

		sharedCallstatPath = callstatPath
	})

	return sharedCallstatPath
}

// runCallstat runs the CLI with env and returns its stdout.
func runCallstat(t *testing.T, env []string, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(getCallstatBinary(), args...)
	cmd.Dir = t.TempDir() // Keep .callstat.yaml and .env of the project out of the way
	cmd.Env = append(os.Environ(), env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Logf("Command failed: %s\nStdout: %s\nStderr: %s", cmd.String(), stdout.String(), stderr.String())
		return stdout.String(), err
	}
	return stdout.String(), nil
}

// snapshot builds one pushed batch in the business zone.
func snapshot(batchID int64, pushedAt time.Time, equipment map[string]string) []schema.SnapshotRecord {
	records := make([]schema.SnapshotRecord, 0, len(equipment))
	for id, eq := range equipment {
		records = append(records, schema.SnapshotRecord{
			ServiceCallID: id,
			Status:        "OPEN",
			Appointment:   1,
			OpenedAt:      pushedAt.Add(-2 * time.Hour),
			EquipmentID:   eq,
			BatchID:       batchID,
			PushedAt:      pushedAt,
		})
	}
	return records
}

// exerciseBackend pushes two batches into the source, processes each through
// the CLI and checks the closure detected between them.
func exerciseBackend(t *testing.T, backend schema.DatabaseBackend, connStr string) {
	ctx := context.Background()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	env := []string{
		"CALLSTAT_SOURCE_BACKEND=" + string(backend),
		"CALLSTAT_SOURCE_DB_CONNECT=" + connStr,
		"CALLSTAT_STORE_BACKEND=" + string(backend),
		"CALLSTAT_STORE_DB_CONNECT=" + connStr,
		"CALLSTAT_TIMEZONE=America/Chicago",
		"CALLSTAT_LOG_LEVEL=warn",
	}

	_, err = runCallstat(t, env, "migrate")
	require.NoError(t, err)

	source, err := iostore.NewSourceStore(backend, connStr, "", loc, time.Second)
	require.NoError(t, err)
	defer func() { _ = source.Close() }()

	first := time.Date(2025, 3, 4, 10, 0, 0, 0, loc)
	require.NoError(t, source.InsertRecords(ctx, snapshot(101, first, map[string]string{
		"SC-1": "N4R-0001", "SC-2": "N4R-0002", "SC-3": "SS-0003",
	})))
	_, err = runCallstat(t, env, "process")
	require.NoError(t, err)

	second := first.Add(30 * time.Minute)
	require.NoError(t, source.InsertRecords(ctx, snapshot(102, second, map[string]string{
		"SC-2": "N4R-0002", "SC-3": "SS-0003",
	})))
	out, err := runCallstat(t, env, "process", "--output", "json")
	require.NoError(t, err)

	var res schema.CycleResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Processed)
	assert.Equal(t, int64(102), res.Batch.BatchID)
	assert.Equal(t, 1, res.Closures[schema.CategoryRecyclers])
	assert.Equal(t, 0, res.Closures[schema.CategorySmartSafes])

	// Re-running the same batch scores nothing
	out, err = runCallstat(t, env, "process", "--output", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Processed)

	out, err = runCallstat(t, env, "report", "stats", "--category", "recyclers", "--output", "json")
	require.NoError(t, err)
	var stats []schema.BatchStat
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	require.Len(t, stats, 2)
	assert.Equal(t, int64(102), stats[0].BatchID)
	assert.Equal(t, 1, stats[0].TotalOpen)
	assert.Equal(t, 1, stats[0].ClosedSinceLast)

	_, err = runCallstat(t, env, "status")
	require.NoError(t, err)

	_, err = runCallstat(t, env, "clear")
	require.NoError(t, err)
}
