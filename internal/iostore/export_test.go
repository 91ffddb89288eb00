package iostore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/callstat/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteExport(t *testing.T) {
	resetManager()
	cfg := testConfig(t, schema.SQLiteBackend)
	require.NoError(t, InitStores(cfg))
	defer CloseStores()

	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "callstat")

	err := ExecuteExport(ctx, out)
	assert.ErrorContains(t, err, "no batch statistics")

	at := time.Date(2025, 3, 4, 16, 0, 0, 0, time.UTC)
	_, err = Manager.GetStatStore().InsertStat(ctx, schema.BatchStat{
		Category: schema.CategoryRecyclers, BatchID: 1, BatchTime: at, TotalOpen: 3,
	})
	require.NoError(t, err)
	_, err = Manager.GetRollupStore().InsertAggregate(ctx, schema.PeriodAggregate{
		Level: schema.LevelDaily, Category: schema.CategoryRecyclers, Key: "2025-03-04",
		PeriodStart: at.Add(-10 * time.Hour), PeriodEnd: at.Add(14 * time.Hour), BusinessDate: "2025-03-04",
		Year: 2025, Index: 4, ComputedAt: at,
	})
	require.NoError(t, err)

	require.NoError(t, ExecuteExport(ctx, out))
	for _, name := range []string{out + ".batch_stats.parquet", out + ".daily_periods.parquet"} {
		_, err := os.Stat(name)
		assert.NoError(t, err, "%s should exist", name)
	}
	_, err = os.Stat(out + ".weekly_periods.parquet")
	assert.True(t, os.IsNotExist(err), "empty levels are skipped")

	assert.Error(t, ExecuteExport(ctx, ""))
}
