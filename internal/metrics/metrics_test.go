package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRollup(t *testing.T) {
	before := testutil.ToFloat64(RollupsTotal.WithLabelValues("daily", "committed"))
	ObserveRollup("daily", 2, 0)
	ObserveRollup("daily", 0, 0)
	assert.Equal(t, before+2, testutil.ToFloat64(RollupsTotal.WithLabelValues("daily", "committed")))

	skipped := testutil.ToFloat64(RollupsTotal.WithLabelValues("weekly", "skipped"))
	ObserveRollup("weekly", 0, 3)
	assert.Equal(t, skipped+3, testutil.ToFloat64(RollupsTotal.WithLabelValues("weekly", "skipped")))
}

func TestHandler(t *testing.T) {
	CyclesTotal.WithLabelValues(ResultIdle).Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "callstat_cycles_total")
	assert.NotContains(t, string(body), "go_goroutines", "private registry has no runtime collectors")
}
