package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	assert.Equal(t, prometheus.DefaultRegisterer, Registry)
}

func TestObserveRequest(t *testing.T) {
	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("batch", "200"))
	failedBefore := testutil.ToFloat64(RequestsTotal.WithLabelValues("batch", "error"))

	ObserveRequest("batch", 200, 150*time.Millisecond)
	ObserveRequest("batch", 0, time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(RequestsTotal.WithLabelValues("batch", "200")))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(RequestsTotal.WithLabelValues("batch", "error")))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(true))
	assert.Equal(t, "failed", Outcome(false))
}

func TestHandlerExposesCollectors(t *testing.T) {
	RowsTotal.Add(3)
	BatchesTotal.WithLabelValues("ok").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "engagedl_rows_total"))
	assert.True(t, strings.Contains(body, `engagedl_batches_total{outcome="ok"}`))
}
