package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration(StageCompile, 150*time.Millisecond)
	pr.IncStageResult(StageCompile, ResultSuccess)
	pr.IncRequestOutcome("batch", ResultSuccess)
	pr.IncRequestOutcome("batch", ResultSuccess)
	pr.IncUnknownModuleRecovery()
	pr.IncConnectAttempt(false)
	pr.SetQueueDepth(3)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)

	assert.InDelta(t, 2, testutil.ToFloat64(pr.requestOutcomes.WithLabelValues("batch", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.recoveries), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(pr.queueDepth), 0)
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncConnectAttempt(true)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pursloader_ide_connect_attempts_total")
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.ObserveStageDuration(StageBundle, time.Second)
		pr.IncStageResult(StageBundle, ResultFailed)
		pr.SetQueueDepth(1)
	})
}
