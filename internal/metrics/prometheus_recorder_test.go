package metrics

import (
	"errors"
	"io"
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

	pr.ObserveTaskDuration("style", 150*time.Millisecond)
	pr.IncTaskResult("style", ResultSuccess)
	pr.IncTaskResult("style", ResultFailed)
	pr.IncRerun("style")
	pr.IncReload()
	pr.SetReloadClients(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(pr.taskResults.WithLabelValues("style", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.reruns.WithLabelValues("style")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.reloads))
	assert.Equal(t, 3.0, testutil.ToFloat64(pr.reloadClients))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.ObserveTaskDuration("x", time.Second)
		pr.IncTaskResult("x", ResultSuccess)
		pr.IncRerun("x")
		pr.IncReload()
		pr.SetReloadClients(1)
	})
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncReload()

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "assetpipe_reload_signals_total")
}

func TestResultFor(t *testing.T) {
	assert.Equal(t, ResultSuccess, ResultFor(nil))
	assert.Equal(t, ResultFailed, ResultFor(errors.New("x")))
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	assert.NotPanics(t, func() {
		r.ObserveTaskDuration("x", time.Second)
		r.IncTaskResult("x", ResultFailed)
		r.IncRerun("g")
		r.IncReload()
		r.SetReloadClients(0)
	})
}
