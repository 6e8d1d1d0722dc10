package metric

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ItamarWilf/PipeRT/errors"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	assert.NotNil(t, registry)
	assert.NotNil(t, registry.PrometheusRegistry())
	assert.NotNil(t, registry.CoreMetrics())
}

func TestMetricsRegistry_RegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "A test counter",
	})

	require.NoError(t, registry.RegisterCounter("cam", "test_counter", counter))
	counter.Inc()

	metricFamilies, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() == "test_counter" {
			found = true
			break
		}
	}
	assert.True(t, found, "counter should be gathered")
}

func TestMetricsRegistry_DuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "dup_gauge", Help: "dup"})
	require.NoError(t, registry.RegisterGauge("cam", "dup_gauge", gauge))

	err := registry.RegisterGauge("cam", "dup_gauge", gauge)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	// Same prometheus name under a different owner conflicts in prometheus itself.
	other := prometheus.NewGauge(prometheus.GaugeOpts{Name: "dup_gauge", Help: "dup"})
	err = registry.RegisterGauge("other", "dup_gauge", other)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestMetricsRegistry_Unregister(t *testing.T) {
	registry := NewMetricsRegistry()

	h := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "h_seconds", Help: "h"})
	require.NoError(t, registry.RegisterHistogram("cam", "h_seconds", h))

	assert.True(t, registry.Unregister("cam", "h_seconds"))
	assert.False(t, registry.Unregister("cam", "h_seconds"))

	// Name is free again after unregistering.
	require.NoError(t, registry.RegisterHistogram("cam", "h_seconds",
		prometheus.NewHistogram(prometheus.HistogramOpts{Name: "h_seconds", Help: "h"})))
}

func TestMetricsRegistry_UnregisterOwner(t *testing.T) {
	registry := NewMetricsRegistry()

	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("owned_%d", i)
		require.NoError(t, registry.RegisterCounter("queue.frames", name,
			prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: name})))
	}
	require.NoError(t, registry.RegisterCounter("queue.framesX", "other",
		prometheus.NewCounter(prometheus.CounterOpts{Name: "other", Help: "other"})))

	assert.Equal(t, 3, registry.UnregisterOwner("queue.frames"))
	assert.Equal(t, 0, registry.UnregisterOwner("queue.frames"))
	assert.True(t, registry.Unregister("queue.framesX", "other"))
}

func TestMetricsRegistry_UnregisterOwnerMatchesWholeOwner(t *testing.T) {
	registry := NewMetricsRegistry()

	require.NoError(t, registry.RegisterCounter("cam", "frames_total",
		prometheus.NewCounter(prometheus.CounterOpts{Name: "cam_frames_total", Help: "h"})))
	require.NoError(t, registry.RegisterCounter("cam.frames", "writes_total",
		prometheus.NewCounter(prometheus.CounterOpts{Name: "cam_frames_writes_total", Help: "h"})))
	// Same joined text as cam.frames/writes_total, different owner.
	require.NoError(t, registry.RegisterCounter("cam.frames.writes", "total",
		prometheus.NewCounter(prometheus.CounterOpts{Name: "cam_frames_writes_other", Help: "h"})))

	assert.Equal(t, 1, registry.UnregisterOwner("cam"))
	assert.True(t, registry.Unregister("cam.frames", "writes_total"))
	assert.True(t, registry.Unregister("cam.frames.writes", "total"))
}

func TestMetricsRegistry_ConcurrentRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("concurrent_%d", i)
			errs <- registry.RegisterCounter("svc", name,
				prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: name}))
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestMetrics_RecordIteration(t *testing.T) {
	registry := NewMetricsRegistry()
	m := registry.CoreMetrics()

	m.RecordIteration("cam", "gen", true, time.Millisecond)
	m.RecordIteration("cam", "gen", true, time.Millisecond)
	m.RecordIteration("cam", "gen", false, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RoutineIterations.WithLabelValues("cam", "gen")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RoutineIdle.WithLabelValues("cam", "gen")))
}

func TestMetrics_RunStateGauges(t *testing.T) {
	m := NewMetrics()

	m.RecordComponentRunning("cam", true)
	m.RecordRoutineRunning("cam", "gen", "thread", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ComponentRunning.WithLabelValues("cam")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RoutineRunning.WithLabelValues("cam", "gen", "thread")))

	m.RecordComponentRunning("cam", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ComponentRunning.WithLabelValues("cam")))

	m.RecordRoutineError("cam", "gen", "setup")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RoutineErrors.WithLabelValues("cam", "gen", "setup")))
}

func TestMetricsRegistry_Handler(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordComponentRunning("cam", true)

	srv := httptest.NewServer(registry.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `pipert_component_running{component="cam"} 1`))
}
