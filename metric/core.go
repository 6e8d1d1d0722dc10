package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the pipeline-level metrics shared by every component and routine.
type Metrics struct {
	ComponentRunning  *prometheus.GaugeVec
	RoutineRunning    *prometheus.GaugeVec
	RoutineIterations *prometheus.CounterVec
	RoutineIdle       *prometheus.CounterVec
	RoutineErrors     *prometheus.CounterVec
	ComponentLatency  *prometheus.HistogramVec
	LogicDuration     *prometheus.HistogramVec
}

// NewMetrics creates the pipeline metric vectors
func NewMetrics() *Metrics {
	return &Metrics{
		ComponentRunning: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "pipert",
				Subsystem: "component",
				Name:      "running",
				Help:      "Component run state (0=stopped, 1=running)",
			},
			[]string{"component"},
		),

		RoutineRunning: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "pipert",
				Subsystem: "routine",
				Name:      "running",
				Help:      "Routine run state (0=stopped, 1=running)",
			},
			[]string{"component", "routine", "mode"},
		),

		RoutineIterations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pipert",
				Subsystem: "routine",
				Name:      "iterations_total",
				Help:      "Main logic invocations that reported work done",
			},
			[]string{"component", "routine"},
		),

		RoutineIdle: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pipert",
				Subsystem: "routine",
				Name:      "idle_total",
				Help:      "Main logic invocations that reported no work available",
			},
			[]string{"component", "routine"},
		),

		RoutineErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pipert",
				Subsystem: "routine",
				Name:      "errors_total",
				Help:      "Routine errors by lifecycle phase",
			},
			[]string{"component", "routine", "phase"},
		),

		ComponentLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "pipert",
				Subsystem: "component",
				Name:      "latency_seconds",
				Help:      "Time a message spent inside a component",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"component"},
		),

		LogicDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "pipert",
				Subsystem: "routine",
				Name:      "logic_duration_seconds",
				Help:      "Duration of a single main logic invocation",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"component", "routine"},
		),
	}
}

func (c *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.ComponentRunning,
		c.RoutineRunning,
		c.RoutineIterations,
		c.RoutineIdle,
		c.RoutineErrors,
		c.ComponentLatency,
		c.LogicDuration,
	}
}

// RecordComponentRunning updates the component run state gauge
func (c *Metrics) RecordComponentRunning(component string, running bool) {
	c.ComponentRunning.WithLabelValues(component).Set(boolToFloat(running))
}

// RecordRoutineRunning updates the routine run state gauge
func (c *Metrics) RecordRoutineRunning(component, routine, mode string, running bool) {
	c.RoutineRunning.WithLabelValues(component, routine, mode).Set(boolToFloat(running))
}

// RecordIteration counts one main logic invocation and its duration
func (c *Metrics) RecordIteration(component, routine string, didWork bool, duration time.Duration) {
	if didWork {
		c.RoutineIterations.WithLabelValues(component, routine).Inc()
	} else {
		c.RoutineIdle.WithLabelValues(component, routine).Inc()
	}
	c.LogicDuration.WithLabelValues(component, routine).Observe(duration.Seconds())
}

// RecordRoutineError increments the error counter for a lifecycle phase
func (c *Metrics) RecordRoutineError(component, routine, phase string) {
	c.RoutineErrors.WithLabelValues(component, routine, phase).Inc()
}

// RecordLatency observes the time a message spent inside a component
func (c *Metrics) RecordLatency(component string, latency time.Duration) {
	c.ComponentLatency.WithLabelValues(component).Observe(latency.Seconds())
}

func boolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
