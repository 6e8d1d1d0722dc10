package buffer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ItamarWilf/PipeRT/metric"
)

// bufferMetrics exports buffer activity for one owner (normally a queue).
type bufferMetrics struct {
	registry *metric.MetricsRegistry
	owner    string
	names    []string

	writes      prometheus.Counter
	reads       prometheus.Counter
	drops       prometheus.Counter
	size        prometheus.Gauge
	utilization prometheus.Gauge
}

func newBufferMetrics(registry *metric.MetricsRegistry, owner string) (*bufferMetrics, error) {
	labels := prometheus.Labels{"owner": owner}
	m := &bufferMetrics{
		registry: registry,
		owner:    owner,
		writes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "pipert",
			Subsystem:   "queue",
			Name:        "puts_total",
			ConstLabels: labels,
			Help:        "Messages written to the queue",
		}),
		reads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "pipert",
			Subsystem:   "queue",
			Name:        "gets_total",
			ConstLabels: labels,
			Help:        "Messages read from the queue",
		}),
		drops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "pipert",
			Subsystem:   "queue",
			Name:        "drops_total",
			ConstLabels: labels,
			Help:        "Messages lost to the overflow policy",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "pipert",
			Subsystem:   "queue",
			Name:        "length",
			ConstLabels: labels,
			Help:        "Current number of messages in the queue",
		}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "pipert",
			Subsystem:   "queue",
			Name:        "utilization",
			ConstLabels: labels,
			Help:        "Queue fill ratio (0.0 to 1.0)",
		}),
	}

	counters := map[string]prometheus.Counter{
		"queue_puts":  m.writes,
		"queue_gets":  m.reads,
		"queue_drops": m.drops,
	}
	for name, c := range counters {
		if err := registry.RegisterCounter(owner, name, c); err != nil {
			m.unregister()
			return nil, err
		}
		m.names = append(m.names, name)
	}
	gauges := map[string]prometheus.Gauge{
		"queue_length":      m.size,
		"queue_utilization": m.utilization,
	}
	for name, g := range gauges {
		if err := registry.RegisterGauge(owner, name, g); err != nil {
			m.unregister()
			return nil, err
		}
		m.names = append(m.names, name)
	}

	return m, nil
}

func (m *bufferMetrics) recordWrite(size, capacity int) {
	m.writes.Inc()
	m.updateSize(size, capacity)
}

func (m *bufferMetrics) recordRead(size, capacity int) {
	m.reads.Inc()
	m.updateSize(size, capacity)
}

func (m *bufferMetrics) recordDrop() {
	m.drops.Inc()
}

func (m *bufferMetrics) updateSize(size, capacity int) {
	m.size.Set(float64(size))
	m.utilization.Set(float64(size) / float64(capacity))
}

// unregister removes only the metrics this instance registered.
func (m *bufferMetrics) unregister() {
	for _, name := range m.names {
		m.registry.Unregister(m.owner, name)
	}
	m.names = nil
}
