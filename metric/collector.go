package metric

import (
	"time"
)

// Collector receives latency samples from routines. Routines hold a shared
// reference; they never own the collector.
type Collector interface {
	CollectLatency(value time.Duration, componentName string)
}

// NoopCollector discards every sample. It is used when no monitoring backend is configured.
type NoopCollector struct{}

// CollectLatency implements Collector
func (NoopCollector) CollectLatency(time.Duration, string) {}

// PrometheusCollector records latency samples into the registry's component latency histogram.
type PrometheusCollector struct {
	metrics *Metrics
}

// NewPrometheusCollector creates a collector backed by the registry's core metrics.
// A nil registry yields a collector that behaves like NoopCollector.
func NewPrometheusCollector(registry *MetricsRegistry) *PrometheusCollector {
	if registry == nil {
		return &PrometheusCollector{}
	}
	return &PrometheusCollector{metrics: registry.CoreMetrics()}
}

// CollectLatency implements Collector
func (p *PrometheusCollector) CollectLatency(value time.Duration, componentName string) {
	if p.metrics == nil || value < 0 {
		return
	}
	p.metrics.RecordLatency(componentName, value)
}

// CollectorFor returns a Prometheus-backed collector when registry is set and a
// NoopCollector otherwise.
func CollectorFor(registry *MetricsRegistry) Collector {
	if registry == nil {
		return NoopCollector{}
	}
	return NewPrometheusCollector(registry)
}
