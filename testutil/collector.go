package testutil

import (
	"sync"
	"time"

	"github.com/ItamarWilf/PipeRT/metric"
)

// LatencySample is one CollectLatency call.
type LatencySample struct {
	Value     time.Duration
	Component string
}

// RecordingCollector is a metric.Collector that keeps every sample.
type RecordingCollector struct {
	mu      sync.Mutex
	samples []LatencySample
}

var _ metric.Collector = (*RecordingCollector)(nil)

// CollectLatency implements metric.Collector.
func (c *RecordingCollector) CollectLatency(value time.Duration, componentName string) {
	c.mu.Lock()
	c.samples = append(c.samples, LatencySample{Value: value, Component: componentName})
	c.mu.Unlock()
}

// Samples returns a copy of the recorded samples.
func (c *RecordingCollector) Samples() []LatencySample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LatencySample(nil), c.samples...)
}

// Len returns the number of recorded samples.
func (c *RecordingCollector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}
