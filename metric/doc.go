// Package metric provides Prometheus-based metrics for PipeRT pipelines.
//
// MetricsRegistry owns a private prometheus.Registry holding the core pipeline
// metrics (component and routine run state, main logic iterations, routine
// errors and per-component message latency) plus any owner-specific metrics
// registered through the MetricsRegistrar interface. Queues register their
// buffer counters this way.
//
// Routines report latency through the Collector interface. Components share a
// single collector; NoopCollector is used when metrics are disabled.
//
//	registry := metric.NewMetricsRegistry()
//	collector := metric.CollectorFor(registry)
//	mux.Handle("/metrics", registry.Handler())
package metric
