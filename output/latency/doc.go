// Package latency provides LatencySink, a headless terminal routine that
// measures how long messages took to cross the pipeline.
package latency
