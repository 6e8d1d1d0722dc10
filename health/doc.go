// Package health turns component snapshots into a three-level health report.
//
// A Status is healthy, degraded or unhealthy. FromComponentStatus derives the
// status of one component from its routines: a running component whose routines
// all run is healthy, one with some finished or failed routines is degraded, and
// one with no running routine is unhealthy. Stopped components report healthy.
// FromPipeline folds every component into a single status with Aggregate.
//
// Routine error messages are sanitized before they are exposed: URLs, paths,
// IP addresses, ports and credentials are replaced by placeholders.
//
//	st := health.FromPipeline("pipert", manager.Status())
//	if !st.IsHealthy() {
//		w.WriteHeader(http.StatusServiceUnavailable)
//	}
package health
