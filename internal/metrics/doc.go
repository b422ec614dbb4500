// Package metrics records build-cycle observations.
//
// Components receive a Recorder and default to NoopRecorder, so no call site
// needs a nil check. Watch mode swaps in a PrometheusRecorder and exposes it
// through HTTPHandler when metrics.listen is configured.
package metrics
