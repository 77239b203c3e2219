// Package metrics provides publish-pipeline instrumentation.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so instrumentation never needs nil checks. The Prometheus
// implementation is swapped in by the serve command when metrics are enabled:
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	coord := publish.NewCoordinator(mgr, publish.WithRecorder(rec))
//	mux.Handle("/metrics", metrics.HTTPHandler(reg))
package metrics
