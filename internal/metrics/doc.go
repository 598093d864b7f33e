// Package metrics provides observability hooks for the feeding bot.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so call sites never nil-check:
//
//	engine := lifecycle.NewEngine(store, rules) // NoopRecorder
//	engine := lifecycle.NewEngine(store, rules, lifecycle.WithMetrics(metrics.NewPrometheusRecorder(reg)))
//
// The daemon exposes the Prometheus registry through HTTPHandler when a
// metrics address is configured.
package metrics
