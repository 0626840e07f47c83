// Package metrics provides the observability hooks for an import run.
//
// Components receive a Recorder through their constructors and default to
// NoopRecorder, so nothing needs nil checks:
//
//	loc := assets.NewLocalizer(cfg, client, metrics.NoopRecorder{})
//
// When a metrics file is configured the CLI swaps in a PrometheusRecorder and
// writes its registry with WriteTextfile once the run ends, in the format the
// node-exporter textfile collector expects.
package metrics
