package metrics

import "time"

// ResultLabel enumerates outcome categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultSkipped ResultLabel = "skipped"
	ResultFailed  ResultLabel = "failed"
)

// AssetOutcome enumerates what the image localizer did for one reference.
type AssetOutcome string

const (
	AssetDownloaded AssetOutcome = "downloaded"
	AssetCached     AssetOutcome = "cached"
	AssetFailed     AssetOutcome = "failed"
	// AssetUnsupported marks references that are not fetchable (upload://, data:).
	AssetUnsupported AssetOutcome = "unsupported"
)

// Recorder defines observability hooks for an import run. Implementations
// may forward to Prometheus; NoopRecorder is the default.
type Recorder interface {
	ObserveFetchDuration(kind string, d time.Duration, success bool)
	IncTopicResult(result ResultLabel)
	IncAssetOutcome(outcome AssetOutcome)
	AddSubstitutions(form string, n int)
	ObserveRunDuration(d time.Duration)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveFetchDuration(string, time.Duration, bool) {}
func (NoopRecorder) IncTopicResult(ResultLabel)                      {}
func (NoopRecorder) IncAssetOutcome(AssetOutcome)                    {}
func (NoopRecorder) AddSubstitutions(string, int)                    {}
func (NoopRecorder) ObserveRunDuration(time.Duration)                {}
