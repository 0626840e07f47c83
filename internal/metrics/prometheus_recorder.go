package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once          sync.Once
	registry      *prom.Registry
	fetchDuration *prom.HistogramVec
	topicResults  *prom.CounterVec
	assetOutcomes *prom.CounterVec
	substitutions *prom.CounterVec
	runDuration   prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.once.Do(func() {
		pr.fetchDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "discourse_import",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of HTTP fetches against the forum and image hosts",
			Buckets:   prom.DefBuckets,
		}, []string{"kind", "result"})
		pr.topicResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "discourse_import",
			Name:      "topics_total",
			Help:      "Topics processed by outcome",
		}, []string{"result"})
		pr.assetOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "discourse_import",
			Name:      "assets_total",
			Help:      "Image localizations by outcome",
		}, []string{"outcome"})
		pr.substitutions = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "discourse_import",
			Name:      "substitutions_total",
			Help:      "Image references rewritten, by syntactic form",
		}, []string{"form"})
		pr.runDuration = prom.NewGauge(prom.GaugeOpts{
			Namespace: "discourse_import",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of the last import run",
		})
		reg.MustRegister(pr.fetchDuration, pr.topicResults, pr.assetOutcomes, pr.substitutions, pr.runDuration)
	})
	return pr
}

// Registry returns the registry the recorder's collectors live in.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	if p == nil {
		return nil
	}
	return p.registry
}

func (p *PrometheusRecorder) ObserveFetchDuration(kind string, d time.Duration, success bool) {
	if p == nil || p.fetchDuration == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.fetchDuration.WithLabelValues(kind, res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTopicResult(result ResultLabel) {
	if p == nil || p.topicResults == nil {
		return
	}
	p.topicResults.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncAssetOutcome(outcome AssetOutcome) {
	if p == nil || p.assetOutcomes == nil {
		return
	}
	p.assetOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) AddSubstitutions(form string, n int) {
	if p == nil || p.substitutions == nil || n <= 0 {
		return
	}
	p.substitutions.WithLabelValues(form).Add(float64(n))
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Set(d.Seconds())
}
