// Package metrics exposes prometheus collectors for the recommendation pipeline.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "programme_advisor"

// Outcome labels for model calls.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Decode path labels.
const (
	PathPrimary   = "primary"
	PathSecondary = "secondary"
	PathNone      = "none"
)

// Catalogue source labels.
const (
	SourceStore  = "store"
	SourceInline = "inline"
	SourceNone   = "none"
)

// Metrics groups the pipeline collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	ModelCalls      *prometheus.CounterVec
	ModelDuration   *prometheus.HistogramVec
	DecodePaths     *prometheus.CounterVec
	Failures        *prometheus.CounterVec
	CatalogueSource *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ModelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_calls_total",
			Help:      "Generative model calls by component and outcome.",
		}, []string{"component", "outcome"}),
		ModelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_duration_seconds",
			Help:      "Latency of generative model calls.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"component"}),
		DecodePaths: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_path_total",
			Help:      "Recommendation decode attempts by path.",
		}, []string{"path"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Pipeline failures by kind.",
		}, []string{"kind"}),
		CatalogueSource: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalogue_source_total",
			Help:      "Catalogue resolutions by the source that produced them.",
		}, []string{"source"}),
	}

	if reg == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{m.ModelCalls, m.ModelDuration, m.DecodePaths, m.Failures, m.CatalogueSource} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return m, nil
}

// ObserveModelCall records one model call.
func (m *Metrics) ObserveModelCall(component string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.ModelCalls.WithLabelValues(component, outcome).Inc()
	m.ModelDuration.WithLabelValues(component).Observe(elapsed.Seconds())
}

// ObserveDecodePath records which decode path produced (or failed to produce) a result.
func (m *Metrics) ObserveDecodePath(path string) {
	if m == nil {
		return
	}
	m.DecodePaths.WithLabelValues(path).Inc()
}

// ObserveFailure records a classified failure.
func (m *Metrics) ObserveFailure(kind string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(kind).Inc()
}

// ObserveCatalogueSource records where a catalogue came from.
func (m *Metrics) ObserveCatalogueSource(source string) {
	if m == nil {
		return
	}
	m.CatalogueSource.WithLabelValues(source).Inc()
}
