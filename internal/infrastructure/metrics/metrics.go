// Package metrics provides prometheus instrumentation for pseudonymization runs.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks assignment outcomes, document runs and erasures.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Assignments by entity type and outcome (NEW, REUSED)
	Assignments *prometheus.CounterVec

	// Ambiguous entities flagged for review, by entity type
	Ambiguous *prometheus.CounterVec

	// Documents processed by result (success, failure)
	Documents *prometheus.CounterVec

	DocumentDuration prometheus.Histogram

	// Spans dropped by the reviewer
	ValidationRejected prometheus.Counter

	Erasures prometheus.Counter

	// Pool fallbacks by stage (combined, numbered)
	PoolFallbacks *prometheus.CounterVec
}

// New registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Assignments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pseudo_assignments_total",
			Help: "Pseudonym assignments by entity type and outcome",
		}, []string{"entity_type", "outcome"}),

		Ambiguous: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pseudo_ambiguous_entities_total",
			Help: "Entities flagged ambiguous for human review",
		}, []string{"entity_type"}),

		Documents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pseudo_documents_total",
			Help: "Documents processed by result",
		}, []string{"result"}),

		DocumentDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pseudo_document_duration_seconds",
			Help:    "Duration of one document's detection-to-commit pass",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		ValidationRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "pseudo_validation_rejected_total",
			Help: "Spans rejected during human validation",
		}),

		Erasures: f.NewCounter(prometheus.CounterOpts{
			Name: "pseudo_erasures_total",
			Help: "Entities permanently erased",
		}),

		PoolFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pseudo_pool_fallbacks_total",
			Help: "Pseudonym draws that fell back past their primary pool",
		}, []string{"stage"}),
	}
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// IncrementAssignment records one assignment outcome.
func (m *Metrics) IncrementAssignment(entityType, outcome string) {
	if m != nil {
		m.Assignments.WithLabelValues(entityType, outcome).Inc()
	}
}

// IncrementAmbiguous records an entity flagged for review.
func (m *Metrics) IncrementAmbiguous(entityType string) {
	if m != nil {
		m.Ambiguous.WithLabelValues(entityType).Inc()
	}
}

// ObserveDocument records one document run.
func (m *Metrics) ObserveDocument(success bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.Documents.WithLabelValues(result).Inc()
	m.DocumentDuration.Observe(d.Seconds())
}

// AddValidationRejected records rejected spans.
func (m *Metrics) AddValidationRejected(n int) {
	if m != nil && n > 0 {
		m.ValidationRejected.Add(float64(n))
	}
}

// IncrementErasure records a completed erasure.
func (m *Metrics) IncrementErasure() {
	if m != nil {
		m.Erasures.Inc()
	}
}

// IncrementPoolFallback records a draw that left its primary pool.
func (m *Metrics) IncrementPoolFallback(stage string) {
	if m != nil {
		m.PoolFallbacks.WithLabelValues(stage).Inc()
	}
}

// WriteTextfile writes the current values in the node-exporter textfile
// format. It is a no-op for a nil receiver or an empty path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
