// Package metrics provides prometheus instrumentation for populate runs and
// validation calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of the reporting pipeline. All methods are safe
// on a nil receiver so instrumentation stays optional.
type Metrics struct {
	// Populate runs by outcome ("ok" or "error")
	PopulateRuns *prometheus.CounterVec

	// Stored values touched by populate, by result
	PopulateValues *prometheus.CounterVec

	PopulateLatency prometheus.Histogram

	// Validation HTTP attempts by status class
	ValidationAttempts *prometheus.CounterVec

	// Final validation results by outcome
	ValidationOutcomes *prometheus.CounterVec

	// Latency of a full validation call including retries
	ValidationLatency prometheus.Histogram
}

// New creates a Metrics instance with all collectors registered on reg.
// Pass prometheus.DefaultRegisterer to expose them on the default handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PopulateRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "amsf_populate_runs_total",
			Help: "Total populate runs by outcome",
		}, []string{"outcome"}),

		PopulateValues: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "amsf_populate_values_total",
			Help: "Submission values handled by populate, by result",
		}, []string{"result"}), // result: "inserted", "updated", "unchanged", "locked"

		PopulateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "amsf_populate_duration_seconds",
			Help:    "Duration of a populate run including aggregation",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		ValidationAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "amsf_validation_attempts_total",
			Help: "HTTP attempts against the validation service by status",
		}, []string{"status"}), // status: "2xx", "422", "503", "transport", "other"

		ValidationOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "amsf_validation_outcomes_total",
			Help: "Validation results by outcome",
		}, []string{"outcome"}),

		ValidationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "amsf_validation_duration_seconds",
			Help:    "Duration of a validation call including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// ObservePopulate records one populate run.
func (m *Metrics) ObservePopulate(inserted, updated, unchanged, locked int, d time.Duration, err error) {
	if m == nil {
		return
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.PopulateRuns.WithLabelValues(outcome).Inc()
	m.PopulateLatency.Observe(d.Seconds())
	if err != nil {
		return
	}

	m.PopulateValues.WithLabelValues("inserted").Add(float64(inserted))
	m.PopulateValues.WithLabelValues("updated").Add(float64(updated))
	m.PopulateValues.WithLabelValues("unchanged").Add(float64(unchanged))
	m.PopulateValues.WithLabelValues("locked").Add(float64(locked))
}

// IncrementValidationAttempt records one HTTP attempt.
func (m *Metrics) IncrementValidationAttempt(status string) {
	if m != nil {
		m.ValidationAttempts.WithLabelValues(status).Inc()
	}
}

// IncrementValidationOutcome records the final result of a validation call.
func (m *Metrics) IncrementValidationOutcome(outcome string) {
	if m != nil {
		m.ValidationOutcomes.WithLabelValues(outcome).Inc()
	}
}

// ObserveValidationLatency records the duration of a validation call.
func (m *Metrics) ObserveValidationLatency(d time.Duration) {
	if m != nil {
		m.ValidationLatency.Observe(d.Seconds())
	}
}
