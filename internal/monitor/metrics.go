package monitor

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for a grading run. The grader is a
// batch tool, so metrics are exported through a node_exporter textfile
// rather than scraped.
type Metrics struct {
	Registry *prometheus.Registry

	SubmissionsTotal  *prometheus.CounterVec
	StepDuration      *prometheus.HistogramVec
	ProcessRuns       *prometheus.CounterVec
	TestsTotal        *prometheus.CounterVec
	ArchivesCollapsed prometheus.Counter
	ArtifactsMoved    prometheus.Counter
	LastRunTimestamp  prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics using a dedicated registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		SubmissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "grader",
				Name:      "submissions_total",
				Help:      "Submissions processed, by final pipeline state.",
			},
			[]string{"state"},
		),

		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "grader",
				Name:      "step_duration_seconds",
				Help:      "Duration of pipeline steps in seconds.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"step"},
		),

		ProcessRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "grader",
				Name:      "process_runs_total",
				Help:      "External process invocations by step and status.",
			},
			[]string{"step", "status"},
		),

		TestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "grader",
				Name:      "tests_total",
				Help:      "Test invocations by result.",
			},
			[]string{"status"},
		),

		ArchivesCollapsed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "grader",
				Name:      "archives_collapsed_total",
				Help:      "Extracted submissions whose nested wrapper directories were removed.",
			},
		),

		ArtifactsMoved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "grader",
				Name:      "artifacts_relocated_total",
				Help:      "Output artifacts moved into the output directory after a fallback run.",
			},
		),

		LastRunTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "grader",
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last grading batch finished.",
			},
		),
	}

	reg.MustRegister(
		m.SubmissionsTotal,
		m.StepDuration,
		m.ProcessRuns,
		m.TestsTotal,
		m.ArchivesCollapsed,
		m.ArtifactsMoved,
		m.LastRunTimestamp,
	)

	return m
}

// RecordStep records the duration of one pipeline step.
func (m *Metrics) RecordStep(step string, durationSec float64) {
	m.StepDuration.WithLabelValues(step).Observe(durationSec)
}

// RecordProcess records an external process invocation.
func (m *Metrics) RecordProcess(step, status string) {
	m.ProcessRuns.WithLabelValues(step, status).Inc()
}

// RecordTest records a single test result.
func (m *Metrics) RecordTest(passed bool) {
	status := "failed"
	if passed {
		status = "passed"
	}
	m.TestsTotal.WithLabelValues(status).Inc()
}

// RecordSubmission records the final state of a submission.
func (m *Metrics) RecordSubmission(state string) {
	m.SubmissionsTotal.WithLabelValues(state).Inc()
}

// WriteTextfile writes the registry in the text exposition format,
// atomically replacing path.
func (m *Metrics) WriteTextfile(path string) error {
	m.LastRunTimestamp.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
