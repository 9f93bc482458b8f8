package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of an installer run.
// A nil or disabled *Metrics ignores every call.
type Metrics struct {
	config MetricsConfig

	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	stepsExecuted *prometheus.CounterVec
	stepsSkipped  *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec

	dependencyChecks       *prometheus.CounterVec
	dependencyAcquisitions *prometheus.CounterVec
	dependencyDuration     *prometheus.HistogramVec

	journalEntries *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates the collectors and registers them on a private registry.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	ns := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	m := &Metrics{
		config:   cfg,
		registry: prometheus.NewRegistry(),

		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "runs_started_total",
			Help:      "Workflow runs started, by tag",
		}, []string{"tag"}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "runs_completed_total",
			Help:      "Workflow runs finished, by tag and status",
		}, []string{"tag", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "run_duration_seconds",
			Help:      "Wall time of workflow runs",
			Buckets:   buckets,
		}, []string{"tag", "status"}),

		stepsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "steps_executed_total",
			Help:      "Steps executed, by task kind and status",
		}, []string{"kind", "status"}),
		stepsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "steps_skipped_total",
			Help:      "Steps not eligible for the current platform and tag",
		}, []string{"tag"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "step_duration_seconds",
			Help:      "Wall time of step execution",
			Buckets:   buckets,
		}, []string{"kind"}),

		dependencyChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "dependency_checks_total",
			Help:      "Dependency presence checks, by dependency and result",
		}, []string{"dependency", "result"}),
		dependencyAcquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "dependency_acquisitions_total",
			Help:      "Dependency acquisitions, by dependency and status",
		}, []string{"dependency", "status"}),
		dependencyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "dependency_acquisition_duration_seconds",
			Help:      "Wall time of dependency acquisition",
			Buckets:   buckets,
		}, []string{"dependency"}),

		journalEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "journal_entries",
			Help:      "Entries held by the uninstall journal at the end of the run",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.stepsExecuted,
		m.stepsSkipped,
		m.stepDuration,
		m.dependencyChecks,
		m.dependencyAcquisitions,
		m.dependencyDuration,
		m.journalEntries,
	)

	return m, nil
}

func (m *Metrics) disabled() bool {
	return m == nil || m.registry == nil
}

// RecordRunStarted counts a started run.
func (m *Metrics) RecordRunStarted(tag string) {
	if m.disabled() {
		return
	}
	m.runsStarted.WithLabelValues(tag).Inc()
}

// RecordRunCompleted counts a finished run and observes its duration.
func (m *Metrics) RecordRunCompleted(tag, status string, duration time.Duration) {
	if m.disabled() {
		return
	}
	m.runsCompleted.WithLabelValues(tag, status).Inc()
	m.runDuration.WithLabelValues(tag, status).Observe(duration.Seconds())
}

// RecordStep counts an executed step and observes its duration.
func (m *Metrics) RecordStep(kind, status string, duration time.Duration) {
	if m.disabled() {
		return
	}
	m.stepsExecuted.WithLabelValues(kind, status).Inc()
	m.stepDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordStepSkipped counts a step filtered out by eligibility.
func (m *Metrics) RecordStepSkipped(tag string) {
	if m.disabled() {
		return
	}
	m.stepsSkipped.WithLabelValues(tag).Inc()
}

// RecordDependencyCheck counts a presence check; result is installed,
// missing or error.
func (m *Metrics) RecordDependencyCheck(dependency, result string) {
	if m.disabled() {
		return
	}
	m.dependencyChecks.WithLabelValues(dependency, result).Inc()
}

// RecordDependencyAcquisition counts an acquisition attempt.
func (m *Metrics) RecordDependencyAcquisition(dependency, status string, duration time.Duration) {
	if m.disabled() {
		return
	}
	m.dependencyAcquisitions.WithLabelValues(dependency, status).Inc()
	m.dependencyDuration.WithLabelValues(dependency).Observe(duration.Seconds())
}

// SetJournalEntries records how many entries of a kind the journal holds.
func (m *Metrics) SetJournalEntries(kind string, count int) {
	if m.disabled() {
		return
	}
	m.journalEntries.WithLabelValues(kind).Set(float64(count))
}

// WriteTextfile writes the registry in the text exposition format to the
// configured path, for pickup by the node exporter textfile collector.
func (m *Metrics) WriteTextfile() error {
	if m.disabled() || m.config.TextfilePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.config.TextfilePath), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(m.config.TextfilePath, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
