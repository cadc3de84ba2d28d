package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig holds metrics collector configuration.
type MetricsConfig struct {
	// Enabled turns metric collection on. Disabled yields a no-op
	// collector.
	Enabled bool

	// Namespace is the metric name prefix.
	Namespace string

	// DefaultHistogramBuckets overrides the default duration buckets.
	DefaultHistogramBuckets []float64
}

// Metrics provides Prometheus metrics for the installer engine.
type Metrics struct {
	config MetricsConfig

	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec

	stepsExecuted *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec

	assetFeedback *prometheus.CounterVec

	registryEntries prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of orchestrator runs started",
			},
			[]string{"mode"},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of orchestrator runs completed",
			},
			[]string{"mode", "status"},
		),
		stepsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_executed_total",
				Help:      "Total number of steps executed",
			},
			[]string{"mode"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of step execution in seconds",
				Buckets:   buckets,
			},
			[]string{"mode"},
		),
		assetFeedback: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "asset_feedback_total",
				Help:      "Feedback messages recorded per asset type and severity",
			},
			[]string{"asset", "severity"},
		),
		registryEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "registry_entries",
				Help:      "Identifier registry entries held by the last run",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.runsStarted,
		m.runsCompleted,
		m.stepsExecuted,
		m.stepDuration,
		m.assetFeedback,
		m.registryEntries,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// enabled reports whether this instance records anything.
func (m *Metrics) enabled() bool {
	return m != nil && m.config.Enabled
}

// RunStarted records the start of an orchestrator run.
func (m *Metrics) RunStarted(mode string) {
	if !m.enabled() {
		return
	}
	m.runsStarted.WithLabelValues(mode).Inc()
}

// RunCompleted records the completion of an orchestrator run.
func (m *Metrics) RunCompleted(mode, status string) {
	if !m.enabled() {
		return
	}
	m.runsCompleted.WithLabelValues(mode, status).Inc()
}

// StepExecuted records one executed step and its duration.
func (m *Metrics) StepExecuted(mode string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.stepsExecuted.WithLabelValues(mode).Inc()
	m.stepDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// AssetFeedback records feedback messages for an asset type by severity.
func (m *Metrics) AssetFeedback(asset, severity string, count int) {
	if !m.enabled() || count == 0 {
		return
	}
	m.assetFeedback.WithLabelValues(asset, severity).Add(float64(count))
}

// RegistryEntries records the identifier registry size of the last run.
func (m *Metrics) RegistryEntries(n int) {
	if !m.enabled() {
		return
	}
	m.registryEntries.Set(float64(n))
}

// Handler returns an HTTP handler exposing the metrics registry.
func (m *Metrics) Handler() http.Handler {
	if !m.enabled() {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
