package telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for scene building.
type Metrics struct {
	config MetricsConfig

	// Script metrics
	scriptRuns     *prometheus.CounterVec
	scriptDuration *prometheus.HistogramVec

	// Graph metrics
	attachments      prometheus.Counter
	attachRejections *prometheus.CounterVec
	traversals       *prometheus.CounterVec
	modulesBuilt     prometheus.Counter
	moduleSites      prometheus.Histogram
	sceneNodes       prometheus.Gauge

	// Lint metrics
	policyViolations *prometheus.CounterVec

	registry *prometheus.Registry
	server   *http.Server
}

// NewMetrics creates a new metrics collector with the given configuration.
// A disabled collector accepts every call and records nothing.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
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

		scriptRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "script_runs_total",
				Help:      "Total number of scene script runs",
			},
			[]string{"status"},
		),
		scriptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "script_duration_seconds",
				Help:      "Duration of scene script runs in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		attachments: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attachments_total",
				Help:      "Total number of parent/child edges recorded",
			},
		),
		attachRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attach_rejections_total",
				Help:      "Total number of rejected attaches by error code",
			},
			[]string{"code"},
		),
		traversals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "traversals_total",
				Help:      "Total number of graph traversals",
			},
			[]string{"direction", "outcome"},
		),
		modulesBuilt: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "modules_built_total",
				Help:      "Total number of module templates built",
			},
		),
		moduleSites: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "module_sites",
				Help:      "Number of attachment sites per built module",
				Buckets:   []float64{0, 1, 2, 4, 8, 16, 32},
			},
		),
		sceneNodes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scene_nodes",
				Help:      "Number of nodes in the most recently built scene",
			},
		),

		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of policy violations by policy and severity",
			},
			[]string{"policy", "severity"},
		),
	}

	registry.MustRegister(
		m.scriptRuns,
		m.scriptDuration,
		m.attachments,
		m.attachRejections,
		m.traversals,
		m.modulesBuilt,
		m.moduleSites,
		m.sceneNodes,
		m.policyViolations,
	)

	return m, nil
}

// Enabled reports whether the collector records anything.
func (m *Metrics) Enabled() bool {
	return m.registry != nil
}

// RecordScriptRun records a finished script run.
func (m *Metrics) RecordScriptRun(status string, duration time.Duration) {
	if !m.Enabled() {
		return
	}
	m.scriptRuns.WithLabelValues(status).Inc()
	m.scriptDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordAttach counts a recorded edge.
func (m *Metrics) RecordAttach() {
	if !m.Enabled() {
		return
	}
	m.attachments.Inc()
}

// RecordAttachRejected counts a rejected attach by error code.
func (m *Metrics) RecordAttachRejected(code string) {
	if !m.Enabled() {
		return
	}
	m.attachRejections.WithLabelValues(code).Inc()
}

// RecordTraversal counts a finished traversal.
func (m *Metrics) RecordTraversal(direction string, aborted bool) {
	if !m.Enabled() {
		return
	}
	outcome := "completed"
	if aborted {
		outcome = "aborted"
	}
	m.traversals.WithLabelValues(direction, outcome).Inc()
}

// RecordModuleBuilt counts a built module and its attachment sites.
func (m *Metrics) RecordModuleBuilt(sites int) {
	if !m.Enabled() {
		return
	}
	m.modulesBuilt.Inc()
	m.moduleSites.Observe(float64(sites))
}

// SetSceneNodes sets the node count of the latest scene.
func (m *Metrics) SetSceneNodes(count int) {
	if !m.Enabled() {
		return
	}
	m.sceneNodes.Set(float64(count))
}

// RecordPolicyViolation counts a policy violation.
func (m *Metrics) RecordPolicyViolation(policy, severity string) {
	if !m.Enabled() {
		return
	}
	m.policyViolations.WithLabelValues(policy, severity).Inc()
}

// Gather returns the current metric families, mostly for tests.
func (m *Metrics) Gather() (map[string]float64, error) {
	out := make(map[string]float64)
	if !m.Enabled() {
		return out, nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}
	for _, mf := range families {
		var total float64
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				total += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				total += metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				total += float64(metric.GetHistogram().GetSampleCount())
			}
		}
		out[mf.GetName()] = total
	}
	return out, nil
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server exposing the metrics. It returns
// once the listener is bound.
func (m *Metrics) StartMetricsServer() error {
	if !m.Enabled() {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	listener, err := net.Listen("tcp", m.config.ListenAddress)
	if err != nil {
		return err
	}

	m.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		_ = m.server.Serve(listener)
	}()

	return nil
}

// Shutdown stops the metrics server, if one was started.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	if err := m.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
