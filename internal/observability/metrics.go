package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the counters recorded by the resilience layer and the task
// engine. Each instance owns its registry so tests can inspect it in
// isolation.
type Metrics struct {
	registry *prometheus.Registry

	resolutions     *prometheus.CounterVec
	actionAttempts  *prometheus.CounterVec
	classifications *prometheus.CounterVec
	extractions     *prometheus.CounterVec
	gateDecisions   *prometheus.CounterVec
	taskResults     *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	notifications   *prometheus.CounterVec
}

// NewMetrics registers every collector under the given namespace.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "cartwatch"
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locator_resolutions_total",
			Help:      "Locator chain resolutions by outcome and winning chain index.",
		}, []string{"outcome", "index"}),
		actionAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_attempts_total",
			Help:      "Activation attempts by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Content classification verdicts by deciding signal source.",
		}, []string{"verdict", "source"}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_extractions_total",
			Help:      "Price extraction results by winning strategy.",
		}, []string{"strategy", "outcome"}),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_decisions_total",
			Help:      "Time-window gate decisions per task.",
		}, []string{"task", "decision"}),
		taskResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_results_total",
			Help:      "Task outcomes per task and status.",
		}, []string{"task", "status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Wall time spent executing a task body.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"task"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound notifications by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		m.resolutions,
		m.actionAttempts,
		m.classifications,
		m.extractions,
		m.gateDecisions,
		m.taskResults,
		m.taskDuration,
		m.notifications,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// All recorders are nil-safe so components can run without metrics.

func (m *Metrics) RecordResolution(found bool, index string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome(found), index).Inc()
}

func (m *Metrics) RecordActionAttempt(strategy string, success bool) {
	if m == nil {
		return
	}
	m.actionAttempts.WithLabelValues(strategy, outcome(success)).Inc()
}

func (m *Metrics) RecordClassification(sponsored bool, source string) {
	if m == nil {
		return
	}
	verdict := "organic"
	if sponsored {
		verdict = "sponsored"
	}
	if source == "" {
		source = "none"
	}
	m.classifications.WithLabelValues(verdict, source).Inc()
}

func (m *Metrics) RecordExtraction(strategy string, found bool) {
	if m == nil {
		return
	}
	if strategy == "" {
		strategy = "none"
	}
	m.extractions.WithLabelValues(strategy, outcome(found)).Inc()
}

func (m *Metrics) RecordGateDecision(task string, run bool) {
	if m == nil {
		return
	}
	decision := "skip"
	if run {
		decision = "run"
	}
	m.gateDecisions.WithLabelValues(task, decision).Inc()
}

func (m *Metrics) RecordTaskResult(task, status string, seconds float64) {
	if m == nil {
		return
	}
	m.taskResults.WithLabelValues(task, status).Inc()
	m.taskDuration.WithLabelValues(task).Observe(seconds)
}

func (m *Metrics) RecordNotification(sent bool) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome(sent)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
