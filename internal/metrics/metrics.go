package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry       *prometheus.Registry
	tasksScheduled *prometheus.CounterVec
	tasksFinished  *prometheus.CounterVec
	tasksPending   *prometheus.GaugeVec
	importRows     *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tasksScheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perfdash",
			Name:      "tasks_scheduled_total",
			Help:      "Background tasks scheduled, by kind.",
		}, []string{"kind"}),
		tasksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perfdash",
			Name:      "tasks_finished_total",
			Help:      "Background tasks finished, by kind and final state.",
		}, []string{"kind", "state"}),
		tasksPending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "perfdash",
			Name:      "tasks_pending",
			Help:      "Background tasks waiting for their delay to elapse.",
		}, []string{"kind"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perfdash",
			Name:      "import_rows_total",
			Help:      "CSV rows processed by the import wizard, by outcome.",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perfdash",
			Name:      "push_notifications_total",
			Help:      "Web push deliveries, by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perfdash",
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "perfdash",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.tasksScheduled,
		m.tasksFinished,
		m.tasksPending,
		m.importRows,
		m.notifications,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) TaskScheduled(kind string) {
	if m == nil {
		return
	}
	m.tasksScheduled.WithLabelValues(kind).Inc()
	m.tasksPending.WithLabelValues(kind).Inc()
}

func (m *Metrics) TaskFinished(kind, state string) {
	if m == nil {
		return
	}
	m.tasksFinished.WithLabelValues(kind, state).Inc()
	m.tasksPending.WithLabelValues(kind).Dec()
}

func (m *Metrics) ImportRows(success, errors, warnings int) {
	if m == nil {
		return
	}
	m.importRows.WithLabelValues("success").Add(float64(success))
	m.importRows.WithLabelValues("error").Add(float64(errors))
	m.importRows.WithLabelValues("warning").Add(float64(warnings))
}

func (m *Metrics) NotificationSent(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
