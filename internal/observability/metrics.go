package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exported by the service.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	errorsTotal      *prometheus.CounterVec
	ledgerOperations *prometheus.CounterVec
	orderTransitions *prometheus.CounterVec
	paymentsTotal    *prometheus.CounterVec
	ticketEscalated  prometheus.Counter
	sweepRuns        *prometheus.CounterVec
	sweepDuration    prometheus.Histogram
}

// NewMetrics registers every collector on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Error responses by route and error code.",
		}, []string{"route", "method", "code"}),
		ledgerOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Inventory ledger operations by kind and result.",
		}, []string{"op", "result"}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Order status transitions by target status.",
		}, []string{"status"}),
		paymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment confirmations by method and outcome.",
		}, []string{"method", "outcome"}),
		ticketEscalated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crm_tickets_escalated_total",
			Help: "Tickets escalated by the SLA engine.",
		}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sweep_runs_total",
			Help: "Scheduled sweep runs by result.",
		}, []string{"result"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sweep_duration_seconds",
			Help:    "Duration of a full sweep.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.requestDuration,
		m.errorsTotal,
		m.ledgerOperations,
		m.orderTransitions,
		m.paymentsTotal,
		m.ticketEscalated,
		m.sweepRuns,
		m.sweepDuration,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(route, method, code).Inc()
}

// RecordLedger counts one ledger operation.
func (m *Metrics) RecordLedger(op string, err error) {
	if m == nil {
		return
	}
	m.ledgerOperations.WithLabelValues(op, resultLabel(err)).Inc()
}

// RecordOrderTransition counts an order entering status.
func (m *Metrics) RecordOrderTransition(status string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(status).Inc()
}

// RecordPayment counts a payment confirmation attempt.
func (m *Metrics) RecordPayment(method, outcome string) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(method, outcome).Inc()
}

// RecordEscalations adds n escalated tickets.
func (m *Metrics) RecordEscalations(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ticketEscalated.Add(float64(n))
}

// RecordSweep records one sweep run.
func (m *Metrics) RecordSweep(err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepRuns.WithLabelValues(resultLabel(err)).Inc()
	m.sweepDuration.Observe(duration.Seconds())
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
