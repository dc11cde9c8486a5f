package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for ledger transitions.
type Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	eventsTotal       *prometheus.CounterVec
	rollbacksTotal    *prometheus.CounterVec
}

// NewMetrics creates and registers the ledger metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "farmscope_operations_total",
			Help: "Top-level ledger operations, labeled by component, operation and result.",
		}, []string{"component", "operation", "result"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "farmscope_operation_duration_seconds",
			Help:    "Wall time spent executing a top-level ledger operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"component", "operation"}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "farmscope_events_total",
			Help: "Committed event logs, labeled by event name.",
		}, []string{"event"}),
		rollbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "farmscope_rollbacks_total",
			Help: "Aborted transitions, labeled by failure kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.operationsTotal, m.operationDuration, m.eventsTotal, m.rollbacksTotal)
	return m
}

// ObserveOperation records one finished top-level operation. An empty kind
// means success.
func (m *Metrics) ObserveOperation(component, operation, kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if kind != "" {
		result = kind
		m.rollbacksTotal.WithLabelValues(kind).Inc()
	}
	m.operationsTotal.WithLabelValues(component, operation, result).Inc()
	m.operationDuration.WithLabelValues(component, operation).Observe(elapsed.Seconds())
}

// ObserveEvent counts a committed event.
func (m *Metrics) ObserveEvent(name string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(name).Inc()
}
