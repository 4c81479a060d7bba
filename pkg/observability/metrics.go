// Package observability exposes the gateway's Prometheus metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the gateway's counters and histograms.
type Metrics struct {
	Exchanges        *prometheus.CounterVec
	ExchangeDuration *prometheus.HistogramVec
	TasksTotal       *prometheus.CounterVec
	ChunksDelivered  prometheus.Counter
}

// NewMetrics creates the metric set and registers it on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolgate",
			Name:      "exchanges_total",
			Help:      "Tool server exchanges by server and outcome.",
		}, []string{"server", "outcome"}),
		ExchangeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "toolgate",
			Name:      "exchange_duration_seconds",
			Help:      "Tool server exchange latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"server"}),
		TasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toolgate",
			Name:      "tasks_total",
			Help:      "Completed tasks by command and outcome.",
		}, []string{"command", "outcome"}),
		ChunksDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "toolgate",
			Name:      "chunks_delivered_total",
			Help:      "WhatsApp chunks delivered.",
		}),
	}
	reg.MustRegister(m.Exchanges, m.ExchangeDuration, m.TasksTotal, m.ChunksDelivered)
	return m
}

// ObserveExchange records one tool server exchange. Its signature matches
// the orchestrator's observer hook.
func (m *Metrics) ObserveExchange(server, outcome string, elapsed time.Duration) {
	m.Exchanges.WithLabelValues(server, outcome).Inc()
	m.ExchangeDuration.WithLabelValues(server).Observe(elapsed.Seconds())
}

// ObserveTask records one completed task.
func (m *Metrics) ObserveTask(command, outcome string) {
	m.TasksTotal.WithLabelValues(command, outcome).Inc()
}

// ObserveChunk records one delivered WhatsApp chunk.
func (m *Metrics) ObserveChunk() {
	m.ChunksDelivered.Inc()
}
