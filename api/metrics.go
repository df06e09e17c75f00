package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exposed at /metrics. Each
// Server owns its own registry rather than using the global default, so
// multiple Servers (e.g. in tests) never collide registering the same
// collector twice.
type Metrics struct {
	registry *prometheus.Registry

	TradesTotal     prometheus.Counter
	OrdersSubmitted *prometheus.CounterVec
	OrdersRejected  prometheus.Counter
	OrdersResting   prometheus.Gauge
}

// NewMetrics builds and registers the collector set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		TradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orderbookmesh",
			Name:      "trades_total",
			Help:      "Total number of trades executed by this node's order book.",
		}),
		OrdersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderbookmesh",
			Name:      "orders_submitted_total",
			Help:      "Total number of orders accepted via the REST adapter, by side and type.",
		}, []string{"side", "type"}),
		OrdersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orderbookmesh",
			Name:      "orders_rejected_total",
			Help:      "Total number of orders rejected by validation via the REST adapter.",
		}),
		OrdersResting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "orderbookmesh",
			Name:      "orders_resting",
			Help:      "Current number of orders resting on the book.",
		}),
	}

	registry.MustRegister(m.TradesTotal, m.OrdersSubmitted, m.OrdersRejected, m.OrdersResting)
	return m
}

// Handler returns the HTTP handler serving this Metrics' registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
