package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so several instances can live side by side in
// one test binary.
type Metrics struct {
	Registry *prometheus.Registry

	CartAdds           *prometheus.CounterVec
	Checkouts          *prometheus.CounterVec
	CheckoutLatencyMS  *prometheus.HistogramVec
	PaymentCompletions *prometheus.CounterVec
	LowStockAlerts     prometheus.Counter
}

func New(service string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		CartAdds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "cart_adds_total",
			Help:      "Cart add attempts by result.",
		}, []string{"result"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by payment method and result.",
		}, []string{"method", "result"}),
		CheckoutLatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "checkout_duration_ms",
			Help:      "Checkout latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"method"}),
		PaymentCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "payment_completions_total",
			Help:      "Payment completion attempts by trigger and result.",
		}, []string{"trigger", "result"}),
		LowStockAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: service,
			Name:      "low_stock_alerts_total",
			Help:      "Low-stock alerts raised.",
		}),
	}
	reg.MustRegister(
		m.CartAdds, m.Checkouts, m.CheckoutLatencyMS, m.PaymentCompletions, m.LowStockAlerts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
