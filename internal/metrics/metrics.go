package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors recorded by the payment workflow and the
// HTTP layer.
type Metrics struct {
	Outcomes        *prometheus.CounterVec
	Duration        *prometheus.HistogramVec
	PublishFailures *prometheus.CounterVec
	Requests        *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests
// to keep them isolated from the default registry.
func New(namespace string, reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "payment_confirmations_total",
			Help:      "Payment confirmations by terminal workflow state.",
		}, []string{"state"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "payment_confirmation_duration_seconds",
			Help:      "Duration of payment confirmation in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"state"}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "event_publish_failed_total",
			Help:      "Count of order event publish failures.",
		}, []string{"event"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		gatherer: reg,
	}
	reg.MustRegister(m.Outcomes, m.Duration, m.PublishFailures, m.Requests)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
