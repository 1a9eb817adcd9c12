// Package metrics exposes the proxy's Prometheus counters: inbound
// requests by method, responses by status class, circuit breaker
// transitions, and the current breaker state per origin.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "proxy"

// Prometheus is the concrete C10 counters sink. All fields are safe for
// concurrent use (they delegate to prometheus's own atomics).
type Prometheus struct {
	registry *prometheus.Registry

	requestsTotal            *prometheus.CounterVec
	responsesTotal           *prometheus.CounterVec
	breakerTransitionsTotal  *prometheus.CounterVec
	breakerState             *prometheus.GaugeVec
}

// NewPrometheus registers every metric against a private registry (never
// the global default one, so multiple instances in tests don't collide).
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()

	p := &Prometheus{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total inbound requests by method.",
		}, []string{"method"}),
		responsesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Total responses by status class.",
		}, []string{"class"}),
		breakerTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuitbreaker_transitions_total",
			Help:      "Total circuit breaker state transitions.",
		}, []string{"origin", "from", "to"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuitbreaker_state",
			Help:      "Current circuit breaker state per origin (0=closed, 1=open, 2=half-open).",
		}, []string{"origin"}),
	}

	reg.MustRegister(
		p.requestsTotal,
		p.responsesTotal,
		p.breakerTransitionsTotal,
		p.breakerState,
	)

	return p
}

// IncRequest counts one inbound request for method.
func (p *Prometheus) IncRequest(method string) {
	p.requestsTotal.WithLabelValues(method).Inc()
}

// IncResponse counts one response of the given status class, e.g. "2xx".
func (p *Prometheus) IncResponse(class string) {
	p.responsesTotal.WithLabelValues(class).Inc()
}

// IncBreakerTransition counts and records one circuit breaker transition.
func (p *Prometheus) IncBreakerTransition(origin, from, to string) {
	p.breakerTransitionsTotal.WithLabelValues(origin, from, to).Inc()
}

// SetBreakerState publishes the current numeric state for origin.
func (p *Prometheus) SetBreakerState(origin string, state float64) {
	p.breakerState.WithLabelValues(origin).Set(state)
}

// Handler returns the HTTP handler serving the Prometheus text exposition
// format for this instance's registry.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// StatusClass maps an HTTP status code to its class label, e.g. 404 ->
// "4xx".
func StatusClass(code int) string {
	switch {
	case code >= 100 && code < 200:
		return "1xx"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
