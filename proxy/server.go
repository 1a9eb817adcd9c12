// Package proxy implements the request-plane entry point: admission (C5),
// protocol dispatch (C6/C7/C8), origin selection (C3) and circuit
// protection (C4) for every inbound request.
package proxy

import (
	"errors"
	"net/http"

	"github.com/originproxy/originproxy/backend"
	"github.com/originproxy/originproxy/circuit"
	"github.com/originproxy/originproxy/config"
	"github.com/originproxy/originproxy/loadbalancer"
	"github.com/originproxy/originproxy/logging"
	"github.com/originproxy/originproxy/metrics"
	"github.com/originproxy/originproxy/security"
)

// Server holds every component a request passes through and implements
// http.Handler directly, so it can be handed straight to http.Server.
type Server struct {
	cfg *config.Config

	registry *backend.Registry
	lb       loadbalancer.LB
	breakers *circuit.Registry
	gate     *security.Gate
	metrics  *metrics.Prometheus

	httpClient *http.Client
	sseClient  *http.Client
}

// New wires every component from cfg. The returned Server owns the
// backend registry, circuit registry and security gate; callers should
// call Close when the process shuts down.
func New(cfg *config.Config, reg *backend.Registry, lb loadbalancer.LB, m *metrics.Prometheus) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		registry: reg,
		lb:       lb,
		metrics:  m,
	}

	s.breakers = circuit.NewRegistry(circuit.Settings{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		OpenDuration:     cfg.Breaker.OpenDuration,
		HalfOpenRequests: cfg.Breaker.HalfOpenRequests,
	}, &metricsObserver{metrics: m})

	s.gate = security.New(security.Settings{
		IPMode:              security.IPFilterMode(cfg.Security.IP.Mode),
		AllowIPs:            cfg.Security.IP.Allow,
		DenyIPs:             cfg.Security.IP.Deny,
		RateLimit:           cfg.Security.Rate.Limit,
		RateWindowS:         cfg.Security.Rate.WindowS,
		RateCleanEvery:      int(cfg.Security.Rate.CleanEvery.Seconds()),
		StrictQueryCheck:    cfg.Security.StrictQueryCheck,
		AllowedContentTypes: cfg.Security.AllowedContentTypes,
	})

	transport := newUpstreamTransport(cfg.Upstream.DialTimeout, cfg.Upstream.HeaderTimeout)
	s.httpClient = &http.Client{Transport: transport}
	// The SSE client must not impose a response-header timeout on the
	// body read itself; net/http only times the headers, so the same
	// transport is safe to share, but a dedicated client keeps the
	// door open for a longer dial timeout without touching forwardHTTP.
	s.sseClient = &http.Client{Transport: transport}

	return s, nil
}

// Close releases background resources held by the server's components.
func (s *Server) Close() {
	s.gate.Close()
}

// metricsObserver adapts circuit.Observer to the metrics and application
// log sinks.
type metricsObserver struct {
	metrics *metrics.Prometheus
}

func (o *metricsObserver) OnTransition(ev circuit.TransitionEvent) {
	o.metrics.IncBreakerTransition(ev.OriginID, ev.From.String(), ev.To.String())
	o.metrics.SetBreakerState(ev.OriginID, float64(ev.To))
	logging.App().WithFields(map[string]interface{}{
		"origin": ev.OriginID,
		"from":   ev.From.String(),
		"to":     ev.To.String(),
	}).Info("circuit breaker transition")
}

// ServeHTTP implements C9: admission, then origin selection guarded by
// that origin's circuit breaker, then protocol-specific forwarding.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.metrics.IncRequest(r.Method)

	if rej := s.gate.Admit(r); rej != nil {
		http.Error(w, rej.Message, rej.StatusCode)
		s.metrics.IncResponse(metrics.StatusClass(rej.StatusCode))
		logging.App().WithFields(map[string]interface{}{
			"status":     rej.StatusCode,
			"reason":     rej.Message,
			"request_id": logging.RequestID(r),
		}).Info("request rejected at admission")
		return
	}

	b, err := s.lb.Select()
	if err != nil {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		s.metrics.IncResponse(metrics.StatusClass(http.StatusServiceUnavailable))
		return
	}

	breaker := s.breakers.Get(b.ID)

	forward := s.forwardHTTP
	switch {
	case isWebSocketUpgrade(r):
		forward = s.forwardWebSocket
	case isSSERequest(r):
		forward = s.forwardSSE
	}

	rec := newResponseRecorder(w)
	err = breaker.Execute(func() error {
		return forward(rec, r, b)
	})

	// Availability is deliberately left untouched by ordinary
	// breaker-observed outcomes: the breaker's own CLOSED/OPEN/HALF_OPEN
	// state already governs whether the next request even attempts this
	// origin. Flipping the load balancer's bit here as well would make a
	// failed (or short-circuited) origin unselectable, and nothing but a
	// request that reaches this same origin again could ever flip it back
	// - fatal with a single configured origin, since it could then never be
	// selected to produce that success. loadbalancer.LB's MarkFailed/
	// MarkAvailable remain available for orthogonal use (operators forcing
	// an origin out of rotation), just not wired to breaker outcomes.
	switch {
	case err == nil:
		s.metrics.IncResponse(metrics.StatusClass(rec.statusOrDefault(http.StatusOK)))
	case errors.Is(err, circuit.ErrOpen):
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		s.metrics.IncResponse(metrics.StatusClass(http.StatusServiceUnavailable))
		logging.App().WithFields(map[string]interface{}{
			"origin":     b.ID,
			"request_id": logging.RequestID(r),
		}).Warn("circuit open, short-circuited request")
		return
	default:
		s.metrics.IncResponse(metrics.StatusClass(rec.statusOrDefault(http.StatusBadGateway)))
		logging.App().WithFields(map[string]interface{}{
			"origin":     b.ID,
			"request_id": logging.RequestID(r),
			"error":      err.Error(),
		}).Warn("origin request failed")
	}
}

// MetricsHandler returns the handler for the separate metrics listener.
func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}
