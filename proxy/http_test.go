package proxy

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/originproxy/originproxy/backend"
	"github.com/originproxy/originproxy/config"
)

func testServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	reg, err := backend.NewRegistry(cfg.Backends)
	require.NoError(t, err)

	s := &Server{cfg: cfg, registry: reg}
	s.httpClient = &http.Client{Transport: newUpstreamTransport(cfg.Upstream.DialTimeout, cfg.Upstream.HeaderTimeout)}
	s.sseClient = s.httpClient
	return s
}

func baseConfig(backendURL string) *config.Config {
	cfg := &config.Config{ProxyID: "originproxy-test"}
	cfg.Backends = []config.Backend{{ID: "b1", URL: backendURL, Weight: 1}}
	cfg.Upstream.DialTimeout = 2 * time.Second
	cfg.Upstream.HeaderTimeout = 2 * time.Second
	cfg.WS.PingInterval = 0
	cfg.WS.IdleTimeout = 0
	cfg.SSE.RetryHint = 3 * time.Second
	cfg.SSE.HeartbeatInterval = 0
	return cfg
}

func TestForwardHTTPStreamsRequestAndResponse(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/hello", r.URL.Path)
		assert.Equal(t, "a=1", r.URL.RawQuery)
		assert.Equal(t, "originproxy-test", r.Header.Get("X-Proxy-ID"))
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hi"))
	}))
	defer origin.Close()

	cfg := baseConfig(origin.URL)
	s := testServer(t, cfg)
	b, ok := s.registry.Get("b1")
	require.True(t, ok)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/hello?a=1", nil)
	r.RemoteAddr = "1.2.3.4:5555"

	err := s.forwardHTTP(rec, r, b)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hi", rec.Body.String())
}

func TestForwardHTTPReportsFailureOn5xx(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer origin.Close()

	cfg := baseConfig(origin.URL)
	s := testServer(t, cfg)
	b, _ := s.registry.Get("b1")

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/x", nil)

	err := s.forwardHTTP(rec, r, b)
	assert.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestForwardHTTPDialFailureIsBadGateway(t *testing.T) {
	cfg := baseConfig("http://127.0.0.1:1")
	s := testServer(t, cfg)
	b, _ := s.registry.Get("b1")

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/x", nil)

	err := s.forwardHTTP(rec, r, b)
	assert.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestForwardedForHeaders(t *testing.T) {
	cfg := baseConfig("http://127.0.0.1:1")
	cfg.ProxyID = "edge-1"
	s := testServer(t, cfg)

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.RemoteAddr = "9.9.9.9:4321"
	r.Host = "example.com"

	fwd := s.forwardedFor(r, "https")
	assert.Equal(t, "9.9.9.9", fwd.For)
	assert.Equal(t, "https", fwd.Proto)
	assert.Equal(t, "example.com", fwd.Host)
	assert.Equal(t, "edge-1", fwd.ProxyID)
}

func TestNewUpstreamTransportSetsDialerAndHeaderTimeout(t *testing.T) {
	tr := newUpstreamTransport(3*time.Second, 4*time.Second)
	require.NotNil(t, tr.DialContext)
	assert.Equal(t, 4*time.Second, tr.ResponseHeaderTimeout)
}
