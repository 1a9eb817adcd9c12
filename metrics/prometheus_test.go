package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/originproxy/originproxy/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, p *metrics.Prometheus) string {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	p.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestIncRequestCountsByMethod(t *testing.T) {
	p := metrics.NewPrometheus()
	p.IncRequest("GET")
	p.IncRequest("GET")
	p.IncRequest("POST")

	out := scrape(t, p)
	assert.Contains(t, out, `proxy_requests_total{method="GET"} 2`)
	assert.Contains(t, out, `proxy_requests_total{method="POST"} 1`)
}

func TestIncResponseCountsByClass(t *testing.T) {
	p := metrics.NewPrometheus()
	p.IncResponse("2xx")
	p.IncResponse("5xx")
	p.IncResponse("5xx")

	out := scrape(t, p)
	assert.Contains(t, out, `proxy_responses_total{class="2xx"} 1`)
	assert.Contains(t, out, `proxy_responses_total{class="5xx"} 2`)
}

func TestBreakerTransitionsAndState(t *testing.T) {
	p := metrics.NewPrometheus()
	p.IncBreakerTransition("b1", "closed", "open")
	p.SetBreakerState("b1", 2)

	out := scrape(t, p)
	assert.Contains(t, out, `proxy_circuitbreaker_transitions_total{from="closed",origin="b1",to="open"} 1`)
	assert.True(t, strings.Contains(out, `proxy_circuitbreaker_state{origin="b1"} 2`))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "1xx", metrics.StatusClass(101))
	assert.Equal(t, "2xx", metrics.StatusClass(200))
	assert.Equal(t, "3xx", metrics.StatusClass(301))
	assert.Equal(t, "4xx", metrics.StatusClass(404))
	assert.Equal(t, "5xx", metrics.StatusClass(503))
}
