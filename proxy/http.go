package proxy

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/originproxy/originproxy/backend"
	pnet "github.com/originproxy/originproxy/net"
)

// forwardHTTP implements C6: it builds an upstream request from r, streams
// the body, and streams the upstream response back to w. The returned
// error, when non-nil, is what the circuit breaker observes as a failure;
// by the time forwardHTTP returns, the client response has already been
// written (or the connection is beyond recovery).
func (s *Server) forwardHTTP(w http.ResponseWriter, r *http.Request, b *backend.Backend) error {
	upstreamURL := *b.URL
	upstreamURL.Path = r.URL.Path
	upstreamURL.RawPath = r.URL.RawPath
	upstreamURL.RawQuery = r.URL.RawQuery

	var body io.ReadCloser
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		body = r.Body
	}

	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, upstreamURL.String(), body)
	if err != nil {
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return fmt.Errorf("proxy: build upstream request: %w", err)
	}

	pnet.CopyHeaders(outReq.Header, r.Header)
	s.forwardedFor(r, upstreamURL.Scheme).Apply(outReq.Header)

	resp, err := s.httpClient.Do(outReq)
	if err != nil {
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return fmt.Errorf("proxy: dial %s: %w", b.ID, err)
	}
	defer resp.Body.Close()

	pnet.CopyHeaders(w.Header(), resp.Header)
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.WriteHeader(resp.StatusCode)

	_, copyErr := io.Copy(w, resp.Body)

	failure := resp.StatusCode >= 500
	if copyErr != nil {
		failure = true
	}

	if !failure {
		return nil
	}
	if copyErr != nil {
		return fmt.Errorf("proxy: stream response from %s: %w", b.ID, copyErr)
	}
	return fmt.Errorf("proxy: upstream %s returned %d", b.ID, resp.StatusCode)
}

// forwardedFor builds the X-Forwarded-* header set for one request.
func (s *Server) forwardedFor(r *http.Request, scheme string) pnet.Forwarded {
	clientFor := r.Header.Get("X-Forwarded-For")
	if clientFor == "" {
		clientFor = pnet.ClientIP(r)
	}

	return pnet.Forwarded{
		For:     clientFor,
		Proto:   scheme,
		Host:    r.Host,
		Port:    pnet.LocalPort(r),
		ProxyID: s.cfg.ProxyID,
	}
}

func newUpstreamTransport(dialTimeout, headerTimeout time.Duration) *http.Transport {
	dialer := &net.Dialer{Timeout: dialTimeout}
	return &http.Transport{
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: headerTimeout,
		ForceAttemptHTTP2:     false,
		MaxIdleConnsPerHost:   64,
	}
}

