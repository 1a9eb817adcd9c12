package proxy

import (
	"bufio"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/originproxy/originproxy/backend"
	pnet "github.com/originproxy/originproxy/net"
)

// isSSERequest reports whether r should be dispatched to the SSE adapter.
// Per spec.md §8, Accept: text/event-stream without GET falls through to
// the plain HTTP adapter instead.
func isSSERequest(r *http.Request) bool {
	return r.Method == http.MethodGet && r.Header.Get("Accept") == "text/event-stream"
}

// forwardSSE implements C8: it opens a streaming GET against the origin and
// relays the stream to the client one complete event at a time, so that
// the heartbeat goroutine keeping idle connections alive can only write
// between events.
func (s *Server) forwardSSE(w http.ResponseWriter, r *http.Request, b *backend.Backend) error {
	upstreamURL := *b.URL
	upstreamURL.Path = r.URL.Path
	upstreamURL.RawPath = r.URL.RawPath
	upstreamURL.RawQuery = r.URL.RawQuery

	outReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, upstreamURL.String(), nil)
	if err != nil {
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return fmt.Errorf("proxy: build sse request: %w", err)
	}
	pnet.CopyHeaders(outReq.Header, r.Header)
	outReq.Header.Set("Accept", "text/event-stream")
	s.forwardedFor(r, upstreamURL.Scheme).Apply(outReq.Header)

	resp, err := s.sseClient.Do(outReq)
	if err != nil {
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return fmt.Errorf("proxy: dial sse %s: %w", b.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.WriteHeader(http.StatusBadGateway)
		return fmt.Errorf("proxy: upstream %s refused sse with %d", b.ID, resp.StatusCode)
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return fmt.Errorf("proxy: response writer for %s does not support flushing", b.ID)
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var writeMu sync.Mutex
	write := func(p []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		if _, err := w.Write(p); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	retryMS := s.cfg.SSE.RetryHint.Milliseconds()
	if err := write([]byte(fmt.Sprintf("retry: %d\n\n", retryMS))); err != nil {
		return fmt.Errorf("proxy: write sse retry to client: %w", err)
	}

	done := make(chan struct{})
	defer close(done)

	if s.cfg.SSE.HeartbeatInterval > 0 {
		go s.sseHeartbeat(done, write, s.cfg.SSE.HeartbeatInterval)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 4096), 1<<20)
	// Lines are held until the blank line that ends an event.
	var event []byte
	for scanner.Scan() {
		line := scanner.Bytes()
		event = append(append(event, line...), '\n')
		if len(line) != 0 {
			continue
		}
		if err := write(event); err != nil {
			return fmt.Errorf("proxy: stream sse to client from %s: %w", b.ID, err)
		}
		event = event[:0]
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("proxy: read sse from %s: %w", b.ID, err)
	}
	if len(event) > 0 {
		if err := write(event); err != nil {
			return fmt.Errorf("proxy: stream sse to client from %s: %w", b.ID, err)
		}
	}
	return nil
}

func (s *Server) sseHeartbeat(done <-chan struct{}, write func([]byte) error, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := write([]byte(": heartbeat\n\n")); err != nil {
				return
			}
		}
	}
}
