package proxy

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
)

// responseRecorder wraps the http.ResponseWriter handed to a forwarder so
// that ServeHTTP can learn the status class actually written to the
// client, mirroring logging.loggingWriter's capture-while-passing-through
// pattern. Forwarders write the real response directly (streaming bodies,
// hijacking for WebSocket); this type never buffers, it only observes.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{ResponseWriter: w}
}

func (r *responseRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Flush passes through to an underlying http.Flusher, required by the SSE
// forwarder's streaming writes.
func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack passes through to an underlying http.Hijacker, required by the
// WebSocket forwarder's upgrade. A successful hijack means gorilla/
// websocket is about to write "101 Switching Protocols" straight to the
// raw connection, bypassing Write/WriteHeader entirely, so that is
// recorded as the status here rather than left at zero.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("proxy: response writer does not support hijacking")
	}
	conn, rw, err := hj.Hijack()
	if err == nil && r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return conn, rw, err
}

// statusOrDefault reports the recorded status, or def if nothing was ever
// written (the forwarder failed before producing any response of its
// own).
func (r *responseRecorder) statusOrDefault(def int) int {
	if r.status == 0 {
		return def
	}
	return r.status
}
