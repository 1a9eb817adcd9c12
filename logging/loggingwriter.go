package logging

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
)

// loggingWriter wraps http.ResponseWriter to capture the status code and
// byte count written, for the access log entry.
type loggingWriter struct {
	http.ResponseWriter
	statusCode int
	size       int64
}

func newLoggingWriter(w http.ResponseWriter) *loggingWriter {
	return &loggingWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (w *loggingWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggingWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += int64(n)
	return n, err
}

// Flush proxies to an underlying http.Flusher when present, so that
// streaming forwarders (SSE, chunked bodies) keep working through the
// logging wrapper.
func (w *loggingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack proxies to an underlying http.Hijacker. Without this, the
// WebSocket forwarder's call to upgrader.Upgrade would fail on every
// request wrapped by NewHandler, since gorilla/websocket type-asserts
// its ResponseWriter argument to http.Hijacker.
func (w *loggingWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("logging: underlying ResponseWriter does not implement http.Hijacker")
	}
	return hj.Hijack()
}
