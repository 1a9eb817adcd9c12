package logging

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// RequestID extracts the correlation ID NewHandler attached to the
// request context, or "" if none is present.
func RequestID(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// NewHandler wraps inner so that every request gets a correlation ID and
// emits exactly one AccessEntry after the response is written.
func NewHandler(inner http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := uuid.NewString()
		r = r.WithContext(withRequestID(r.Context(), id))

		lw := newLoggingWriter(w)
		inner.ServeHTTP(lw, r)

		LogAccess(&AccessEntry{
			Request:      r,
			ResponseSize: lw.size,
			StatusCode:   lw.statusCode,
			RequestTime:  start,
			Duration:     time.Since(start),
			RequestID:    id,
		})
	})
}
