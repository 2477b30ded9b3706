package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/getmockd/mockmesh/internal/id"
)

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
}

// WriteHeader captures the status code and writes it to the underlying ResponseWriter.
func (w *statusRecorder) WriteHeader(code int) {
	if !w.written {
		w.statusCode = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Write writes data to the underlying ResponseWriter.
func (w *statusRecorder) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

// Flush implements http.Flusher if the underlying ResponseWriter supports it.
func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// withRequestID accepts or assigns the request id, echoes it on the
// response and stores it on the request context for outbound calls.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := id.Request(r.Header.Get(id.HeaderRequestID))
		w.Header().Set(id.HeaderRequestID, rid)
		next.ServeHTTP(w, r.WithContext(id.NewContext(r.Context(), rid)))
	})
}

// withAccessLog logs one debug record per request.
func withAccessLog(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)

		next.ServeHTTP(rec, r)

		log.Debug("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", id.FromContext(r.Context()),
		)
	})
}
