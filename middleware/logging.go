package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"modbus-registry-api/metrics"
)

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Logging logs requests with status, duration and request_id, and feeds the
// HTTP metrics.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		if sw.status == 0 {
			sw.status = http.StatusOK
		}

		// Label metrics by the matched route pattern, not the raw path, to
		// keep the label set bounded on parameterized routes.
		route := r.Pattern
		if route == "" {
			route = r.URL.Path
		}
		status := strconv.Itoa(sw.status)
		metrics.ObserveHTTP(r.Method, route, status)
		metrics.ObserveHTTPDuration(r.Method, route, status, time.Since(start).Seconds())

		slog.Info("http_request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", sw.status),
			slog.Int("bytes", sw.bytes),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", RequestIDFrom(r.Context())),
		)
	})
}
