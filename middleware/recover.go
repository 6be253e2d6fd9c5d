package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"modbus-registry-api/utils"
)

// Recover converts a handler panic into a JSON 500 so one bad request does
// not take the server down. The panic value, route and stack go to the
// structured log together with the request ID.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("handler panic",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", RequestIDFrom(r.Context())),
					slog.String("stack", string(debug.Stack())))
				utils.WriteError(w, http.StatusInternalServerError, "Internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
