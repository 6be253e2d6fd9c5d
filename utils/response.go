package utils

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"modbus-registry-api/apperr"
)

// WriteJSON writes JSON response
func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// WriteError writes error response
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteAppError maps a service error to its HTTP status. Internal causes are
// logged server-side and never echoed to the client.
func WriteAppError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", slog.Any("error", err))
		WriteError(w, status, "Internal error")
		return
	}
	WriteError(w, status, apperr.Message(err))
}
