// Package httputil holds small HTTP response helpers shared by the dev stub
// server.
package httputil

import (
	"encoding/json"
	"net/http"
)

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes a JSON error body with the given status.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Fail writes the gateway-shaped business failure: 200-class status carries
// the success flag, not the transport status.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{"success": false, "message": message})
}

// OK writes the gateway-shaped success response.
func OK(w http.ResponseWriter) {
	JSON(w, http.StatusOK, map[string]any{"success": true})
}
