// Package respond contains small helpers for writing JSON HTTP responses.
package respond

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError writes a JSON error body of the form {"success":false,"error":...}.
func WriteError(w http.ResponseWriter, status int, code string) {
	WriteJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   code,
	})
}
