// Package handlers provides HTTP handlers for the face registry API.
package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondInternalError logs the failure detail and sends a generic 500.
// Internal error text never reaches the client.
func respondInternalError(w http.ResponseWriter, action string, err error) {
	log.Printf("%s: %v", action, sanitizeForLog(err.Error()))
	respondError(w, http.StatusInternalServerError, "internal server error")
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
