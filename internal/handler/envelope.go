package handler

import (
	"encoding/json"
	"net/http"
	"time"
)

// errorEnvelope is the uniform body for every gateway-originated failure.
// Proxied responses pass through untouched.
type errorEnvelope struct {
	Error     string `json:"error"`
	Service   string `json:"service,omitempty"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
}

func writeError(w http.ResponseWriter, status int, message, service, path string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Error:     message,
		Service:   service,
		Path:      path,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
