package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/sastik/logserver/internal/logging"
)

// envelope is the {data, error} response shape used by every JSON endpoint
// (SPEC_FULL.md §6.2+).
type envelope struct {
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, log *logging.Logger, err error) {
	status, msg := statusFor(err, log)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: msg})
}
