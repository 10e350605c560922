package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

type errorBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeJSON serializes v with the right headers. Encoding failures are
// logged; by then the status line is already on the wire.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response body")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

func writeFieldError(w http.ResponseWriter, status int, message, field string) {
	writeJSON(w, status, errorBody{Error: message, Field: field})
}

// writeInternalError logs the cause and returns a generic body so store
// internals never leak to clients.
func writeInternalError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("Internal error handling request")
	writeError(w, http.StatusInternalServerError, "Internal error")
}
