// ABOUTME: Uniform result envelope and error-to-status mapping for the API.
// ABOUTME: Every handler responds with {"ok":true,"value":...} or {"ok":false,"error":...}.

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wardenlabs/minefleet/internal/fleet"
)

type envelope struct {
	OK    bool   `json:"ok"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

func writeValue(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{OK: true, Value: v})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{OK: false, Error: msg})
}

// writeFleetError maps the fleet error taxonomy onto HTTP statuses.
func writeFleetError(w http.ResponseWriter, err error) {
	var verr *fleet.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, fleet.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, fleet.ErrBotNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, fleet.ErrQuotaExceeded),
		errors.Is(err, fleet.ErrAlreadyRunning),
		errors.Is(err, fleet.ErrNotRunning),
		errors.Is(err, fleet.ErrNotConnected):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
