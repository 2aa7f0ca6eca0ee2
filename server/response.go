package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/theoremus-urban-solutions/taskroute-live/tracking"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeEngineError maps engine failures to status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tracking.ErrUnknownTask):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tracking.ErrEngineStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
