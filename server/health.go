package server

import (
	"net/http"

	"github.com/theoremus-urban-solutions/taskroute-live/tracking"
	"github.com/theoremus-urban-solutions/taskroute-live/utils"
)

type healthResponse struct {
	Status      string         `json:"status"`
	Connected   bool           `json:"connected"`
	LastEventAt string         `json:"last_event_at,omitempty"`
	Engine      tracking.Stats `json:"engine"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	status := "ok"
	if !stats.Connected {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      status,
		Connected:   stats.Connected,
		LastEventAt: utils.Iso8601(stats.LastEventAt),
		Engine:      stats,
	})
}
