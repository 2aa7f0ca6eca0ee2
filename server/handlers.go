package server

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/theoremus-urban-solutions/taskroute-live/feed"
	"github.com/theoremus-urban-solutions/taskroute-live/geo"
	"github.com/theoremus-urban-solutions/taskroute-live/siri"
	"github.com/theoremus-urban-solutions/taskroute-live/tracking"
)

const routeUnavailable = "route unavailable"

var validate = validator.New()

type taskView struct {
	tracking.TrackedTask
	RemainingMeters *float64 `json:"remaining_m,omitempty"`
	Remaining       string   `json:"remaining"`
}

type routeView struct {
	tracking.RouteState
	LengthMeters *float64 `json:"length_m,omitempty"`
	Message      string   `json:"message,omitempty"`
}

type focusRequest struct {
	TaskID int64 `json:"task_id" validate:"gt=0"`
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.engine.Tasks(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		v := taskView{TrackedTask: t, Remaining: geo.PresentableDistance(t.RemainingMeters)}
		if !math.IsNaN(t.RemainingMeters) && !math.IsInf(t.RemainingMeters, 0) {
			m := math.Round(t.RemainingMeters)
			v.RemainingMeters = &m
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	pos, ok, err := s.engine.Position(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no live position for task")
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	state, ok, err := s.engine.Route(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	v := routeView{RouteState: state}
	switch state.Status {
	case tracking.RouteFailed:
		v.Message = routeUnavailable
	case tracking.RouteReady:
		l := math.Round(geo.PathLengthMeters(state.Path))
		v.LengthMeters = &l
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleSetFocus(w http.ResponseWriter, r *http.Request) {
	var req focusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "task_id must be a positive integer")
		return
	}
	if err := s.engine.Focus(r.Context(), req.TaskID); err != nil {
		writeEngineError(w, err)
		return
	}
	s.logger.Info("focus selected", "task_id", req.TaskID)
	s.handleRoute(w, r)
}

func (s *Server) handleClearFocus(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ClearFocus(r.Context()); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVehiclePositions(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.engine.Tasks(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	buf, err := feed.Marshal(tasks, s.now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	_, _ = w.Write(buf)
}

func (s *Server) vehicleMonitoring(r *http.Request) (*siri.SiriResponse, error) {
	tasks, err := s.engine.Tasks(r.Context())
	if err != nil {
		return nil, err
	}
	res := siri.BuildVehicleMonitoring(tasks, s.now(), siri.Options{
		ProducerRef:   s.opts.ProducerRef,
		Validity:      s.opts.Validity,
		ArrivalRadius: s.opts.ArrivalRadius,
	})
	params := queryParams(r)
	deliveries := res.Siri.ServiceDelivery.VehicleMonitoringDelivery
	for i := range deliveries {
		deliveries[i] = siri.Filter(deliveries[i], params["vehicleref"], params["lineref"])
	}
	return res, nil
}

// queryParams flattens the query string with lower-cased keys; SIRI clients
// disagree on parameter casing.
func queryParams(r *http.Request) map[string]string {
	params := map[string]string{}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			params[strings.ToLower(k)] = v[0]
		}
	}
	return params
}

func (s *Server) handleVehicleMonitoringJSON(w http.ResponseWriter, r *http.Request) {
	res, err := s.vehicleMonitoring(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleVehicleMonitoringXML(w http.ResponseWriter, r *http.Request) {
	res, err := s.vehicleMonitoring(r)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write(siri.BuildXML(res))
}
