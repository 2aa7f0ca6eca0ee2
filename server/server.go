package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/theoremus-urban-solutions/taskroute-live/tracking"
)

const shutdownTimeout = 10 * time.Second

// Engine is the part of *tracking.Engine the read API needs.
type Engine interface {
	Tasks(ctx context.Context) ([]tracking.TrackedTask, error)
	Position(ctx context.Context, id int64) (tracking.LivePosition, bool, error)
	Route(ctx context.Context) (tracking.RouteState, bool, error)
	Focus(ctx context.Context, id int64) error
	ClearFocus(ctx context.Context) error
	Stats(ctx context.Context) (tracking.Stats, error)
}

// Options tune the SIRI and GTFS-RT views.
type Options struct {
	ProducerRef   string
	ArrivalRadius float64
	// Validity is the SIRI ValidUntil horizon.
	Validity time.Duration
}

// Server serves the read API.
type Server struct {
	engine Engine
	opts   Options
	logger *slog.Logger
	now    func() time.Time
	http   *http.Server
}

// New creates a server listening on port once Run is called.
func New(port int, engine Engine, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{engine: engine, opts: opts, logger: logger, now: time.Now}
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/tasks", s.handleTasks)
	mux.HandleFunc("GET /api/tasks/{id}/position", s.handlePosition)
	mux.HandleFunc("GET /api/route", s.handleRoute)
	mux.HandleFunc("PUT /api/focus", s.handleSetFocus)
	mux.HandleFunc("DELETE /api/focus", s.handleClearFocus)
	mux.HandleFunc("GET /api/feed/vehicle-positions.pb", s.handleVehiclePositions)
	mux.HandleFunc("GET /api/siri/vehicle-monitoring.json", s.handleVehicleMonitoringJSON)
	mux.HandleFunc("GET /api/siri/vehicle-monitoring.xml", s.handleVehicleMonitoringXML)
	return s.logRequests(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()
	s.logger.Info("server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutdown signal received")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(sctx); err != nil {
		s.logger.Error("server shutdown error", "error", err)
		return err
	}
	s.logger.Info("server shut down successfully")
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).String())
	})
}
