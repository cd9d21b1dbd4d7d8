package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/theoremus-urban-solutions/fleet-tracking/broadcast"
	"github.com/theoremus-urban-solutions/fleet-tracking/ingest"
	"github.com/theoremus-urban-solutions/fleet-tracking/position"
	"github.com/theoremus-urban-solutions/fleet-tracking/routestate"
)

// Server is the HTTP API server.
type Server struct {
	gateway   *ingest.Gateway
	positions position.Store
	routes    *routestate.Store
	hub       *broadcast.Hub
	log       *slog.Logger

	httpServer *http.Server
}

// New assembles the server. addr is the listen address (":16181").
func New(addr string, gateway *ingest.Gateway, positions position.Store, routes *routestate.Store, hub *broadcast.Hub, log *slog.Logger) *Server {
	s := &Server{
		gateway:   gateway,
		positions: positions,
		routes:    routes,
		hub:       hub,
		log:       log,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/positions", s.handlePositions)
	mux.HandleFunc("/api/positions/", s.handlePositionByAgent)
	mux.HandleFunc("/api/completions", s.handleCompletions)
	mux.HandleFunc("/api/routes/", s.handleRoute)
	mux.HandleFunc("/api/agents/", s.handleAgentRoute)
	mux.HandleFunc("/api/stream", s.handleStream)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// WriteTimeout stays zero: /api/stream holds its response
		// open for the whole observer session.
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// ListenAndServe blocks serving the API.
func (s *Server) ListenAndServe() error {
	s.log.Info("api server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorPayload struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, errorPayload{Error: fmt.Sprintf(format, args...)})
}
