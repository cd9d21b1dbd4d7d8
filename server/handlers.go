package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/theoremus-urban-solutions/fleet-tracking/fleet"
	"github.com/theoremus-urban-solutions/fleet-tracking/ingest"
)

// handlePositions serves POST (ingest) and GET (latestAll snapshot).
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.ingestPosition(w, r)
	case http.MethodGet:
		s.latestAll(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) ingestPosition(w http.ResponseWriter, r *http.Request) {
	var raw ingest.RawPosition
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: %v", err)
		return
	}
	opts := ingest.Options{ExcludeSession: r.URL.Query().Get("session")}
	report, err := s.gateway.IngestPosition(r.Context(), raw, opts)
	if err != nil {
		var verr *ingest.ValidationError
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, "%v", verr)
		case errors.Is(err, fleet.ErrStorageUnavailable):
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "%v", err)
		}
		return
	}
	writeJSON(w, http.StatusAccepted, fleet.LocationDeltaFor(report))
}

func (s *Server) latestAll(w http.ResponseWriter, r *http.Request) {
	reports, err := s.positions.LatestAll(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "%v", err)
		return
	}
	out := make([]fleet.LocationDelta, 0, len(reports))
	for _, rep := range reports {
		out = append(out, fleet.LocationDeltaFor(rep))
	}
	writeJSON(w, http.StatusOK, out)
}

// historyProvider is implemented by stores that retain the full
// append log in process (the memory store).
type historyProvider interface {
	History(agentID string) []fleet.PositionReport
}

// handlePositionByAgent serves GET /api/positions/{agentId} and
// GET /api/positions/{agentId}/history.
func (s *Server) handlePositionByAgent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/positions/")
	parts := strings.Split(path, "/")
	if parts[0] == "" {
		writeError(w, http.StatusBadRequest, "agent id required")
		return
	}
	agentID := parts[0]

	if len(parts) > 1 && parts[1] == "history" {
		hp, ok := s.positions.(historyProvider)
		if !ok {
			writeError(w, http.StatusNotImplemented, "history not retained by this store")
			return
		}
		history := hp.History(agentID)
		out := make([]fleet.LocationDelta, 0, len(history))
		for _, rep := range history {
			out = append(out, fleet.LocationDeltaFor(rep))
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	report, err := s.positions.Latest(r.Context(), agentID)
	if err != nil {
		if errors.Is(err, fleet.ErrAgentNotFound) {
			writeError(w, http.StatusNotFound, "agent %s not found", agentID)
			return
		}
		writeError(w, http.StatusServiceUnavailable, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, fleet.LocationDeltaFor(report))
}

// completionResponse echoes the applied completion so callers can see
// the authoritative completedAt, including on idempotent repeats.
type completionResponse struct {
	RouteID     string `json:"routeId"`
	StopIndex   int    `json:"stopIndex"`
	Status      string `json:"status"`
	CompletedAt string `json:"completedAt"`
	First       bool   `json:"first"`
}

func (s *Server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var raw ingest.RawCompletion
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: %v", err)
		return
	}
	opts := ingest.Options{ExcludeSession: r.URL.Query().Get("session")}
	stop, first, err := s.gateway.IngestCompletion(r.Context(), raw, opts)
	if err != nil {
		var verr *ingest.ValidationError
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, "%v", verr)
		case errors.Is(err, fleet.ErrRouteNotFound):
			writeError(w, http.StatusNotFound, "%v", err)
		case errors.Is(err, fleet.ErrStopIndexOutOfRange):
			writeError(w, http.StatusBadRequest, "%v", err)
		default:
			writeError(w, http.StatusInternalServerError, "%v", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, completionResponse{
		RouteID:     raw.RouteID,
		StopIndex:   *raw.StopIndex,
		Status:      string(stop.Status),
		CompletedAt: fleet.ISO8601(*stop.CompletedAt),
		First:       first,
	})
}

// handleRoute serves GET and PUT /api/routes/{routeId}. PUT is the
// collaborator boundary: the CRUD layer supplies route documents; the
// core never creates routes itself.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	routeID := strings.TrimPrefix(r.URL.Path, "/api/routes/")
	if routeID == "" || strings.Contains(routeID, "/") {
		writeError(w, http.StatusBadRequest, "route id required")
		return
	}
	switch r.Method {
	case http.MethodGet:
		route, err := s.routes.Get(routeID)
		if err != nil {
			writeError(w, http.StatusNotFound, "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, route)
	case http.MethodPut:
		var route fleet.Route
		if err := json.NewDecoder(r.Body).Decode(&route); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body: %v", err)
			return
		}
		route.RouteID = routeID
		if err := s.routes.Put(route); err != nil {
			writeError(w, http.StatusBadRequest, "%v", err)
			return
		}
		stored, err := s.routes.Get(routeID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, stored)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleAgentRoute serves GET /api/agents/{agentId}/route. An agent
// with no assigned route gets a JSON null body, not an error.
func (s *Server) handleAgentRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/agents/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "route" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	route, err := s.routes.ByAgent(parts[0])
	if err != nil {
		if errors.Is(err, fleet.ErrRouteNotFound) {
			writeJSON(w, http.StatusOK, nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, route)
}

type healthResponse struct {
	Status    string `json:"status"`
	Agents    int    `json:"agents"`
	Observers int    `json:"observers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reports, _ := s.positions.LatestAll(r.Context())
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Agents:    len(reports),
		Observers: s.hub.Len(),
	})
}
