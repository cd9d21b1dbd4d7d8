package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const heartbeatInterval = 25 * time.Second

// handleStream serves GET /api/stream: a server-sent-events stream of
// deltas. The response's first event carries the session id so a
// client that also ingests can exclude itself via ?session=. The
// subscription ends when the client disconnects; a reconnecting
// observer re-reads current state from the snapshot endpoints rather
// than expecting replay.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	session := s.hub.Subscribe()
	defer s.hub.Unsubscribe(session.ID)
	s.log.Info("observer connected", "session", session.ID)
	defer s.log.Info("observer disconnected", "session", session.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: session\ndata: {\"sessionId\":%q}\n\n", session.ID)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case delta, open := <-session.Deltas():
			if !open {
				return
			}
			payload, err := json.Marshal(delta)
			if err != nil {
				s.log.Error("delta marshal failed", "session", session.ID, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", delta.Kind(), payload)
			flusher.Flush()
		}
	}
}
