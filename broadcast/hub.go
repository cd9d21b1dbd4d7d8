package broadcast

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/theoremus-urban-solutions/fleet-tracking/fleet"
	"github.com/theoremus-urban-solutions/fleet-tracking/observability"
)

// Publisher is the sink the stores hand deltas to. The Hub implements
// it; tests substitute recording fakes.
type Publisher interface {
	Publish(d fleet.Delta, exclude ...string)
}

// Session is one connected observer. It is created by Subscribe and
// owned by the Hub until Unsubscribe; the delta channel closes when
// the session is removed.
type Session struct {
	ID          string
	ConnectedAt time.Time

	ch chan fleet.Delta
}

// Deltas is the session's ordered outbound stream.
func (s *Session) Deltas() <-chan fleet.Delta { return s.ch }

// Hub is the subscription registry and fan-out. Safe for concurrent
// subscribe, unsubscribe and publish.
type Hub struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	queueSize int
}

// NewHub creates a hub whose sessions buffer up to queueSize deltas.
func NewHub(queueSize int) *Hub {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Hub{
		sessions:  make(map[string]*Session),
		queueSize: queueSize,
	}
}

// Subscribe registers a new observer session.
func (h *Hub) Subscribe() *Session {
	s := &Session{
		ID:          uuid.NewString(),
		ConnectedAt: time.Now(),
		ch:          make(chan fleet.Delta, h.queueSize),
	}
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()
	observability.ActiveObservers.Inc()
	return s
}

// Unsubscribe removes a session and closes its delta stream. It is
// idempotent and safe while a publish is in flight: publishes only
// send to sessions still registered, under the same lock that guards
// removal, so a send can never hit a closed channel.
func (h *Hub) Unsubscribe(sessionID string) {
	h.mu.Lock()
	s, ok := h.sessions[sessionID]
	if ok {
		delete(h.sessions, sessionID)
		close(s.ch)
	}
	h.mu.Unlock()
	if ok {
		observability.ActiveObservers.Dec()
	}
}

// ForEachActive applies fn to every currently registered session.
func (h *Hub) ForEachActive(fn func(*Session)) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions {
		fn(s)
	}
}

// Len reports the number of active sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Publish delivers d to every active session except those listed in
// exclude. Delivery is non-blocking per session: a full queue sheds
// its oldest delta to make room. Publish never waits on an observer.
func (h *Hub) Publish(d fleet.Delta, exclude ...string) {
	observability.DeltasPublished.WithLabelValues(d.Kind()).Inc()
	h.mu.RLock()
	defer h.mu.RUnlock()
outer:
	for id, s := range h.sessions {
		for _, ex := range exclude {
			if id == ex {
				continue outer
			}
		}
		enqueue(s.ch, d)
	}
}

// enqueue performs the drop-oldest send. If the queue is full, one
// pending delta is discarded and the send retried; if the session's
// reader drained the queue in between, the retry simply succeeds.
func enqueue(ch chan fleet.Delta, d fleet.Delta) {
	select {
	case ch <- d:
		return
	default:
	}
	select {
	case <-ch:
		observability.DeltasDropped.Inc()
	default:
	}
	select {
	case ch <- d:
	default:
		// Queue refilled by a racing publisher; this delta loses.
		observability.DeltasDropped.Inc()
	}
}
