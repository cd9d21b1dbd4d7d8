package position

import (
	"context"
	"sort"
	"sync"

	"github.com/theoremus-urban-solutions/fleet-tracking/broadcast"
	"github.com/theoremus-urban-solutions/fleet-tracking/fleet"
)

// MemoryStore keeps the append log and the latest index in process
// memory. Each agent owns an entry with its own mutex; the delta for
// an index-advancing report is published inside that critical section,
// which is what guarantees observers see a given agent's deltas in
// non-decreasing ObservedAt order even when reports race.
type MemoryStore struct {
	agents sync.Map // agentID -> *agentEntry
	sink   broadcast.Publisher
}

type agentEntry struct {
	mu      sync.Mutex
	history []fleet.PositionReport
	latest  fleet.PositionReport
	seen    bool
}

// NewMemoryStore creates a store publishing deltas to sink. A nil
// sink disables broadcasting (used by tests that only exercise the
// index).
func NewMemoryStore(sink broadcast.Publisher) *MemoryStore {
	return &MemoryStore{sink: sink}
}

// Record appends r and updates the agent's latest entry when r is not
// older than it. Stale reports (strictly older ObservedAt) are kept in
// the log but publish nothing.
func (s *MemoryStore) Record(ctx context.Context, r fleet.PositionReport) error {
	return s.record(r, nil)
}

// RecordExcluding is Record with an originating observer session to
// exclude from the broadcast.
func (s *MemoryStore) RecordExcluding(ctx context.Context, r fleet.PositionReport, excludeSession string) error {
	var exclude []string
	if excludeSession != "" {
		exclude = []string{excludeSession}
	}
	return s.record(r, exclude)
}

func (s *MemoryStore) record(r fleet.PositionReport, exclude []string) error {
	v, _ := s.agents.LoadOrStore(r.AgentID, &agentEntry{})
	e := v.(*agentEntry)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, r)
	if e.seen && r.ObservedAt.Before(e.latest.ObservedAt) {
		return nil
	}
	e.latest = r
	e.seen = true
	if s.sink != nil {
		s.sink.Publish(fleet.LocationDeltaFor(r), exclude...)
	}
	return nil
}

// Latest returns the report with the greatest ObservedAt recorded for
// agentID so far.
func (s *MemoryStore) Latest(ctx context.Context, agentID string) (fleet.PositionReport, error) {
	v, ok := s.agents.Load(agentID)
	if !ok {
		return fleet.PositionReport{}, fleet.ErrAgentNotFound
	}
	e := v.(*agentEntry)
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.seen {
		return fleet.PositionReport{}, fleet.ErrAgentNotFound
	}
	return e.latest, nil
}

// LatestAll returns one entry per distinct agent, sorted by agent id
// for stable output.
func (s *MemoryStore) LatestAll(ctx context.Context) ([]fleet.PositionReport, error) {
	var out []fleet.PositionReport
	s.agents.Range(func(_, v any) bool {
		e := v.(*agentEntry)
		e.mu.Lock()
		if e.seen {
			out = append(out, e.latest)
		}
		e.mu.Unlock()
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out, nil
}

// History returns a copy of the append log for one agent, in arrival
// order. Empty slice for unseen agents.
func (s *MemoryStore) History(agentID string) []fleet.PositionReport {
	v, ok := s.agents.Load(agentID)
	if !ok {
		return nil
	}
	e := v.(*agentEntry)
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]fleet.PositionReport, len(e.history))
	copy(out, e.history)
	return out
}
