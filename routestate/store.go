package routestate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/theoremus-urban-solutions/fleet-tracking/broadcast"
	"github.com/theoremus-urban-solutions/fleet-tracking/fleet"
	"github.com/theoremus-urban-solutions/fleet-tracking/observability"
)

// Store is the route state store. The route map lock only guards
// lookup and insertion; each route entry carries its own mutex, so
// completions on different routes never serialize.
type Store struct {
	mu      sync.RWMutex
	routes  map[string]*routeEntry
	byAgent map[string]string // agentID -> routeID
	sink    broadcast.Publisher
}

type routeEntry struct {
	mu    sync.Mutex
	route fleet.Route
}

// NewStore creates a store publishing stop deltas to sink. A nil sink
// disables broadcasting.
func NewStore(sink broadcast.Publisher) *Store {
	return &Store{
		routes:  make(map[string]*routeEntry),
		byAgent: make(map[string]string),
		sink:    sink,
	}
}

// Put inserts or replaces a route supplied by the CRUD collaborator.
// Stop sequence indices must match their positions; Put normalizes the
// derived route status.
func (s *Store) Put(route fleet.Route) error {
	if route.RouteID == "" {
		return fmt.Errorf("route id required")
	}
	for i := range route.Stops {
		if route.Stops[i].Seq != i {
			return fmt.Errorf("stop %d has sequence index %d", i, route.Stops[i].Seq)
		}
		if route.Stops[i].Status == "" {
			route.Stops[i].Status = fleet.StopPending
		}
		if (route.Stops[i].CompletedAt != nil) != (route.Stops[i].Status == fleet.StopCompleted) {
			return fmt.Errorf("stop %d: completedAt inconsistent with status", i)
		}
	}
	route.Status = deriveStatus(route)

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.routes[route.RouteID]; ok && prev.route.AgentID != "" {
		delete(s.byAgent, prev.route.AgentID)
	}
	s.routes[route.RouteID] = &routeEntry{route: cloneRoute(route)}
	if route.AgentID != "" {
		s.byAgent[route.AgentID] = route.RouteID
	}
	return nil
}

// Get returns a copy of the route, or fleet.ErrRouteNotFound.
func (s *Store) Get(routeID string) (fleet.Route, error) {
	e, err := s.entry(routeID)
	if err != nil {
		return fleet.Route{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneRoute(e.route), nil
}

// ByAgent returns the route currently assigned to agentID, or
// fleet.ErrRouteNotFound when the agent has none.
func (s *Store) ByAgent(agentID string) (fleet.Route, error) {
	s.mu.RLock()
	routeID, ok := s.byAgent[agentID]
	s.mu.RUnlock()
	if !ok {
		return fleet.Route{}, fleet.ErrRouteNotFound
	}
	return s.Get(routeID)
}

// CompleteStop marks the stop at stopIndex completed. The first caller
// wins: it sets completedAt, gets first=true and triggers exactly one
// broadcast delta. Every later caller (and every concurrent loser)
// gets the already-completed stop with its original completedAt,
// first=false, and no delta.
func (s *Store) CompleteStop(ctx context.Context, routeID string, stopIndex int, completedAt time.Time) (fleet.Stop, bool, error) {
	return s.completeStop(routeID, stopIndex, completedAt, nil)
}

// CompleteStopExcluding is CompleteStop with an originating observer
// session excluded from the broadcast.
func (s *Store) CompleteStopExcluding(ctx context.Context, routeID string, stopIndex int, completedAt time.Time, excludeSession string) (fleet.Stop, bool, error) {
	var exclude []string
	if excludeSession != "" {
		exclude = []string{excludeSession}
	}
	return s.completeStop(routeID, stopIndex, completedAt, exclude)
}

func (s *Store) completeStop(routeID string, stopIndex int, completedAt time.Time, exclude []string) (fleet.Stop, bool, error) {
	e, err := s.entry(routeID)
	if err != nil {
		return fleet.Stop{}, false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if stopIndex < 0 || stopIndex >= len(e.route.Stops) {
		return fleet.Stop{}, false, fmt.Errorf("%w: %d of %d", fleet.ErrStopIndexOutOfRange, stopIndex, len(e.route.Stops))
	}
	stop := &e.route.Stops[stopIndex]
	if stop.Status == fleet.StopCompleted {
		observability.CompletionsDuplicate.Inc()
		return *stop, false, nil
	}
	ts := completedAt
	stop.Status = fleet.StopCompleted
	stop.CompletedAt = &ts
	e.route.Status = deriveStatus(e.route)
	if s.sink != nil {
		s.sink.Publish(fleet.StopDelta{
			RouteID:   routeID,
			StopIndex: stopIndex,
			Status:    string(fleet.StopCompleted),
		}, exclude...)
	}
	return *stop, true, nil
}

func (s *Store) entry(routeID string) (*routeEntry, error) {
	s.mu.RLock()
	e, ok := s.routes[routeID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", fleet.ErrRouteNotFound, routeID)
	}
	return e, nil
}

// deriveStatus computes the route lifecycle state from assignment and
// stop completion.
func deriveStatus(r fleet.Route) fleet.RouteStatus {
	if len(r.Stops) == 0 {
		if r.AgentID != "" {
			return fleet.RouteActive
		}
		return fleet.RoutePending
	}
	done := 0
	for _, st := range r.Stops {
		if st.Status == fleet.StopCompleted {
			done++
		}
	}
	switch {
	case done == len(r.Stops):
		return fleet.RouteCompleted
	case r.AgentID != "":
		return fleet.RouteActive
	default:
		return fleet.RoutePending
	}
}

func cloneRoute(r fleet.Route) fleet.Route {
	out := r
	out.Stops = make([]fleet.Stop, len(r.Stops))
	copy(out.Stops, r.Stops)
	for i := range out.Stops {
		if r.Stops[i].CompletedAt != nil {
			ts := *r.Stops[i].CompletedAt
			out.Stops[i].CompletedAt = &ts
		}
	}
	return out
}
