package fleet

import "time"

// PositionReport is a single position fix reported by an agent.
// Reports are immutable once recorded; the stores never mutate them.
type PositionReport struct {
	AgentID    string    `json:"agentId"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	ObservedAt time.Time `json:"observedAt"`
}

// RouteStatus is the lifecycle state of a route.
type RouteStatus string

const (
	RoutePending   RouteStatus = "pending"
	RouteActive    RouteStatus = "active"
	RouteCompleted RouteStatus = "completed"
)

// StopStatus is the completion state of a single stop.
type StopStatus string

const (
	StopPending   StopStatus = "pending"
	StopCompleted StopStatus = "completed"
)

// Stop is one entry in a route's ordered stop sequence. Seq is the
// stop's 0-based position within the route and never changes after
// creation; only Status and CompletedAt mutate, and CompletedAt is
// non-nil exactly when Status is StopCompleted.
type Stop struct {
	Address     string     `json:"address"`
	Lat         float64    `json:"lat"`
	Lng         float64    `json:"lng"`
	Seq         int        `json:"seq"`
	Status      StopStatus `json:"status"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Route is an ordered sequence of stops optionally assigned to an
// agent. The stop sequence is fixed at creation; route status is
// derived from assignment and stop completion.
type Route struct {
	RouteID string      `json:"routeId"`
	AgentID string      `json:"agentId,omitempty"`
	Stops   []Stop      `json:"stops"`
	Status  RouteStatus `json:"status"`
}
