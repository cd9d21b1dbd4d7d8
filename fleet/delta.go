package fleet

// Delta kinds, also used as SSE event names on the observer stream.
const (
	DeltaKindLocation = "location"
	DeltaKindStop     = "stop"
)

// Delta is a single state-change event broadcast to observers.
type Delta interface {
	Kind() string
}

// LocationDelta announces an agent's new latest position. Timestamp is
// ISO-8601 (RFC 3339, UTC).
type LocationDelta struct {
	AgentID   string  `json:"agentId"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Timestamp string  `json:"timestamp"`
}

func (LocationDelta) Kind() string { return DeltaKindLocation }

// StopDelta announces the first completion of a stop on a route.
type StopDelta struct {
	RouteID   string `json:"routeId"`
	StopIndex int    `json:"stopIndex"`
	Status    string `json:"status"`
}

func (StopDelta) Kind() string { return DeltaKindStop }

// LocationDeltaFor builds the broadcast payload for a recorded report.
func LocationDeltaFor(r PositionReport) LocationDelta {
	return LocationDelta{
		AgentID:   r.AgentID,
		Lat:       r.Lat,
		Lng:       r.Lng,
		Timestamp: ISO8601(r.ObservedAt),
	}
}
