package position

import (
	"context"

	"github.com/theoremus-urban-solutions/fleet-tracking/fleet"
)

// Store is the position store contract. Record appends a validated
// report and advances the latest index when the report's ObservedAt is
// at least the current latest (ties go to the last writer). Latest and
// LatestAll read the index; Latest returns fleet.ErrAgentNotFound for
// agents never seen. Implementations publish a location delta for
// every index-advancing report.
type Store interface {
	Record(ctx context.Context, r fleet.PositionReport) error
	Latest(ctx context.Context, agentID string) (fleet.PositionReport, error)
	LatestAll(ctx context.Context) ([]fleet.PositionReport, error)
}
