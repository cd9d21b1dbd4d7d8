package fleet

import "errors"

var (
	// ErrAgentNotFound reports that no position has been recorded for
	// the requested agent.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrRouteNotFound reports an unknown route id, or an agent with no
	// assigned route.
	ErrRouteNotFound = errors.New("route not found")

	// ErrStopIndexOutOfRange reports a stop index outside the route's
	// stop sequence.
	ErrStopIndexOutOfRange = errors.New("stop index out of range")

	// ErrStorageUnavailable reports that the durable store could not
	// be reached. Ingestion retries on it with backoff before
	// surfacing the failure to the caller.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
