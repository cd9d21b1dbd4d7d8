package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RawPosition is the inbound position event as it arrives off the
// wire. Coordinates are json.Number so string-encoded values
// normalize instead of being stored verbatim.
type RawPosition struct {
	AgentID string      `json:"agentId" validate:"required"`
	Lat     json.Number `json:"lat" validate:"required"`
	Lng     json.Number `json:"lng" validate:"required"`
}

// RawCompletion is the inbound stop-completion event. StopIndex is a
// pointer so index 0 survives the required check.
type RawCompletion struct {
	RouteID   string `json:"routeId" validate:"required"`
	StopIndex *int   `json:"stopIndex" validate:"required,gte=0"`
}

// ValidationError reports malformed or out-of-range input. It is
// returned to the originating caller only; rejected events never
// reach the stores.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Problems: []string{fmt.Sprintf(format, args...)}}
}
