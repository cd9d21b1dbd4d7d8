package ingest

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/theoremus-urban-solutions/fleet-tracking/fleet"
	"github.com/theoremus-urban-solutions/fleet-tracking/observability"
	"github.com/theoremus-urban-solutions/fleet-tracking/position"
	"github.com/theoremus-urban-solutions/fleet-tracking/routestate"
)

// Options carries per-event ingest context.
type Options struct {
	// ObservedAt overrides the report timestamp. Zero means "now";
	// the feed adapter supplies feed timestamps here.
	ObservedAt time.Time

	// ExcludeSession is the observer session of the originating
	// client, excluded from the resulting broadcast so a client that
	// both reports and observes does not receive its own echo.
	ExcludeSession string
}

// Gateway validates inbound events and forwards them to the stores.
type Gateway struct {
	positions position.Store
	routes    *routestate.Store
	validate  *validator.Validate
	log       *slog.Logger

	retryAttempts int
	retryBackoff  time.Duration
}

// NewGateway wires the gateway to its stores. retryAttempts is the
// number of retries after the first failed Record when the store is
// unavailable; backoff grows linearly per attempt.
func NewGateway(positions position.Store, routes *routestate.Store, log *slog.Logger, retryAttempts int, retryBackoff time.Duration) *Gateway {
	return &Gateway{
		positions:     positions,
		routes:        routes,
		validate:      validator.New(),
		log:           log,
		retryAttempts: retryAttempts,
		retryBackoff:  retryBackoff,
	}
}

// excludingRecorder is implemented by stores that can exclude the
// originating session from the broadcast.
type excludingRecorder interface {
	RecordExcluding(ctx context.Context, r fleet.PositionReport, excludeSession string) error
}

// IngestPosition validates raw, normalizes its coordinates and records
// the report. The returned error is a *ValidationError for rejected
// input, or wraps fleet.ErrStorageUnavailable when the store stayed
// unreachable through all retries.
func (g *Gateway) IngestPosition(ctx context.Context, raw RawPosition, opts Options) (fleet.PositionReport, error) {
	if err := g.validate.Struct(raw); err != nil {
		observability.PositionsRejected.Inc()
		return fleet.PositionReport{}, asValidationError(err)
	}
	lat, err := finiteCoord(raw.Lat.String(), -90, 90, "lat")
	if err != nil {
		observability.PositionsRejected.Inc()
		return fleet.PositionReport{}, err
	}
	lng, err := finiteCoord(raw.Lng.String(), -180, 180, "lng")
	if err != nil {
		observability.PositionsRejected.Inc()
		return fleet.PositionReport{}, err
	}

	observedAt := opts.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now()
	}
	report := fleet.PositionReport{
		AgentID:    raw.AgentID,
		Lat:        lat,
		Lng:        lng,
		ObservedAt: observedAt.UTC(),
	}

	record := func(ctx context.Context) error {
		if er, ok := g.positions.(excludingRecorder); ok && opts.ExcludeSession != "" {
			return er.RecordExcluding(ctx, report, opts.ExcludeSession)
		}
		return g.positions.Record(ctx, report)
	}
	if err := g.withRetry(ctx, record); err != nil {
		g.log.Error("position record failed", "agent", report.AgentID, "error", err)
		return fleet.PositionReport{}, err
	}
	observability.PositionsAccepted.Inc()
	return report, nil
}

// IngestCompletion validates raw and forwards it to the route store.
// first reports whether this call performed the completion.
func (g *Gateway) IngestCompletion(ctx context.Context, raw RawCompletion, opts Options) (fleet.Stop, bool, error) {
	if err := g.validate.Struct(raw); err != nil {
		observability.CompletionsRejected.Inc()
		return fleet.Stop{}, false, asValidationError(err)
	}
	completedAt := opts.ObservedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}
	stop, first, err := g.routes.CompleteStopExcluding(ctx, raw.RouteID, *raw.StopIndex, completedAt.UTC(), opts.ExcludeSession)
	if err != nil {
		observability.CompletionsRejected.Inc()
		return fleet.Stop{}, false, err
	}
	observability.CompletionsAccepted.Inc()
	return stop, first, nil
}

// withRetry runs fn, retrying on fleet.ErrStorageUnavailable with a
// linearly growing backoff. Any other error returns immediately.
func (g *Gateway) withRetry(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil || !errors.Is(err, fleet.ErrStorageUnavailable) {
			return err
		}
		if attempt >= g.retryAttempts {
			return err
		}
		observability.StorageRetries.Inc()
		g.log.Warn("store unavailable, retrying", "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.retryBackoff * time.Duration(attempt+1)):
		}
	}
}

// finiteCoord parses a coordinate and rejects NaN, infinities and
// out-of-range values. Naive trackers have been observed storing NaN
// straight into the log; this is the gate that keeps them out.
func finiteCoord(s string, min, max float64, field string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, validationErrorf("%s: not a number: %q", field, s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, validationErrorf("%s: not finite: %q", field, s)
	}
	if v < min || v > max {
		return 0, validationErrorf("%s: %v out of range [%v,%v]", field, v, min, max)
	}
	return v, nil
}

func asValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		problems := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			problems = append(problems, fe.Field()+": failed "+fe.Tag())
		}
		return &ValidationError{Problems: problems}
	}
	return &ValidationError{Problems: []string{err.Error()}}
}
