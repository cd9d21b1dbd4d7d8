package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/theoremus-urban-solutions/fleet-tracking/fleet"
	"github.com/theoremus-urban-solutions/fleet-tracking/position"
	"github.com/theoremus-urban-solutions/fleet-tracking/routestate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGateway(store position.Store) (*Gateway, *routestate.Store) {
	routes := routestate.NewStore(nil)
	return NewGateway(store, routes, testLogger(), 2, time.Millisecond), routes
}

func TestIngestPositionNormalizesStringCoords(t *testing.T) {
	store := position.NewMemoryStore(nil)
	g, _ := newTestGateway(store)

	raw := RawPosition{AgentID: "A1", Lat: json.Number("42.69"), Lng: json.Number("23.32")}
	report, err := g.IngestPosition(context.Background(), raw, Options{})
	if err != nil {
		t.Fatalf("IngestPosition: %v", err)
	}
	if report.Lat != 42.69 || report.Lng != 23.32 {
		t.Errorf("report coords = (%v,%v), want (42.69,23.32)", report.Lat, report.Lng)
	}
	if report.ObservedAt.IsZero() {
		t.Error("ObservedAt should be stamped")
	}

	stored, err := store.Latest(context.Background(), "A1")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if stored.Lat != 42.69 {
		t.Errorf("stored lat = %v", stored.Lat)
	}
}

func TestIngestPositionRejections(t *testing.T) {
	tests := []struct {
		name string
		raw  RawPosition
	}{
		{"missing agent", RawPosition{Lat: json.Number("1"), Lng: json.Number("1")}},
		{"lat out of range", RawPosition{AgentID: "A1", Lat: json.Number("200"), Lng: json.Number("0")}},
		{"lng out of range", RawPosition{AgentID: "A1", Lat: json.Number("0"), Lng: json.Number("-181")}},
		{"lat not a number", RawPosition{AgentID: "A1", Lat: json.Number("abc"), Lng: json.Number("0")}},
		{"lat NaN", RawPosition{AgentID: "A1", Lat: json.Number("NaN"), Lng: json.Number("0")}},
		{"lng infinite", RawPosition{AgentID: "A1", Lat: json.Number("0"), Lng: json.Number("+Inf")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := position.NewMemoryStore(nil)
			g, _ := newTestGateway(store)

			_, err := g.IngestPosition(context.Background(), tt.raw, Options{})
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			// Rejected events must never reach the store.
			if all, _ := store.LatestAll(context.Background()); len(all) != 0 {
				t.Errorf("rejected event appeared in LatestAll: %v", all)
			}
		})
	}
}

// flakyStore fails every Record with ErrStorageUnavailable until the
// remaining counter hits zero.
type flakyStore struct {
	position.Store
	failures int
	calls    int
}

func (f *flakyStore) Record(ctx context.Context, r fleet.PositionReport) error {
	f.calls++
	if f.calls <= f.failures {
		return fleet.ErrStorageUnavailable
	}
	return f.Store.Record(ctx, r)
}

func TestIngestPositionRetriesStorage(t *testing.T) {
	inner := position.NewMemoryStore(nil)
	store := &flakyStore{Store: inner, failures: 2}
	g, _ := newTestGateway(store)

	raw := RawPosition{AgentID: "A1", Lat: json.Number("1"), Lng: json.Number("2")}
	if _, err := g.IngestPosition(context.Background(), raw, Options{}); err != nil {
		t.Fatalf("IngestPosition should succeed after retries: %v", err)
	}
	if store.calls != 3 {
		t.Errorf("store called %d times, want 3", store.calls)
	}
}

func TestIngestPositionSurfacesExhaustedRetries(t *testing.T) {
	store := &flakyStore{Store: position.NewMemoryStore(nil), failures: 100}
	g, _ := newTestGateway(store)

	raw := RawPosition{AgentID: "A1", Lat: json.Number("1"), Lng: json.Number("2")}
	_, err := g.IngestPosition(context.Background(), raw, Options{})
	if !errors.Is(err, fleet.ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}
	// 1 initial attempt + 2 retries.
	if store.calls != 3 {
		t.Errorf("store called %d times, want 3", store.calls)
	}
}

func TestIngestCompletion(t *testing.T) {
	store := position.NewMemoryStore(nil)
	g, routes := newTestGateway(store)
	if err := routes.Put(fleet.Route{
		RouteID: "R1",
		Stops:   []fleet.Stop{{Address: "x", Seq: 0}},
	}); err != nil {
		t.Fatal(err)
	}

	idx := 0
	stop, first, err := g.IngestCompletion(context.Background(), RawCompletion{RouteID: "R1", StopIndex: &idx}, Options{})
	if err != nil {
		t.Fatalf("IngestCompletion: %v", err)
	}
	if !first || stop.Status != fleet.StopCompleted {
		t.Errorf("first=%v status=%s, want first completion", first, stop.Status)
	}
}

func TestIngestCompletionValidation(t *testing.T) {
	neg := -1
	tests := []struct {
		name string
		raw  RawCompletion
	}{
		{"missing route", RawCompletion{StopIndex: new(int)}},
		{"missing index", RawCompletion{RouteID: "R1"}},
		{"negative index", RawCompletion{RouteID: "R1", StopIndex: &neg}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGateway(position.NewMemoryStore(nil))
			_, _, err := g.IngestCompletion(context.Background(), tt.raw, Options{})
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
		})
	}
}

func TestIngestCompletionUnknownRoute(t *testing.T) {
	g, _ := newTestGateway(position.NewMemoryStore(nil))
	idx := 0
	_, _, err := g.IngestCompletion(context.Background(), RawCompletion{RouteID: "R9", StopIndex: &idx}, Options{})
	if !errors.Is(err, fleet.ErrRouteNotFound) {
		t.Fatalf("err = %v, want ErrRouteNotFound", err)
	}
}
