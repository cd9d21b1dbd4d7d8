package position

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/theoremus-urban-solutions/fleet-tracking/fleet"
)

type capturePublisher struct {
	mu     sync.Mutex
	deltas []fleet.Delta
}

func (c *capturePublisher) Publish(d fleet.Delta, exclude ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deltas = append(c.deltas, d)
}

func (c *capturePublisher) all() []fleet.Delta {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]fleet.Delta, len(c.deltas))
	copy(out, c.deltas)
	return out
}

func report(agent string, lat, lng float64, at time.Time) fleet.PositionReport {
	return fleet.PositionReport{AgentID: agent, Lat: lat, Lng: lng, ObservedAt: at}
}

func TestLatestReflectsMaxObservedAt(t *testing.T) {
	ctx := context.Background()
	t1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(30 * time.Second)

	tests := []struct {
		name    string
		reports []fleet.PositionReport
		wantLat float64
	}{
		{
			name: "in order",
			reports: []fleet.PositionReport{
				report("A1", 10.0, 20.0, t1),
				report("A1", 10.5, 20.5, t2),
			},
			wantLat: 10.5,
		},
		{
			name: "reversed arrival",
			reports: []fleet.PositionReport{
				report("A1", 10.5, 20.5, t2),
				report("A1", 10.0, 20.0, t1),
			},
			wantLat: 10.5,
		},
		{
			name: "tie goes to last applied",
			reports: []fleet.PositionReport{
				report("A1", 1.0, 1.0, t1),
				report("A1", 2.0, 2.0, t1),
			},
			wantLat: 2.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMemoryStore(nil)
			for _, r := range tt.reports {
				if err := s.Record(ctx, r); err != nil {
					t.Fatalf("Record: %v", err)
				}
			}
			got, err := s.Latest(ctx, "A1")
			if err != nil {
				t.Fatalf("Latest: %v", err)
			}
			if got.Lat != tt.wantLat {
				t.Errorf("latest lat = %v, want %v", got.Lat, tt.wantLat)
			}
		})
	}
}

func TestLatestUnknownAgent(t *testing.T) {
	s := NewMemoryStore(nil)
	_, err := s.Latest(context.Background(), "ghost")
	if !errors.Is(err, fleet.ErrAgentNotFound) {
		t.Fatalf("err = %v, want ErrAgentNotFound", err)
	}
}

func TestStaleReportPublishesNothing(t *testing.T) {
	ctx := context.Background()
	pub := &capturePublisher{}
	s := NewMemoryStore(pub)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := s.Record(ctx, report("A1", 1, 1, base.Add(time.Minute))); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(ctx, report("A1", 2, 2, base)); err != nil {
		t.Fatal(err)
	}

	if got := len(pub.all()); got != 1 {
		t.Fatalf("published %d deltas, want 1", got)
	}
	// The stale report still lands in the append log.
	if got := len(s.History("A1")); got != 2 {
		t.Fatalf("history length = %d, want 2", got)
	}
}

func TestDeltaOrderNonDecreasingPerAgent(t *testing.T) {
	ctx := context.Background()
	pub := &capturePublisher{}
	s := NewMemoryStore(pub)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Record(ctx, report("A1", float64(i), 0, base.Add(time.Duration(i)*time.Second)))
		}(i)
	}
	wg.Wait()

	var prev time.Time
	for _, d := range pub.all() {
		ld := d.(fleet.LocationDelta)
		ts, err := time.Parse(time.RFC3339, ld.Timestamp)
		if err != nil {
			t.Fatalf("bad timestamp %q: %v", ld.Timestamp, err)
		}
		if ts.Before(prev) {
			t.Fatalf("delta timestamps regressed: %v after %v", ts, prev)
		}
		prev = ts
	}
}

func TestConcurrentAgentsDistinctEntries(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agent := fmt.Sprintf("agent-%03d", i)
			_ = s.Record(ctx, report(agent, float64(i%90), float64(i%180), now))
		}(i)
	}
	wg.Wait()

	all, err := s.LatestAll(ctx)
	if err != nil {
		t.Fatalf("LatestAll: %v", err)
	}
	if len(all) != 100 {
		t.Fatalf("LatestAll returned %d entries, want 100", len(all))
	}
	seen := map[string]bool{}
	for _, r := range all {
		if seen[r.AgentID] {
			t.Fatalf("duplicate agent %s in LatestAll", r.AgentID)
		}
		seen[r.AgentID] = true
	}
}

func TestConcurrentRecordsSameAgentLinearize(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Record(ctx, report("A1", float64(i), 0, base.Add(time.Duration(i)*time.Millisecond)))
		}(i)
	}
	wg.Wait()

	got, err := s.Latest(ctx, "A1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.ObservedAt.Equal(base.Add((n - 1) * time.Millisecond)) {
		t.Errorf("latest observedAt = %v, want %v", got.ObservedAt, base.Add((n-1)*time.Millisecond))
	}
	if len(s.History("A1")) != n {
		t.Errorf("history length = %d, want %d", len(s.History("A1")), n)
	}
}
