package gtfsrtfeed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/theoremus-urban-solutions/fleet-tracking/ingest"
)

// Poller fetches a VehiclePositions feed on an interval and feeds the
// decoded reports through the ingestion gateway. Feed errors are
// logged and the next tick retried; a broken feed never stops the
// service.
type Poller struct {
	url        string
	interval   time.Duration
	gateway    *ingest.Gateway
	log        *slog.Logger
	httpClient *http.Client
}

// NewPoller creates a poller for url, ticking every interval.
func NewPoller(url string, interval time.Duration, gateway *ingest.Gateway, log *slog.Logger) *Poller {
	return &Poller{
		url:        url,
		interval:   interval,
		gateway:    gateway,
		log:        log,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		p.poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	b, err := p.fetch(ctx)
	if err != nil {
		p.log.Warn("feed fetch failed", "url", p.url, "error", err)
		return
	}
	reports, err := Decode(b)
	if err != nil {
		p.log.Warn("feed decode failed", "url", p.url, "error", err)
		return
	}
	for _, r := range reports {
		if _, err := p.gateway.IngestPosition(ctx, r.Raw, ingest.Options{ObservedAt: r.ObservedAt}); err != nil {
			p.log.Warn("feed position rejected", "agent", r.Raw.AgentID, "error", err)
		}
	}
	p.log.Debug("feed poll complete", "url", p.url, "reports", len(reports))
}

func (p *Poller) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, p.url)
	}
	return io.ReadAll(resp.Body)
}
