package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PositionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleet_positions_accepted_total",
		Help: "Position reports that passed validation and were recorded",
	})
	PositionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleet_positions_rejected_total",
		Help: "Position reports rejected by the ingestion gateway",
	})
	CompletionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleet_completions_accepted_total",
		Help: "Stop completion events that passed validation",
	})
	CompletionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleet_completions_rejected_total",
		Help: "Stop completion events rejected by the ingestion gateway",
	})
	CompletionsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleet_completions_duplicate_total",
		Help: "Stop completions that were idempotent no-ops",
	})
	DeltasPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_deltas_published_total",
		Help: "Deltas handed to the fan-out, by kind",
	}, []string{"kind"})
	DeltasDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleet_deltas_dropped_total",
		Help: "Deltas dropped because an observer's queue overflowed",
	})
	StorageRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleet_storage_retries_total",
		Help: "Retries against an unavailable position store",
	})
	ActiveObservers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fleet_active_observers",
		Help: "Currently subscribed observer sessions",
	})
)
