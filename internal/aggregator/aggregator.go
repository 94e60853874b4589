package aggregator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kishorekota-dev/chatrouter/internal/metrics"
	"github.com/kishorekota-dev/chatrouter/internal/types"
	"github.com/rs/zerolog"
)

// SnapshotSource builds the dashboard payload
type SnapshotSource interface {
	Snapshot() types.DashboardSnapshot
}

// Broadcaster sends a message to every connected dashboard
type Broadcaster interface {
	Broadcast(message []byte)
	ClientCount() int
}

// Aggregator periodically broadcasts queue snapshots to dashboards
type Aggregator struct {
	source   SnapshotSource
	hub      Broadcaster
	metrics  *metrics.Metrics
	interval time.Duration
	logger   zerolog.Logger
}

// NewAggregator creates a new aggregator broadcasting every second
func NewAggregator(source SnapshotSource, hub Broadcaster, m *metrics.Metrics, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		source:   source,
		hub:      hub,
		metrics:  m,
		interval: time.Second,
		logger:   logger.With().Str("component", "aggregator").Logger(),
	}
}

// Start begins broadcasting snapshots until ctx is cancelled
func (a *Aggregator) Start(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info().Msg("aggregator started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("aggregator stopped")
			return
		case <-ticker.C:
			a.cycle()
		}
	}
}

// cycle broadcasts one snapshot. Nothing is built while no dashboard is connected.
func (a *Aggregator) cycle() bool {
	if a.hub.ClientCount() == 0 {
		return false
	}

	cycleStart := time.Now()
	snapshot := a.source.Snapshot()

	data, err := json.Marshal(snapshot)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to marshal snapshot")
		return false
	}
	a.hub.Broadcast(data)

	if a.metrics != nil {
		a.metrics.RecordAggregationCycle(time.Since(cycleStart))
	}

	a.logger.Debug().
		Int("queued", snapshot.Status.TotalInQueue).
		Int("agents", len(snapshot.Agents)).
		Int("alerts", len(snapshot.Status.Alerts)).
		Int("clients", a.hub.ClientCount()).
		Msg("snapshot broadcasted")
	return true
}
