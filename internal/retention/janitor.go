// Package retention implements the data retention sweep for the cold-chain
// backend. Telemetry readings and prediction logs are append-only and grow
// without bound on a busy fleet; the janitor periodically purges records
// past their retention window.
//
// The janitor runs as a background goroutine and respects context
// cancellation for graceful shutdown. Prune failures are logged and retried
// on the next cycle.
package retention

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aegisharvest/coldchain/internal/store"
)

// DefaultTelemetryRetention keeps sensor readings for 30 days.
const DefaultTelemetryRetention = 30 * 24 * time.Hour

// DefaultPredictionRetention keeps prediction logs for 90 days.
const DefaultPredictionRetention = 90 * 24 * time.Hour

// CycleStats tracks what happened in a single retention cycle.
type CycleStats struct {
	TelemetryPruned   int
	PredictionsPruned int
	Errors            []error
}

// Janitor periodically purges expired telemetry and prediction records.
type Janitor struct {
	store    store.Store
	interval time.Duration

	telemetryTTL  time.Duration
	predictionTTL time.Duration
}

// NewJanitor creates a retention janitor that runs on the given interval.
func NewJanitor(s store.Store, interval time.Duration) *Janitor {
	if interval < time.Minute {
		interval = time.Hour
	}
	return &Janitor{
		store:         s,
		interval:      interval,
		telemetryTTL:  DefaultTelemetryRetention,
		predictionTTL: DefaultPredictionRetention,
	}
}

// SetRetention overrides the retention windows. Non-positive values keep
// the current setting.
func (j *Janitor) SetRetention(telemetry, predictions time.Duration) {
	if telemetry > 0 {
		j.telemetryTTL = telemetry
	}
	if predictions > 0 {
		j.predictionTTL = predictions
	}
}

// Start runs the janitor until ctx is canceled. The first sweep happens
// immediately on startup.
func (j *Janitor) Start(ctx context.Context) {
	log.Info().
		Dur("interval", j.interval).
		Dur("telemetry_ttl", j.telemetryTTL).
		Dur("prediction_ttl", j.predictionTTL).
		Msg("retention janitor started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("retention janitor stopped")
			return
		case <-ticker.C:
			j.RunCycle(ctx)
		}
	}
}

// RunCycle performs one retention sweep.
func (j *Janitor) RunCycle(ctx context.Context) CycleStats {
	start := time.Now()
	var stats CycleStats

	now := time.Now().UTC()

	n, err := j.store.PruneTelemetry(ctx, now.Add(-j.telemetryTTL))
	if err != nil {
		log.Warn().Err(err).Msg("telemetry prune failed")
		stats.Errors = append(stats.Errors, err)
	}
	stats.TelemetryPruned = n

	n, err = j.store.PrunePredictions(ctx, now.Add(-j.predictionTTL))
	if err != nil {
		log.Warn().Err(err).Msg("prediction prune failed")
		stats.Errors = append(stats.Errors, err)
	}
	stats.PredictionsPruned = n

	if stats.TelemetryPruned > 0 || stats.PredictionsPruned > 0 {
		log.Info().
			Int("telemetry_pruned", stats.TelemetryPruned).
			Int("predictions_pruned", stats.PredictionsPruned).
			Dur("elapsed", time.Since(start)).
			Msg("retention cycle complete")
	}
	return stats
}
