package retention

import (
	"context"
	"testing"
	"time"

	"github.com/aegisharvest/coldchain/internal/store"
	"github.com/aegisharvest/coldchain/pkg/models"
)

func TestRunCyclePrunesExpired(t *testing.T) {
	db := store.NewMemoryStore()
	ctx := context.Background()

	old := time.Now().UTC().Add(-40 * 24 * time.Hour)
	fresh := time.Now().UTC()

	for _, ts := range []time.Time{old, old, fresh} {
		rec := &models.TelemetryRecord{CreatedAt: ts}
		if err := db.InsertTelemetry(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.InsertPrediction(ctx, &models.PredictionRecord{CreatedAt: old}); err != nil {
		t.Fatal(err)
	}

	j := NewJanitor(db, time.Hour)
	stats := j.RunCycle(ctx)

	if stats.TelemetryPruned != 2 {
		t.Errorf("telemetry pruned = %d, want 2", stats.TelemetryPruned)
	}
	// 40 days is inside the 90-day prediction window.
	if stats.PredictionsPruned != 0 {
		t.Errorf("predictions pruned = %d, want 0", stats.PredictionsPruned)
	}

	remaining, _ := db.LatestTelemetry(ctx, 10)
	if len(remaining) != 1 {
		t.Errorf("%d telemetry records remain, want 1", len(remaining))
	}
}

func TestSetRetentionOverride(t *testing.T) {
	db := store.NewMemoryStore()
	ctx := context.Background()

	if err := db.InsertPrediction(ctx, &models.PredictionRecord{
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	j := NewJanitor(db, time.Hour)
	j.SetRetention(0, time.Hour)
	stats := j.RunCycle(ctx)

	if stats.PredictionsPruned != 1 {
		t.Errorf("predictions pruned = %d, want 1", stats.PredictionsPruned)
	}
	if j.telemetryTTL != DefaultTelemetryRetention {
		t.Error("zero value must not override telemetry ttl")
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	db := store.NewMemoryStore()
	j := NewJanitor(db, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop on cancel")
	}
}
