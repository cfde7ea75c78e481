package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aegisharvest/coldchain/pkg/models"
)

func TestTelemetryNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec := &models.TelemetryRecord{
			TelemetrySnapshot: models.TelemetrySnapshot{Temperature: float64(i)},
		}
		if err := s.InsertTelemetry(ctx, rec); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		if rec.ID == "" {
			t.Fatal("insert did not assign an id")
		}
	}

	got, err := s.LatestTelemetry(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	if got[0].Temperature != 4 || got[2].Temperature != 2 {
		t.Errorf("wrong order: temps %v, %v", got[0].Temperature, got[2].Temperature)
	}
}

func TestLatestTelemetryDefaultLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		if err := s.InsertTelemetry(ctx, &models.TelemetryRecord{}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.LatestTelemetry(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 20 {
		t.Errorf("default limit: got %d, want 20", len(got))
	}
}

func TestRouteUpsertAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	r := &models.Route{RouteID: "R1", Name: "Route Alpha", Status: models.RouteOnTrack}
	if err := s.UpsertRoute(ctx, r); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetRoute(ctx, "R1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Route Alpha" {
		t.Errorf("name = %q", got.Name)
	}

	// Mutating the returned copy must not leak into the store.
	got.Status = models.RouteCritical
	again, _ := s.GetRoute(ctx, "R1")
	if again.Status != models.RouteOnTrack {
		t.Error("GetRoute returned a shared pointer")
	}

	r.Status = models.RouteDelayed
	if err := s.UpsertRoute(ctx, r); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetRoute(ctx, "R1")
	if got.Status != models.RouteDelayed {
		t.Errorf("status after upsert = %q", got.Status)
	}
}

func TestGetRouteNotFound(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.GetRoute(context.Background(), "missing")
	var nf *ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if nf.Entity != "route" {
		t.Errorf("entity = %q", nf.Entity)
	}
}

func TestListRoutesSorted(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"R3", "R1", "R2"} {
		if err := s.UpsertRoute(ctx, &models.Route{RouteID: id}); err != nil {
			t.Fatal(err)
		}
	}
	routes, err := s.ListRoutes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []string{"R1", "R2", "R3"} {
		if routes[i].RouteID != want {
			t.Errorf("routes[%d] = %q, want %q", i, routes[i].RouteID, want)
		}
	}
}

func TestUpdateFacilityPartial(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.SeedFacility(models.Facility{
		Name:        "Centre A",
		Temperature: 3.5,
		Humidity:    80,
		PowerStatus: models.PowerNormal,
		CurrentLoad: 64,
	})

	temp := 5.2
	got, err := s.UpdateFacility(ctx, "Centre A", models.FacilityUpdate{Temperature: &temp})
	if err != nil {
		t.Fatal(err)
	}
	if got.Temperature != 5.2 {
		t.Errorf("temperature = %v", got.Temperature)
	}
	if got.Humidity != 80 || got.CurrentLoad != 64 {
		t.Error("untouched fields changed")
	}
	if got.LastUpdated.IsZero() {
		t.Error("last_updated not stamped")
	}

	_, err = s.UpdateFacility(ctx, "nope", models.FacilityUpdate{})
	var nf *ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRescuePointsFilterAndOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.SeedRescuePoint(models.RescuePoint{Name: "Low", RecoveryChance: 40, Available: true})
	s.SeedRescuePoint(models.RescuePoint{Name: "Closed", RecoveryChance: 99, Available: false})
	s.SeedRescuePoint(models.RescuePoint{Name: "High", RecoveryChance: 90, Available: true})

	all, err := s.ListRescuePoints(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Name != "Closed" {
		t.Errorf("all points: %+v", all)
	}

	avail, err := s.ListRescuePoints(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(avail) != 2 {
		t.Fatalf("available: got %d, want 2", len(avail))
	}
	if avail[0].Name != "High" || avail[1].Name != "Low" {
		t.Errorf("wrong order: %q, %q", avail[0].Name, avail[1].Name)
	}
}

func TestRecommendationLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec := &models.Recommendation{
		RecID:    "AI-DEADBEEF",
		Type:     models.RecReroute,
		Severity: models.SeverityHigh,
		Message:  "Divert to Centre A",
		Status:   models.RecPending,
	}
	if err := s.InsertRecommendation(ctx, rec); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListRecommendations(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Status != models.RecPending {
		t.Fatalf("list: %+v", list)
	}
	if list[0].CreatedAt.IsZero() {
		t.Error("created_at not stamped")
	}

	updated, err := s.UpdateRecommendationStatus(ctx, "AI-DEADBEEF", models.RecApproved)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != models.RecApproved {
		t.Errorf("status = %q", updated.Status)
	}
	if updated.ResolvedAt == nil {
		t.Error("resolved_at not stamped")
	}

	_, err = s.UpdateRecommendationStatus(ctx, "AI-UNKNOWN", models.RecRejected)
	var nf *ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRecommendationsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := &models.Recommendation{RecID: fmt.Sprintf("AI-%08d", i), Status: models.RecPending}
		if err := s.InsertRecommendation(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	list, _ := s.ListRecommendations(ctx, 2)
	if len(list) != 2 {
		t.Fatalf("got %d", len(list))
	}
	if list[0].RecID != "AI-00000002" {
		t.Errorf("first = %q", list[0].RecID)
	}
}

func TestConversationTurnsPerSession(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.AppendConversationTurn(ctx, "s1", "user", "status?"); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendConversationTurn(ctx, "s1", "assistant", "all nominal"); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendConversationTurn(ctx, "s2", "user", "other session"); err != nil {
		t.Fatal(err)
	}

	h1, err := s.ConversationHistory(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(h1) != 2 {
		t.Fatalf("s1 turns = %d, want 2", len(h1))
	}
	if h1[0].Role != "user" || h1[1].Role != "assistant" {
		t.Errorf("order: %q then %q", h1[0].Role, h1[1].Role)
	}

	h2, _ := s.ConversationHistory(ctx, "s2")
	if len(h2) != 1 {
		t.Errorf("s2 turns = %d, want 1", len(h2))
	}

	empty, _ := s.ConversationHistory(ctx, "nope")
	if len(empty) != 0 {
		t.Errorf("unknown session returned %d turns", len(empty))
	}
}

func TestTripLogInsertAndList(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		trip := &models.TripLog{
			TripID: fmt.Sprintf("T-%03d", i),
			Status: models.TripCompleted,
		}
		if err := s.InsertTripLog(ctx, trip); err != nil {
			t.Fatal(err)
		}
	}
	trips, err := s.ListTripLogs(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(trips) != 3 {
		t.Fatalf("got %d trips", len(trips))
	}
	if trips[0].TripID != "T-002" {
		t.Errorf("first = %q", trips[0].TripID)
	}
}
