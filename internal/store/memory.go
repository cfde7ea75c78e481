// Package store — in-memory Store implementation.
// Used when PostgreSQL is not configured (local dev, tests).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aegisharvest/coldchain/pkg/models"
)

// MemoryStore implements Store with RWMutex-guarded maps and slices.
type MemoryStore struct {
	mu sync.RWMutex

	telemetry     []models.TelemetryRecord // append-only, newest last
	predictions   []models.PredictionRecord
	routes        map[string]*models.Route    // key: route_id
	facilities    map[string]*models.Facility // key: name
	trips         []models.TripLog
	rescuePoints  []models.RescuePoint
	recs          map[string]*models.Recommendation // key: rec_id
	recOrder      []string                          // rec_ids, newest last
	conversations map[string][]models.ConversationTurn
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		routes:        make(map[string]*models.Route),
		facilities:    make(map[string]*models.Facility),
		recs:          make(map[string]*models.Recommendation),
		conversations: make(map[string][]models.ConversationTurn),
	}
}

// ── Telemetry ───────────────────────────────────────────────

func (s *MemoryStore) InsertTelemetry(_ context.Context, rec *models.TelemetryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.telemetry = append(s.telemetry, *rec)
	return nil
}

func (s *MemoryStore) LatestTelemetry(_ context.Context, limit int) ([]models.TelemetryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	n := len(s.telemetry)
	if limit > n {
		limit = n
	}

	// Newest first.
	out := make([]models.TelemetryRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.telemetry[i])
	}
	return out, nil
}

// ── Predictions ─────────────────────────────────────────────

func (s *MemoryStore) InsertPrediction(_ context.Context, rec *models.PredictionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.predictions = append(s.predictions, *rec)
	return nil
}

func (s *MemoryStore) ListPredictions(_ context.Context, limit int) ([]models.PredictionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	n := len(s.predictions)
	if limit > n {
		limit = n
	}
	out := make([]models.PredictionRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.predictions[i])
	}
	return out, nil
}

// ── Routes ──────────────────────────────────────────────────

func (s *MemoryStore) ListRoutes(_ context.Context) ([]models.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Route, 0, len(s.routes))
	for _, r := range s.routes {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RouteID < out[j].RouteID })
	return out, nil
}

func (s *MemoryStore) GetRoute(_ context.Context, routeID string) (*models.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.routes[routeID]
	if !ok {
		return nil, &ErrNotFound{Entity: "route", Key: routeID}
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) UpsertRoute(_ context.Context, route *models.Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *route
	s.routes[route.RouteID] = &cp
	return nil
}

// ── Facilities ──────────────────────────────────────────────

func (s *MemoryStore) ListFacilities(_ context.Context) ([]models.Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Facility, 0, len(s.facilities))
	for _, f := range s.facilities {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SeedFacility inserts or replaces a facility; used by dev seeding and tests.
func (s *MemoryStore) SeedFacility(f models.Facility) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facilities[f.Name] = &f
}

func (s *MemoryStore) UpdateFacility(_ context.Context, name string, updates models.FacilityUpdate) (*models.Facility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.facilities[name]
	if !ok {
		return nil, &ErrNotFound{Entity: "facility", Key: name}
	}
	if updates.Temperature != nil {
		f.Temperature = *updates.Temperature
	}
	if updates.Humidity != nil {
		f.Humidity = *updates.Humidity
	}
	if updates.PowerStatus != nil {
		f.PowerStatus = *updates.PowerStatus
	}
	if updates.CurrentLoad != nil {
		f.CurrentLoad = *updates.CurrentLoad
	}
	f.LastUpdated = time.Now().UTC()
	cp := *f
	return &cp, nil
}

// ── Trip Logs ───────────────────────────────────────────────

func (s *MemoryStore) ListTripLogs(_ context.Context, limit int) ([]models.TripLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	n := len(s.trips)
	if limit > n {
		limit = n
	}
	out := make([]models.TripLog, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.trips[i])
	}
	return out, nil
}

func (s *MemoryStore) InsertTripLog(_ context.Context, trip *models.TripLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trips = append(s.trips, *trip)
	return nil
}

// ── Rescue Points ───────────────────────────────────────────

// SeedRescuePoint appends a rescue point; used by dev seeding and tests.
func (s *MemoryStore) SeedRescuePoint(p models.RescuePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rescuePoints = append(s.rescuePoints, p)
}

func (s *MemoryStore) ListRescuePoints(_ context.Context, availableOnly bool) ([]models.RescuePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.RescuePoint, 0, len(s.rescuePoints))
	for _, p := range s.rescuePoints {
		if availableOnly && !p.Available {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecoveryChance > out[j].RecoveryChance })
	return out, nil
}

// ── Recommendations ─────────────────────────────────────────

func (s *MemoryStore) InsertRecommendation(_ context.Context, rec *models.Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	cp := *rec
	s.recs[rec.RecID] = &cp
	s.recOrder = append(s.recOrder, rec.RecID)
	return nil
}

func (s *MemoryStore) ListRecommendations(_ context.Context, limit int) ([]models.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	out := make([]models.Recommendation, 0, limit)
	for i := len(s.recOrder) - 1; i >= 0 && len(out) < limit; i-- {
		if r, ok := s.recs[s.recOrder[i]]; ok {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateRecommendationStatus(_ context.Context, recID string, status models.RecommendationStatus) (*models.Recommendation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.recs[recID]
	if !ok {
		return nil, &ErrNotFound{Entity: "recommendation", Key: recID}
	}
	now := time.Now().UTC()
	r.Status = status
	r.ResolvedAt = &now
	cp := *r
	return &cp, nil
}

// ── Conversations ───────────────────────────────────────────

func (s *MemoryStore) AppendConversationTurn(_ context.Context, sessionID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[sessionID] = append(s.conversations[sessionID], models.ConversationTurn{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (s *MemoryStore) ConversationHistory(_ context.Context, sessionID string) ([]models.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.conversations[sessionID]
	out := make([]models.ConversationTurn, len(turns))
	copy(out, turns)
	return out, nil
}

// ── Retention ───────────────────────────────────────────────

func (s *MemoryStore) PruneTelemetry(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.telemetry[:0]
	for _, rec := range s.telemetry {
		if !rec.CreatedAt.Before(olderThan) {
			kept = append(kept, rec)
		}
	}
	pruned := len(s.telemetry) - len(kept)
	s.telemetry = kept
	return pruned, nil
}

func (s *MemoryStore) PrunePredictions(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.predictions[:0]
	for _, rec := range s.predictions {
		if !rec.CreatedAt.Before(olderThan) {
			kept = append(kept, rec)
		}
	}
	pruned := len(s.predictions) - len(kept)
	s.predictions = kept
	return pruned, nil
}

// ── Lifecycle ───────────────────────────────────────────────

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Migrate(context.Context) error { return nil }
