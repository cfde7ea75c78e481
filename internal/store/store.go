// Package store provides the persistence collaborator for the cold-chain
// backend: table-shaped operations over the fleet collections. All consumers
// treat store failures as degraded-empty results — they log, substitute a
// default dataset, and continue — so neither implementation is ever allowed
// to take the service down.
package store

import (
	"context"
	"time"

	"github.com/aegisharvest/coldchain/pkg/models"
)

// Store is the combined persistence interface. The in-memory implementation
// backs tests and zero-config development; PostgreSQL backs production.
type Store interface {
	TelemetryStore
	PredictionStore
	RouteStore
	FacilityStore
	TripStore
	RescuePointStore
	RecommendationStore
	ConversationStore
	RetentionStore

	// Ping checks if the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error

	// Migrate creates the backing schema.
	Migrate(ctx context.Context) error
}

// ── Telemetry ───────────────────────────────────────────────

type TelemetryStore interface {
	InsertTelemetry(ctx context.Context, rec *models.TelemetryRecord) error
	LatestTelemetry(ctx context.Context, limit int) ([]models.TelemetryRecord, error)
}

// ── Predictions ─────────────────────────────────────────────

type PredictionStore interface {
	InsertPrediction(ctx context.Context, rec *models.PredictionRecord) error
	ListPredictions(ctx context.Context, limit int) ([]models.PredictionRecord, error)
}

// ── Routes ──────────────────────────────────────────────────

type RouteStore interface {
	ListRoutes(ctx context.Context) ([]models.Route, error)
	GetRoute(ctx context.Context, routeID string) (*models.Route, error)
	UpsertRoute(ctx context.Context, route *models.Route) error
}

// ── Facilities ──────────────────────────────────────────────

type FacilityStore interface {
	ListFacilities(ctx context.Context) ([]models.Facility, error)
	UpdateFacility(ctx context.Context, name string, updates models.FacilityUpdate) (*models.Facility, error)
}

// ── Trip Logs ───────────────────────────────────────────────

type TripStore interface {
	ListTripLogs(ctx context.Context, limit int) ([]models.TripLog, error)
	InsertTripLog(ctx context.Context, trip *models.TripLog) error
}

// ── Rescue Points ───────────────────────────────────────────

type RescuePointStore interface {
	// ListRescuePoints returns rescue points ordered by recovery chance,
	// best first. availableOnly filters to currently available outlets.
	ListRescuePoints(ctx context.Context, availableOnly bool) ([]models.RescuePoint, error)
}

// ── Recommendations ─────────────────────────────────────────

type RecommendationStore interface {
	InsertRecommendation(ctx context.Context, rec *models.Recommendation) error
	ListRecommendations(ctx context.Context, limit int) ([]models.Recommendation, error)
	// UpdateRecommendationStatus resolves a pending recommendation
	// (human approval or rejection) and stamps resolved_at.
	UpdateRecommendationStatus(ctx context.Context, recID string, status models.RecommendationStatus) (*models.Recommendation, error)
}

// ── Conversations ───────────────────────────────────────────

// ConversationStore persists agent session turns. Implementations serialize
// writes per session so turn order is preserved.
type ConversationStore interface {
	AppendConversationTurn(ctx context.Context, sessionID, role, content string) error
	ConversationHistory(ctx context.Context, sessionID string) ([]models.ConversationTurn, error)
}

// ── Retention ───────────────────────────────────────────────

// RetentionStore prunes aged append-only records. Only telemetry readings
// and prediction logs grow without bound; the fleet collections are
// operator-curated and never swept.
type RetentionStore interface {
	PruneTelemetry(ctx context.Context, olderThan time.Time) (int, error)
	PrunePredictions(ctx context.Context, olderThan time.Time) (int, error)
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}
