// Package models defines the shared domain types for the Aegis Harvest
// cold-chain backend: telemetry snapshots, prediction inputs/outputs, fleet
// records, and agent conversation shapes.
package models

import (
	"math"
	"time"
)

// ── Telemetry ───────────────────────────────────────────────

// DoorStatus is the reported container door state.
type DoorStatus string

const (
	DoorOpen   DoorStatus = "open"
	DoorClosed DoorStatus = "closed"
)

// TelemetrySnapshot is one immutable sensor reading from a container.
type TelemetrySnapshot struct {
	Temperature    float64    `json:"temperature"` // °C
	Humidity       float64    `json:"humidity"`    // %
	Vibration      float64    `json:"vibration"`   // g
	Ethylene       float64    `json:"ethylene"`    // ppm
	CO2            float64    `json:"co2"`         // ppm
	DoorStatus     DoorStatus `json:"door_status"`
	BatteryLevel   int        `json:"battery_level"`   // %
	SignalStrength int        `json:"signal_strength"` // %
	SessionID      string     `json:"session_id,omitempty"`
}

// TelemetryRecord is a persisted snapshot.
type TelemetryRecord struct {
	ID string `json:"id,omitempty"`
	TelemetrySnapshot
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Validate checks the documented sensor ranges. Out-of-range values are
// rejected, never clamped.
func (t *TelemetrySnapshot) Validate() error {
	switch {
	case !isFinite(t.Temperature) || t.Temperature < -10 || t.Temperature > 60:
		return &ValidationError{Field: "temperature", Reason: "must be between -10 and 60 °C"}
	case !isFinite(t.Humidity) || t.Humidity < 0 || t.Humidity > 100:
		return &ValidationError{Field: "humidity", Reason: "must be between 0 and 100 %"}
	case !isFinite(t.Vibration) || t.Vibration < 0 || t.Vibration > 5:
		return &ValidationError{Field: "vibration", Reason: "must be between 0 and 5 g"}
	case !isFinite(t.Ethylene) || t.Ethylene < 0:
		return &ValidationError{Field: "ethylene", Reason: "must be >= 0 ppm"}
	case !isFinite(t.CO2) || t.CO2 < 0:
		return &ValidationError{Field: "co2", Reason: "must be >= 0 ppm"}
	case t.BatteryLevel < 0 || t.BatteryLevel > 100:
		return &ValidationError{Field: "battery_level", Reason: "must be between 0 and 100 %"}
	case t.SignalStrength < 0 || t.SignalStrength > 100:
		return &ValidationError{Field: "signal_strength", Reason: "must be between 0 and 100 %"}
	}
	if t.DoorStatus != "" && t.DoorStatus != DoorOpen && t.DoorStatus != DoorClosed {
		return &ValidationError{Field: "door_status", Reason: "must be open or closed"}
	}
	return nil
}

// ── ML Prediction ───────────────────────────────────────────

// Road-condition labels known to the feature engineering stage. The road
// multiplier tolerates labels outside this set; request validation does not.
const (
	RoadClear        = "Clear"
	RoadTraffic      = "Traffic"
	RoadConstruction = "Construction"
	RoadBlocked      = "Blocked"
)

// Default candidate-center parameters, applied when a caller omits them.
const (
	DefaultDistAKm = 50.0
	DefaultDistBKm = 100.0
	DefaultRoadA   = RoadClear
	DefaultRoadB   = RoadTraffic
	DefaultCapAPct = 70.0
	DefaultCapBPct = 50.0
)

// PredictionRequest is the full input to the two-stage prediction.
type PredictionRequest struct {
	TempC       float64 `json:"temp_c"`
	HumidityPct float64 `json:"humidity_pct"`
	VibrationG  float64 `json:"vibration_g"`
	DistanceKm  float64 `json:"distance_km"` // to the original destination

	DistAKm float64 `json:"dist_a_km"`
	DistBKm float64 `json:"dist_b_km"`
	RoadA   string  `json:"road_a"`
	RoadB   string  `json:"road_b"`
	CapAPct float64 `json:"cap_a_pct"`
	CapBPct float64 `json:"cap_b_pct"`
}

// Validate checks numeric ranges and finiteness. Road labels are not
// validated here: the engine tolerates unknown labels (multiplier default)
// while the HTTP layer enforces the documented enum on external input.
func (r *PredictionRequest) Validate() error {
	switch {
	case !isFinite(r.TempC) || r.TempC < -10 || r.TempC > 60:
		return &ValidationError{Field: "temp_c", Reason: "must be between -10 and 60 °C"}
	case !isFinite(r.HumidityPct) || r.HumidityPct < 0 || r.HumidityPct > 100:
		return &ValidationError{Field: "humidity_pct", Reason: "must be between 0 and 100 %"}
	case !isFinite(r.VibrationG) || r.VibrationG < 0 || r.VibrationG > 5:
		return &ValidationError{Field: "vibration_g", Reason: "must be between 0 and 5 g"}
	case !isFinite(r.DistanceKm) || r.DistanceKm < 0:
		return &ValidationError{Field: "distance_km", Reason: "must be >= 0"}
	case !isFinite(r.DistAKm) || r.DistAKm < 0:
		return &ValidationError{Field: "dist_a_km", Reason: "must be >= 0"}
	case !isFinite(r.DistBKm) || r.DistBKm < 0:
		return &ValidationError{Field: "dist_b_km", Reason: "must be >= 0"}
	case !isFinite(r.CapAPct) || r.CapAPct < 0 || r.CapAPct > 100:
		return &ValidationError{Field: "cap_a_pct", Reason: "must be between 0 and 100 %"}
	case !isFinite(r.CapBPct) || r.CapBPct < 0 || r.CapBPct > 100:
		return &ValidationError{Field: "cap_b_pct", Reason: "must be between 0 and 100 %"}
	}
	return nil
}

// RiskLevel classifies how close cargo is to spoiling.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "safe"
	RiskWarning  RiskLevel = "warning"
	RiskCritical RiskLevel = "critical"
)

// SurvivalMargins are predicted days of shelf life remaining after transit
// to each candidate destination. Negative means the cargo arrives spoiled.
type SurvivalMargins struct {
	Original float64 `json:"sm_original"`
	CenterA  float64 `json:"sm_a"`
	CenterB  float64 `json:"sm_b"`
}

// PredictionResult is the combined output of both models.
//
// RecommendedCenter is an open label set determined by the routing
// classifier's artifact ("Original", "CenterA", "CenterB", "Dump", ...);
// it is deliberately not an enum here.
type PredictionResult struct {
	PredictedShelfLifeDays  float64         `json:"predicted_shelf_life_days"`
	PredictedShelfLifeHours float64         `json:"predicted_shelf_life_hours"`
	RecommendedCenter       string          `json:"recommended_center"`
	SurvivalMargins         SurvivalMargins `json:"survival_margins"`
	StressIndex             float64         `json:"stress_index"`
	MarketPivotTrigger      bool            `json:"market_pivot_trigger"`
	RiskLevel               RiskLevel       `json:"risk_level"`
}

// PredictionRecord is a persisted prediction with its input.
type PredictionRecord struct {
	ID        string            `json:"id,omitempty"`
	Input     PredictionRequest `json:"input"`
	Result    PredictionResult  `json:"result"`
	CreatedAt time.Time         `json:"created_at,omitempty"`
}

// ── Routes ──────────────────────────────────────────────────

type RouteStatus string

const (
	RouteOnTrack  RouteStatus = "on-track"
	RouteDelayed  RouteStatus = "delayed"
	RouteCritical RouteStatus = "critical"
)

// Route is an active delivery route.
type Route struct {
	RouteID        string      `json:"route_id"`
	Name           string      `json:"name"`
	Origin         string      `json:"origin"`
	Destination    string      `json:"destination"`
	ETA            int         `json:"eta"`             // minutes
	SurvivalMargin int         `json:"survival_margin"` // minutes
	Distance       float64     `json:"distance"`        // km
	Status         RouteStatus `json:"status"`
	RoadCondition  string      `json:"road_condition,omitempty"`
}

// ── Facilities ──────────────────────────────────────────────

type PowerStatus string

const (
	PowerNormal   PowerStatus = "normal"
	PowerBackup   PowerStatus = "backup"
	PowerCritical PowerStatus = "critical"
)

// Facility is a cold-storage center's live status.
type Facility struct {
	Name            string      `json:"name"`
	Temperature     float64     `json:"temperature"`
	Humidity        float64     `json:"humidity"`
	PowerStatus     PowerStatus `json:"power_status"`
	StorageCapacity int         `json:"storage_capacity"`
	CurrentLoad     int         `json:"current_load"`
	LastUpdated     time.Time   `json:"last_updated,omitempty"`
}

// FacilityUpdate carries the mutable facility fields for a partial update.
type FacilityUpdate struct {
	Temperature *float64     `json:"temperature,omitempty"`
	Humidity    *float64     `json:"humidity,omitempty"`
	PowerStatus *PowerStatus `json:"power_status,omitempty"`
	CurrentLoad *int         `json:"current_load,omitempty"`
}

// ── Trip Logs ───────────────────────────────────────────────

type TripStatus string

const (
	TripCompleted TripStatus = "completed"
	TripIncident  TripStatus = "incident"
	TripAborted   TripStatus = "aborted"
)

// TripLog is one completed (or aborted) trip's record.
type TripLog struct {
	TripID        string     `json:"trip_id"`
	Date          string     `json:"date"`
	Route         string     `json:"route"`
	Cargo         string     `json:"cargo"`
	Duration      string     `json:"duration"`
	TempRange     string     `json:"temp_range"`
	Status        TripStatus `json:"status"`
	ShelfLifeUsed int        `json:"shelf_life_used"` // %
}

// ── Rescue Points ───────────────────────────────────────────

type RescueType string

const (
	RescueColdStorage RescueType = "cold-storage"
	RescueMarket      RescueType = "market"
	RescueProcessing  RescueType = "processing"
)

// RescuePoint is a salvage outlet for a market pivot.
type RescuePoint struct {
	Name           string     `json:"name"`
	Distance       float64    `json:"distance"` // km
	RecoveryChance int        `json:"recovery_chance"`
	Type           RescueType `json:"type"`
	Available      bool       `json:"available"`
	ETA            int        `json:"eta"` // minutes
}

// ── AI Recommendations ──────────────────────────────────────

type RecommendationType string

const (
	RecReroute     RecommendationType = "reroute"
	RecSpeedAdjust RecommendationType = "speed-adjust"
	RecAlert       RecommendationType = "alert"
	RecMarketPivot RecommendationType = "market-pivot"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type RecommendationStatus string

const (
	RecPending  RecommendationStatus = "pending"
	RecApproved RecommendationStatus = "approved"
	RecRejected RecommendationStatus = "rejected"
)

// Recommendation is an agent-produced action item awaiting operator review.
// New recommendations always start pending; the agent never approves them.
type Recommendation struct {
	RecID      string               `json:"rec_id"`
	Type       RecommendationType   `json:"type"`
	Severity   Severity             `json:"severity"`
	Message    string               `json:"message"`
	Status     RecommendationStatus `json:"status"`
	CreatedAt  time.Time            `json:"created_at,omitempty"`
	ResolvedAt *time.Time           `json:"resolved_at,omitempty"`
}

// ── Agent Conversations ─────────────────────────────────────

// ConversationTurn is one persisted message of a copilot session.
type ConversationTurn struct {
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"` // user | assistant | tool
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ── Errors ──────────────────────────────────────────────────

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
