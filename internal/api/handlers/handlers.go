// Package handlers implements the HTTP handlers for the cold-chain backend.
// All handlers go through the Store interface; read endpoints degrade to
// fixed fallback datasets so the dashboard never renders empty.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/aegisharvest/coldchain/internal/agent"
	"github.com/aegisharvest/coldchain/internal/ml"
	"github.com/aegisharvest/coldchain/internal/store"
	"github.com/aegisharvest/coldchain/pkg/models"
)

// Predictor runs the two-stage shelf-life and routing prediction.
type Predictor interface {
	Predict(req models.PredictionRequest) (*models.PredictionResult, error)
}

// Copilot is the conversational agent surface.
type Copilot interface {
	Chat(ctx context.Context, req agent.ChatRequest) (*agent.ChatResponse, error)
	Analyze(ctx context.Context, telemetry models.TelemetrySnapshot, sessionID string) (*agent.ChatResponse, error)
}

// Broadcaster fans out live telemetry to connected dashboard clients.
type Broadcaster interface {
	BroadcastTelemetry(snapshot models.TelemetrySnapshot)
}

// Handlers holds all handler dependencies.
type Handlers struct {
	Store     store.Store
	Predictor Predictor
	Agent     Copilot
	Hub       Broadcaster
}

// New creates a Handlers instance with all dependencies.
func New(s store.Store, predictor Predictor, copilot Copilot, hub Broadcaster) *Handlers {
	return &Handlers{
		Store:     s,
		Predictor: predictor,
		Agent:     copilot,
		Hub:       hub,
	}
}

// ── Prediction Handlers ─────────────────────────────────────

// predictRequest uses pointers so omitted optional parameters can take
// the documented defaults instead of zero values.
type predictRequest struct {
	TempC       *float64 `json:"temp_c"`
	HumidityPct *float64 `json:"humidity_pct"`
	VibrationG  *float64 `json:"vibration_g"`
	DistanceKm  *float64 `json:"distance_km"`
	DistAKm     *float64 `json:"dist_a_km"`
	DistBKm     *float64 `json:"dist_b_km"`
	RoadA       string   `json:"road_a"`
	RoadB       string   `json:"road_b"`
	CapAPct     *float64 `json:"cap_a_pct"`
	CapBPct     *float64 `json:"cap_b_pct"`
}

func (p *predictRequest) toModel() (models.PredictionRequest, string) {
	req := models.PredictionRequest{
		DistAKm: models.DefaultDistAKm,
		DistBKm: models.DefaultDistBKm,
		RoadA:   models.DefaultRoadA,
		RoadB:   models.DefaultRoadB,
		CapAPct: models.DefaultCapAPct,
		CapBPct: models.DefaultCapBPct,
	}
	switch {
	case p.TempC == nil:
		return req, "temp_c is required"
	case p.HumidityPct == nil:
		return req, "humidity_pct is required"
	case p.VibrationG == nil:
		return req, "vibration_g is required"
	case p.DistanceKm == nil:
		return req, "distance_km is required"
	}
	req.TempC = *p.TempC
	req.HumidityPct = *p.HumidityPct
	req.VibrationG = *p.VibrationG
	req.DistanceKm = *p.DistanceKm

	if p.DistAKm != nil {
		req.DistAKm = *p.DistAKm
	}
	if p.DistBKm != nil {
		req.DistBKm = *p.DistBKm
	}
	if p.RoadA != "" {
		if !validRoad(p.RoadA) {
			return req, "road_a must be one of Clear, Traffic, Construction, Blocked"
		}
		req.RoadA = p.RoadA
	}
	if p.RoadB != "" {
		if !validRoad(p.RoadB) {
			return req, "road_b must be one of Clear, Traffic, Construction, Blocked"
		}
		req.RoadB = p.RoadB
	}
	if p.CapAPct != nil {
		req.CapAPct = *p.CapAPct
	}
	if p.CapBPct != nil {
		req.CapBPct = *p.CapBPct
	}
	return req, ""
}

func validRoad(label string) bool {
	switch label {
	case models.RoadClear, models.RoadTraffic, models.RoadConstruction, models.RoadBlocked:
		return true
	}
	return false
}

func (h *Handlers) Predict(w http.ResponseWriter, r *http.Request) {
	var body predictRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req, problem := body.toModel()
	if problem != "" {
		respondError(w, http.StatusBadRequest, problem)
		return
	}

	result, err := h.Predictor.Predict(req)
	if err != nil {
		respondPredictionError(w, err)
		return
	}

	// Fire-and-forget prediction log.
	rec := &models.PredictionRecord{Input: req, Result: *result}
	if err := h.Store.InsertPrediction(r.Context(), rec); err != nil {
		log.Warn().Err(err).Msg("persist prediction failed")
	}

	respondJSON(w, http.StatusOK, result)
}

// quickPredictRequest drives the Simulation Lab slider: only temperature
// is required, everything else defaults.
type quickPredictRequest struct {
	Temperature float64  `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Vibration   *float64 `json:"vibration"`
	Distance    *float64 `json:"distance"`
}

func (h *Handlers) QuickPredict(w http.ResponseWriter, r *http.Request) {
	var body quickPredictRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req := models.PredictionRequest{
		TempC:       body.Temperature,
		HumidityPct: 85.0,
		VibrationG:  0.3,
		DistanceKm:  250.0,
		DistAKm:     models.DefaultDistAKm,
		DistBKm:     models.DefaultDistBKm,
		RoadA:       models.DefaultRoadA,
		RoadB:       models.DefaultRoadB,
		CapAPct:     models.DefaultCapAPct,
		CapBPct:     models.DefaultCapBPct,
	}
	if body.Humidity != nil {
		req.HumidityPct = *body.Humidity
	}
	if body.Vibration != nil {
		req.VibrationG = *body.Vibration
	}
	if body.Distance != nil {
		req.DistanceKm = *body.Distance
	}

	result, err := h.Predictor.Predict(req)
	if err != nil {
		respondPredictionError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"shelf_life_hours":     result.PredictedShelfLifeHours,
		"shelf_life_days":      result.PredictedShelfLifeDays,
		"risk_level":           result.RiskLevel,
		"stress_index":         result.StressIndex,
		"market_pivot_trigger": result.MarketPivotTrigger,
		"recommended_center":   result.RecommendedCenter,
	})
}

func respondPredictionError(w http.ResponseWriter, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		respondError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, ml.ErrArtifactsMissing):
		respondError(w, http.StatusServiceUnavailable, "prediction models unavailable")
	default:
		log.Error().Err(err).Msg("prediction failed")
		respondError(w, http.StatusInternalServerError, "ML prediction failed")
	}
}

// ── Telemetry Handlers ──────────────────────────────────────

func (h *Handlers) LogTelemetry(w http.ResponseWriter, r *http.Request) {
	var snap models.TelemetrySnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := snap.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec := &models.TelemetryRecord{TelemetrySnapshot: snap}
	if err := h.Store.InsertTelemetry(r.Context(), rec); err != nil {
		// The live feed still gets the reading.
		log.Warn().Err(err).Msg("persist telemetry failed")
	}

	h.Hub.BroadcastTelemetry(snap)

	respondJSON(w, http.StatusOK, map[string]any{"success": true, "record": rec})
}

func (h *Handlers) LatestTelemetry(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)

	records, err := h.Store.LatestTelemetry(r.Context(), limit)
	if err != nil {
		log.Warn().Err(err).Msg("telemetry history unavailable")
		records = nil
	}
	if records == nil {
		records = []models.TelemetryRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"records": records, "count": len(records)})
}

// ── Helpers ─────────────────────────────────────────────────

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
