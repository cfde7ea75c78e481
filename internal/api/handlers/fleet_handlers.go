package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/aegisharvest/coldchain/internal/store"
	"github.com/aegisharvest/coldchain/pkg/models"
)

// API-level fallback datasets. Richer than the agent tool fallbacks: the
// dashboard tables show the full fleet picture.

var fallbackRoutes = []models.Route{
	{RouteID: "R1", Name: "Route Alpha", Origin: "Farm Hub A", Destination: "Center A", ETA: 180, SurvivalMargin: 900, Distance: 245.0, Status: models.RouteOnTrack, RoadCondition: models.RoadClear},
	{RouteID: "R2", Name: "Route Beta", Origin: "Farm Hub B", Destination: "Center B", ETA: 240, SurvivalMargin: 600, Distance: 312.0, Status: models.RouteOnTrack, RoadCondition: models.RoadTraffic},
	{RouteID: "R3", Name: "Route Gamma", Origin: "Farm Hub C", Destination: "Center A", ETA: 120, SurvivalMargin: 1200, Distance: 178.0, Status: models.RouteOnTrack, RoadCondition: models.RoadClear},
	{RouteID: "R4", Name: "Route Delta", Origin: "Farm Hub A", Destination: "Market D", ETA: 300, SurvivalMargin: 300, Distance: 405.0, Status: models.RouteDelayed, RoadCondition: models.RoadConstruction},
}

var fallbackFacilities = []models.Facility{
	{Name: "Center A – Metro Cold Hub", Temperature: 3.1, Humidity: 88, PowerStatus: models.PowerNormal, StorageCapacity: 5000, CurrentLoad: 3200},
	{Name: "Center B – Regional Depot", Temperature: 4.8, Humidity: 82, PowerStatus: models.PowerNormal, StorageCapacity: 3000, CurrentLoad: 2100},
}

var fallbackTrips = []models.TripLog{
	{TripID: "T001", Date: "2026-02-20", Route: "Route Alpha", Cargo: "Mangoes – 2.4 tons", Duration: "3h 12m", TempRange: "2.1°C – 4.8°C", Status: models.TripCompleted, ShelfLifeUsed: 18},
	{TripID: "T002", Date: "2026-02-19", Route: "Route Beta", Cargo: "Tomatoes – 1.8 tons", Duration: "4h 05m", TempRange: "3.2°C – 6.1°C", Status: models.TripCompleted, ShelfLifeUsed: 24},
	{TripID: "T003", Date: "2026-02-18", Route: "Route Gamma", Cargo: "Leafy Greens – 0.9 tons", Duration: "2h 30m", TempRange: "1.8°C – 3.5°C", Status: models.TripCompleted, ShelfLifeUsed: 12},
	{TripID: "T004", Date: "2026-02-17", Route: "Route Delta", Cargo: "Dairy – 3.1 tons", Duration: "5h 20m", TempRange: "4.5°C – 12.3°C", Status: models.TripIncident, ShelfLifeUsed: 45},
	{TripID: "T005", Date: "2026-02-16", Route: "Route Alpha", Cargo: "Berries – 1.2 tons", Duration: "3h 00m", TempRange: "1.5°C – 3.0°C", Status: models.TripCompleted, ShelfLifeUsed: 15},
	{TripID: "T006", Date: "2026-02-15", Route: "Route Beta", Cargo: "Fish – 2.0 tons", Duration: "4h 45m", TempRange: "6.0°C – 18.5°C", Status: models.TripAborted, ShelfLifeUsed: 72},
}

var fallbackRescuePoints = []models.RescuePoint{
	{Name: "QuickFreeze Depot", Distance: 12, RecoveryChance: 92, Type: models.RescueColdStorage, Available: true, ETA: 18},
	{Name: "FreshMart Outlet", Distance: 8, RecoveryChance: 78, Type: models.RescueMarket, Available: true, ETA: 12},
	{Name: "AgriProcess Plant", Distance: 22, RecoveryChance: 65, Type: models.RescueProcessing, Available: true, ETA: 30},
	{Name: "ColdChain Hub B2", Distance: 35, RecoveryChance: 88, Type: models.RescueColdStorage, Available: false, ETA: 45},
	{Name: "Metro Fresh Market", Distance: 5, RecoveryChance: 71, Type: models.RescueMarket, Available: true, ETA: 8},
}

// ── Route Handlers ──────────────────────────────────────────

func (h *Handlers) ListRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.Store.ListRoutes(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("routes unavailable, serving defaults")
		routes = nil
	}
	if len(routes) == 0 {
		routes = fallbackRoutes
	}
	respondJSON(w, http.StatusOK, map[string]any{"routes": routes, "count": len(routes)})
}

func (h *Handlers) UpsertRoute(w http.ResponseWriter, r *http.Request) {
	var route models.Route
	if err := json.NewDecoder(r.Body).Decode(&route); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if route.RouteID == "" {
		respondError(w, http.StatusBadRequest, "route_id is required")
		return
	}
	if err := h.Store.UpsertRoute(r.Context(), &route); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "route": route})
}

func (h *Handlers) GetRoute(w http.ResponseWriter, r *http.Request) {
	routeID := chi.URLParam(r, "routeID")

	route, err := h.Store.GetRoute(r.Context(), routeID)
	if err != nil {
		for i := range fallbackRoutes {
			if fallbackRoutes[i].RouteID == routeID {
				respondJSON(w, http.StatusOK, fallbackRoutes[i])
				return
			}
		}
		respondError(w, http.StatusNotFound, "Route not found")
		return
	}
	respondJSON(w, http.StatusOK, route)
}

// ── Facility Handlers ───────────────────────────────────────

func (h *Handlers) ListFacilities(w http.ResponseWriter, r *http.Request) {
	facilities, err := h.Store.ListFacilities(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("facilities unavailable, serving defaults")
		facilities = nil
	}
	if len(facilities) == 0 {
		facilities = fallbackFacilities
	}
	respondJSON(w, http.StatusOK, map[string]any{"facilities": facilities, "count": len(facilities)})
}

func (h *Handlers) UpdateFacility(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var updates models.FacilityUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	facility, err := h.Store.UpdateFacility(r.Context(), name, updates)
	if err != nil {
		var nf *store.ErrNotFound
		if errors.As(err, &nf) {
			respondError(w, http.StatusNotFound, "Facility not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "facility": facility})
}

// ── Trip Log Handlers ───────────────────────────────────────

func (h *Handlers) ListTrips(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)

	trips, err := h.Store.ListTripLogs(r.Context(), limit)
	if err != nil {
		log.Warn().Err(err).Msg("trip logs unavailable, serving defaults")
		trips = nil
	}
	if len(trips) == 0 {
		trips = fallbackTrips
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filtered := make([]models.TripLog, 0, len(trips))
		for _, t := range trips {
			if string(t.Status) == status {
				filtered = append(filtered, t)
			}
		}
		trips = filtered
	}
	respondJSON(w, http.StatusOK, map[string]any{"trips": trips, "count": len(trips)})
}

func (h *Handlers) AddTrip(w http.ResponseWriter, r *http.Request) {
	var trip models.TripLog
	if err := json.NewDecoder(r.Body).Decode(&trip); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if trip.TripID == "" {
		respondError(w, http.StatusBadRequest, "trip_id is required")
		return
	}
	if err := h.Store.InsertTripLog(r.Context(), &trip); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "trip": trip})
}

// ── Rescue Point Handlers ───────────────────────────────────

func (h *Handlers) ListRescuePoints(w http.ResponseWriter, r *http.Request) {
	availableOnly := r.URL.Query().Get("available_only") == "true"

	points, err := h.Store.ListRescuePoints(r.Context(), availableOnly)
	if err != nil {
		log.Warn().Err(err).Msg("rescue points unavailable, serving defaults")
		points = nil
	}
	if len(points) == 0 {
		for _, p := range fallbackRescuePoints {
			if availableOnly && !p.Available {
				continue
			}
			points = append(points, p)
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"rescue_points": points, "count": len(points)})
}

func (h *Handlers) BestRescuePoint(w http.ResponseWriter, r *http.Request) {
	points, err := h.Store.ListRescuePoints(r.Context(), true)
	if err != nil || len(points) == 0 {
		for _, p := range fallbackRescuePoints {
			if p.Available {
				points = append(points, p)
			}
		}
	}
	if len(points) == 0 {
		respondJSON(w, http.StatusOK, map[string]any{"rescue_point": nil})
		return
	}

	best := points[0]
	for _, p := range points[1:] {
		if p.RecoveryChance > best.RecoveryChance {
			best = p
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"rescue_point": best})
}

// ── Recommendation Handlers ─────────────────────────────────

func (h *Handlers) ListRecommendations(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)

	recs, err := h.Store.ListRecommendations(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []models.Recommendation{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"recommendations": recs, "count": len(recs)})
}

type recommendationAction struct {
	Action string `json:"action"` // approve | reject
}

// ActionRecommendation is the human-in-the-loop step: an operator approves
// or rejects an agent-produced recommendation.
func (h *Handlers) ActionRecommendation(w http.ResponseWriter, r *http.Request) {
	recID := chi.URLParam(r, "recID")

	var body recommendationAction
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var status models.RecommendationStatus
	switch body.Action {
	case "approve":
		status = models.RecApproved
	case "reject":
		status = models.RecRejected
	default:
		respondError(w, http.StatusBadRequest, "action must be approve or reject")
		return
	}

	rec, err := h.Store.UpdateRecommendationStatus(r.Context(), recID, status)
	if err != nil {
		var nf *store.ErrNotFound
		if errors.As(err, &nf) {
			respondError(w, http.StatusNotFound, "Recommendation not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().Str("rec_id", recID).Str("status", string(status)).Msg("recommendation actioned")
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"rec_id":  recID,
		"status":  status,
		"record":  rec,
	})
}
