package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/aegisharvest/coldchain/internal/oracle"
	"github.com/aegisharvest/coldchain/internal/store"
	"github.com/aegisharvest/coldchain/pkg/models"
)

// Predictor runs the two-stage shelf-life and routing models.
type Predictor interface {
	Predict(req models.PredictionRequest) (*models.PredictionResult, error)
}

// Registry is the closed dispatch table of tools the copilot may call.
type Registry struct {
	predictor Predictor
	db        store.Store
}

// NewRegistry wires the tool set to its collaborators.
func NewRegistry(predictor Predictor, db store.Store) *Registry {
	return &Registry{predictor: predictor, db: db}
}

// Definitions returns the tool declarations sent with every oracle request.
func (r *Registry) Definitions() []oracle.ToolDef {
	return []oracle.ToolDef{
		{
			Type: "function",
			Function: oracle.FunctionDef{
				Name: "run_ml_prediction",
				Description: "Run XGBoost shelf-life & routing models on current sensor data. " +
					"Returns predicted shelf life (days), recommended center, survival margins, " +
					"stress index, and whether a market pivot is needed.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"temp_c":       map[string]any{"type": "number", "description": "Container internal temperature in Celsius"},
						"humidity_pct": map[string]any{"type": "number", "description": "Relative humidity percentage (0-100)"},
						"vibration_g":  map[string]any{"type": "number", "description": "Vibration in G force"},
						"distance_km":  map[string]any{"type": "number", "description": "Distance to original destination in km"},
						"dist_a_km":    map[string]any{"type": "number", "description": "Distance to Centre A in km", "default": 50},
						"dist_b_km":    map[string]any{"type": "number", "description": "Distance to Centre B in km", "default": 100},
						"road_a": map[string]any{
							"type": "string", "enum": []string{"Clear", "Traffic", "Construction", "Blocked"},
							"description": "Road condition to Centre A",
						},
						"road_b": map[string]any{
							"type": "string", "enum": []string{"Clear", "Traffic", "Construction", "Blocked"},
							"description": "Road condition to Centre B",
						},
						"cap_a_pct": map[string]any{"type": "number", "description": "Centre A current storage capacity utilisation %"},
						"cap_b_pct": map[string]any{"type": "number", "description": "Centre B current storage capacity utilisation %"},
					},
					"required": []string{"temp_c", "humidity_pct", "vibration_g", "distance_km"},
				},
			},
		},
		{
			Type: "function",
			Function: oracle.FunctionDef{
				Name:        "get_rescue_points",
				Description: "Get available market pivot / rescue points ranked by recovery chance.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"available_only": map[string]any{"type": "boolean", "description": "Return only currently available rescue points"},
					},
					"required": []string{},
				},
			},
		},
		{
			Type: "function",
			Function: oracle.FunctionDef{
				Name:        "get_facility_status",
				Description: "Get real-time status of cold storage facilities (Centre A and B): temperature, humidity, power, capacity.",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{},
					"required":   []string{},
				},
			},
		},
		{
			Type: "function",
			Function: oracle.FunctionDef{
				Name:        "get_active_routes",
				Description: "Get all active delivery routes with ETA and survival margins.",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{},
					"required":   []string{},
				},
			},
		},
		{
			Type: "function",
			Function: oracle.FunctionDef{
				Name:        "log_recommendation",
				Description: "Save an AI recommendation to the database for Operations Manager review.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type": map[string]any{
							"type": "string", "enum": []string{"reroute", "speed-adjust", "alert", "market-pivot"},
							"description": "Category of recommendation",
						},
						"severity": map[string]any{
							"type": "string", "enum": []string{"low", "medium", "high", "critical"},
							"description": "Urgency level",
						},
						"message": map[string]any{"type": "string", "description": "Clear, actionable recommendation text for the Operations Manager"},
					},
					"required": []string{"type", "severity", "message"},
				},
			},
		},
	}
}

// Execute dispatches one tool call. The return value is always a JSON
// string: failures become an {"error": ...} payload so the oracle can see
// what went wrong instead of the loop aborting.
func (r *Registry) Execute(ctx context.Context, name string, rawArgs string) string {
	var args map[string]any
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return errPayload(fmt.Sprintf("invalid arguments: %v", err))
		}
	}

	switch name {
	case "run_ml_prediction":
		return r.runPrediction(args)
	case "get_rescue_points":
		return r.rescuePoints(ctx, argBool(args, "available_only", true))
	case "get_facility_status":
		return r.facilityStatus(ctx)
	case "get_active_routes":
		return r.activeRoutes(ctx)
	case "log_recommendation":
		return r.logRecommendation(ctx, args)
	default:
		return errPayload("Unknown tool: " + name)
	}
}

func (r *Registry) runPrediction(args map[string]any) string {
	req := models.PredictionRequest{
		TempC:       argFloat(args, "temp_c", 0),
		HumidityPct: argFloat(args, "humidity_pct", 0),
		VibrationG:  argFloat(args, "vibration_g", 0),
		DistanceKm:  argFloat(args, "distance_km", 0),
		DistAKm:     argFloat(args, "dist_a_km", models.DefaultDistAKm),
		DistBKm:     argFloat(args, "dist_b_km", models.DefaultDistBKm),
		RoadA:       argString(args, "road_a", models.DefaultRoadA),
		RoadB:       argString(args, "road_b", models.DefaultRoadB),
		CapAPct:     argFloat(args, "cap_a_pct", models.DefaultCapAPct),
		CapBPct:     argFloat(args, "cap_b_pct", models.DefaultCapBPct),
	}
	result, err := r.predictor.Predict(req)
	if err != nil {
		log.Error().Err(err).Str("tool", "run_ml_prediction").Msg("tool error")
		return errPayload(err.Error())
	}
	return mustJSON(result)
}

func (r *Registry) rescuePoints(ctx context.Context, availableOnly bool) string {
	points, err := r.db.ListRescuePoints(ctx, availableOnly)
	if err != nil {
		log.Warn().Err(err).Msg("rescue points unavailable, serving defaults")
		points = nil
	}
	if len(points) == 0 {
		for _, p := range defaultRescuePoints {
			if availableOnly && !p.Available {
				continue
			}
			points = append(points, p)
		}
	}
	return mustJSON(points)
}

func (r *Registry) facilityStatus(ctx context.Context) string {
	facilities, err := r.db.ListFacilities(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("facilities unavailable, serving defaults")
		facilities = nil
	}
	if len(facilities) == 0 {
		facilities = defaultFacilities
	}
	return mustJSON(facilities)
}

func (r *Registry) activeRoutes(ctx context.Context) string {
	routes, err := r.db.ListRoutes(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("routes unavailable, serving defaults")
		routes = nil
	}
	if len(routes) == 0 {
		routes = defaultRoutes
	}
	return mustJSON(routes)
}

func (r *Registry) logRecommendation(ctx context.Context, args map[string]any) string {
	rec := &models.Recommendation{
		RecID:    newRecID(),
		Type:     models.RecommendationType(argString(args, "type", string(models.RecAlert))),
		Severity: models.Severity(argString(args, "severity", string(models.SeverityMedium))),
		Message:  argString(args, "message", ""),
		Status:   models.RecPending,
	}
	if rec.Message == "" {
		return errPayload("message is required")
	}
	if err := r.db.InsertRecommendation(ctx, rec); err != nil {
		log.Error().Err(err).Str("tool", "log_recommendation").Msg("tool error")
		return errPayload(err.Error())
	}
	return mustJSON(map[string]any{"success": true, "rec_id": rec.RecID})
}

// newRecID returns "AI-" plus eight uppercase hex characters.
func newRecID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "AI-" + strings.ToUpper(hex[:8])
}

func errPayload(reason string) string {
	return mustJSON(map[string]string{"error": reason})
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{"error": "encoding failure"}`
	}
	return string(b)
}

func argFloat(args map[string]any, key string, def float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return def
}

func argString(args map[string]any, key string, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

func argBool(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}
