// Package ml owns the two pre-trained XGBoost artifacts — a continuous
// shelf-life regressor and a categorical routing classifier — and exposes the
// combined two-stage prediction. Feature engineering mirrors the training
// pipeline exactly (see internal/features).
package ml

import (
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/aegisharvest/coldchain/internal/features"
	"github.com/aegisharvest/coldchain/pkg/models"
)

// AvgSpeedKmph is the assumed trunk speed used for survival margins.
const AvgSpeedKmph = 60.0

// shelfLifeModel is the regressor surface the engine needs.
// *leaves.Ensemble satisfies it.
type shelfLifeModel interface {
	PredictSingle(fvals []float64, nEstimators int) float64
}

// routingModel is the classifier surface the engine needs.
// *leaves.Ensemble satisfies it.
type routingModel interface {
	NOutputGroups() int
	Predict(fvals []float64, nEstimators int, predictions []float64) error
}

// Engine wraps both model artifacts. It is a process-scoped shared resource:
// initialization is lazy and guarded so concurrent first callers load the
// artifacts exactly once, and a failed load stays retryable. After a
// successful load the models and encoders are read-only and safe for
// unsynchronized concurrent Predict calls.
type Engine struct {
	dir string

	mu       sync.Mutex
	loaded   bool
	spoilage shelfLifeModel
	routing  routingModel
	meta     *artifactMeta
}

// NewEngine creates an engine reading artifacts from dir. Nothing is loaded
// until Load or the first Predict.
func NewEngine(dir string) *Engine {
	return &Engine{dir: dir}
}

// Load loads the model artifacts if they are not loaded yet. It is
// idempotent; callers may retry after provisioning missing artifacts.
func (e *Engine) Load() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loaded {
		return nil
	}

	spoilage, routing, meta, err := loadArtifacts(e.dir)
	if err != nil {
		return err
	}

	e.spoilage = spoilage
	e.routing = routing
	e.meta = meta
	e.loaded = true

	log.Info().
		Str("dir", e.dir).
		Int("center_labels", len(meta.CenterClasses)).
		Msg("Model artifacts loaded")
	return nil
}

// Predict runs the full two-stage prediction:
// shelf-life regression → survival margins → routing classification → risk.
func (e *Engine) Predict(req models.PredictionRequest) (*models.PredictionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := e.Load(); err != nil {
		return nil, err
	}

	d := features.Derive(req)

	// Stage 1: shelf-life regression. Negative predictions are physically
	// meaningless and silently floored at zero.
	regInput := []float64{
		req.TempC, req.HumidityPct, req.VibrationG, req.DistanceKm,
		d.TempDeviation, d.ExpTempRisk, d.VibrationFlag, d.StressIndex,
	}
	predDays := e.spoilage.PredictSingle(regInput, 0)
	predDays = math.Max(0.0, predDays)

	// Survival margins at the assumed trunk speed; candidate-center travel
	// times are stretched by their road multiplier. Negative margins are a
	// valid output: the cargo arrives already spoiled.
	travelOrig := (req.DistanceKm / AvgSpeedKmph) / 24
	travelA := (req.DistAKm / AvgSpeedKmph * d.RoadAMult) / 24
	travelB := (req.DistBKm / AvgSpeedKmph * d.RoadBMult) / 24
	margins := models.SurvivalMargins{
		Original: predDays - travelOrig,
		CenterA:  predDays - travelA,
		CenterB:  predDays - travelB,
	}

	// Stage 2: routing classification over the artifact's declared columns.
	center, err := e.classify(req, predDays)
	if err != nil {
		return nil, err
	}

	return &models.PredictionResult{
		PredictedShelfLifeDays:  predDays,
		PredictedShelfLifeHours: predDays * 24.0,
		RecommendedCenter:       center,
		SurvivalMargins:         margins,
		StressIndex:             d.StressIndex,
		MarketPivotTrigger:      center != "Original" && center != "Dump",
		RiskLevel:               RiskLevel(req.TempC, predDays),
	}, nil
}

// classify builds the classifier input in the artifact's column order and
// decodes the predicted class to a center label.
func (e *Engine) classify(req models.PredictionRequest, predDays float64) (string, error) {
	values := map[string]float64{
		"Predicted_Days_Left": predDays,
		"Dist_A_KM":           req.DistAKm,
		"Dist_B_KM":           req.DistBKm,
		"Road_A_Encoded":      e.meta.encodeRoad(req.RoadA),
		"Road_B_Encoded":      e.meta.encodeRoad(req.RoadB),
		"Cap_A_Pct":           req.CapAPct,
		"Cap_B_Pct":           req.CapBPct,
		"Distance_KM":         req.DistanceKm,
	}

	input := make([]float64, len(e.meta.Features))
	for i, name := range e.meta.Features {
		input[i] = values[name]
	}

	groups := e.routing.NOutputGroups()
	scores := make([]float64, groups)
	if err := e.routing.Predict(input, 0, scores); err != nil {
		return "", fmt.Errorf("routing classifier: %w", err)
	}

	var class int
	if groups == 1 {
		// Binary objective: a single raw margin, positive means class 1.
		if scores[0] > 0 {
			class = 1
		}
	} else {
		class = argmax(scores)
	}

	return e.meta.decodeCenter(class)
}

// RiskLevel applies the threshold cascade, first match wins:
// temp > 15 °C or < 0.5 days left → critical;
// temp > 8 °C or < 2 days left → warning; otherwise safe.
func RiskLevel(tempC, predictedDays float64) models.RiskLevel {
	switch {
	case tempC > 15 || predictedDays < 0.5:
		return models.RiskCritical
	case tempC > 8 || predictedDays < 2.0:
		return models.RiskWarning
	default:
		return models.RiskSafe
	}
}

func argmax(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}
	return best
}
