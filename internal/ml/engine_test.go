package ml

import (
	"errors"
	"math"
	"testing"

	"github.com/aegisharvest/coldchain/pkg/models"
)

// stubRegressor returns a fixed shelf-life and records its input.
type stubRegressor struct {
	out   float64
	input []float64
}

func (s *stubRegressor) PredictSingle(fvals []float64, _ int) float64 {
	s.input = append([]float64(nil), fvals...)
	return s.out
}

// stubClassifier returns fixed raw class scores.
type stubClassifier struct {
	scores []float64
	input  []float64
}

func (s *stubClassifier) NOutputGroups() int { return len(s.scores) }

func (s *stubClassifier) Predict(fvals []float64, _ int, predictions []float64) error {
	s.input = append([]float64(nil), fvals...)
	copy(predictions, s.scores)
	return nil
}

var testMeta = &artifactMeta{
	RoadClasses:   []string{"Blocked", "Clear", "Construction", "Traffic"},
	CenterClasses: []string{"CenterA", "CenterB", "Dump", "Original"},
	Features: []string{
		"Predicted_Days_Left", "Dist_A_KM", "Dist_B_KM",
		"Road_A_Encoded", "Road_B_Encoded", "Cap_A_Pct", "Cap_B_Pct", "Distance_KM",
	},
}

func newStubEngine(days float64, scores []float64) (*Engine, *stubRegressor, *stubClassifier) {
	reg := &stubRegressor{out: days}
	clf := &stubClassifier{scores: scores}
	return &Engine{
		loaded:   true,
		spoilage: reg,
		routing:  clf,
		meta:     testMeta,
	}, reg, clf
}

func validRequest() models.PredictionRequest {
	return models.PredictionRequest{
		TempC: 6.0, HumidityPct: 85, VibrationG: 0.3, DistanceKm: 600,
		DistAKm: 50, DistBKm: 100,
		RoadA: models.RoadClear, RoadB: models.RoadTraffic,
		CapAPct: 70, CapBPct: 50,
	}
}

func TestPredictClampsNegativeShelfLife(t *testing.T) {
	// CenterA wins the argmax below.
	e, _, _ := newStubEngine(-3.2, []float64{2, 0, 0, 1})

	res, err := e.Predict(validRequest())
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if res.PredictedShelfLifeDays != 0 {
		t.Errorf("PredictedShelfLifeDays = %v, want 0 (clamped)", res.PredictedShelfLifeDays)
	}
	if res.PredictedShelfLifeHours != 0 {
		t.Errorf("PredictedShelfLifeHours = %v, want 0", res.PredictedShelfLifeHours)
	}
}

func TestPredictSurvivalMargins(t *testing.T) {
	e, _, _ := newStubEngine(1.0, []float64{0, 0, 0, 1})

	req := validRequest() // distance 600 km at 60 km/h = 10 h = 0.4167 d
	res, err := e.Predict(req)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	wantOrig := 1.0 - (600.0/60.0)/24.0
	if math.Abs(res.SurvivalMargins.Original-wantOrig) > 1e-9 {
		t.Errorf("SM original = %v, want %v", res.SurvivalMargins.Original, wantOrig)
	}
	// Center B: 100 km on Traffic (×1.5).
	wantB := 1.0 - (100.0/60.0*1.5)/24.0
	if math.Abs(res.SurvivalMargins.CenterB-wantB) > 1e-9 {
		t.Errorf("SM B = %v, want %v", res.SurvivalMargins.CenterB, wantB)
	}
}

func TestPredictNegativeMarginIsValid(t *testing.T) {
	e, _, _ := newStubEngine(0.1, []float64{0, 0, 1, 0})

	res, err := e.Predict(validRequest())
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if res.SurvivalMargins.Original >= 0 {
		t.Errorf("SM original = %v, want negative (cargo spoils in transit)", res.SurvivalMargins.Original)
	}
}

func TestPredictUnknownRoadLabelMatchesClear(t *testing.T) {
	e1, _, _ := newStubEngine(2.0, []float64{0, 0, 0, 1})
	e2, _, _ := newStubEngine(2.0, []float64{0, 0, 0, 1})

	known := validRequest()
	known.RoadB = models.RoadClear

	unknown := validRequest()
	unknown.RoadB = "Unpaved"

	r1, err := e1.Predict(known)
	if err != nil {
		t.Fatalf("Predict(known) error = %v", err)
	}
	r2, err := e2.Predict(unknown)
	if err != nil {
		t.Fatalf("Predict(unknown) error = %v", err)
	}
	if r1.SurvivalMargins.CenterB != r2.SurvivalMargins.CenterB {
		t.Errorf("unknown road margin = %v, want same as Clear = %v",
			r2.SurvivalMargins.CenterB, r1.SurvivalMargins.CenterB)
	}
}

func TestPredictMarketPivotTrigger(t *testing.T) {
	cases := []struct {
		scores []float64
		center string
		pivot  bool
	}{
		{[]float64{0, 0, 0, 1}, "Original", false},
		{[]float64{0, 0, 1, 0}, "Dump", false},
		{[]float64{1, 0, 0, 0}, "CenterA", true},
		{[]float64{0, 1, 0, 0}, "CenterB", true},
	}
	for _, tc := range cases {
		e, _, _ := newStubEngine(3.0, tc.scores)
		res, err := e.Predict(validRequest())
		if err != nil {
			t.Fatalf("Predict() error = %v", err)
		}
		if res.RecommendedCenter != tc.center {
			t.Errorf("RecommendedCenter = %q, want %q", res.RecommendedCenter, tc.center)
		}
		if res.MarketPivotTrigger != tc.pivot {
			t.Errorf("MarketPivotTrigger for %q = %v, want %v", tc.center, res.MarketPivotTrigger, tc.pivot)
		}
	}
}

func TestPredictRegressorInputOrder(t *testing.T) {
	e, reg, _ := newStubEngine(2.0, []float64{0, 0, 0, 1})

	req := validRequest()
	if _, err := e.Predict(req); err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if len(reg.input) != 8 {
		t.Fatalf("regressor input has %d features, want 8", len(reg.input))
	}
	// temp, humidity, vibration, distance lead the vector.
	if reg.input[0] != req.TempC || reg.input[1] != req.HumidityPct ||
		reg.input[2] != req.VibrationG || reg.input[3] != req.DistanceKm {
		t.Errorf("regressor raw-input prefix = %v", reg.input[:4])
	}
}

func TestPredictDeterministic(t *testing.T) {
	e, _, _ := newStubEngine(2.5, []float64{0, 1, 0, 0})

	req := validRequest()
	a, err := e.Predict(req)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	b, err := e.Predict(req)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if *a != *b {
		t.Errorf("Predict not deterministic: %+v != %+v", a, b)
	}
}

func TestPredictRejectsInvalidInput(t *testing.T) {
	e, _, _ := newStubEngine(1.0, []float64{0, 0, 0, 1})

	bad := validRequest()
	bad.TempC = math.NaN()
	if _, err := e.Predict(bad); err == nil {
		t.Error("Predict() with NaN temperature: expected error")
	}

	neg := validRequest()
	neg.DistanceKm = -5
	if _, err := e.Predict(neg); err == nil {
		t.Error("Predict() with negative distance: expected error")
	}
}

func TestRiskLevelPrecedence(t *testing.T) {
	cases := []struct {
		temp, days float64
		want       models.RiskLevel
	}{
		{16, 5, models.RiskCritical},  // temperature clause alone
		{6, 0.4, models.RiskCritical}, // shelf-life clause alone
		{6, 1.5, models.RiskWarning},  // shelf-life warning at safe temp
		{9, 10, models.RiskWarning},   // temperature warning with ample days
		{4, 5, models.RiskSafe},
	}
	for _, tc := range cases {
		if got := RiskLevel(tc.temp, tc.days); got != tc.want {
			t.Errorf("RiskLevel(%v, %v) = %q, want %q", tc.temp, tc.days, got, tc.want)
		}
	}
}

func TestLoadMissingArtifacts(t *testing.T) {
	e := NewEngine(t.TempDir())

	err := e.Load()
	if !errors.Is(err, ErrArtifactsMissing) {
		t.Fatalf("Load() error = %v, want ErrArtifactsMissing", err)
	}

	// A failed load stays retryable; the engine must not latch the error.
	if err := e.Load(); !errors.Is(err, ErrArtifactsMissing) {
		t.Errorf("second Load() error = %v, want ErrArtifactsMissing", err)
	}
}

func TestEncodeRoadFallsBackToClear(t *testing.T) {
	if got := testMeta.encodeRoad("Traffic"); got != 3 {
		t.Errorf("encodeRoad(Traffic) = %v, want 3", got)
	}
	if got := testMeta.encodeRoad("Gravel"); got != 1 {
		t.Errorf("encodeRoad(unknown) = %v, want Clear encoding 1", got)
	}
}

func TestDecodeCenterBounds(t *testing.T) {
	if _, err := testMeta.decodeCenter(99); err == nil {
		t.Error("decodeCenter(99): expected error for out-of-range class")
	}
	c, err := testMeta.decodeCenter(3)
	if err != nil || c != "Original" {
		t.Errorf("decodeCenter(3) = %q, %v; want Original", c, err)
	}
}
