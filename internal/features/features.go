// Package features derives the numeric risk features both models consume.
// Everything here is a pure function of the prediction request; identical
// input always yields identical output, which the model layer relies on.
package features

import (
	"math"

	"github.com/aegisharvest/coldchain/pkg/models"
)

// ColdChainTargetC is the cold-chain target temperature.
const ColdChainTargetC = 4.0

// VibrationThresholdG is the vibration level above which cargo is flagged.
const VibrationThresholdG = 0.5

// roadMultipliers maps road-condition labels to travel-time multipliers.
var roadMultipliers = map[string]float64{
	models.RoadClear:        1.0,
	models.RoadTraffic:      1.5,
	models.RoadConstruction: 1.8,
	models.RoadBlocked:      5.0,
}

// Derived holds the engineered features for one prediction request.
type Derived struct {
	TempDeviation float64
	ExpTempRisk   float64
	VibrationFlag float64 // 0 or 1
	StressIndex   float64
	RoadAMult     float64
	RoadBMult     float64
}

// RoadMultiplier returns the travel-time multiplier for a road-condition
// label. Unknown or missing labels default to 1.0; this never fails.
func RoadMultiplier(label string) float64 {
	if m, ok := roadMultipliers[label]; ok {
		return m
	}
	return 1.0
}

// Derive computes the engineered features:
//
//	temp_deviation = temp − 4
//	exp_temp_risk  = 2^((temp − 4) / 10)   (Q10: doubles per 10 °C above target)
//	vibration_flag = vibration > 0.5
//	stress_index   = exp_temp_risk × (1 + 0.5 × vibration_flag)
func Derive(req models.PredictionRequest) Derived {
	d := Derived{
		TempDeviation: req.TempC - ColdChainTargetC,
		ExpTempRisk:   math.Pow(2.0, (req.TempC-ColdChainTargetC)/10.0),
		RoadAMult:     RoadMultiplier(req.RoadA),
		RoadBMult:     RoadMultiplier(req.RoadB),
	}
	if req.VibrationG > VibrationThresholdG {
		d.VibrationFlag = 1
	}
	d.StressIndex = d.ExpTempRisk * (1 + 0.5*d.VibrationFlag)
	return d
}
