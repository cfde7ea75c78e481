package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitryikh/leaves"
)

// Artifact file names inside the configured models directory. The two model
// files are XGBoost ensembles; the metadata sidecar carries the fitted
// categorical encoders and the classifier's feature-column order, which are
// fixed at training time.
const (
	spoilageModelFile = "spoilage_model.xgb"
	routingModelFile  = "routing_model.xgb"
	routingMetaFile   = "routing_meta.json"
)

// ErrArtifactsMissing is returned when a required model artifact is absent.
// It is retryable: provisioning the files and calling Load again succeeds.
var ErrArtifactsMissing = errors.New("model artifacts missing")

// artifactMeta is the serialized encoder bundle for the routing classifier.
type artifactMeta struct {
	// RoadClasses and CenterClasses are the label-encoder class lists in
	// encoded order (index == encoded value).
	RoadClasses   []string `json:"road_classes"`
	CenterClasses []string `json:"center_classes"`
	// Features is the classifier's input column order.
	Features []string `json:"features"`
}

// Classifier input columns the engine knows how to populate.
var knownClassifierColumns = map[string]bool{
	"Predicted_Days_Left": true,
	"Dist_A_KM":           true,
	"Dist_B_KM":           true,
	"Road_A_Encoded":      true,
	"Road_B_Encoded":      true,
	"Cap_A_Pct":           true,
	"Cap_B_Pct":           true,
	"Distance_KM":         true,
}

// loadArtifacts reads both models and the encoder metadata from dir.
func loadArtifacts(dir string) (*leaves.Ensemble, *leaves.Ensemble, *artifactMeta, error) {
	spoilagePath := filepath.Join(dir, spoilageModelFile)
	routingPath := filepath.Join(dir, routingModelFile)
	metaPath := filepath.Join(dir, routingMetaFile)

	for _, p := range []string{spoilagePath, routingPath, metaPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, nil, nil, fmt.Errorf("%w: %s", ErrArtifactsMissing, p)
		}
	}

	spoilage, err := leaves.XGEnsembleFromFile(spoilagePath, false)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load spoilage model: %w", err)
	}

	routing, err := leaves.XGEnsembleFromFile(routingPath, false)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load routing model: %w", err)
	}

	meta, err := loadMeta(metaPath)
	if err != nil {
		return nil, nil, nil, err
	}

	return spoilage, routing, meta, nil
}

func loadMeta(path string) (*artifactMeta, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routing metadata: %w", err)
	}

	var meta artifactMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("parse routing metadata: %w", err)
	}

	if len(meta.RoadClasses) == 0 || len(meta.CenterClasses) == 0 {
		return nil, fmt.Errorf("routing metadata %s: empty encoder class lists", path)
	}
	if len(meta.Features) == 0 {
		return nil, fmt.Errorf("routing metadata %s: empty feature list", path)
	}
	for _, f := range meta.Features {
		if !knownClassifierColumns[f] {
			return nil, fmt.Errorf("routing metadata %s: unknown feature column %q", path, f)
		}
	}
	return &meta, nil
}

// encodeRoad maps a road label to its label-encoded integer. Labels outside
// the fitted class list fall back to the encoding of "Clear" so Predict
// stays total, mirroring the 1.0 road-multiplier default.
func (m *artifactMeta) encodeRoad(label string) float64 {
	clear := 0
	for i, c := range m.RoadClasses {
		if c == label {
			return float64(i)
		}
		if c == "Clear" {
			clear = i
		}
	}
	return float64(clear)
}

// decodeCenter maps an encoded class index back to its center label.
func (m *artifactMeta) decodeCenter(idx int) (string, error) {
	if idx < 0 || idx >= len(m.CenterClasses) {
		return "", fmt.Errorf("routing classifier produced class %d outside label space (%d labels)", idx, len(m.CenterClasses))
	}
	return m.CenterClasses[idx], nil
}
