package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ModelMetadata contains information about a model artifact
type ModelMetadata struct {
	Version      string    `json:"version"`
	TrainedAt    time.Time `json:"trained_at"`
	Features     []string  `json:"features"`
	Accuracy     float64   `json:"accuracy"`
	TrainingRows int       `json:"training_rows"`
	InputName    string    `json:"input_name"`
	LabelOutput  string    `json:"label_output"`
	ProbOutput   string    `json:"probability_output"`
}

// loadModelMetadata finds the metadata for an artifact: a sidecar
// "<artifact>.meta.json", then model_metadata.json in the same directory,
// then the newest model_metadata_*.json.
func loadModelMetadata(modelPath string) (*ModelMetadata, error) {
	sidecar := strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + ".meta.json"
	if md, err := decodeMetadata(sidecar); err == nil {
		return md, nil
	}

	dir := filepath.Dir(modelPath)
	if md, err := decodeMetadata(filepath.Join(dir, "model_metadata.json")); err == nil {
		return md, nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, "model_metadata_*.json"))
	if err != nil || len(matches) == 0 {
		return nil, fmt.Errorf("no metadata files found for %s", modelPath)
	}
	sort.Strings(matches)
	return decodeMetadata(matches[len(matches)-1])
}

func decodeMetadata(path string) (*ModelMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var md ModelMetadata
	if err := json.NewDecoder(file).Decode(&md); err != nil {
		return nil, fmt.Errorf("failed to decode metadata %s: %w", path, err)
	}
	return &md, nil
}

// modelAge reports how long ago the artifact was written or trained.
func modelAge(path string, md *ModelMetadata) (time.Duration, bool) {
	if md != nil && !md.TrainedAt.IsZero() {
		return time.Since(md.TrainedAt), true
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return time.Since(info.ModTime()), true
}
