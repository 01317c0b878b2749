package ml

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cycle-dashboard/internal/features"
)

func TestRuleClassifier_FertileWindow(t *testing.T) {
	rule := NewRuleClassifier()
	assert.Equal(t, []string{features.OvulationDay}, rule.Features())

	tests := []struct {
		day  float64
		want int
	}{
		{11, 0},
		{12, 1},
		{14, 1},
		{16, 1},
		{17, 0},
		{20, 0},
	}

	for _, tt := range tests {
		row := features.Row{Names: []string{features.OvulationDay}, Values: []float64{tt.day}}
		pred, err := rule.Predict(context.Background(), row)
		require.NoError(t, err)
		assert.Equal(t, tt.want, pred.Label, "day %v", tt.day)
		assert.True(t, pred.HasLabel)
		assert.False(t, pred.HasProbability)
	}
}

func TestRuleClassifier_MissingColumn(t *testing.T) {
	_, err := NewRuleClassifier().Predict(context.Background(), features.Row{Names: []string{features.CycleLength}, Values: []float64{28}})
	assert.True(t, errors.Is(err, ErrInference))
}

func TestLoad_DispatchesByBackend(t *testing.T) {
	dir := t.TempDir()
	treePath := writeFile(t, dir, "regularity.json", `{"features":["Cycle Length"],"trees":[[{"is_leaf":true,"class_label":1}]]}`)

	metrics := &MockMetrics{}
	loaded, err := Load(context.Background(), ModelSpec{Name: "regularity", Backend: BackendTree, Path: treePath}, LoadOptions{Metrics: metrics})
	require.NoError(t, err)
	assert.Equal(t, BackendTree, loaded.Backend)
	assert.Equal(t, []string{features.CycleLength}, loaded.DeclaredFeatures())
	assert.Contains(t, metrics.modelAge, "regularity")

	rule, err := Load(context.Background(), ModelSpec{Name: "fertility", Backend: BackendRule}, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{features.OvulationDay}, rule.DeclaredFeatures())
	assert.Nil(t, rule.Metadata)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(context.Background(), ModelSpec{Backend: "joblib"}, LoadOptions{})
	assert.Error(t, err)

	_, err = Load(context.Background(), ModelSpec{Backend: BackendTree, Path: "missing.json"}, LoadOptions{})
	assert.Error(t, err)

	_, err = Load(context.Background(), ModelSpec{Backend: BackendONNX, Path: "missing.onnx"}, LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not accessible")
}

func TestLoad_MetadataFallsBackForFeatures(t *testing.T) {
	dir := t.TempDir()
	treePath := writeFile(t, dir, "model.json", `[{"is_leaf":true,"class_label":0}]`)
	writeFile(t, dir, "model.meta.json", `{"version":"v4","features":["Cycle Length","Ovulation Day"],"accuracy":0.91}`)

	loaded, err := Load(context.Background(), ModelSpec{Backend: BackendTree, Path: treePath}, LoadOptions{})
	require.NoError(t, err)
	require.NotNil(t, loaded.Metadata)
	assert.Equal(t, "v4", loaded.Metadata.Version)
	assert.Equal(t, []string{"Cycle Length", "Ovulation Day"}, loaded.DeclaredFeatures())
}

func TestLoadModelMetadata_Precedence(t *testing.T) {
	dir := t.TempDir()
	model := writeFile(t, dir, "rf.joblib", "x")

	_, err := loadModelMetadata(model)
	assert.Error(t, err)

	writeFile(t, dir, "model_metadata_20240101.json", `{"version":"old"}`)
	writeFile(t, dir, "model_metadata_20240301.json", `{"version":"newest"}`)
	md, err := loadModelMetadata(model)
	require.NoError(t, err)
	assert.Equal(t, "newest", md.Version)

	writeFile(t, dir, "model_metadata.json", `{"version":"primary"}`)
	md, err = loadModelMetadata(model)
	require.NoError(t, err)
	assert.Equal(t, "primary", md.Version)

	writeFile(t, dir, "rf.meta.json", `{"version":"sidecar"}`)
	md, err = loadModelMetadata(model)
	require.NoError(t, err)
	assert.Equal(t, "sidecar", md.Version)
}
