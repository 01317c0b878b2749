package ml

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cycle-dashboard/internal/features"
)

// ovulationStump splits on feature 0 at threshold.
func ovulationStump(threshold float64, left, right []float64) []TreeNode {
	return []TreeNode{
		{FeatureIdx: 0, Threshold: threshold, LeftChild: 1, RightChild: 2},
		{IsLeaf: true, LeftChild: -1, RightChild: -1, ClassLabel: argmax(left), Value: left},
		{IsLeaf: true, LeftChild: -1, RightChild: -1, ClassLabel: argmax(right), Value: right},
	}
}

func argmax(v []float64) int {
	if v[1] > v[0] {
		return 1
	}
	return 0
}

func TestLoadTree_Forest(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "forest.json", `{
		"features": ["Ovulation Day"],
		"trees": [
			[{"feature_idx":0,"threshold":11.5,"left_child":1,"right_child":2},
			 {"is_leaf":true,"class_label":0,"value":[9,1]},
			 {"is_leaf":true,"class_label":1,"value":[2,8]}],
			[{"feature_idx":0,"threshold":16.5,"left_child":1,"right_child":2},
			 {"is_leaf":true,"class_label":1,"value":[3,7]},
			 {"is_leaf":true,"class_label":0,"value":[10,0]}]
		]
	}`)

	c, err := LoadTree(path)
	require.NoError(t, err)
	assert.Equal(t, []string{features.OvulationDay}, c.Features())

	row := features.Row{Names: []string{features.OvulationDay}, Values: []float64{14}}
	pred, err := c.Predict(context.Background(), row)
	require.NoError(t, err)
	assert.False(t, pred.HasLabel)
	assert.True(t, pred.HasProbability)
	assert.InDelta(t, 0.75, pred.Probability, 1e-9)

	row.Values[0] = 20
	pred, err = c.Predict(context.Background(), row)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, pred.Probability, 1e-9)
}

func TestLoadTree_BareNodeArray(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tree.json", `[
		{"feature_idx":0,"threshold":30,"left_child":1,"right_child":2},
		{"is_leaf":true,"class_label":0},
		{"is_leaf":true,"class_label":1}
	]`)

	c, err := LoadTree(path)
	require.NoError(t, err)
	assert.Nil(t, c.Features())

	pred, err := c.Predict(context.Background(), features.Row{Values: []float64{35}})
	require.NoError(t, err)
	assert.False(t, pred.HasLabel)
	assert.Equal(t, 1.0, pred.Probability)
}

func TestNewTreeClassifier_RejectsBrokenStructure(t *testing.T) {
	tests := []struct {
		name     string
		artifact ForestArtifact
	}{
		{"no trees", ForestArtifact{}},
		{"empty tree", ForestArtifact{Trees: [][]TreeNode{{}}}},
		{"child loops back", ForestArtifact{Trees: [][]TreeNode{{
			{FeatureIdx: 0, LeftChild: 0, RightChild: 1},
			{IsLeaf: true},
		}}}},
		{"child out of range", ForestArtifact{Trees: [][]TreeNode{{
			{FeatureIdx: 0, LeftChild: 1, RightChild: 5},
			{IsLeaf: true},
		}}}},
		{"feature beyond declared", ForestArtifact{
			Features: []string{"a"},
			Trees:    [][]TreeNode{ovulationStump(1, []float64{1, 0}, []float64{0, 1})},
		}},
		{"non binary label", ForestArtifact{Trees: [][]TreeNode{{{IsLeaf: true, ClassLabel: 2}}}}},
		{"three class values", ForestArtifact{Trees: [][]TreeNode{{{IsLeaf: true, Value: []float64{1, 2, 3}}}}}},
	}

	tests[4].artifact.Trees[0][0].FeatureIdx = 3

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTreeClassifier(tt.artifact)
			assert.Error(t, err)
		})
	}
}

func TestTreeClassifier_WrongWidth(t *testing.T) {
	c, err := NewTreeClassifier(ForestArtifact{
		Features: []string{"a", "b"},
		Trees:    [][]TreeNode{ovulationStump(1, []float64{1, 0}, []float64{0, 1})},
	})
	require.NoError(t, err)

	_, err = c.Predict(context.Background(), features.Row{Values: []float64{1}})
	assert.True(t, errors.Is(err, ErrInference))
}

func TestTreeClassifier_Deterministic(t *testing.T) {
	c, err := NewTreeClassifier(ForestArtifact{
		Trees: [][]TreeNode{
			ovulationStump(11.5, []float64{9, 1}, []float64{2, 8}),
			ovulationStump(16.5, []float64{3, 7}, []float64{10, 0}),
		},
	})
	require.NoError(t, err)

	row := features.Row{Values: []float64{13}}
	first, err := c.Predict(context.Background(), row)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := c.Predict(context.Background(), row)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestTreeClassifier_CancelledContext(t *testing.T) {
	c, err := NewTreeClassifier(ForestArtifact{Trees: [][]TreeNode{{{IsLeaf: true}}}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Predict(ctx, features.Row{Values: []float64{1}})
	assert.True(t, errors.Is(err, ErrInference))
}
