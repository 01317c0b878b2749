package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"cycle-dashboard/internal/features"
)

// TreeNode is one node of a serialized decision tree. Value, when present,
// holds the training class counts (or fractions) that reached a leaf.
type TreeNode struct {
	FeatureIdx int       `json:"feature_idx"`
	Threshold  float64   `json:"threshold"`
	LeftChild  int       `json:"left_child"`
	RightChild int       `json:"right_child"`
	ClassLabel int       `json:"class_label"`
	IsLeaf     bool      `json:"is_leaf"`
	Value      []float64 `json:"value,omitempty"`
}

// ForestArtifact is the on-disk form of a tree ensemble. A single decision
// tree is a forest with one tree.
type ForestArtifact struct {
	Features []string     `json:"features"`
	Trees    [][]TreeNode `json:"trees"`
}

// TreeClassifier evaluates a JSON tree ensemble natively. It reports only the
// class 1 probability, the mean of per-tree leaf probabilities.
type TreeClassifier struct {
	features []string
	trees    [][]TreeNode
}

// LoadTree reads a forest artifact, or a bare node array holding one tree.
func LoadTree(path string) (*TreeClassifier, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tree artifact: %w", err)
	}

	var artifact ForestArtifact
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var nodes []TreeNode
		if err := json.Unmarshal(trimmed, &nodes); err != nil {
			return nil, fmt.Errorf("failed to parse tree artifact: %w", err)
		}
		artifact.Trees = [][]TreeNode{nodes}
	} else if err := json.Unmarshal(trimmed, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse forest artifact: %w", err)
	}

	return NewTreeClassifier(artifact)
}

// NewTreeClassifier validates the ensemble structure up front so Predict can
// never loop or index out of range.
func NewTreeClassifier(artifact ForestArtifact) (*TreeClassifier, error) {
	if len(artifact.Trees) == 0 {
		return nil, errors.New("forest has no trees")
	}
	for t, nodes := range artifact.Trees {
		if len(nodes) == 0 {
			return nil, fmt.Errorf("tree %d has no nodes", t)
		}
		for i, n := range nodes {
			if n.IsLeaf {
				if n.ClassLabel != 0 && n.ClassLabel != 1 {
					return nil, fmt.Errorf("tree %d node %d: class label %d is not binary", t, i, n.ClassLabel)
				}
				if len(n.Value) != 0 && len(n.Value) != 2 {
					return nil, fmt.Errorf("tree %d node %d: expected 2 class values, got %d", t, i, len(n.Value))
				}
				continue
			}
			if n.LeftChild <= i || n.LeftChild >= len(nodes) || n.RightChild <= i || n.RightChild >= len(nodes) {
				return nil, fmt.Errorf("tree %d node %d: invalid children %d/%d", t, i, n.LeftChild, n.RightChild)
			}
			if n.FeatureIdx < 0 {
				return nil, fmt.Errorf("tree %d node %d: negative feature index", t, i)
			}
			if len(artifact.Features) > 0 && n.FeatureIdx >= len(artifact.Features) {
				return nil, fmt.Errorf("tree %d node %d: feature index %d out of range", t, i, n.FeatureIdx)
			}
		}
	}

	return &TreeClassifier{features: artifact.Features, trees: artifact.Trees}, nil
}

func (c *TreeClassifier) Predict(ctx context.Context, row features.Row) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", ErrInference, err)
	}
	if len(c.features) > 0 && len(row.Values) != len(c.features) {
		return Prediction{}, fmt.Errorf("%w: expected %d features, got %d", ErrInference, len(c.features), len(row.Values))
	}

	var sum float64
	for t, nodes := range c.trees {
		p, err := evalTree(nodes, row.Values)
		if err != nil {
			return Prediction{}, fmt.Errorf("%w: tree %d: %v", ErrInference, t, err)
		}
		sum += p
	}
	// The hard label is left to the presenter's decision threshold.
	return Prediction{Probability: sum / float64(len(c.trees)), HasProbability: true}, nil
}

func (c *TreeClassifier) Features() []string { return c.features }

func (c *TreeClassifier) Close() error { return nil }

// evalTree returns the class 1 probability at the leaf reached by values.
func evalTree(nodes []TreeNode, values []float64) (float64, error) {
	idx := 0
	for {
		node := nodes[idx]
		if node.IsLeaf {
			return leafProbability(node), nil
		}
		if node.FeatureIdx >= len(values) {
			return 0, fmt.Errorf("feature index %d out of range", node.FeatureIdx)
		}
		if values[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
}

func leafProbability(node TreeNode) float64 {
	if len(node.Value) == 2 {
		total := node.Value[0] + node.Value[1]
		if total > 0 {
			return node.Value[1] / total
		}
	}
	return float64(node.ClassLabel)
}
