package ml

import (
	"context"
	"fmt"

	"cycle-dashboard/internal/features"
)

// Fertile window bounds used by the rule classifier, in cycle days.
const (
	FertileWindowStart = 12
	FertileWindowEnd   = 16
)

// RuleClassifier labels a cycle high fertility when the ovulation day falls
// inside the fertile window. It needs no artifact and gives no probability.
type RuleClassifier struct {
	start, end float64
}

// NewRuleClassifier creates the ovulation-window rule
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{start: FertileWindowStart, end: FertileWindowEnd}
}

func (r *RuleClassifier) Predict(_ context.Context, row features.Row) (Prediction, error) {
	idx := -1
	for i, name := range row.Names {
		if name == features.OvulationDay {
			idx = i
			break
		}
	}
	if idx < 0 || idx >= len(row.Values) {
		return Prediction{}, fmt.Errorf("%w: row has no %q column", ErrInference, features.OvulationDay)
	}

	day := row.Values[idx]
	label := 0
	if day >= r.start && day <= r.end {
		label = 1
	}
	return Prediction{Label: label, HasLabel: true}, nil
}

func (r *RuleClassifier) Features() []string { return []string{features.OvulationDay} }

func (r *RuleClassifier) Close() error { return nil }
