// Package present maps binary classifier output onto the fixed per-purpose
// messages, colors and charts shown on the dashboard.
package present

import (
	"errors"
	"fmt"

	"cycle-dashboard/internal/ml"
)

// Purpose identifies which prediction a result belongs to.
type Purpose string

const (
	Fertility  Purpose = "fertility"
	Regularity Purpose = "regularity"
)

// Purposes lists every supported purpose in display order.
var Purposes = []Purpose{Fertility, Regularity}

// DecisionThreshold turns a class 1 probability into a hard label when a
// classifier reports no label of its own.
const DecisionThreshold = 0.5

var (
	ErrInvalidLabel   = errors.New("classifier returned a label outside {0, 1}")
	ErrUnknownPurpose = errors.New("unknown prediction purpose")
	ErrNoOutput       = errors.New("classifier returned neither label nor probability")
)

// Outcome is one row of a label table.
type Outcome struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Color    string `json:"color"`
}

// ChartKind selects how a purpose is charted.
type ChartKind string

const (
	ChartPie ChartKind = "pie"
	ChartBar ChartKind = "bar"
)

type labelTable struct {
	title    string
	chart    ChartKind
	outcomes [2]Outcome
}

var tables = map[Purpose]labelTable{
	Fertility: {
		title: "Fertility Status",
		chart: ChartPie,
		outcomes: [2]Outcome{
			{Category: "Low Fertility", Message: "The model predicts Low Fertility for this cycle.", Color: "#A8DADC"},
			{Category: "High Fertility", Message: "The model predicts High Fertility for this cycle.", Color: "#2A9D8F"},
		},
	},
	Regularity: {
		title: "Cycle Regularity",
		chart: ChartBar,
		outcomes: [2]Outcome{
			{Category: "Regular Cycle", Message: "Your cycle is predicted to be Regular.", Color: "#2A9D8F"},
			{Category: "Irregular Cycle", Message: "Your cycle is predicted to be Irregular.", Color: "#457B9D"},
		},
	},
}

// ParsePurpose validates a purpose name.
func ParsePurpose(s string) (Purpose, error) {
	p := Purpose(s)
	if _, ok := tables[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPurpose, s)
	}
	return p, nil
}

// Title is the heading shown above a purpose's result.
func (p Purpose) Title() string { return tables[p].title }

// Outcomes returns the label table for p, indexed by label.
func Outcomes(p Purpose) ([2]Outcome, error) {
	t, ok := tables[p]
	if !ok {
		return [2]Outcome{}, fmt.Errorf("%w: %q", ErrUnknownPurpose, p)
	}
	return t.outcomes, nil
}

// Result is a presented prediction. Thresholded reports that Label was
// derived from Probability with DecisionThreshold.
type Result struct {
	Purpose        Purpose `json:"purpose"`
	Label          int     `json:"label"`
	Category       string  `json:"category"`
	Message        string  `json:"message"`
	Color          string  `json:"color"`
	Probability    float64 `json:"probability,omitempty"`
	HasProbability bool    `json:"has_probability"`
	Thresholded    bool    `json:"thresholded"`
	Chart          Chart   `json:"chart"`
}

// Chart is the data behind a purpose's chart; the dashboard renders it.
type Chart struct {
	Kind   ChartKind `json:"kind"`
	Title  string    `json:"title"`
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
	Colors []string  `json:"colors"`
}

// Present maps a raw prediction through the purpose's label table.
func Present(p Purpose, pred ml.Prediction) (Result, error) {
	t, ok := tables[p]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownPurpose, p)
	}

	label := pred.Label
	thresholded := false
	switch {
	case pred.HasLabel:
	case pred.HasProbability:
		label = 0
		if pred.Probability >= DecisionThreshold {
			label = 1
		}
		thresholded = true
	default:
		return Result{}, ErrNoOutput
	}
	if label != 0 && label != 1 {
		return Result{}, fmt.Errorf("%w: got %d", ErrInvalidLabel, label)
	}

	out := t.outcomes[label]
	return Result{
		Purpose:        p,
		Label:          label,
		Category:       out.Category,
		Message:        out.Message,
		Color:          out.Color,
		Probability:    pred.Probability,
		HasProbability: pred.HasProbability,
		Thresholded:    thresholded,
		Chart:          chartFor(t, label, pred),
	}, nil
}

// chartFor charts the share of each class: the model probability when one is
// available, otherwise all weight on the predicted class.
func chartFor(t labelTable, label int, pred ml.Prediction) Chart {
	values := []float64{0, 0}
	if pred.HasProbability {
		values[0] = 1 - pred.Probability
		values[1] = pred.Probability
	} else {
		values[label] = 1
	}

	// Predicted class first, as the dashboard has always drawn it.
	other := 1 - label
	return Chart{
		Kind:   t.chart,
		Title:  t.title,
		Labels: []string{t.outcomes[label].Category, t.outcomes[other].Category},
		Values: []float64{values[label], values[other]},
		Colors: []string{t.outcomes[label].Color, t.outcomes[other].Color},
	}
}
