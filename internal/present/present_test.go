package present

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cycle-dashboard/internal/ml"
)

func TestPresent_LabelTables(t *testing.T) {
	tests := []struct {
		purpose  Purpose
		label    int
		category string
		color    string
	}{
		{Fertility, 1, "High Fertility", "#2A9D8F"},
		{Fertility, 0, "Low Fertility", "#A8DADC"},
		{Regularity, 1, "Irregular Cycle", "#457B9D"},
		{Regularity, 0, "Regular Cycle", "#2A9D8F"},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			res, err := Present(tt.purpose, ml.Prediction{Label: tt.label, HasLabel: true})
			require.NoError(t, err)
			assert.Equal(t, tt.category, res.Category)
			assert.Equal(t, tt.color, res.Color)
			assert.Equal(t, tt.label, res.Label)
			assert.False(t, res.Thresholded)
			assert.Contains(t, res.Message, map[string]string{
				"High Fertility":  "High Fertility",
				"Low Fertility":   "Low Fertility",
				"Irregular Cycle": "Irregular",
				"Regular Cycle":   "Regular",
			}[tt.category])
		})
	}
}

func TestPresent_NoThirdCategory(t *testing.T) {
	for _, p := range Purposes {
		for _, label := range []int{-1, 2, 7} {
			_, err := Present(p, ml.Prediction{Label: label, HasLabel: true})
			assert.True(t, errors.Is(err, ErrInvalidLabel), "purpose %s label %d", p, label)
		}
	}
}

func TestPresent_ProbabilityOnlyUsesThreshold(t *testing.T) {
	res, err := Present(Regularity, ml.Prediction{Probability: 0.5, HasProbability: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Label)
	assert.Equal(t, "Irregular Cycle", res.Category)
	assert.True(t, res.Thresholded)

	res, err = Present(Regularity, ml.Prediction{Probability: 0.49, HasProbability: true})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Label)
	assert.True(t, res.Thresholded)
}

func TestPresent_ModelLabelWinsOverProbability(t *testing.T) {
	res, err := Present(Fertility, ml.Prediction{Label: 0, HasLabel: true, Probability: 0.5, HasProbability: true})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Label)
	assert.False(t, res.Thresholded)
}

func TestPresent_Errors(t *testing.T) {
	_, err := Present("mood", ml.Prediction{HasLabel: true})
	assert.True(t, errors.Is(err, ErrUnknownPurpose))

	_, err = Present(Fertility, ml.Prediction{})
	assert.True(t, errors.Is(err, ErrNoOutput))
}

func TestPresent_Charts(t *testing.T) {
	res, err := Present(Fertility, ml.Prediction{Label: 1, HasLabel: true, Probability: 0.8, HasProbability: true})
	require.NoError(t, err)
	assert.Equal(t, ChartPie, res.Chart.Kind)
	assert.Equal(t, []string{"High Fertility", "Low Fertility"}, res.Chart.Labels)
	assert.InDeltaSlice(t, []float64{0.8, 0.2}, res.Chart.Values, 1e-9)
	assert.Equal(t, []string{"#2A9D8F", "#A8DADC"}, res.Chart.Colors)

	res, err = Present(Regularity, ml.Prediction{Label: 0, HasLabel: true})
	require.NoError(t, err)
	assert.Equal(t, ChartBar, res.Chart.Kind)
	assert.Equal(t, []string{"Regular Cycle", "Irregular Cycle"}, res.Chart.Labels)
	assert.Equal(t, []float64{1, 0}, res.Chart.Values)
}

func TestParsePurpose(t *testing.T) {
	p, err := ParsePurpose("fertility")
	require.NoError(t, err)
	assert.Equal(t, Fertility, p)
	assert.Equal(t, "Fertility Status", p.Title())

	_, err = ParsePurpose("")
	assert.True(t, errors.Is(err, ErrUnknownPurpose))

	outcomes, err := Outcomes(Regularity)
	require.NoError(t, err)
	assert.Equal(t, "Regular Cycle", outcomes[0].Category)
}
