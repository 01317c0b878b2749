package chart

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPie(t *testing.T) {
	svg := Pie("Fertility Status", []string{"High Fertility", "Low Fertility"}, []float64{0.8, 0.2}, []string{"#2A9D8F", "#A8DADC"})

	assert.True(t, strings.HasPrefix(svg, "<svg"))
	assert.True(t, strings.HasSuffix(svg, "</svg>"))
	assert.Equal(t, 2, strings.Count(svg, "<path"))
	assert.Contains(t, svg, "High Fertility (80.0%)")
	assert.Contains(t, svg, "#A8DADC")
}

func TestPie_SingleFullSlice(t *testing.T) {
	svg := Pie("All", []string{"a", "b"}, []float64{1, 0}, nil)
	assert.Equal(t, 0, strings.Count(svg, "<path"))
	assert.Contains(t, svg, "<circle")
}

func TestPie_EmptyValues(t *testing.T) {
	svg := Pie("Empty", nil, []float64{0, 0}, nil)
	assert.Contains(t, svg, `fill="#ddd"`)
}

func TestBar(t *testing.T) {
	svg := Bar("Cycle Regularity", []string{"Regular Cycle", "Irregular Cycle"}, []float64{1, 0}, []string{"#2A9D8F", "#457B9D"})
	assert.Equal(t, 2, strings.Count(svg, "<rect"))
	assert.Contains(t, svg, "Irregular Cycle")
}

func TestGroupedBar(t *testing.T) {
	svg := GroupedBar("Summary", []string{"verbal", "math", "total"}, []Series{
		{Name: "mean", Values: []float64{500, 510, 1010}},
		{Name: "median", Values: []float64{501, 512, 1013}},
		{Name: "std", Values: []float64{10, 8, 17}},
	})
	// 9 bars plus 3 legend swatches.
	assert.Equal(t, 12, strings.Count(svg, "<rect"))
	assert.Contains(t, svg, "median")
}

func TestLine(t *testing.T) {
	svg := Line("Verbal", []float64{1967, 1968, 1969}, []Series{
		{Name: "Male", Values: []float64{540, 541, math.NaN()}},
		{Name: "Female", Values: []float64{545, 543, 540}},
	})
	assert.Equal(t, 2, strings.Count(svg, "<polyline"))
	assert.Contains(t, svg, "1967")
	assert.Contains(t, svg, "1969")
}

func TestEscapesText(t *testing.T) {
	svg := Bar("<script>", []string{"a&b"}, []float64{1}, nil)
	assert.NotContains(t, svg, "<script>")
	assert.Contains(t, svg, "a&amp;b")
}
