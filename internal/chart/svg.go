// Package chart renders small self-contained SVG charts for the dashboard
// and the analysis reports.
package chart

import (
	"fmt"
	"html"
	"math"
	"strings"
)

const (
	width   = 480
	height  = 320
	marginL = 56
	marginR = 16
	marginT = 40
	marginB = 64
)

// Palette is used when a series has no color of its own.
var Palette = []string{"#2A9D8F", "#E76F51", "#457B9D", "#F4A261", "#A8DADC", "#264653"}

// Series is one named sequence of values.
type Series struct {
	Name   string
	Values []float64
	Color  string
}

func color(i int, c string) string {
	if c != "" {
		return c
	}
	return Palette[i%len(Palette)]
}

func open(b *strings.Builder, title string) {
	fmt.Fprintf(b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="%d" height="%d" font-family="sans-serif" font-size="12">`, width, height, width, height)
	fmt.Fprintf(b, `<text x="%d" y="24" text-anchor="middle" font-size="15" font-weight="bold">%s</text>`, width/2, html.EscapeString(title))
}

// Pie draws one slice per value. Non-positive values are skipped.
func Pie(title string, labels []string, values []float64, colors []string) string {
	var b strings.Builder
	open(&b, title)

	var total float64
	for _, v := range values {
		if v > 0 {
			total += v
		}
	}

	cx, cy, r := 160.0, 176.0, 110.0
	if total == 0 {
		fmt.Fprintf(&b, `<circle cx="%.1f" cy="%.1f" r="%.1f" fill="#ddd"/>`, cx, cy, r)
	}

	angle := -math.Pi / 2
	for i, v := range values {
		if v <= 0 || total == 0 {
			continue
		}
		c := color(i, pick(colors, i))
		share := v / total
		if share >= 1 {
			fmt.Fprintf(&b, `<circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s"/>`, cx, cy, r, c)
			break
		}
		end := angle + share*2*math.Pi
		large := 0
		if share > 0.5 {
			large = 1
		}
		fmt.Fprintf(&b, `<path d="M%.1f,%.1f L%.2f,%.2f A%.1f,%.1f 0 %d,1 %.2f,%.2f Z" fill="%s"/>`,
			cx, cy, cx+r*math.Cos(angle), cy+r*math.Sin(angle), r, r, large, cx+r*math.Cos(end), cy+r*math.Sin(end), c)
		angle = end
	}

	for i, label := range labels {
		y := 120 + i*24
		fmt.Fprintf(&b, `<rect x="300" y="%d" width="14" height="14" fill="%s"/>`, y-11, color(i, pick(colors, i)))
		share := 0.0
		if total > 0 && i < len(values) && values[i] > 0 {
			share = values[i] / total * 100
		}
		fmt.Fprintf(&b, `<text x="320" y="%d">%s (%.1f%%)</text>`, y, html.EscapeString(label), share)
	}

	b.WriteString(`</svg>`)
	return b.String()
}

// Bar draws one bar per value.
func Bar(title string, labels []string, values []float64, colors []string) string {
	series := make([]Series, len(values))
	for i, v := range values {
		series[i] = Series{Name: pick(labels, i), Values: []float64{v}, Color: color(i, pick(colors, i))}
	}
	return grouped(title, nil, series, false)
}

// GroupedBar draws, for each category, one bar per series.
func GroupedBar(title string, categories []string, series []Series) string {
	return grouped(title, categories, series, true)
}

func grouped(title string, categories []string, series []Series, legend bool) string {
	var b strings.Builder
	open(&b, title)

	groups := 0
	for _, s := range series {
		groups = max(groups, len(s.Values))
	}
	lo, hi := bounds(series)
	lo = math.Min(lo, 0)
	axes(&b, lo, hi)

	plotW := float64(width - marginL - marginR)
	if groups == 0 || len(series) == 0 {
		b.WriteString(`</svg>`)
		return b.String()
	}

	var groupW, barW float64
	if legend {
		groupW = plotW / float64(groups)
		barW = groupW * 0.8 / float64(len(series))
	} else {
		groupW = plotW / float64(len(series))
		barW = groupW * 0.6
	}

	for si, s := range series {
		for gi, v := range s.Values {
			var x float64
			if legend {
				x = float64(marginL) + float64(gi)*groupW + groupW*0.1 + float64(si)*barW
			} else {
				x = float64(marginL) + float64(si)*groupW + groupW*0.2
			}
			y0, y1 := scaleY(0, lo, hi), scaleY(v, lo, hi)
			top, h := math.Min(y0, y1), math.Abs(y1-y0)
			fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s"><title>%s: %s</title></rect>`,
				x, top, barW, h, color(si, s.Color), html.EscapeString(s.Name), formatValue(v))
			if !legend {
				fmt.Fprintf(&b, `<text x="%.2f" y="%d" text-anchor="middle">%s</text>`, x+barW/2, height-marginB+18, html.EscapeString(s.Name))
				fmt.Fprintf(&b, `<text x="%.2f" y="%.2f" text-anchor="middle">%s</text>`, x+barW/2, top-4, formatValue(v))
			}
		}
	}

	if legend {
		for gi := 0; gi < groups; gi++ {
			x := float64(marginL) + float64(gi)*groupW + groupW/2
			fmt.Fprintf(&b, `<text x="%.2f" y="%d" text-anchor="end" transform="rotate(-35 %.2f %d)">%s</text>`,
				x, height-marginB+14, x, height-marginB+14, html.EscapeString(pick(categories, gi)))
		}
		drawLegend(&b, series)
	}

	b.WriteString(`</svg>`)
	return b.String()
}

// Line draws each series as a polyline against the shared x values.
func Line(title string, x []float64, series []Series) string {
	var b strings.Builder
	open(&b, title)

	lo, hi := bounds(series)
	axes(&b, lo, hi)
	if len(x) == 0 {
		b.WriteString(`</svg>`)
		return b.String()
	}

	xlo, xhi := x[0], x[0]
	for _, v := range x {
		xlo, xhi = math.Min(xlo, v), math.Max(xhi, v)
	}
	scaleX := func(v float64) float64 {
		if xhi == xlo {
			return float64(marginL) + float64(width-marginL-marginR)/2
		}
		return float64(marginL) + (v-xlo)/(xhi-xlo)*float64(width-marginL-marginR)
	}

	for si, s := range series {
		var pts []string
		for i, v := range s.Values {
			if i >= len(x) || math.IsNaN(v) {
				continue
			}
			pts = append(pts, fmt.Sprintf("%.2f,%.2f", scaleX(x[i]), scaleY(v, lo, hi)))
		}
		fmt.Fprintf(&b, `<polyline fill="none" stroke="%s" stroke-width="2" points="%s"/>`, color(si, s.Color), strings.Join(pts, " "))
	}

	fmt.Fprintf(&b, `<text x="%d" y="%d" text-anchor="start">%s</text>`, marginL, height-marginB+18, formatValue(xlo))
	fmt.Fprintf(&b, `<text x="%d" y="%d" text-anchor="end">%s</text>`, width-marginR, height-marginB+18, formatValue(xhi))
	drawLegend(&b, series)

	b.WriteString(`</svg>`)
	return b.String()
}

func axes(b *strings.Builder, lo, hi float64) {
	fmt.Fprintf(b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#333"/>`, marginL, marginT, marginL, height-marginB)
	fmt.Fprintf(b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#333"/>`, marginL, height-marginB, width-marginR, height-marginB)
	fmt.Fprintf(b, `<text x="%d" y="%d" text-anchor="end">%s</text>`, marginL-4, marginT+4, formatValue(hi))
	fmt.Fprintf(b, `<text x="%d" y="%d" text-anchor="end">%s</text>`, marginL-4, height-marginB, formatValue(lo))
}

func drawLegend(b *strings.Builder, series []Series) {
	for i, s := range series {
		x := marginL + i*110
		fmt.Fprintf(b, `<rect x="%d" y="%d" width="10" height="10" fill="%s"/>`, x, height-20, color(i, s.Color))
		fmt.Fprintf(b, `<text x="%d" y="%d">%s</text>`, x+14, height-11, html.EscapeString(s.Name))
	}
}

func bounds(series []Series) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s.Values {
			if math.IsNaN(v) {
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 1
	}
	if lo == hi {
		return lo - 1, hi + 1
	}
	return lo, hi
}

func scaleY(v, lo, hi float64) float64 {
	plotH := float64(height - marginT - marginB)
	return float64(height-marginB) - (v-lo)/(hi-lo)*plotH
}

func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e6 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

func pick(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}
