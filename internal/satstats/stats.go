package satstats

import (
	"math"
	"sort"
	"time"

	"cycle-dashboard/internal/storage"
)

// Mean returns the arithmetic mean, or 0 for no values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median returns the middle value, averaging the two middle values for an
// even count. The input is not modified.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// StdDev returns the sample standard deviation (n-1 denominator). Fewer than
// two values give 0.
func StdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	m := Mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// Describe computes mean, median and standard deviation for every score
// column, skipping values missing from individual rows.
func Describe(records []storage.SATRecord) []storage.ColumnSummary {
	out := make([]storage.ColumnSummary, len(scoreColumns))
	for i, c := range scoreColumns {
		values := make([]float64, 0, len(records))
		for _, r := range records {
			if hasValue(r, c.name) {
				values = append(values, c.get(r))
			}
		}
		out[i] = storage.ColumnSummary{
			Column: c.name,
			Count:  len(values),
			Mean:   Mean(values),
			Median: Median(values),
			StdDev: StdDev(values),
		}
	}
	return out
}

// Analyze filters records to the year range and summarizes them.
func Analyze(records []storage.SATRecord, from, to int) (storage.SummaryRecord, []storage.SATRecord) {
	selected := FilterYears(records, from, to)
	summary := storage.SummaryRecord{
		RunAt:    time.Now().UTC(),
		FromYear: from,
		ToYear:   to,
		Rows:     len(selected),
		Columns:  Describe(selected),
	}
	if len(selected) > 0 {
		if from == 0 {
			summary.FromYear = selected[0].Year
		}
		if to == 0 {
			summary.ToYear = selected[len(selected)-1].Year
		}
	}
	return summary, selected
}

// Series extracts one score column from records in order. Missing values
// are NaN, which charts leave out.
func Series(records []storage.SATRecord, name string) []float64 {
	for _, c := range scoreColumns {
		if c.name != name {
			continue
		}
		out := make([]float64, len(records))
		for i, r := range records {
			if hasValue(r, name) {
				out[i] = c.get(r)
			} else {
				out[i] = math.NaN()
			}
		}
		return out
	}
	return nil
}

// Years returns the year of each record as a float for charting.
func Years(records []storage.SATRecord) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = float64(r.Year)
	}
	return out
}
