package satstats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cycle-dashboard/internal/chart"
	"cycle-dashboard/internal/storage"

	"github.com/rs/zerolog/log"
)

// Output file names written by GenerateReport.
const (
	SummaryFile       = "sat_summary.txt"
	JSONFile          = "sat_results.json"
	OverviewChart     = "sat_overview.svg"
	VerbalChart       = "verbal_by_gender.svg"
	MathChart         = "math_by_gender.svg"
	OverallChart      = "overall_verbal_math.svg"
	AveragesChart     = "averages_comparison.svg"
	chartStatMean     = "Mean"
	chartStatMedian   = "Median"
	chartStatDeviance = "Standard Deviation"
)

// Reporter generates analysis reports
type Reporter struct {
	summary    storage.SummaryRecord
	records    []storage.SATRecord
	outputPath string
}

// NewReporter creates a new reporter
func NewReporter(summary storage.SummaryRecord, records []storage.SATRecord, outputPath string) *Reporter {
	return &Reporter{
		summary:    summary,
		records:    records,
		outputPath: outputPath,
	}
}

// GenerateReport generates all report formats
func (r *Reporter) GenerateReport() error {
	// Create output directory
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}

	if err := r.generateJSONReport(); err != nil {
		return err
	}

	return r.generateCharts()
}

// generateSummary generates a human-readable summary
func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, SummaryFile)
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	fmt.Fprintf(file, "SAT SCORE SUMMARY\n")
	fmt.Fprintf(file, "=================\n\n")
	fmt.Fprintf(file, "Years: %d to %d\n", r.summary.FromYear, r.summary.ToYear)
	fmt.Fprintf(file, "Rows: %d\n\n", r.summary.Rows)
	r.writeTable(file)

	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return nil
}

func (r *Reporter) writeTable(w io.Writer) {
	sections := []struct {
		title string
		value func(storage.ColumnSummary) float64
	}{
		{"Mean values:", func(c storage.ColumnSummary) float64 { return c.Mean }},
		{"Median values:", func(c storage.ColumnSummary) float64 { return c.Median }},
		{"Standard Deviation values:", func(c storage.ColumnSummary) float64 { return c.StdDev }},
	}
	for i, s := range sections {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, s.title)
		for _, c := range r.summary.Columns {
			fmt.Fprintf(w, "%-16s %10.4f\n", c.Column, s.value(c))
		}
	}
}

// generateJSONReport generates a JSON report with all data
func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, JSONFile)

	report := map[string]interface{}{
		"summary":      r.summary,
		"records":      r.records,
		"generated_at": time.Now(),
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

// generateCharts writes the overview bar chart and the four trend charts.
func (r *Reporter) generateCharts() error {
	charts := map[string]string{
		OverviewChart: r.OverviewSVG(),
	}
	for name, svg := range r.TrendSVGs() {
		charts[name] = svg
	}

	for name, svg := range charts {
		path := filepath.Join(r.outputPath, name)
		if err := os.WriteFile(path, []byte(svg), 0o644); err != nil {
			return fmt.Errorf("failed to write chart %s: %w", name, err)
		}
	}

	log.Info().Int("charts", len(charts)).Str("dir", r.outputPath).Msg("Charts generated")
	return nil
}

// OverviewSVG draws mean, median and standard deviation per column.
func (r *Reporter) OverviewSVG() string {
	categories := make([]string, len(r.summary.Columns))
	mean := chart.Series{Name: chartStatMean, Color: "#87CEEB"}
	median := chart.Series{Name: chartStatMedian, Color: "#FFA500"}
	std := chart.Series{Name: chartStatDeviance, Color: "#008000"}
	for i, c := range r.summary.Columns {
		categories[i] = c.Column
		mean.Values = append(mean.Values, c.Mean)
		median.Values = append(median.Values, c.Median)
		std.Values = append(std.Values, c.StdDev)
	}
	title := fmt.Sprintf("Mean, Median, and Standard Deviation of SAT scores from %d to %d", r.summary.FromYear, r.summary.ToYear)
	return chart.GroupedBar(title, categories, []chart.Series{mean, median, std})
}

// TrendSVGs draws the per-year comparisons keyed by output file name.
func (r *Reporter) TrendSVGs() map[string]string {
	years := Years(r.records)
	line := func(title string, series ...chart.Series) string {
		return chart.Line(title, years, series)
	}
	col := func(label, name string) chart.Series {
		return chart.Series{Name: label, Values: Series(r.records, name)}
	}

	return map[string]string{
		VerbalChart: line("Male vs. Female Verbal Scores Over Time",
			col("Male", ColMaleVerbal), col("Female", ColFemaleVerbal)),
		MathChart: line("Male vs. Female Math Scores Over Time",
			col("Male", ColMaleMath), col("Female", ColFemaleMath)),
		OverallChart: line("Overall Verbal and Math Scores Over Time",
			col("Verbal", ColAllVerbal), col("Math", ColAllMath)),
		AveragesChart: line("Comparison of Average Scores (verbal and math)",
			col("All Students", ColAllAverage), col("Male", ColMaleAverage), col("Female", ColFemaleAverage)),
	}
}

// PrintSummary prints the statistics table to w
func (r *Reporter) PrintSummary(w io.Writer) {
	fmt.Fprintln(w, "\n=== SAT SCORE STATISTICS ===")
	fmt.Fprintf(w, "Years: %d to %d (%d rows)\n\n", r.summary.FromYear, r.summary.ToYear, r.summary.Rows)
	r.writeTable(w)
	fmt.Fprintln(w, "============================")
}
