package satstats

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cycle-dashboard/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sourceCSV = `Year,M_verbal,F_verbal,A_verbal,M_math,F_math,A_math,Male_averages,F_averages,All_averages
1969,541,543,540,536,494,517,1077,1037,1057
1967,540,545,543,535,495,516,1075,1040,1059
1968,541,543,543,533,497,516,1074,1040,1059
1970,bad,537,537,531,,512,1067,1030,1049
1971,531,529,532,529,494,513,1060,1023,1045
19x2,527,529,529,527,489,509,1054,1018,1038
`

func loadSample(t *testing.T) []storage.SATRecord {
	t.Helper()
	dl := NewDataLoader()
	require.NoError(t, dl.ReadCSV(strings.NewReader(sourceCSV)))
	return dl.Records()
}

func TestReadCSV_RenamesAndSorts(t *testing.T) {
	dl := NewDataLoader()
	require.NoError(t, dl.ReadCSV(strings.NewReader(sourceCSV)))

	records := dl.Records()
	require.Len(t, records, 5)
	assert.Equal(t, 1, dl.Skipped())
	assert.Equal(t, 2, dl.MissingCells())
	years := make([]int, len(records))
	for i, r := range records {
		years[i] = r.Year
	}
	assert.Equal(t, []int{1967, 1968, 1969, 1970, 1971}, years)

	first := records[0]
	assert.Equal(t, 543.0, first.AllVerbal)
	assert.Equal(t, 516.0, first.AllMath)
	assert.Equal(t, 1075.0, first.MaleAverage)
	assert.Equal(t, 1040.0, first.FemaleAverage)
	assert.Equal(t, 1059.0, first.AllAverage)
}

func TestReadCSV_CanonicalHeader(t *testing.T) {
	data := "Year,M_verbal,F_verbal,All_verbal,M_math,F_math,All_math,M_VM_averages,F_VM_averages,All_VM_averages\n" +
		"2001,509,502,506,533,498,514,1042,1000,1020\n"
	dl := NewDataLoader()
	require.NoError(t, dl.ReadCSV(strings.NewReader(data)))
	require.Len(t, dl.Records(), 1)
	assert.Equal(t, 1020.0, dl.Records()[0].AllAverage)
}

func TestReadCSV_MissingColumn(t *testing.T) {
	data := "Year,M_verbal,F_verbal\n1967,540,545\n"
	err := NewDataLoader().ReadCSV(strings.NewReader(data))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))
}

func TestLoadFromCSV_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "SAT_by_Year_Gender_1967_2001.csv")
	require.NoError(t, os.WriteFile(path, []byte(sourceCSV), 0o644))

	dl := NewDataLoader()
	require.NoError(t, dl.LoadFromCSV(path))
	assert.Len(t, dl.Records(), 5)

	assert.Error(t, NewDataLoader().LoadFromCSV(filepath.Join(t.TempDir(), "absent.csv")))
}

func TestLoadFromStore(t *testing.T) {
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.StoreRecords(loadSample(t)))

	dl := NewDataLoader()
	require.NoError(t, dl.LoadFromStore(store, 1968, 1969))
	records := dl.Records()
	require.Len(t, records, 2)
	assert.Equal(t, 1968, records[0].Year)
	assert.Equal(t, 1969, records[1].Year)
}

func TestDescribe_SkipsMissingCellsPerColumn(t *testing.T) {
	records := loadSample(t)
	require.Equal(t, 1970, records[3].Year)
	assert.Equal(t, []string{ColMaleVerbal, ColFemaleMath}, records[3].Missing)
	assert.Equal(t, 537.0, records[3].FemaleVerbal)

	byName := make(map[string]storage.ColumnSummary)
	for _, c := range Describe(records) {
		byName[c.Column] = c
	}
	assert.Equal(t, 4, byName[ColMaleVerbal].Count)
	assert.Equal(t, 4, byName[ColFemaleMath].Count)
	assert.InDelta(t, (495+497+494+494)/4.0, byName[ColFemaleMath].Mean, 1e-9)
	for _, name := range []string{ColFemaleVerbal, ColMaleMath, ColAllVerbal, ColAllMath, ColMaleAverage, ColFemaleAverage, ColAllAverage} {
		assert.Equal(t, 5, byName[name].Count, name)
	}
}

func TestLoadFromStore_KeepsMissingColumns(t *testing.T) {
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.StoreRecords(loadSample(t)))

	dl := NewDataLoader()
	require.NoError(t, dl.LoadFromStore(store, 1970, 1970))
	require.Len(t, dl.Records(), 1)
	summary, _ := Analyze(dl.Records(), 0, 0)
	for _, c := range summary.Columns {
		if c.Column == ColMaleVerbal {
			assert.Equal(t, 0, c.Count)
		}
	}
}

func TestStats(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	assert.Equal(t, 5.0, Mean(values))
	assert.Equal(t, 4.5, Median(values))
	// sample standard deviation: sqrt(32/7)
	assert.InDelta(t, math.Sqrt(32.0/7.0), StdDev(values), 1e-12)

	assert.Equal(t, 3.0, Median([]float64{5, 1, 3}))
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 0.0, StdDev([]float64{42}))
}

func TestMedian_DoesNotModifyInput(t *testing.T) {
	values := []float64{3, 1, 2}
	Median(values)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestAnalyze(t *testing.T) {
	records := loadSample(t)

	summary, selected := Analyze(records, 0, 0)
	assert.Equal(t, 5, summary.Rows)
	assert.Equal(t, 1967, summary.FromYear)
	assert.Equal(t, 1971, summary.ToYear)
	assert.Len(t, selected, 5)
	require.Len(t, summary.Columns, len(ScoreColumns()))

	byName := make(map[string]storage.ColumnSummary)
	for _, c := range summary.Columns {
		byName[c.Column] = c
	}
	verbal := byName[ColMaleVerbal]
	assert.InDelta(t, (540+541+541+531)/4.0, verbal.Mean, 1e-9)
	assert.Equal(t, 540.5, verbal.Median)
	assert.Equal(t, 4, verbal.Count)

	summary, selected = Analyze(records, 1968, 1969)
	assert.Equal(t, 2, summary.Rows)
	assert.Len(t, selected, 2)
	assert.Equal(t, 1968, summary.FromYear)
}

func TestSeriesAndYears(t *testing.T) {
	records := loadSample(t)
	assert.Equal(t, []float64{516, 516, 517, 512, 513}, Series(records, ColAllMath))
	assert.Equal(t, []float64{1967, 1968, 1969, 1970, 1971}, Years(records))

	verbal := Series(records, ColMaleVerbal)
	require.Len(t, verbal, 5)
	assert.True(t, math.IsNaN(verbal[3]))
	assert.Nil(t, Series(records, "unknown"))
}

func TestReporter_GenerateReport(t *testing.T) {
	records := loadSample(t)
	summary, selected := Analyze(records, 0, 0)
	out := filepath.Join(t.TempDir(), "reports")

	reporter := NewReporter(summary, selected, out)
	require.NoError(t, reporter.GenerateReport())

	for _, name := range []string{SummaryFile, JSONFile, OverviewChart, VerbalChart, MathChart, OverallChart, AveragesChart} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}

	text, err := os.ReadFile(filepath.Join(out, SummaryFile))
	require.NoError(t, err)
	assert.Contains(t, string(text), "Mean values:")
	assert.Contains(t, string(text), "Standard Deviation values:")
	assert.Contains(t, string(text), ColAllAverage)

	raw, err := os.ReadFile(filepath.Join(out, JSONFile))
	require.NoError(t, err)
	var report struct {
		Summary storage.SummaryRecord `json:"summary"`
		Records []storage.SATRecord   `json:"records"`
	}
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.Equal(t, 5, report.Summary.Rows)
	require.Len(t, report.Records, 5)
	assert.Equal(t, []string{ColMaleVerbal, ColFemaleMath}, report.Records[3].Missing)

	svg, err := os.ReadFile(filepath.Join(out, AveragesChart))
	require.NoError(t, err)
	assert.Contains(t, string(svg), "All Students")
	assert.Contains(t, string(svg), "<polyline")
}

func TestReporter_PrintSummary(t *testing.T) {
	summary, selected := Analyze(loadSample(t), 0, 0)

	var buf bytes.Buffer
	NewReporter(summary, selected, "").PrintSummary(&buf)
	assert.Contains(t, buf.String(), "Years: 1967 to 1971 (5 rows)")
	assert.Contains(t, buf.String(), "Median values:")
}

func TestReporter_OverviewSVG(t *testing.T) {
	summary, selected := Analyze(loadSample(t), 0, 0)
	svg := NewReporter(summary, selected, "").OverviewSVG()
	assert.Contains(t, svg, "Mean, Median, and Standard Deviation of SAT scores from 1967 to 1971")
	assert.Contains(t, svg, ColMaleVerbal)
}
