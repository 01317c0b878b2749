// Package satstats computes descriptive statistics and charts for the yearly
// SAT score dataset.
package satstats

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"

	"cycle-dashboard/internal/storage"

	"github.com/rs/zerolog/log"
)

// Canonical column names used in every report.
const (
	ColYear          = "Year"
	ColMaleVerbal    = "M_verbal"
	ColFemaleVerbal  = "F_verbal"
	ColAllVerbal     = "All_verbal"
	ColMaleMath      = "M_math"
	ColFemaleMath    = "F_math"
	ColAllMath       = "All_math"
	ColMaleAverage   = "M_VM_averages"
	ColFemaleAverage = "F_VM_averages"
	ColAllAverage    = "All_VM_averages"
)

// Renames maps the source dataset's column titles to canonical names.
var Renames = map[string]string{
	"Male_averages": ColMaleAverage,
	"F_averages":    ColFemaleAverage,
	"All_averages":  ColAllAverage,
	"A_verbal":      ColAllVerbal,
	"A_math":        ColAllMath,
}

// column binds a canonical name to its record field.
type column struct {
	name string
	get  func(storage.SATRecord) float64
	set  func(*storage.SATRecord, float64)
}

// scoreColumns lists the numeric columns in report order.
var scoreColumns = []column{
	{ColMaleVerbal, func(r storage.SATRecord) float64 { return r.MaleVerbal }, func(r *storage.SATRecord, v float64) { r.MaleVerbal = v }},
	{ColFemaleVerbal, func(r storage.SATRecord) float64 { return r.FemaleVerbal }, func(r *storage.SATRecord, v float64) { r.FemaleVerbal = v }},
	{ColMaleMath, func(r storage.SATRecord) float64 { return r.MaleMath }, func(r *storage.SATRecord, v float64) { r.MaleMath = v }},
	{ColFemaleMath, func(r storage.SATRecord) float64 { return r.FemaleMath }, func(r *storage.SATRecord, v float64) { r.FemaleMath = v }},
	{ColAllVerbal, func(r storage.SATRecord) float64 { return r.AllVerbal }, func(r *storage.SATRecord, v float64) { r.AllVerbal = v }},
	{ColAllMath, func(r storage.SATRecord) float64 { return r.AllMath }, func(r *storage.SATRecord, v float64) { r.AllMath = v }},
	{ColFemaleAverage, func(r storage.SATRecord) float64 { return r.FemaleAverage }, func(r *storage.SATRecord, v float64) { r.FemaleAverage = v }},
	{ColAllAverage, func(r storage.SATRecord) float64 { return r.AllAverage }, func(r *storage.SATRecord, v float64) { r.AllAverage = v }},
	{ColMaleAverage, func(r storage.SATRecord) float64 { return r.MaleAverage }, func(r *storage.SATRecord, v float64) { r.MaleAverage = v }},
}

// ScoreColumns returns the numeric column names in report order.
func ScoreColumns() []string {
	names := make([]string, len(scoreColumns))
	for i, c := range scoreColumns {
		names[i] = c.name
	}
	return names
}

// ErrMissingColumn is returned when the CSV header lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// DataLoader reads SAT rows from CSV or the bbolt store.
type DataLoader struct {
	records []storage.SATRecord
	skipped int // rows dropped for an unreadable line or year
	missing int // individual score cells with no usable value
}

// NewDataLoader creates a new data loader
func NewDataLoader() *DataLoader {
	return &DataLoader{records: make([]storage.SATRecord, 0)}
}

// LoadFromCSV loads rows from a CSV file, renaming source columns.
func (dl *DataLoader) LoadFromCSV(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	if err := dl.ReadCSV(file); err != nil {
		return err
	}

	log.Info().
		Str("file", filePath).
		Int("rows", len(dl.records)).
		Int("skipped", dl.skipped).
		Int("missing_cells", dl.missing).
		Msg("CSV data loaded successfully")
	return nil
}

// ReadCSV parses CSV data. Rows with an unparsable year are skipped; an
// unparsable score is recorded as missing for that column only. A header
// missing any score column is an error.
func (dl *DataLoader) ReadCSV(r io.Reader) error {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	// Read header
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	// Map header indices
	indices := make(map[string]int)
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		if renamed, ok := Renames[col]; ok {
			col = renamed
		}
		indices[col] = i
	}

	required := append([]string{ColYear}, ScoreColumns()...)
	for _, name := range required {
		if _, ok := indices[name]; !ok {
			return fmt.Errorf("%w %s", ErrMissingColumn, name)
		}
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			dl.skipped++
			log.Debug().Err(err).Int("line", line).Msg("Skipping unreadable CSV row")
			continue
		}

		rec, err := parseRow(record, indices)
		if err != nil {
			dl.skipped++
			log.Debug().Err(err).Int("line", line).Msg("Skipping invalid CSV row")
			continue
		}
		if len(rec.Missing) > 0 {
			dl.missing += len(rec.Missing)
			log.Debug().Int("line", line).Strs("columns", rec.Missing).Msg("Row has missing scores")
		}
		dl.records = append(dl.records, rec)
	}

	dl.sortByYear()
	return nil
}

func parseRow(record []string, indices map[string]int) (storage.SATRecord, error) {
	field := func(name string) (string, error) {
		idx := indices[name]
		if idx >= len(record) {
			return "", fmt.Errorf("%w %s", ErrMissingColumn, name)
		}
		return strings.TrimSpace(record[idx]), nil
	}

	var rec storage.SATRecord
	raw, err := field(ColYear)
	if err != nil {
		return rec, err
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return rec, fmt.Errorf("invalid year %q", raw)
	}
	rec.Year = year

	// A bad score only marks that column missing for the year.
	for _, c := range scoreColumns {
		raw, err := field(c.name)
		if err != nil {
			return rec, err
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			rec.Missing = append(rec.Missing, c.name)
			continue
		}
		c.set(&rec, v)
	}
	return rec, nil
}

// hasValue reports whether r carries a usable value for column name.
func hasValue(r storage.SATRecord, name string) bool {
	return !slices.Contains(r.Missing, name)
}

// LoadFromStore loads rows from the store within the inclusive year range.
func (dl *DataLoader) LoadFromStore(store *storage.Store, from, to int) error {
	records, err := store.GetRecordsInRange(from, to)
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}
	dl.records = append(dl.records, records...)
	dl.sortByYear()

	log.Info().
		Int("from", from).
		Int("to", to).
		Int("rows", len(records)).
		Msg("Data loaded from BoltDB")
	return nil
}

func (dl *DataLoader) sortByYear() {
	sort.SliceStable(dl.records, func(i, j int) bool {
		return dl.records[i].Year < dl.records[j].Year
	})
}

// Records returns the loaded rows in year order.
func (dl *DataLoader) Records() []storage.SATRecord {
	return dl.records
}

// Skipped returns how many CSV rows were rejected.
func (dl *DataLoader) Skipped() int {
	return dl.skipped
}

// MissingCells returns how many score cells had no usable value.
func (dl *DataLoader) MissingCells() int {
	return dl.missing
}

// FilterYears returns the rows with from <= year <= to. A zero bound is open.
func FilterYears(records []storage.SATRecord, from, to int) []storage.SATRecord {
	out := make([]storage.SATRecord, 0, len(records))
	for _, r := range records {
		if from > 0 && r.Year < from {
			continue
		}
		if to > 0 && r.Year > to {
			continue
		}
		out = append(out, r)
	}
	return out
}
