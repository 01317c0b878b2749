package features

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Input kinds used only by the form. Text inputs never reach a model.
const (
	InputNumber = "number"
	InputFlag   = "flag"
	InputText   = "text"
)

// Form field names shared by the dashboard and the shipped model schemas.
const (
	CycleNumber        = "Cycle Number"
	CycleLength        = "Cycle Length"
	OvulationDay       = "Ovulation Day"
	LutealPhaseLength  = "Luteal Phase Length"
	AverageCycleLength = "Average Cycle Length"
	HighFertilityStart = "High Fertility Start"
	PeakCycle          = "Peak Cycle"
	BodyMassIndex      = "Body Mass Index"
	ReproductiveStatus = "Reproductive Status"
	Age                = "Age"
	Weight             = "Weight"
	Symptoms           = "Symptoms"
)

// FormField describes one collected input. Min and Max bound numbers; a zero
// Max means unbounded above.
type FormField struct {
	Name     string
	Input    string
	Min      float64
	Max      float64
	Step     float64
	Default  string
	Optional bool
}

// Catalog is the fixed set of fields the dashboard collects.
var Catalog = []FormField{
	{Name: CycleNumber, Input: InputNumber, Min: 1, Step: 1, Default: "10"},
	{Name: CycleLength, Input: InputNumber, Min: 1, Step: 1, Default: "28"},
	{Name: AverageCycleLength, Input: InputNumber, Min: 1, Step: 1, Default: "28"},
	{Name: OvulationDay, Input: InputNumber, Min: 1, Max: 31, Step: 1, Default: "14"},
	{Name: LutealPhaseLength, Input: InputNumber, Min: 1, Max: 18, Step: 1, Default: "12"},
	{Name: HighFertilityStart, Input: InputNumber, Min: 1, Max: 31, Step: 1, Default: "12"},
	{Name: PeakCycle, Input: InputFlag, Default: "1"},
	{Name: BodyMassIndex, Input: InputNumber, Min: 10, Max: 50, Step: 0.1, Default: "22.0"},
	{Name: ReproductiveStatus, Input: InputFlag, Default: "1"},
	{Name: Age, Input: InputNumber, Min: 10, Max: 70, Step: 1, Optional: true},
	{Name: Weight, Input: InputNumber, Min: 20, Max: 300, Step: 0.1, Optional: true},
	{Name: Symptoms, Input: InputText, Optional: true},
}

// DashboardFeatures is the column set both shipped random-forest models were
// trained on, in training order.
var DashboardFeatures = []string{
	CycleLength,
	AverageCycleLength,
	OvulationDay,
	LutealPhaseLength,
	HighFertilityStart,
	PeakCycle,
	BodyMassIndex,
	ReproductiveStatus,
}

// DefaultSchema is the contract used when a model config names no fields.
func DefaultSchema() Schema {
	s := NewSchema(DashboardFeatures...)
	for i := range s.Fields {
		if s.Fields[i].Name == PeakCycle || s.Fields[i].Name == ReproductiveStatus {
			s.Fields[i].Kind = KindFlag
		}
	}
	return s
}

// RuleSchema is the single-column contract of the ovulation-window rule.
func RuleSchema() Schema {
	return NewSchema(OvulationDay)
}

// FieldError is a form value rejected before assembly.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is lets form rejections be handled alongside assembly errors.
func (e *FieldError) Is(target error) bool { return target == ErrSchema }

// ParseForm reads catalog fields from submitted form values. Empty optional
// fields are left out of the observation; empty required fields are rejected.
func ParseForm(values url.Values) (Observation, error) {
	obs := make(Observation, len(Catalog))
	for _, f := range Catalog {
		raw := strings.TrimSpace(values.Get(f.Name))
		if raw == "" {
			if f.Optional {
				continue
			}
			return nil, &FieldError{Field: f.Name, Reason: "value is required"}
		}

		switch f.Input {
		case InputText:
			obs[f.Name] = raw
		case InputFlag:
			b, err := parseFlag(raw)
			if err != nil {
				return nil, &FieldError{Field: f.Name, Reason: err.Error()}
			}
			obs[f.Name] = b
		default:
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &FieldError{Field: f.Name, Reason: fmt.Sprintf("%q is not a number", raw)}
			}
			if err := f.CheckRange(v); err != nil {
				return nil, err
			}
			obs[f.Name] = v
		}
	}
	return obs, nil
}

// CheckRange validates a numeric value against the field bounds.
func (f FormField) CheckRange(v float64) error {
	if v < f.Min {
		return &FieldError{Field: f.Name, Reason: fmt.Sprintf("must be at least %g, got %g", f.Min, v)}
	}
	if f.Max != 0 && v > f.Max {
		return &FieldError{Field: f.Name, Reason: fmt.Sprintf("must be between %g and %g, got %g", f.Min, f.Max, v)}
	}
	return nil
}

// Lookup returns the catalog entry for name.
func Lookup(name string) (FormField, bool) {
	for _, f := range Catalog {
		if f.Name == name {
			return f, true
		}
	}
	return FormField{}, false
}

func parseFlag(raw string) (int, error) {
	switch strings.ToLower(raw) {
	case "1", "yes", "true", "on":
		return 1, nil
	case "0", "no", "false", "off":
		return 0, nil
	}
	return 0, fmt.Errorf("%q is not 0 or 1", raw)
}
