// Package features turns raw cycle observations into the ordered numeric rows
// a trained classifier expects. A Schema is the explicit contract between the
// form and one model: which columns, in which order, fed from which form key.
package features

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrSchema is matched by every assembly and contract error.
var ErrSchema = errors.New("feature schema violation")

// Kind is the value class a field accepts.
type Kind string

const (
	KindNumber Kind = "number"
	KindFlag   Kind = "flag"
)

// Observation is one set of user-entered metrics keyed by field name.
type Observation map[string]any

// Field is one named model input. From names the observation key that feeds
// it; empty means the key equals Name.
type Field struct {
	Name string `yaml:"name" json:"name"`
	Kind Kind   `yaml:"kind" json:"kind"`
	From string `yaml:"from,omitempty" json:"from,omitempty"`
}

// Source returns the observation key read for this field.
func (f Field) Source() string {
	if f.From != "" {
		return f.From
	}
	return f.Name
}

// Schema is an ordered list of fields.
type Schema struct {
	Fields []Field `yaml:"fields" json:"fields"`
}

// NewSchema builds a schema of number fields with the given names.
func NewSchema(names ...string) Schema {
	fields := make([]Field, len(names))
	for i, n := range names {
		fields[i] = Field{Name: n, Kind: KindNumber}
	}
	return Schema{Fields: fields}
}

// Names returns the field names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Row is an assembled input aligned 1:1 with its schema.
type Row struct {
	Names  []string
	Values []float64
}

// Key renders the row as a stable string for caching.
func (r Row) Key() string {
	var b strings.Builder
	for i, v := range r.Values {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return b.String()
}

// MissingFeatureError reports a schema field with no value in the observation.
type MissingFeatureError struct {
	Field  string
	Source string
}

func (e *MissingFeatureError) Error() string {
	if e.Source != e.Field {
		return fmt.Sprintf("missing feature %q (read from %q)", e.Field, e.Source)
	}
	return fmt.Sprintf("missing feature %q", e.Field)
}

func (e *MissingFeatureError) Is(target error) bool { return target == ErrSchema }

// TypeMismatchError reports a value that cannot be used for its field's kind.
type TypeMismatchError struct {
	Field string
	Want  Kind
	Got   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("feature %q must be a %s, got %s", e.Field, e.Want, e.Got)
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrSchema }

// SchemaMismatchError reports disagreement between a schema and the columns a
// model artifact was trained on.
type SchemaMismatchError struct {
	Missing    []string
	Unexpected []string
	Misordered bool
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Unexpected, ", "))
	}
	if e.Misordered {
		parts = append(parts, "columns out of order")
	}
	return "schema does not match model: " + strings.Join(parts, "; ")
}

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchema }

// FieldName extracts the offending field from an assembly or form error, if any.
func FieldName(err error) string {
	var missing *MissingFeatureError
	if errors.As(err, &missing) {
		return missing.Field
	}
	var mismatch *TypeMismatchError
	if errors.As(err, &mismatch) {
		return mismatch.Field
	}
	var rejected *FieldError
	if errors.As(err, &rejected) {
		return rejected.Field
	}
	return ""
}

// Validate checks the schema itself is well formed.
func (s Schema) Validate() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("%w: schema has no fields", ErrSchema)
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("%w: field with empty name", ErrSchema)
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: duplicate field %q", ErrSchema, f.Name)
		}
		seen[f.Name] = true
		switch f.Kind {
		case KindNumber, KindFlag:
		default:
			return fmt.Errorf("%w: field %q has unknown kind %q", ErrSchema, f.Name, f.Kind)
		}
	}
	return nil
}

// CheckAgainst compares the schema with the columns declared by a model
// artifact. An empty declaration cannot be checked and passes.
func (s Schema) CheckAgainst(declared []string) error {
	if len(declared) == 0 {
		return nil
	}

	names := s.Names()
	inSchema := make(map[string]bool, len(names))
	for _, n := range names {
		inSchema[n] = true
	}
	inModel := make(map[string]bool, len(declared))
	for _, n := range declared {
		inModel[n] = true
	}

	mismatch := &SchemaMismatchError{}
	for _, n := range declared {
		if !inSchema[n] {
			mismatch.Missing = append(mismatch.Missing, n)
		}
	}
	for _, n := range names {
		if !inModel[n] {
			mismatch.Unexpected = append(mismatch.Unexpected, n)
		}
	}
	if len(mismatch.Missing) == 0 && len(mismatch.Unexpected) == 0 {
		for i := range names {
			if names[i] != declared[i] {
				mismatch.Misordered = true
				break
			}
		}
	}

	if len(mismatch.Missing) > 0 || len(mismatch.Unexpected) > 0 || mismatch.Misordered {
		return mismatch
	}
	return nil
}

// Assemble builds the ordered row for obs. It never calls a model, so callers
// can rely on schema errors being reported before any inference.
func (s Schema) Assemble(obs Observation) (Row, error) {
	row := Row{
		Names:  make([]string, len(s.Fields)),
		Values: make([]float64, len(s.Fields)),
	}
	for i, f := range s.Fields {
		raw, ok := obs[f.Source()]
		if !ok || raw == nil {
			return Row{}, &MissingFeatureError{Field: f.Name, Source: f.Source()}
		}
		v, err := convert(f, raw)
		if err != nil {
			return Row{}, err
		}
		row.Names[i] = f.Name
		row.Values[i] = v
	}
	return row, nil
}

func convert(f Field, raw any) (float64, error) {
	mismatch := func(got string) error {
		return &TypeMismatchError{Field: f.Name, Want: f.Kind, Got: got}
	}

	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int32:
		v = float64(x)
	case int64:
		v = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, mismatch(fmt.Sprintf("%q", x.String()))
		}
		v = parsed
	case bool:
		if f.Kind != KindFlag {
			return 0, mismatch("bool")
		}
		if x {
			v = 1
		}
	case string:
		return 0, mismatch(fmt.Sprintf("string %q", x))
	default:
		return 0, mismatch(fmt.Sprintf("%T", raw))
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, mismatch("non-finite number")
	}
	if f.Kind == KindFlag && v != 0 && v != 1 {
		return 0, mismatch(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return v, nil
}
