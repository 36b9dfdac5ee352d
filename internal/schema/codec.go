// Package schema defines the versioned feature schema and the codec between
// raw named-field records and the encoded vectors the model consumes.
package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FieldKind discriminates numeric and categorical schema fields.
type FieldKind string

const (
	Numeric     FieldKind = "numeric"
	Categorical FieldKind = "categorical"
)

// Record is a raw named-field input as submitted by a caller. Values are
// numbers for numeric fields and scalars (string or number) for categorical
// fields.
type Record map[string]interface{}

// Field describes one raw input feature. Numeric fields carry the observed
// value range; categorical fields carry the known category set and optional
// sampling frequencies.
type Field struct {
	Name        string    `json:"name"`
	Kind        FieldKind `json:"kind"`
	Min         float64   `json:"min,omitempty"`
	Max         float64   `json:"max,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
	Frequencies []float64 `json:"frequencies,omitempty"`
}

// Schema is the ordered feature layout fixed for one model version. Encoded
// vectors list all numeric fields in declared order followed by the one-hot
// indicator groups of the categorical fields in declared order.
type Schema struct {
	Fields []Field `json:"fields"`
}

// SchemaError reports a record field that cannot be encoded.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error on field %q: %s", e.Field, e.Reason)
}

// Validate checks the schema for structural problems.
func (s *Schema) Validate() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema has no fields")
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema field with empty name")
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate schema field %q", f.Name)
		}
		seen[f.Name] = true

		switch f.Kind {
		case Numeric:
			if f.Max < f.Min {
				return fmt.Errorf("field %q has inverted range [%v, %v]", f.Name, f.Min, f.Max)
			}
		case Categorical:
			if len(f.Categories) == 0 {
				return fmt.Errorf("categorical field %q has no categories", f.Name)
			}
			cats := make(map[string]bool, len(f.Categories))
			for _, c := range f.Categories {
				if cats[c] {
					return fmt.Errorf("field %q has duplicate category %q", f.Name, c)
				}
				cats[c] = true
			}
			if len(f.Frequencies) > 0 {
				if len(f.Frequencies) != len(f.Categories) {
					return fmt.Errorf("field %q has %d frequencies for %d categories", f.Name, len(f.Frequencies), len(f.Categories))
				}
				sum := 0.0
				for _, w := range f.Frequencies {
					if w < 0 {
						return fmt.Errorf("field %q has a negative frequency", f.Name)
					}
					sum += w
				}
				if sum <= 0 {
					return fmt.Errorf("field %q frequencies sum to zero", f.Name)
				}
			}
		default:
			return fmt.Errorf("field %q has unknown kind %q", f.Name, f.Kind)
		}
	}
	return nil
}

// Width returns the length of encoded vectors.
func (s *Schema) Width() int {
	w := 0
	for _, f := range s.Fields {
		if f.Kind == Categorical {
			w += len(f.Categories)
		} else {
			w++
		}
	}
	return w
}

// Columns returns the encoded column names in vector order. Indicator
// columns are named "field=category".
func (s *Schema) Columns() []string {
	cols := make([]string, 0, s.Width())
	for _, f := range s.Fields {
		if f.Kind == Numeric {
			cols = append(cols, f.Name)
		}
	}
	for _, f := range s.Fields {
		if f.Kind == Categorical {
			for _, c := range f.Categories {
				cols = append(cols, f.Name+"="+c)
			}
		}
	}
	return cols
}

// NumericColumns returns the names of the numeric fields in column order.
func (s *Schema) NumericColumns() []string {
	cols := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.Kind == Numeric {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

// ColumnIndex returns the vector position of the named column, or -1.
func (s *Schema) ColumnIndex(name string) int {
	for i, c := range s.Columns() {
		if c == name {
			return i
		}
	}
	return -1
}

// Encode maps a record to an encoded vector. Unknown categories encode as an
// all-zero indicator group; missing fields and type-incompatible values fail
// with a SchemaError naming the field.
func (s *Schema) Encode(rec Record) ([]float64, error) {
	vec := make([]float64, s.Width())
	pos := 0
	for _, f := range s.Fields {
		if f.Kind != Numeric {
			continue
		}
		raw, ok := rec[f.Name]
		if !ok {
			return nil, &SchemaError{Field: f.Name, Reason: "missing required field"}
		}
		v, ok := numericValue(raw)
		if !ok {
			return nil, &SchemaError{Field: f.Name, Reason: fmt.Sprintf("expected a numeric value, got %T", raw)}
		}
		vec[pos] = v
		pos++
	}
	for _, f := range s.Fields {
		if f.Kind != Categorical {
			continue
		}
		raw, ok := rec[f.Name]
		if !ok {
			return nil, &SchemaError{Field: f.Name, Reason: "missing required field"}
		}
		cat, ok := categoryValue(raw)
		if !ok {
			return nil, &SchemaError{Field: f.Name, Reason: fmt.Sprintf("expected a categorical value, got %T", raw)}
		}
		for i, c := range f.Categories {
			if c == cat {
				vec[pos+i] = 1
				break
			}
		}
		pos += len(f.Categories)
	}
	return vec, nil
}

// Decode maps an encoded vector back to a record. Numeric fields round-trip
// exactly; an indicator group decodes to its dominant category and is
// omitted when no indicator is set.
func (s *Schema) Decode(vec []float64) (Record, error) {
	if len(vec) != s.Width() {
		return nil, fmt.Errorf("vector length %d does not match schema width %d", len(vec), s.Width())
	}
	rec := make(Record, len(s.Fields))
	pos := 0
	for _, f := range s.Fields {
		if f.Kind == Numeric {
			rec[f.Name] = vec[pos]
			pos++
		}
	}
	for _, f := range s.Fields {
		if f.Kind != Categorical {
			continue
		}
		best := -1
		bestVal := 0.0
		for i := range f.Categories {
			if v := vec[pos+i]; v > bestVal {
				best, bestVal = i, v
			}
		}
		if best >= 0 {
			rec[f.Name] = f.Categories[best]
		}
		pos += len(f.Categories)
	}
	return rec, nil
}

func numericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// categoryValue canonicalizes a raw categorical value to the string form
// used in the schema's category set. JSON numbers map to their shortest
// decimal form, so 3 and 3.0 both match category "3".
func categoryValue(v interface{}) (string, bool) {
	switch c := v.(type) {
	case string:
		return c, true
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64), true
	case int:
		return strconv.Itoa(c), true
	case int64:
		return strconv.FormatInt(c, 10), true
	case json.Number:
		if f, err := c.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		return c.String(), true
	}
	return "", false
}
