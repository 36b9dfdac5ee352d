package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() *Schema {
	return &Schema{Fields: []Field{
		{Name: "Age", Kind: Numeric, Min: 25, Max: 60},
		{Name: "Education", Kind: Categorical, Categories: []string{"1", "2", "3"}},
		{Name: "Service time", Kind: Numeric, Min: 1, Max: 20},
		{Name: "Social drinker", Kind: Categorical, Categories: []string{"0", "1"}},
	}}
}

func TestSchema_Columns(t *testing.T) {
	s := testSchema()

	require.NoError(t, s.Validate())
	assert.Equal(t, 7, s.Width())
	assert.Equal(t, []string{
		"Age", "Service time",
		"Education=1", "Education=2", "Education=3",
		"Social drinker=0", "Social drinker=1",
	}, s.Columns())
	assert.Equal(t, []string{"Age", "Service time"}, s.NumericColumns())
	assert.Equal(t, 1, s.ColumnIndex("Service time"))
	assert.Equal(t, 4, s.ColumnIndex("Education=3"))
	assert.Equal(t, -1, s.ColumnIndex("Education"))
}

func TestSchema_EncodeDecode(t *testing.T) {
	s := testSchema()

	vec, err := s.Encode(Record{
		"Age":            38.5,
		"Education":      2,
		"Service time":   7,
		"Social drinker": "1",
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{38.5, 7, 0, 1, 0, 0, 1}, vec)

	rec, err := s.Decode(vec)
	require.NoError(t, err)
	assert.Equal(t, 38.5, rec["Age"])
	assert.Equal(t, 7.0, rec["Service time"])
	assert.Equal(t, "2", rec["Education"])
	assert.Equal(t, "1", rec["Social drinker"])
}

func TestSchema_EncodeCanonicalizesCategories(t *testing.T) {
	s := testSchema()

	// JSON unmarshals numbers to float64; 2.0 must match category "2".
	vec, err := s.Encode(Record{
		"Age":            30,
		"Education":      float64(2),
		"Service time":   3,
		"Social drinker": 0,
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, vec[3])
}

func TestSchema_EncodeUnknownCategory(t *testing.T) {
	s := testSchema()

	vec, err := s.Encode(Record{
		"Age":            30,
		"Education":      "9",
		"Service time":   3,
		"Social drinker": 0,
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, vec[2:5])
}

func TestSchema_EncodeMissingField(t *testing.T) {
	s := testSchema()

	_, err := s.Encode(Record{"Age": 30, "Education": 1, "Social drinker": 0})
	require.Error(t, err)

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "Service time", schemaErr.Field)
}

func TestSchema_EncodeBadType(t *testing.T) {
	s := testSchema()

	_, err := s.Encode(Record{
		"Age":            "forty",
		"Education":      1,
		"Service time":   3,
		"Social drinker": 0,
	})
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "Age", schemaErr.Field)

	_, err = s.Encode(Record{
		"Age":            30,
		"Education":      []string{"1"},
		"Service time":   3,
		"Social drinker": 0,
	})
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "Education", schemaErr.Field)
}

func TestSchema_DecodeLengthMismatch(t *testing.T) {
	s := testSchema()

	_, err := s.Decode([]float64{1, 2, 3})
	assert.Error(t, err)
}

func TestSchema_Validate(t *testing.T) {
	bad := &Schema{Fields: []Field{
		{Name: "Age", Kind: Numeric},
		{Name: "Age", Kind: Numeric},
	}}
	assert.Error(t, bad.Validate())

	bad = &Schema{Fields: []Field{{Name: "Pet", Kind: Categorical}}}
	assert.Error(t, bad.Validate())

	bad = &Schema{Fields: []Field{{Name: "Age", Kind: Numeric, Min: 10, Max: 5}}}
	assert.Error(t, bad.Validate())

	bad = &Schema{Fields: []Field{
		{Name: "Pet", Kind: Categorical, Categories: []string{"0", "1"}, Frequencies: []float64{0.5}},
	}}
	assert.Error(t, bad.Validate())

	bad = &Schema{Fields: []Field{
		{Name: "Pet", Kind: Categorical, Categories: []string{"0", "1"}, Frequencies: []float64{0, 0}},
	}}
	assert.Error(t, bad.Validate())

	assert.NoError(t, testSchema().Validate())
}
