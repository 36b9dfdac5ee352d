package explain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absentia-hr/explainer/internal/regression"
	"github.com/absentia-hr/explainer/internal/schema"
)

// singleFeatureEngine has one numeric feature with weight 2 and a background
// standard deviation of exactly 1, so a step of k sigma moves the
// prediction by 2k.
func singleFeatureEngine(t *testing.T) *Engine {
	t.Helper()
	m := &regression.Model{
		Version:   "1.0.0-test",
		Intercept: 0,
		Weights:   []float64{2},
		Schema: &schema.Schema{Fields: []schema.Field{
			{Name: "Age", Kind: schema.Numeric, Min: 0, Max: 10},
		}},
	}
	eng, err := NewEngine(m, [][]float64{{1.5}, {3.5}})
	require.NoError(t, err)
	return eng
}

func TestCounterfactuals(t *testing.T) {
	eng := singleFeatureEngine(t)

	res, err := eng.Counterfactuals([]float64{2.5}, 1.0, nil)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, res.OriginalPrediction, 1e-9)
	assert.InDelta(t, 1.0, res.TargetPrediction, 1e-9)
	require.Len(t, res.Candidates, 3)

	first := res.Candidates[0]
	assert.Equal(t, "Age", first.Feature)
	assert.InDelta(t, 2.5, first.OriginalValue, 1e-9)
	assert.InDelta(t, 0.5, first.SuggestedValue, 1e-9)
	assert.InDelta(t, -2.0, first.Change, 1e-9)
	assert.InDelta(t, 1.0, first.NewPrediction, 1e-9)
	assert.InDelta(t, 100.0, first.ReductionPercent, 1e-9)
	assert.InDelta(t, 2.0, first.Distance, 1e-9)

	assert.InDelta(t, 50.0, res.Candidates[1].ReductionPercent, 1e-9)
	assert.InDelta(t, 1.0, res.Candidates[1].Distance, 1e-9)
	assert.InDelta(t, 25.0, res.Candidates[2].ReductionPercent, 1e-9)
	assert.InDelta(t, 0.5, res.Candidates[2].Distance, 1e-9)
}

func TestCounterfactuals_CappedTiesBreakByDistance(t *testing.T) {
	eng := singleFeatureEngine(t)

	// every downward step overshoots a nearby target, so all three cap at
	// 100 and the smallest change must win
	res, err := eng.Counterfactuals([]float64{2.5}, 4.5, nil)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 3)
	for _, c := range res.Candidates {
		assert.InDelta(t, 100.0, c.ReductionPercent, 1e-9)
	}
	assert.InDelta(t, 0.5, res.Candidates[0].Distance, 1e-9)
	assert.InDelta(t, 1.0, res.Candidates[1].Distance, 1e-9)
	assert.InDelta(t, 2.0, res.Candidates[2].Distance, 1e-9)
}

func TestCounterfactuals_NoViableCandidates(t *testing.T) {
	m := &regression.Model{
		Version:   "1.0.0-test",
		Intercept: 0,
		Weights:   []float64{2},
		Schema: &schema.Schema{Fields: []schema.Field{
			{Name: "Age", Kind: schema.Numeric, Min: 0, Max: 10},
		}},
	}
	eng, err := NewEngine(m, [][]float64{{2.5}, {2.5}})
	require.NoError(t, err)

	res, err := eng.Counterfactuals([]float64{2.5}, 1.0, nil)
	require.NoError(t, err)
	assert.NotNil(t, res.Candidates)
	assert.Empty(t, res.Candidates)
}

func TestCounterfactuals_TargetEqualsPrediction(t *testing.T) {
	eng := singleFeatureEngine(t)

	_, err := eng.Counterfactuals([]float64{2.5}, 5.0, nil)
	require.Error(t, err)
	var invalid *InvalidTargetError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, 5.0, invalid.Target)
}

func TestCounterfactuals_CapsAtFiveCandidates(t *testing.T) {
	m := &regression.Model{
		Version:   "1.0.0-test",
		Intercept: 0,
		Weights:   []float64{2, 1},
		Schema: &schema.Schema{Fields: []schema.Field{
			{Name: "Age", Kind: schema.Numeric, Min: 0, Max: 10},
			{Name: "Distance", Kind: schema.Numeric, Min: 0, Max: 10},
		}},
	}
	eng, err := NewEngine(m, [][]float64{{1, 1}, {3, 3}})
	require.NoError(t, err)

	res, err := eng.Counterfactuals([]float64{2, 2}, 0.5, nil)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 5)

	// equal reductions from different features resolve toward the
	// smaller step
	order := make([]string, 0, 5)
	for _, c := range res.Candidates {
		order = append(order, c.Feature)
	}
	assert.Equal(t, []string{"Age", "Age", "Distance", "Age", "Distance"}, order)
}

func TestCounterfactuals_DefaultsToNumericFeatures(t *testing.T) {
	m := &regression.Model{
		Version:   "1.0.0-test",
		Intercept: 0,
		Weights:   []float64{2, 1, -1},
		Schema: &schema.Schema{Fields: []schema.Field{
			{Name: "Age", Kind: schema.Numeric, Min: 0, Max: 10},
			{Name: "Education", Kind: schema.Categorical, Categories: []string{"1", "2"}},
		}},
	}
	eng, err := NewEngine(m, [][]float64{{1, 1, 0}, {3, 0, 1}})
	require.NoError(t, err)

	res, err := eng.Counterfactuals([]float64{2, 1, 0}, 1.0, nil)
	require.NoError(t, err)
	require.NotEmpty(t, res.Candidates)
	for _, c := range res.Candidates {
		assert.Equal(t, "Age", c.Feature)
	}
}

func TestCounterfactuals_RejectsNonNumericActionable(t *testing.T) {
	m := &regression.Model{
		Version:   "1.0.0-test",
		Intercept: 0,
		Weights:   []float64{2, 1, -1},
		Schema: &schema.Schema{Fields: []schema.Field{
			{Name: "Age", Kind: schema.Numeric, Min: 0, Max: 10},
			{Name: "Education", Kind: schema.Categorical, Categories: []string{"1", "2"}},
		}},
	}
	eng, err := NewEngine(m, [][]float64{{1, 1, 0}, {3, 0, 1}})
	require.NoError(t, err)

	_, err = eng.Counterfactuals([]float64{2, 1, 0}, 1.0, []string{"Education"})
	require.Error(t, err)
	var schemaErr *schema.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "Education", schemaErr.Field)
}

func TestCounterfactuals_ActionableSubset(t *testing.T) {
	m := &regression.Model{
		Version:   "1.0.0-test",
		Intercept: 0,
		Weights:   []float64{2, 1},
		Schema: &schema.Schema{Fields: []schema.Field{
			{Name: "Age", Kind: schema.Numeric, Min: 0, Max: 10},
			{Name: "Distance", Kind: schema.Numeric, Min: 0, Max: 10},
		}},
	}
	eng, err := NewEngine(m, [][]float64{{1, 1}, {3, 3}})
	require.NoError(t, err)

	res, err := eng.Counterfactuals([]float64{2, 2}, 1.0, []string{"Distance"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Candidates)
	for _, c := range res.Candidates {
		assert.Equal(t, "Distance", c.Feature)
	}
}

func TestCounterfactuals_DimensionMismatch(t *testing.T) {
	eng := singleFeatureEngine(t)
	_, err := eng.Counterfactuals([]float64{1, 2}, 1.0, nil)
	require.Error(t, err)
	var mismatch *regression.DimensionMismatchError
	require.True(t, errors.As(err, &mismatch))
}
