package explain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absentia-hr/explainer/internal/regression"
)

func TestSurrogate_RecoversLinearWeights(t *testing.T) {
	m := testModel()
	m.Intercept = 1.5
	eng, err := NewEngine(m, [][]float64{{20, 5}, {40, 15}, {33, 8}})
	require.NoError(t, err)

	res, err := eng.Surrogate([]float64{30, 10}, SurrogateOptions{Samples: 100, Seed: 7})
	require.NoError(t, err)
	require.Len(t, res.TopFeatures, 2)

	weights := map[string]float64{}
	for _, fw := range res.TopFeatures {
		weights[fw.Feature] = fw.Weight
	}
	assert.InDelta(t, 2.0, weights["Age"], 1e-6)
	assert.InDelta(t, -1.0, weights["Distance"], 1e-6)
	assert.InDelta(t, 1.5, res.Intercept, 1e-6)
	assert.InDelta(t, 1.0, res.Fidelity, 1e-9)
}

func TestSurrogate_ConstantFeatureGetsZeroWeight(t *testing.T) {
	m := testModel()
	eng, err := NewEngine(m, [][]float64{{20, 7}, {40, 7}, {33, 7}})
	require.NoError(t, err)

	res, err := eng.Surrogate([]float64{30, 7}, SurrogateOptions{Samples: 64, Seed: 3})
	require.NoError(t, err)
	require.Len(t, res.TopFeatures, 2)

	weights := map[string]float64{}
	for _, fw := range res.TopFeatures {
		weights[fw.Feature] = fw.Weight
	}
	assert.InDelta(t, 2.0, weights["Age"], 1e-6)
	assert.Equal(t, 0.0, weights["Distance"])
}

func TestSurrogate_DegenerateNeighborhood(t *testing.T) {
	eng, err := NewEngine(testModel(), [][]float64{{30, 10}, {30, 10}, {30, 10}})
	require.NoError(t, err)

	_, err = eng.Surrogate([]float64{30, 10}, SurrogateOptions{Seed: 1})
	require.Error(t, err)
	var degenerate *DegenerateNeighborhoodError
	require.True(t, errors.As(err, &degenerate))
}

func TestSurrogate_TopNLimitsFeatures(t *testing.T) {
	eng, err := NewEngine(testModel(), [][]float64{{20, 5}, {40, 15}, {33, 8}})
	require.NoError(t, err)

	res, err := eng.Surrogate([]float64{30, 10}, SurrogateOptions{Samples: 100, TopN: 1, Seed: 7})
	require.NoError(t, err)
	require.Len(t, res.TopFeatures, 1)
	assert.Equal(t, "Age", res.TopFeatures[0].Feature)
	assert.InDelta(t, 2.0, res.TopFeatures[0].Weight, 0.5)
	assert.Greater(t, res.Fidelity, 0.5)
	assert.LessOrEqual(t, res.Fidelity, 1.0)
}

func TestSurrogate_Deterministic(t *testing.T) {
	eng, err := NewEngine(testModel(), [][]float64{{20, 5}, {40, 15}, {33, 8}})
	require.NoError(t, err)

	first, err := eng.Surrogate([]float64{30, 10}, SurrogateOptions{Samples: 50, Seed: 11})
	require.NoError(t, err)
	second, err := eng.Surrogate([]float64{30, 10}, SurrogateOptions{Samples: 50, Seed: 11})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSurrogate_DimensionMismatch(t *testing.T) {
	eng := testEngine(t)
	_, err := eng.Surrogate([]float64{1}, SurrogateOptions{})
	require.Error(t, err)
	var mismatch *regression.DimensionMismatchError
	require.True(t, errors.As(err, &mismatch))
}
