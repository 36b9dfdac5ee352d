// Package explain computes feature attributions, local surrogate models and
// counterfactual suggestions for a fitted linear regression.
package explain

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/absentia-hr/explainer/internal/background"
	"github.com/absentia-hr/explainer/internal/regression"
)

// Engine binds a fitted model to one background sample and serves every
// explanation operation over that pair. An engine is immutable after
// construction and safe for concurrent use.
type Engine struct {
	model    *regression.Model
	columns  []string
	sample   [][]float64
	baseline []float64
	sigma    []float64
}

// NewEngine derives the baseline (per-column mean) and spread (per-column
// population standard deviation) from the background sample.
func NewEngine(m *regression.Model, sample [][]float64) (*Engine, error) {
	if len(sample) < background.MinSampleSize {
		return nil, &background.InsufficientDataError{Size: len(sample)}
	}
	dim := m.Dim()
	for _, row := range sample {
		if len(row) != dim {
			return nil, &regression.DimensionMismatchError{Want: dim, Got: len(row)}
		}
	}

	n := len(sample)
	data := mat.NewDense(n, dim, nil)
	for i, row := range sample {
		data.SetRow(i, row)
	}

	baseline := make([]float64, dim)
	sigma := make([]float64, dim)
	col := make([]float64, n)
	for j := 0; j < dim; j++ {
		mat.Col(col, j, data)
		baseline[j] = stat.Mean(col, nil)
		sigma[j] = stat.PopStdDev(col, nil)
	}

	return &Engine{
		model:    m,
		columns:  m.Schema.Columns(),
		sample:   sample,
		baseline: baseline,
		sigma:    sigma,
	}, nil
}

// Version returns the model version the engine serves.
func (e *Engine) Version() string {
	return e.model.Version
}

// Model returns the fitted model.
func (e *Engine) Model() *regression.Model {
	return e.model
}

// Predict evaluates the model on one encoded vector.
func (e *Engine) Predict(x []float64) (float64, error) {
	return e.model.Predict(x)
}

// Baseline returns the background mean vector.
func (e *Engine) Baseline() []float64 {
	return e.baseline
}

// Sigma returns the background per-column standard deviations.
func (e *Engine) Sigma() []float64 {
	return e.sigma
}

// SampleSize returns the background sample size.
func (e *Engine) SampleSize() int {
	return len(e.sample)
}
