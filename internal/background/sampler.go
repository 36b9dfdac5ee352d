// Package background draws the synthetic reference sample used as the
// baseline population for attribution and perturbation.
package background

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/absentia-hr/explainer/internal/schema"
)

// MinSampleSize is the smallest sample that can support baseline and spread
// estimates.
const MinSampleSize = 2

// DefaultSampleSize is the reference population size used for the global
// importance aggregate.
const DefaultSampleSize = 100

// InsufficientDataError reports a requested sample too small to be useful.
type InsufficientDataError struct {
	Size int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("background sample of %d is below the minimum of %d", e.Size, MinSampleSize)
}

// Sampler draws synthetic records whose per-feature marginals follow the
// schema's declared ranges and category frequencies.
type Sampler struct {
	schema *schema.Schema
	src    rand.Source
}

// NewSampler creates a sampler over a validated schema. The seed fixes the
// random stream, so equal seeds reproduce equal samples.
func NewSampler(s *schema.Schema, seed uint64) *Sampler {
	return &Sampler{schema: s, src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}
}

// Sample returns size encoded vectors drawn independently per feature.
// Numeric fields draw uniformly from their declared range; categorical
// fields draw proportionally to their declared frequencies, or uniformly
// when no frequencies are declared.
func (s *Sampler) Sample(size int) ([][]float64, error) {
	if size < MinSampleSize {
		return nil, &InsufficientDataError{Size: size}
	}

	fields := s.schema.Fields
	cats := make([]distuv.Categorical, len(fields))
	for i, f := range fields {
		if f.Kind != schema.Categorical {
			continue
		}
		weights := f.Frequencies
		if len(weights) == 0 {
			weights = make([]float64, len(f.Categories))
			for j := range weights {
				weights[j] = 1
			}
		} else if len(weights) != len(f.Categories) {
			return nil, fmt.Errorf("field %q has %d frequencies for %d categories", f.Name, len(weights), len(f.Categories))
		}
		cats[i] = distuv.NewCategorical(weights, s.src)
	}

	rows := make([][]float64, 0, size)
	for n := 0; n < size; n++ {
		rec := make(schema.Record, len(fields))
		for i, f := range fields {
			switch f.Kind {
			case schema.Numeric:
				rec[f.Name] = distuv.Uniform{Min: f.Min, Max: f.Max, Src: s.src}.Rand()
			case schema.Categorical:
				rec[f.Name] = f.Categories[int(cats[i].Rand())]
			}
		}
		vec, err := s.schema.Encode(rec)
		if err != nil {
			return nil, fmt.Errorf("error encoding sampled record: %v", err)
		}
		rows = append(rows, vec)
	}
	return rows, nil
}
