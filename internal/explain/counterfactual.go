package explain

import (
	"math"
	"sort"

	"github.com/absentia-hr/explainer/internal/regression"
	"github.com/absentia-hr/explainer/internal/schema"
)

const maxCandidates = 5

// reductionTolerance is the margin within which two reduction percentages
// count as tied, so the closer candidate wins.
const reductionTolerance = 1e-9

// deltaMultipliers are the per-feature step sizes tried during the search,
// expressed in units of the feature's background standard deviation.
var deltaMultipliers = []float64{-2, -1, -0.5, 0.5, 1, 2}

// Candidate is one single-feature change together with its predicted effect.
type Candidate struct {
	Feature          string  `json:"feature"`
	OriginalValue    float64 `json:"original_value"`
	SuggestedValue   float64 `json:"suggested_value"`
	Change           float64 `json:"change"`
	NewPrediction    float64 `json:"new_prediction"`
	ReductionPercent float64 `json:"reduction_percent"`
	Distance         float64 `json:"distance"`
}

// CounterfactualResult lists the best single-feature changes found for
// moving the prediction toward the target.
type CounterfactualResult struct {
	OriginalPrediction float64     `json:"original_prediction"`
	TargetPrediction   float64     `json:"target_prediction"`
	Candidates         []Candidate `json:"candidates"`
}

// Counterfactuals searches for single-feature changes that move the
// prediction from its current value toward target. Each actionable feature
// is stepped by fixed multiples of its background standard deviation; a
// candidate's reduction percent is its share of the requested gap, capped
// at 100. Candidates that move the prediction away from the target are
// discarded. The result holds at most five candidates ordered by reduction
// descending, then by distance ascending; an empty list is a valid outcome.
//
// When actionable is empty the search covers every numeric feature.
// Features whose background spread is zero are skipped: no step size can
// be derived for them.
func (e *Engine) Counterfactuals(x []float64, target float64, actionable []string) (*CounterfactualResult, error) {
	dim := e.model.Dim()
	if len(x) != dim {
		return nil, &regression.DimensionMismatchError{Want: dim, Got: len(x)}
	}

	orig, err := e.model.Predict(x)
	if err != nil {
		return nil, err
	}
	if target == orig {
		return nil, &InvalidTargetError{Target: target}
	}

	cols, err := e.actionableColumns(actionable)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(cols)*len(deltaMultipliers))
	trial := make([]float64, dim)
	for _, j := range cols {
		sigma := e.sigma[j]
		if sigma == 0 {
			continue
		}
		for _, mult := range deltaMultipliers {
			delta := mult * sigma
			copy(trial, x)
			trial[j] += delta

			next, err := e.model.Predict(trial)
			if err != nil {
				return nil, err
			}
			reduction := (orig - next) / (orig - target) * 100
			if reduction <= 0 {
				continue
			}
			if reduction > 100 {
				reduction = 100
			}
			candidates = append(candidates, Candidate{
				Feature:          e.columns[j],
				OriginalValue:    x[j],
				SuggestedValue:   trial[j],
				Change:           delta,
				NewPrediction:    next,
				ReductionPercent: reduction,
				Distance:         math.Abs(delta) / sigma,
			})
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		diff := candidates[a].ReductionPercent - candidates[b].ReductionPercent
		if math.Abs(diff) > reductionTolerance {
			return diff > 0
		}
		return candidates[a].Distance < candidates[b].Distance
	})
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	return &CounterfactualResult{
		OriginalPrediction: orig,
		TargetPrediction:   target,
		Candidates:         candidates,
	}, nil
}

// actionableColumns resolves feature names to column indices. An empty list
// selects every numeric feature; names must refer to numeric columns, since
// indicator columns have no meaningful step size.
func (e *Engine) actionableColumns(actionable []string) ([]int, error) {
	s := e.model.Schema
	if len(actionable) == 0 {
		numeric := s.NumericColumns()
		cols := make([]int, len(numeric))
		for i, name := range numeric {
			cols[i] = s.ColumnIndex(name)
		}
		return cols, nil
	}

	names := s.NumericColumns()
	numeric := make(map[string]bool, len(names))
	for _, name := range names {
		numeric[name] = true
	}
	cols := make([]int, 0, len(actionable))
	for _, name := range actionable {
		if !numeric[name] {
			return nil, &schema.SchemaError{Field: name, Reason: "not an actionable numeric feature"}
		}
		cols = append(cols, s.ColumnIndex(name))
	}
	sort.Ints(cols)
	return cols, nil
}
