package explain

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/absentia-hr/explainer/internal/regression"
)

// Contribution is one feature's share of the gap between a prediction and
// the baseline prediction.
type Contribution struct {
	Feature string  `json:"feature"`
	Shap    float64 `json:"shap"`
	Value   float64 `json:"value"`
}

// FeatureImportance is one feature's mean absolute attribution over the
// background sample.
type FeatureImportance struct {
	Feature     string  `json:"feature"`
	MeanAbsShap float64 `json:"mean_abs_shap"`
}

// Attribute decomposes the prediction for x into exact additive per-feature
// contributions relative to the baseline. For a linear model the Shapley
// value has the closed form weight_i * (x_i - baseline_i), so the
// contributions sum to predict(x) - predict(baseline) with no approximation.
func (e *Engine) Attribute(x []float64) ([]Contribution, error) {
	dim := e.model.Dim()
	if len(x) != dim {
		return nil, &regression.DimensionMismatchError{Want: dim, Got: len(x)}
	}

	contribs := make([]Contribution, dim)
	for i := range x {
		contribs[i] = Contribution{
			Feature: e.columns[i],
			Shap:    e.model.Weights[i] * (x[i] - e.baseline[i]),
			Value:   x[i],
		}
	}
	return contribs, nil
}

// GlobalSummary averages absolute contributions over the background sample,
// producing a per-feature importance ranking sorted largest first.
func (e *Engine) GlobalSummary() ([]FeatureImportance, error) {
	dim := e.model.Dim()
	totals := make([]float64, dim)
	for _, row := range e.sample {
		contribs, err := e.Attribute(row)
		if err != nil {
			return nil, err
		}
		for j, cb := range contribs {
			totals[j] += math.Abs(cb.Shap)
		}
	}

	n := float64(len(e.sample))
	out := make([]FeatureImportance, dim)
	for j := range totals {
		out[j] = FeatureImportance{Feature: e.columns[j], MeanAbsShap: totals[j] / n}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MeanAbsShap > out[j].MeanAbsShap
	})
	return out, nil
}

// SortContributions orders contributions by absolute attribution, largest
// first.
func SortContributions(cs []Contribution) {
	sort.SliceStable(cs, func(i, j int) bool {
		return math.Abs(cs[i].Shap) > math.Abs(cs[j].Shap)
	})
}

// TextSummary renders the strongest contributions as a short narrative for
// the serving layer. Contributions are expected sorted largest first.
func TextSummary(prediction float64, contribs []Contribution) string {
	parts := make([]string, 0, 3)
	for i, cb := range contribs {
		if i == 3 {
			break
		}
		direction := "decreases"
		if cb.Shap > 0 {
			direction = "increases"
		}
		parts = append(parts, fmt.Sprintf("%s %s prediction by %.2f hours", cb.Feature, direction, math.Abs(cb.Shap)))
	}
	return fmt.Sprintf("Predicted %.2f hours. Top factors: %s.", prediction, strings.Join(parts, ", "))
}
