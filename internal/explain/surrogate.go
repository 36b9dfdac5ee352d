package explain

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/absentia-hr/explainer/internal/regression"
)

const (
	DefaultSurrogateSamples = 200
	DefaultSurrogateJitter  = 0.5
	DefaultSurrogateTopN    = 10
)

// rcond is the singular-value ratio below which the design matrix is
// treated as rank deficient.
const rcond = 1e-10

// SurrogateOptions tunes the perturbation neighborhood used to fit a local
// surrogate. Zero values fall back to the defaults.
type SurrogateOptions struct {
	Samples int     // neighborhood size
	Jitter  float64 // noise scale as a fraction of each feature's background spread
	TopN    int     // number of features reported
	Seed    uint64  // fixes the random stream; 0 seeds from the clock
}

func (o SurrogateOptions) withDefaults() SurrogateOptions {
	if o.Samples < 2 {
		o.Samples = DefaultSurrogateSamples
	}
	if o.Jitter <= 0 {
		o.Jitter = DefaultSurrogateJitter
	}
	if o.TopN <= 0 {
		o.TopN = DefaultSurrogateTopN
	}
	if o.Seed == 0 {
		o.Seed = uint64(time.Now().UnixNano())
	}
	return o
}

// FeatureWeight is one feature's coefficient in the local surrogate.
type FeatureWeight struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// SurrogateResult is a local linear approximation of the model around one
// input. Weights are valid only in the sampled neighborhood; Fidelity is the
// weighted R-squared of the surrogate against the model there, in [0, 1].
type SurrogateResult struct {
	Intercept   float64
	TopFeatures []FeatureWeight
	Fidelity    float64
}

// Surrogate fits a weighted least-squares regression of model predictions
// on a jittered neighborhood of x. Each neighborhood point is weighted by a
// kernel decaying with its Euclidean distance from x. Features that never
// vary in the neighborhood are excluded from the fit and reported with
// weight zero; the solve tolerates rank deficiency via an SVD pseudo-inverse.
func (e *Engine) Surrogate(x []float64, opts SurrogateOptions) (*SurrogateResult, error) {
	dim := e.model.Dim()
	if len(x) != dim {
		return nil, &regression.DimensionMismatchError{Want: dim, Got: len(x)}
	}
	opts = opts.withDefaults()

	scales := make([]float64, dim)
	varying := 0
	for j, s := range e.sigma {
		if s > 0 {
			scales[j] = opts.Jitter * s
			varying++
		}
	}
	if varying == 0 {
		return nil, &DegenerateNeighborhoodError{}
	}

	src := rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)
	noise := make([]distuv.Normal, dim)
	for j := range noise {
		if scales[j] > 0 {
			noise[j] = distuv.Normal{Mu: 0, Sigma: scales[j], Src: src}
		}
	}

	n := opts.Samples
	points := mat.NewDense(n, dim, nil)
	preds := make([]float64, n)
	weights := make([]float64, n)
	kernelWidth := 0.75 * math.Sqrt(float64(dim))
	row := make([]float64, dim)
	for i := 0; i < n; i++ {
		copy(row, x)
		// keep the instance itself as the first neighborhood point
		if i > 0 {
			for j := 0; j < dim; j++ {
				if scales[j] > 0 {
					row[j] += noise[j].Rand()
				}
			}
		}
		points.SetRow(i, row)

		p, err := e.model.Predict(row)
		if err != nil {
			return nil, err
		}
		preds[i] = p

		d := floats.Distance(row, x, 2)
		weights[i] = math.Exp(-(d * d) / (kernelWidth * kernelWidth))
	}

	// rank features by weighted association with the model's outputs and
	// keep the strongest TopN for the fit
	type ranked struct {
		col   int
		score float64
	}
	cands := make([]ranked, 0, varying)
	col := make([]float64, n)
	for j := 0; j < dim; j++ {
		if scales[j] == 0 {
			continue
		}
		mat.Col(col, j, points)
		cands = append(cands, ranked{col: j, score: math.Abs(stat.Covariance(col, preds, weights))})
	}
	sort.SliceStable(cands, func(a, b int) bool { return cands[a].score > cands[b].score })

	limit := opts.TopN
	if limit > dim {
		limit = dim
	}
	selCount := limit
	if selCount > len(cands) {
		selCount = len(cands)
	}
	selected := make([]int, selCount)
	for i := range selected {
		selected[i] = cands[i].col
	}
	sort.Ints(selected)

	// weighted least squares: scale rows by sqrt(weight) and solve the
	// scaled system with a rank-tolerant SVD
	k := len(selected)
	design := mat.NewDense(n, k+1, nil)
	scaled := mat.NewDense(n, k+1, nil)
	b := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		sw := math.Sqrt(weights[i])
		design.Set(i, 0, 1)
		scaled.Set(i, 0, sw)
		for c, j := range selected {
			v := points.At(i, j)
			design.Set(i, c+1, v)
			scaled.Set(i, c+1, sw*v)
		}
		b.SetVec(i, sw*preds[i])
	}

	var svd mat.SVD
	if ok := svd.Factorize(scaled, mat.SVDThin); !ok {
		return nil, fmt.Errorf("error factorizing surrogate design matrix")
	}
	rank := svd.Rank(rcond)
	if rank == 0 {
		return nil, &DegenerateNeighborhoodError{}
	}
	var coef mat.VecDense
	svd.SolveVecTo(&coef, b, rank)

	// fidelity: weighted R-squared of the surrogate against the model over
	// the neighborhood it was fit on
	estimates := make([]float64, n)
	for i := 0; i < n; i++ {
		yhat := coef.AtVec(0)
		for c := range selected {
			yhat += coef.AtVec(c+1) * design.At(i, c+1)
		}
		estimates[i] = yhat
	}
	fidelity := stat.RSquaredFrom(estimates, preds, weights)
	if math.IsNaN(fidelity) || fidelity < 0 {
		fidelity = 0
	} else if fidelity > 1 {
		fidelity = 1
	}

	features := make([]FeatureWeight, 0, limit)
	for c, j := range selected {
		features = append(features, FeatureWeight{Feature: e.columns[j], Weight: coef.AtVec(c + 1)})
	}
	for j := 0; j < dim && len(features) < limit; j++ {
		if scales[j] == 0 {
			features = append(features, FeatureWeight{Feature: e.columns[j], Weight: 0})
		}
	}
	sort.SliceStable(features, func(a, b int) bool {
		return math.Abs(features[a].Weight) > math.Abs(features[b].Weight)
	})

	return &SurrogateResult{
		Intercept:   coef.AtVec(0),
		TopFeatures: features,
		Fidelity:    fidelity,
	}, nil
}
