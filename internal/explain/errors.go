package explain

import "fmt"

// DegenerateNeighborhoodError reports a perturbation neighborhood in which
// every feature is constant, leaving nothing to fit a surrogate on.
type DegenerateNeighborhoodError struct{}

func (e *DegenerateNeighborhoodError) Error() string {
	return "degenerate neighborhood: every feature is constant"
}

// InvalidTargetError reports a counterfactual target equal to the original
// prediction, leaving no direction to search.
type InvalidTargetError struct {
	Target float64
}

func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("counterfactual target %g equals the original prediction", e.Target)
}
