// Package regression loads and serves the fitted linear model artifact.
package regression

import (
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/gonum/floats"

	"github.com/absentia-hr/explainer/internal/schema"
)

// Model is a fitted linear regression. Weights are ordered to match the
// schema's encoded columns and the prediction is dot(weights, x) + intercept.
// A loaded model is immutable and shared read-only across requests.
type Model struct {
	Version   string         `json:"version"`
	Intercept float64        `json:"intercept"`
	Weights   []float64      `json:"weights"`
	Schema    *schema.Schema `json:"schema"`
}

// DimensionMismatchError reports an encoded vector whose length does not
// match the model's weight vector.
type DimensionMismatchError struct {
	Want, Got int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: model expects %d features, got %d", e.Want, e.Got)
}

// Load reads and validates a model artifact.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %v", err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model data: %v", err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid model artifact: %v", err)
	}
	return &m, nil
}

// Save writes the model artifact to disk.
func (m *Model) Save(path string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal model data: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model file: %v", err)
	}
	return nil
}

func (m *Model) validate() error {
	if m.Version == "" {
		return fmt.Errorf("missing model version")
	}
	if m.Schema == nil {
		return fmt.Errorf("missing schema")
	}
	if err := m.Schema.Validate(); err != nil {
		return err
	}
	if got, want := len(m.Weights), m.Schema.Width(); got != want {
		return fmt.Errorf("%d weights for %d encoded columns", got, want)
	}
	return nil
}

// Dim returns the encoded feature count the model expects.
func (m *Model) Dim() int {
	return len(m.Weights)
}

// Predict evaluates the regression on one encoded vector.
func (m *Model) Predict(x []float64) (float64, error) {
	if len(x) != len(m.Weights) {
		return 0, &DimensionMismatchError{Want: len(m.Weights), Got: len(x)}
	}
	return floats.Dot(m.Weights, x) + m.Intercept, nil
}
