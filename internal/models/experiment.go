package models

import (
	"fmt"
	"time"
)

// ExperimentRequest holds the parameters for one bias experiment run.
type ExperimentRequest struct {
	TopK           int   `json:"top_k,omitempty"`
	MinOccurrences int   `json:"min_occurrences,omitempty"`
	NSamples       int   `json:"n_samples,omitempty"`
	Parametric     bool  `json:"parametric,omitempty"`
	Seed           int64 `json:"seed,omitempty"`
}

// Validate normalizes zero values to defaults and rejects invalid parameters.
func (r *ExperimentRequest) Validate() error {
	if r.TopK == 0 {
		r.TopK = 15
	}
	if r.TopK < 1 {
		return fmt.Errorf("top_k must be positive, got %d", r.TopK)
	}
	if r.MinOccurrences == 0 {
		r.MinOccurrences = 2
	}
	if r.MinOccurrences < 1 {
		return fmt.Errorf("min_occurrences must be positive, got %d", r.MinOccurrences)
	}
	if r.NSamples == 0 {
		r.NSamples = 10000
	}
	if r.NSamples < 1 {
		return fmt.Errorf("n_samples must be positive, got %d", r.NSamples)
	}
	return nil
}

// Experiment is a persisted bias experiment run: the selected target names,
// the test parameters, and the association test outcome.
type Experiment struct {
	ID            string    `json:"id"`
	Encoder       string    `json:"encoder"`
	TopK          int       `json:"top_k"`
	NSamples      int       `json:"n_samples"`
	Parametric    bool      `json:"parametric"`
	Seed          int64     `json:"seed"`
	PositiveNames []string  `json:"positive_names"`
	NegativeNames []string  `json:"negative_names"`
	EffectSize    float64   `json:"effect_size"`
	PValue        float64   `json:"p_value"`
	Permutations  int       `json:"permutations"`
	Exhaustive    bool      `json:"exhaustive"`
	CreatedAt     time.Time `json:"created_at"`
}
