// Package cli provides CLI output helpers for Katayori.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/katayori/internal/models"
	"github.com/hyperjump/katayori/pkg/utils"
)

// OutputFormat is the format for CLI output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates an output format flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch s {
	case "", "text":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteExperiment writes one experiment result to w in the given format.
func WriteExperiment(w io.Writer, exp *models.Experiment, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, exp)
	}
	fmt.Fprintf(w, "experiment:    %s\n", exp.ID)
	fmt.Fprintf(w, "encoder:       %s\n", exp.Encoder)
	fmt.Fprintf(w, "effect_size:   %.4f\n", exp.EffectSize)
	fmt.Fprintf(w, "p_value:       %.6f\n", exp.PValue)
	method := "permutation"
	if exp.Parametric {
		method = "parametric"
	} else if exp.Exhaustive {
		method = "permutation (exhaustive)"
	}
	fmt.Fprintf(w, "method:        %s (%d permutations)\n", method, exp.Permutations)
	fmt.Fprintf(w, "top_k:         %d\n", exp.TopK)
	fmt.Fprintf(w, "seed:          %d\n", exp.Seed)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "most positively scored names:")
	for _, name := range exp.PositiveNames {
		fmt.Fprintf(w, "  %s\n", name)
	}
	fmt.Fprintln(w, "most negatively scored names:")
	for _, name := range exp.NegativeNames {
		fmt.Fprintf(w, "  %s\n", name)
	}
	return nil
}

// WriteExperiments writes an experiment listing to w, one line per run.
func WriteExperiments(w io.Writer, exps []*models.Experiment, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, exps)
	}
	if len(exps) == 0 {
		fmt.Fprintln(w, "no experiments recorded")
		return nil
	}
	for _, exp := range exps {
		fmt.Fprintf(w, "%s  %s  effect=%.4f  p=%.6f  encoder=%s\n",
			exp.CreatedAt.Format("2006-01-02 15:04:05"), exp.ID, exp.EffectSize, exp.PValue, exp.Encoder)
	}
	return nil
}

// WriteEntityStats writes the entity ranking to w, ascending by mean score.
func WriteEntityStats(w io.Writer, stats []models.EntityStat, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, stats)
	}
	if len(stats) == 0 {
		fmt.Fprintln(w, "no scored entities; scan a corpus first")
		return nil
	}
	fmt.Fprintf(w, "%-24s %10s %8s\n", "name", "mean", "count")
	for _, st := range stats {
		fmt.Fprintf(w, "%-24s %10.4f %8d\n", st.Name, st.Mean, st.Count)
	}
	return nil
}

// ContextLine is one record shown for an entity-context lookup.
type ContextLine struct {
	ID      string  `json:"id"`
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// WriteContexts writes entity contexts to w in the given format.
func WriteContexts(w io.Writer, name string, contexts []ContextLine, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"name": name, "contexts": contexts})
	}
	if len(contexts) == 0 {
		fmt.Fprintf(w, "no contexts found for %q\n", name)
		return nil
	}
	fmt.Fprintf(w, "contexts for %q:\n", name)
	for _, c := range contexts {
		fmt.Fprintf(w, "  [%.3f] %s\n", c.Score, utils.Truncate(c.Content, 160))
		fmt.Fprintf(w, "          %s\n", c.Source)
	}
	return nil
}
