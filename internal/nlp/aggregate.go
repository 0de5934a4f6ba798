package nlp

import (
	"fmt"
	"sort"

	"github.com/hyperjump/katayori/internal/models"
)

// Rank sorts entity stats ascending by mean score, breaking ties by name so
// repeated runs over the same corpus produce the same ordering.
func Rank(stats []models.EntityStat) {
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Mean != stats[j].Mean {
			return stats[i].Mean < stats[j].Mean
		}
		return stats[i].Name < stats[j].Name
	})
}

// SelectExtremes takes ranked (ascending) stats and returns the topK names
// with the highest mean scores and the topK with the lowest. The two groups
// must not overlap, so at least 2*topK entities are required.
func SelectExtremes(ranked []models.EntityStat, topK int) (positive, negative []string, err error) {
	if topK < 1 {
		return nil, nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	if len(ranked) < 2*topK {
		return nil, nil, fmt.Errorf("need at least %d scored entities for topK=%d, have %d",
			2*topK, topK, len(ranked))
	}
	negative = make([]string, 0, topK)
	for _, s := range ranked[:topK] {
		negative = append(negative, s.Name)
	}
	positive = make([]string, 0, topK)
	for _, s := range ranked[len(ranked)-topK:] {
		positive = append(positive, s.Name)
	}
	return positive, negative, nil
}
