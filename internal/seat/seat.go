// Package seat implements the Sentence Encoder Association Test: given two
// target groups and two attribute groups of embedding vectors, it produces a
// standardized effect size (Cohen's d over per-item association scores) and
// a significance estimate from a permutation test over group-label
// reassignments.
package seat

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ErrDegenerate is returned when all association scores are identical, so the
// pooled standard deviation is zero and the effect size is undefined.
var ErrDegenerate = errors.New("seat: association scores have zero variance")

// Result holds the outcome of one association test.
type Result struct {
	EffectSize   float64 `json:"effect_size"`
	PValue       float64 `json:"p_value"`
	Permutations int     `json:"permutations"`
	Exhaustive   bool    `json:"exhaustive"`
	Parametric   bool    `json:"parametric"`
}

// Run computes the association test between target groups x and y with
// respect to attribute groups a and b.
//
// Each target vector v gets an association score
//
//	s(v) = mean(cos(v, a_i)) - mean(cos(v, b_j))
//
// computed once up front. The test statistic is sum(s over x) - sum(s over y);
// the effect size is the standardized mean difference of scores using the
// population standard deviation over the pooled scores.
//
// When parametric is false, the p-value is two-sided from a permutation test:
// the pooled scores are repartitioned into groups of sizes |x| and |y|. If
// the number of distinct partitions C(|x|+|y|, |x|) is at most nSamples, all
// partitions are enumerated; otherwise nSamples random partitions are drawn
// from rng. When parametric is true, a Welch-style normal approximation is
// used instead of resampling (see parametricPValue).
//
// rng may be nil, in which case a time-seeded source is used; pass a fixed
// seed for reproducible resampling.
func Run(x, y, a, b [][]float64, nSamples int, parametric bool, rng *rand.Rand) (*Result, error) {
	if err := validate(x, y, a, b, nSamples); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	sx := associationScores(x, a, b)
	sy := associationScores(y, a, b)

	effect, err := effectSize(sx, sy)
	if err != nil {
		return nil, err
	}

	if parametric {
		p, err := parametricPValue(sx, sy)
		if err != nil {
			return nil, err
		}
		return &Result{EffectSize: effect, PValue: p, Parametric: true}, nil
	}

	p, iterations, exhaustive := permutationPValue(sx, sy, nSamples, rng)
	return &Result{
		EffectSize:   effect,
		PValue:       p,
		Permutations: iterations,
		Exhaustive:   exhaustive,
	}, nil
}

func validate(x, y, a, b [][]float64, nSamples int) error {
	groups := []struct {
		name string
		vecs [][]float64
	}{{"x", x}, {"y", y}, {"a", a}, {"b", b}}

	dim := 0
	for _, g := range groups {
		if len(g.vecs) == 0 {
			return fmt.Errorf("seat: group %s is empty", g.name)
		}
		for i, v := range g.vecs {
			if len(v) == 0 {
				return fmt.Errorf("seat: group %s vector %d has zero dimension", g.name, i)
			}
			if dim == 0 {
				dim = len(v)
			}
			if len(v) != dim {
				return fmt.Errorf("seat: group %s vector %d has dimension %d, want %d", g.name, i, len(v), dim)
			}
		}
	}
	if nSamples < 1 {
		return fmt.Errorf("seat: nSamples must be positive, got %d", nSamples)
	}
	return nil
}

// associationScores computes s(v) for every v in targets. Scores are computed
// once here and reused for every permutation.
func associationScores(targets, a, b [][]float64) []float64 {
	scores := make([]float64, len(targets))
	for i, v := range targets {
		var sa, sb float64
		for _, av := range a {
			sa += Cosine(v, av)
		}
		for _, bv := range b {
			sb += Cosine(v, bv)
		}
		scores[i] = sa/float64(len(a)) - sb/float64(len(b))
	}
	return scores
}

// effectSize returns the Cohen's-d-style standardized mean difference using
// the population standard deviation of the pooled scores.
func effectSize(sx, sy []float64) (float64, error) {
	pooled := make([]float64, 0, len(sx)+len(sy))
	pooled = append(pooled, sx...)
	pooled = append(pooled, sy...)
	std := populationStd(pooled)
	if std == 0 {
		return 0, ErrDegenerate
	}
	return (mean(sx) - mean(sy)) / std, nil
}

// permutationPValue builds the null distribution by repartitioning the pooled
// scores into groups of sizes |sx| and |sy| and returns the two-sided
// p-value: the fraction of partitions whose statistic magnitude is at least
// the observed magnitude. All C(n, |sx|) partitions are enumerated when that
// count fits within nSamples; otherwise nSamples partitions are sampled
// uniformly without replacement inside each draw.
func permutationPValue(sx, sy []float64, nSamples int, rng *rand.Rand) (p float64, iterations int, exhaustive bool) {
	pooled := make([]float64, 0, len(sx)+len(sy))
	pooled = append(pooled, sx...)
	pooled = append(pooled, sy...)
	n, k := len(pooled), len(sx)

	var total float64
	for _, s := range pooled {
		total += s
	}
	// For a subset with sum t assigned to the x side, the statistic
	// sum(x) - sum(y) equals 2t - total.
	observed := math.Abs(2*sum(sx) - total)
	// Partition sums accumulate in a different order than the observed sum, so
	// a mathematically tied statistic (the observed partition itself, or its
	// mirror under a label swap) can land an ulp below observed. Count such
	// ties via a small relative tolerance.
	threshold := observed - 1e-9*math.Max(1, observed)

	count := 0
	if distinct, ok := binomialAtMost(n, k, nSamples); ok {
		eachCombination(n, k, func(idx []int) {
			var t float64
			for _, i := range idx {
				t += pooled[i]
			}
			if math.Abs(2*t-total) >= threshold {
				count++
			}
		})
		return float64(count) / float64(distinct), distinct, true
	}

	for i := 0; i < nSamples; i++ {
		var t float64
		perm := rng.Perm(n)
		for _, j := range perm[:k] {
			t += pooled[j]
		}
		if math.Abs(2*t-total) >= threshold {
			count++
		}
	}
	return float64(count) / float64(nSamples), nSamples, false
}

// binomialAtMost returns C(n, k) when it is at most limit. When the count
// exceeds limit the second return is false and the count is unspecified.
func binomialAtMost(n, k, limit int) (int, bool) {
	if k > n-k {
		k = n - k
	}
	c := 1
	for i := 1; i <= k; i++ {
		c = c * (n - k + i) / i
		if c > limit {
			return 0, false
		}
	}
	return c, true
}

// eachCombination calls fn with every k-subset of {0..n-1} in lexicographic
// order. The slice passed to fn is reused between calls.
func eachCombination(n, k int, fn func(idx []int)) {
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		fn(idx)
		// Advance the rightmost index that can still move.
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// Cosine returns the cosine similarity of two equal-length vectors. A zero
// vector yields 0.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Float64s converts encoder output vectors to float64 for the test.
func Float64s(vecs [][]float32) [][]float64 {
	out := make([][]float64, len(vecs))
	for i, v := range vecs {
		row := make([]float64, len(v))
		for j, f := range v {
			row[j] = float64(f)
		}
		out[i] = row
	}
	return out
}

func sum(xs []float64) float64 {
	var s float64
	for _, v := range xs {
		s += v
	}
	return s
}

func mean(xs []float64) float64 {
	return sum(xs) / float64(len(xs))
}

// populationStd returns the population (biased) standard deviation.
func populationStd(xs []float64) float64 {
	m := mean(xs)
	var ss float64
	for _, v := range xs {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}
