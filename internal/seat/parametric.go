package seat

import (
	"errors"
	"math"
)

// ErrZeroStandardError is returned by the parametric path when both groups
// have zero sample variance, for example when each has a single item. The
// Welch z statistic is undefined there even if the pooled scores vary enough
// for an effect size.
var ErrZeroStandardError = errors.New("seat: zero standard error between groups, parametric p-value undefined")

// parametricPValue approximates the two-sided p-value for the difference in
// mean association scores with a Welch-style z statistic:
//
//	z = (mean(sx) - mean(sy)) / sqrt(var(sx)/|sx| + var(sy)/|sy|)
//	p = erfc(|z| / sqrt(2))
//
// This assumes the sampling distribution of the mean difference is
// approximately normal, which holds for reasonably sized groups but is an
// approximation compared to the permutation path. Sample variances use the
// n-1 denominator; single-item groups contribute zero variance.
func parametricPValue(sx, sy []float64) (float64, error) {
	se := math.Sqrt(sampleVar(sx)/float64(len(sx)) + sampleVar(sy)/float64(len(sy)))
	if se == 0 {
		return 0, ErrZeroStandardError
	}
	z := (mean(sx) - mean(sy)) / se
	return math.Erfc(math.Abs(z) / math.Sqrt2), nil
}

// sampleVar returns the unbiased sample variance, or 0 for fewer than two items.
func sampleVar(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, v := range xs {
		d := v - m
		ss += d * d
	}
	return ss / float64(len(xs)-1)
}
