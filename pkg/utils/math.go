package utils

import "math"

// NormalizeL2 scales the vector in place to unit L2 norm, so dot products
// between normalized vectors are cosine similarities. Zero vectors are left unchanged.
func NormalizeL2(x []float32) {
	var sum float32
	for _, v := range x {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range x {
		x[i] *= inv
	}
}
