// Package vector holds the float32 math used for embedding similarity.
package vector

import (
	"math"
	"sort"

	"github.com/cloo-solutions/nutrikb/internal/domain"
)

// Epsilon is added to a vector's norm before dividing so that a zero vector
// normalises to itself instead of NaN.
const Epsilon = 1e-8

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v. Degenerate vectors are kept.
func Normalize(v []float32) []float32 {
	n := Norm(v) + Epsilon
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// NormalizeAll normalises every row of m.
func NormalizeAll(m [][]float32) [][]float32 {
	out := make([][]float32, len(m))
	for i, v := range m {
		out[i] = Normalize(v)
	}
	return out
}

// Dot returns the dot product of a and b. For unit vectors this is their
// cosine similarity.
func Dot(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, domain.ErrDimensionMismatch
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum), nil
}

// TopK returns the indices of the k highest scores in descending order.
// Equal scores keep their original order.
func TopK(scores []float32, k int) []int {
	idxs := make([]int, len(scores))
	for i := range scores {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(i, j int) bool {
		return scores[idxs[i]] > scores[idxs[j]]
	})
	if k < 0 {
		k = 0
	}
	if k < len(idxs) {
		idxs = idxs[:k]
	}
	return idxs
}
