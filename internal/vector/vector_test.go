package vector

import (
	"math"
	"testing"

	"github.com/cloo-solutions/nutrikb/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_UnitNorm(t *testing.T) {
	inputs := [][]float32{
		{3, 4},
		{1, 1, 1, 1},
		{-0.2, 0.7, 12.5},
		{1e-3, 0, 0},
	}

	for _, in := range inputs {
		out := Normalize(in)
		require.Len(t, out, len(in))
		assert.Less(t, math.Abs(Norm(out)-1.0), 1e-4)
	}
}

func TestNormalize_ZeroVectorKept(t *testing.T) {
	out := Normalize([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, out)
	for _, x := range out {
		assert.False(t, math.IsNaN(float64(x)))
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := []float32{3, 4}
	_ = Normalize(in)
	assert.Equal(t, []float32{3, 4}, in)
}

func TestNormalizeAll(t *testing.T) {
	out := NormalizeAll([][]float32{{3, 4}, {0, 2}})
	require.Len(t, out, 2)
	assert.InDelta(t, 0.6, out[0][0], 1e-6)
	assert.InDelta(t, 1.0, out[1][1], 1e-6)
}

func TestDot(t *testing.T) {
	got, err := Dot([]float32{1, 0}, []float32{0.5, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got, 1e-6)

	_, err = Dot([]float32{1, 0}, []float32{1, 0, 0})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestTopK(t *testing.T) {
	scores := []float32{0.2, 0.9, 0.5}
	assert.Equal(t, []int{1, 2}, TopK(scores, 2))
	assert.Equal(t, []int{1, 2, 0}, TopK(scores, 10))
	assert.Empty(t, TopK(scores, 0))
	assert.Empty(t, TopK(nil, 3))
}

func TestTopK_StableTies(t *testing.T) {
	scores := []float32{0.4, 0.7, 0.4, 0.7}
	assert.Equal(t, []int{1, 3, 0, 2}, TopK(scores, 4))
}
