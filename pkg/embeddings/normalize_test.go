package embeddings

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeL2(t *testing.T) {
	t.Run("scales vector to unit length", func(t *testing.T) {
		v := []float32{3, 4}
		NormalizeL2(v)

		assert.InDelta(t, 0.6, v[0], 1e-6)
		assert.InDelta(t, 0.8, v[1], 1e-6)

		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
	})

	t.Run("zero vector is left untouched", func(t *testing.T) {
		v := []float32{0, 0, 0}
		NormalizeL2(v)
		assert.Equal(t, []float32{0, 0, 0}, v)
	})
}

func TestCosineSimilarity(t *testing.T) {
	t.Run("identical vectors score 1", func(t *testing.T) {
		v := []float32{0.2, 0.4, 0.1}
		assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-6)
	})

	t.Run("orthogonal vectors score 0", func(t *testing.T) {
		assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	})

	t.Run("mismatched lengths score 0", func(t *testing.T) {
		assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 2}))
	})
}
