package metric

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	for _, name := range []string{"jaccard", "cosine", "euclid"} {
		k, err := Resolve(name)
		require.NoError(t, err)
		assert.Equal(t, Kind(name), k)
	}

	for _, name := range []string{"", "euclidean", "JACCARD", "hamming"} {
		_, err := Resolve(name)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMetricUnknown))
	}
}

func TestKind_Score(t *testing.T) {
	a := []uint32{1, 2, 3, 4}
	b := []uint32{3, 4, 5, 6}

	t.Run("jaccard", func(t *testing.T) {
		assert.InDelta(t, 2.0/6.0, Jaccard.Score(a, b), 1e-9)
		assert.InDelta(t, 1.0, Jaccard.Score(a, a), 1e-9)
		assert.Zero(t, Jaccard.Score(a, nil))
		assert.Zero(t, Jaccard.Score(nil, nil))
	})

	t.Run("cosine", func(t *testing.T) {
		assert.InDelta(t, 2.0/4.0, Cosine.Score(a, b), 1e-9)
		assert.InDelta(t, 1.0, Cosine.Score(a, a), 1e-9)
		assert.Zero(t, Cosine.Score(a, nil))
		assert.Zero(t, Cosine.Score(nil, nil))
	})

	t.Run("euclid", func(t *testing.T) {
		assert.InDelta(t, 2.0, Euclidean.Score(a, b), 1e-9) // sqrt(4+4-2*2)
		assert.Zero(t, Euclidean.Score(a, a))
		assert.InDelta(t, 2.0, Euclidean.Score(a, nil), 1e-9)
		assert.Zero(t, Euclidean.Score(nil, nil))
	})

	t.Run("disjoint sets", func(t *testing.T) {
		c := []uint32{10, 20}
		assert.Zero(t, Jaccard.Score(a, c))
		assert.Zero(t, Cosine.Score(a, c))
		assert.InDelta(t, math.Sqrt(6), Euclidean.Score(a, c), 1e-9)
	})
}

func TestKind_Ordering(t *testing.T) {
	assert.False(t, Jaccard.Ascending())
	assert.False(t, Cosine.Ascending())
	assert.True(t, Euclidean.Ascending())

	assert.True(t, Jaccard.Better(0.9, 0.1))
	assert.False(t, Jaccard.Better(0.1, 0.9))
	assert.True(t, Euclidean.Better(0.1, 0.9))
	assert.False(t, Euclidean.Better(0.9, 0.1))
	assert.False(t, Jaccard.Better(0.5, 0.5))

	assert.True(t, Jaccard.Meets(0.8, 0.8))
	assert.False(t, Jaccard.Meets(0.79, 0.8))
	assert.True(t, Euclidean.Meets(1.5, 2.0))
	assert.False(t, Euclidean.Meets(2.5, 2.0))
}

func TestKind_Precision(t *testing.T) {
	t.Run("fraction of retrieved clearing the threshold", func(t *testing.T) {
		p, ok := Jaccard.Precision([]float64{0.9, 0.5, 0.8, 0.2}, 0.8)
		require.True(t, ok)
		assert.InDelta(t, 0.5, p, 1e-9)
	})

	t.Run("distance thresholds count downwards", func(t *testing.T) {
		p, ok := Euclidean.Precision([]float64{0.5, 3.0, 1.0}, 1.0)
		require.True(t, ok)
		assert.InDelta(t, 2.0/3.0, p, 1e-9)
	})

	t.Run("undefined without retrieved documents", func(t *testing.T) {
		_, ok := Jaccard.Precision(nil, 0.8)
		assert.False(t, ok)
	})
}

func TestRecall(t *testing.T) {
	r, ok := Recall(3, 4)
	require.True(t, ok)
	assert.InDelta(t, 0.75, r, 1e-9)

	r, ok = Recall(0, 2)
	require.True(t, ok)
	assert.Zero(t, r)

	_, ok = Recall(0, 0)
	assert.False(t, ok)
}

func TestIntersection(t *testing.T) {
	assert.Equal(t, 2, Intersection([]uint32{1, 2, 3}, []uint32{2, 3, 9}))
	assert.Equal(t, 0, Intersection([]uint32{1, 2, 3}, []uint32{4, 5}))
	assert.Equal(t, 3, Intersection([]uint32{1, 2, 3}, []uint32{1, 2, 3}))
	assert.Equal(t, 0, Intersection(nil, []uint32{1}))
	assert.Equal(t, 0, Intersection(nil, nil))
}
