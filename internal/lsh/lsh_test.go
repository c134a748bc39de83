package lsh

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denismitr/twindex/internal/minhash"
)

func emptySig(h int) []uint32 {
	sig := make([]uint32, h)
	for i := range sig {
		sig[i] = minhash.EmptySlot
	}
	return sig
}

func TestNew(t *testing.T) {
	t.Run("band width below one is rejected", func(t *testing.T) {
		bs, err := New(100, 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrBandWidthInvalid))
		assert.Nil(t, bs)
	})

	t.Run("band width beyond signature size is rejected", func(t *testing.T) {
		bs, err := New(4, 5)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrBandWidthInvalid))
		assert.Nil(t, bs)
	})

	t.Run("only full bands participate", func(t *testing.T) {
		bs, err := New(10, 3)
		require.NoError(t, err)
		assert.Equal(t, 3, bs.Bands())
		assert.Equal(t, 3, bs.Rows())
	})
}

func TestBands_Candidates(t *testing.T) {
	t.Run("one shared band is enough", func(t *testing.T) {
		bs, err := New(6, 3)
		require.NoError(t, err)

		bs.Insert("a", []uint32{1, 2, 3, 4, 5, 6})
		bs.Insert("b", []uint32{1, 2, 3, 9, 9, 9})
		bs.Insert("c", []uint32{7, 7, 7, 8, 8, 8})

		assert.Equal(t, []string{"b"}, bs.Candidates("a", []uint32{1, 2, 3, 4, 5, 6}))
		assert.Equal(t, []string{"a"}, bs.Candidates("b", []uint32{1, 2, 3, 9, 9, 9}))
		assert.Nil(t, bs.Candidates("c", []uint32{7, 7, 7, 8, 8, 8}))
	})

	t.Run("candidates come back sorted", func(t *testing.T) {
		bs, err := New(4, 2)
		require.NoError(t, err)

		sig := []uint32{1, 2, 3, 4}
		bs.Insert("beta", sig)
		bs.Insert("gamma", sig)
		bs.Insert("alpha", sig)

		assert.Equal(t, []string{"alpha", "gamma"}, bs.Candidates("beta", sig))
	})

	t.Run("trailing remainder slots never separate documents", func(t *testing.T) {
		bs, err := New(7, 3) // 2 full bands, slot 6 ignored
		require.NoError(t, err)

		bs.Insert("a", []uint32{1, 2, 3, 4, 5, 6, 100})
		bs.Insert("b", []uint32{1, 2, 3, 4, 5, 6, 200})

		assert.Equal(t, []string{"b"}, bs.Candidates("a", []uint32{1, 2, 3, 4, 5, 6, 100}))
	})

	t.Run("empty signatures never collide", func(t *testing.T) {
		bs, err := New(6, 3)
		require.NoError(t, err)

		bs.Insert("a", emptySig(6))
		bs.Insert("b", emptySig(6))

		assert.Nil(t, bs.Candidates("a", emptySig(6)))
		assert.Nil(t, bs.Candidates("b", emptySig(6)))
	})
}

func TestBands_Remove(t *testing.T) {
	bs, err := New(6, 3)
	require.NoError(t, err)

	sig := []uint32{1, 2, 3, 4, 5, 6}
	bs.Insert("a", sig)
	bs.Insert("b", sig)
	require.Equal(t, []string{"b"}, bs.Candidates("a", sig))

	bs.Remove("b", sig)
	assert.Nil(t, bs.Candidates("a", sig))

	// removing an absent key changes nothing
	bs.Remove("b", sig)
	bs.Remove("ghost", sig)
	assert.Nil(t, bs.Candidates("a", sig))
}
