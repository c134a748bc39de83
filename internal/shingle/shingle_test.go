package shingle_test

import (
	"testing"

	"github.com/denismitr/twindex/internal/shingle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	t.Run("overlapping windows", func(t *testing.T) {
		// "abcde" with k=3 -> abc, bcd, cde
		fps := shingle.Split("abcde", 3)
		assert.Len(t, fps, 3)
	})

	t.Run("repeated shingles are deduplicated", func(t *testing.T) {
		// "aaaa" with k=2 -> aa, aa, aa -> one distinct shingle
		fps := shingle.Split("aaaa", 2)
		assert.Len(t, fps, 1)
	})

	t.Run("text shorter than k yields nothing", func(t *testing.T) {
		assert.Nil(t, shingle.Split("ab", 3))
		assert.Nil(t, shingle.Split("", 4))
	})

	t.Run("windows are cut on runes not bytes", func(t *testing.T) {
		// 4 runes, k=4 -> exactly one shingle even though byte length is larger
		fps := shingle.Split("日本語だ", 4)
		assert.Len(t, fps, 1)
	})

	t.Run("same text same fingerprints", func(t *testing.T) {
		a := shingle.Split("the quick brown fox", 4)
		b := shingle.Split("the quick brown fox", 4)
		assert.Equal(t, a, b)
	})
}

func TestVocab_Grow(t *testing.T) {
	v := shingle.NewVocab()

	fps := shingle.Split("abcdef", 3) // abc bcd cde def
	set, fresh, err := v.Grow(fps)
	require.NoError(t, err)

	assert.Equal(t, []uint32{0, 1, 2, 3}, set)
	require.Len(t, fresh, 4)
	assert.Equal(t, uint32(4), v.NextRow())
	assert.Equal(t, 4, v.Len())

	t.Run("known shingles keep their rows", func(t *testing.T) {
		set2, fresh2, err := v.Grow(shingle.Split("bcdefg", 3)) // bcd cde def efg
		require.NoError(t, err)

		assert.Equal(t, []uint32{1, 2, 3, 4}, set2)
		require.Len(t, fresh2, 1)
		assert.Equal(t, uint32(4), fresh2[0].Row)
	})
}

func TestVocab_Lookup(t *testing.T) {
	v := shingle.NewVocab()
	_, _, err := v.Grow(shingle.Split("abcdef", 3))
	require.NoError(t, err)

	t.Run("unknown shingles are dropped", func(t *testing.T) {
		set := v.Lookup(shingle.Split("cdexyz", 3)) // cde known, dex/exy/xyz unknown
		assert.Equal(t, []uint32{2}, set)
	})

	t.Run("lookup never grows the vocabulary", func(t *testing.T) {
		before := v.Len()
		v.Lookup(shingle.Split("zzzzzz", 3))
		assert.Equal(t, before, v.Len())
	})
}

func TestVocab_Restore(t *testing.T) {
	v := shingle.NewVocab()

	require.NoError(t, v.Restore(0xdead, 7))
	require.NoError(t, v.Restore(0xbeef, 2))
	assert.Equal(t, uint32(8), v.NextRow())

	t.Run("idempotent for same pair", func(t *testing.T) {
		require.NoError(t, v.Restore(0xdead, 7))
	})

	t.Run("conflicting row fails", func(t *testing.T) {
		err := v.Restore(0xdead, 9)
		require.Error(t, err)
	})

	t.Run("grow continues after restored rows", func(t *testing.T) {
		_, fresh, err := v.Grow([]uint64{0xf00d})
		require.NoError(t, err)
		require.Len(t, fresh, 1)
		assert.Equal(t, uint32(8), fresh[0].Row)
	})
}

func TestVocab_Drop(t *testing.T) {
	v := shingle.NewVocab()
	_, _, err := v.Grow([]uint64{10, 11, 12, 13})
	require.NoError(t, err)

	// rows 1 and 3 are dead
	v.Drop(func(row uint32) bool { return row%2 == 1 })

	assert.Equal(t, 2, v.Len())
	assert.Equal(t, []uint32{0}, v.Lookup([]uint64{10, 11}))
	// next row is untouched by vacuuming
	assert.Equal(t, uint32(4), v.NextRow())
}
