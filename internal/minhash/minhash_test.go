package minhash

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFamily(t *testing.T) {
	t.Run("invalid size is rejected", func(t *testing.T) {
		for _, size := range []int{0, -1, -100} {
			f, err := NewFamily(size, 1)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrFamilySizeInvalid))
			assert.Nil(t, f)
		}
	})

	t.Run("same size and seed give the same family", func(t *testing.T) {
		f1, err := NewFamily(64, 42)
		require.NoError(t, err)
		f2, err := NewFamily(64, 42)
		require.NoError(t, err)

		rows := []uint32{3, 17, 99, 100500}
		assert.Equal(t, f1.Sign(rows), f2.Sign(rows))
	})

	t.Run("different seeds give different families", func(t *testing.T) {
		f1, err := NewFamily(64, 1)
		require.NoError(t, err)
		f2, err := NewFamily(64, 2)
		require.NoError(t, err)

		rows := []uint32{3, 17, 99, 100500}
		assert.NotEqual(t, f1.Sign(rows), f2.Sign(rows))
	})
}

func TestFamily_Sign(t *testing.T) {
	f, err := NewFamily(100, 1)
	require.NoError(t, err)

	t.Run("signature has one slot per hash", func(t *testing.T) {
		sig := f.Sign([]uint32{1, 2, 3})
		assert.Equal(t, 100, len(sig))
		assert.Equal(t, 100, f.Size())
	})

	t.Run("slots stay below the modulus", func(t *testing.T) {
		sig := f.Sign([]uint32{0, 1, 1 << 20, 1<<32 - 2})
		for i, v := range sig {
			assert.Truef(t, uint64(v) < Prime, "slot %d = %d", i, v)
		}
	})

	t.Run("same rows sign identically", func(t *testing.T) {
		rows := []uint32{5, 9, 1024, 7777}
		assert.Equal(t, f.Sign(rows), f.Sign(rows))
	})

	t.Run("growing the set never raises a slot", func(t *testing.T) {
		small := f.Sign([]uint32{10, 20, 30})
		big := f.Sign([]uint32{10, 20, 30, 40, 50, 60, 70})
		for i := range small {
			assert.LessOrEqual(t, big[i], small[i])
		}
	})

	t.Run("empty set signs as sentinel slots", func(t *testing.T) {
		sig := f.Sign(nil)
		require.Equal(t, 100, len(sig))
		for _, v := range sig {
			assert.Equal(t, EmptySlot, v)
		}
		assert.True(t, Empty(sig))
	})
}

func TestSignatureAgreementTracksJaccard(t *testing.T) {
	f, err := NewFamily(200, 1)
	require.NoError(t, err)

	a := make([]uint32, 0, 100)
	b := make([]uint32, 0, 100)
	for i := uint32(0); i < 100; i++ {
		a = append(a, i)
		b = append(b, i+50) // overlap 50..99, true jaccard 1/3
	}

	sigA, sigB := f.Sign(a), f.Sign(b)
	agree := 0
	for i := range sigA {
		if sigA[i] == sigB[i] {
			agree++
		}
	}

	estimate := float64(agree) / float64(len(sigA))
	assert.InDelta(t, 1.0/3.0, estimate, 0.15)
}

func TestEmpty(t *testing.T) {
	f, err := NewFamily(8, 1)
	require.NoError(t, err)

	assert.True(t, Empty(nil))
	assert.True(t, Empty(f.Sign(nil)))
	assert.False(t, Empty(f.Sign([]uint32{1})))
}
