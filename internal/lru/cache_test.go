package lru

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_Add(t *testing.T) {
	t.Run("just add with no eviction", func(t *testing.T) {
		evicted := 0
		onEvict := func(k uint64, v interface{}) {
			evicted++
		}

		c, err := NewCache(2, 1024, onEvict)
		require.NoError(t, err)

		for i := 0; i < 100; i += 5 {
			c.Add(uint64(i), fmt.Sprintf("Value %d", i), 10)
		}

		for i := 0; i < 100; i += 5 {
			v, ok := c.Get(uint64(i))
			require.True(t, ok)
			require.NotNil(t, v)
			assert.Exactly(t, fmt.Sprintf("Value %d", i), v)
		}

		require.Equal(t, 0, evicted)
		assert.Equal(t, 20, c.Count())
	})

	t.Run("add with eviction on a single shard", func(t *testing.T) {
		evicted := 0
		onEvict := func(k uint64, v interface{}) {
			evicted++
		}

		c, err := NewCache(1, 50, onEvict)
		require.NoError(t, err)

		for i := 0; i < 20; i++ {
			c.Add(uint64(i), fmt.Sprintf("Value %d", i), 10)
		}

		assert.Equal(t, 15, evicted)
		assert.Equal(t, 5, c.Count())

		for i := 0; i < 15; i++ {
			_, ok := c.Get(uint64(i))
			assert.Falsef(t, ok, "expected key %d to have been evicted", i)
		}
		for i := 15; i < 20; i++ {
			v, ok := c.Get(uint64(i))
			require.Truef(t, ok, "expected key %d to be in cache", i)
			assert.Exactly(t, fmt.Sprintf("Value %d", i), v)
		}
	})

	t.Run("invalid configuration", func(t *testing.T) {
		_, err := NewCache(0, 1024, nil)
		assert.ErrorIs(t, err, ErrInvalidSharding)

		_, err = NewCache(4, 2, nil)
		assert.ErrorIs(t, err, ErrIllegalCapacity)
	})
}

func TestCache_Remove(t *testing.T) {
	c, err := NewCache(2, 1024, nil)
	require.NoError(t, err)

	c.Add(1, "one", 3)
	c.Add(2, "two", 3)
	require.Equal(t, 2, c.Count())

	c.Remove(1)
	_, ok := c.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Count())

	// removing a missing key is a no-op
	c.Remove(100500)
	assert.Equal(t, 1, c.Count())
}

func TestCache_Purge(t *testing.T) {
	c, err := NewCache(4, 1024, nil)
	require.NoError(t, err)

	for i := 0; i < 32; i++ {
		c.Add(uint64(i), i, 8)
	}
	require.Equal(t, 32, c.Count())

	c.Purge()
	assert.Equal(t, 0, c.Count())
	for i := 0; i < 32; i++ {
		_, ok := c.Get(uint64(i))
		assert.False(t, ok)
	}
}

func TestCache_Keys(t *testing.T) {
	c, err := NewCache(2, 1024, nil)
	require.NoError(t, err)

	c.Add(10, "a", 1)
	c.Add(20, "b", 1)
	c.Add(30, "c", 1)

	assert.ElementsMatch(t, []uint64{10, 20, 30}, c.Keys())
}

func TestNullCache(t *testing.T) {
	var c NullCache

	assert.False(t, c.Add(1, "x", 1))
	_, ok := c.Get(1)
	assert.False(t, ok)
	c.Remove(1)
	c.Purge()
	assert.Equal(t, 0, c.Count())
}
