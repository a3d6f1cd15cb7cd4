package lru

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingLoader(calls map[int]int) LoadFunc[int] {
	return func(key int) (int, error) {
		calls[key]++
		return key * 10, nil
	}
}

func TestGetLoadsOncePerResidentKey(t *testing.T) {
	calls := map[int]int{}
	c, err := New(3, countingLoader(calls))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		v, err := c.Get(7)
		require.NoError(t, err)
		assert.Equal(t, 70, v)
	}
	assert.Equal(t, 1, calls[7], "resident key must not reload")
	assert.Equal(t, 1, c.Len())
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	calls := map[int]int{}
	c, err := New(2, countingLoader(calls))
	require.NoError(t, err)

	// Fill, then overflow with a third distinct key.
	for _, k := range []int{1, 2, 3} {
		_, err := c.Get(k)
		require.NoError(t, err)
	}

	assert.False(t, c.Contains(1), "key 1 was least recently used")
	assert.True(t, c.Contains(2))
	assert.True(t, c.Contains(3))

	_, err = c.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 2, calls[1], "evicted key reloads on next access")
}

func TestHitRefreshesRecency(t *testing.T) {
	calls := map[int]int{}
	c, err := New(2, countingLoader(calls))
	require.NoError(t, err)

	for _, k := range []int{1, 2, 1, 3} {
		_, err := c.Get(k)
		require.NoError(t, err)
	}

	// The touch of 1 between 2 and 3 makes 2 the eviction victim.
	assert.True(t, c.Contains(1))
	assert.False(t, c.Contains(2))
	assert.True(t, c.Contains(3))
	assert.Equal(t, 1, calls[1])
}

func TestLoaderFailureLeavesCacheIntact(t *testing.T) {
	boom := errors.New("decode failed")
	fail := false
	c, err := New(1, func(key int) (int, error) {
		if fail {
			return 0, boom
		}
		return key, nil
	})
	require.NoError(t, err)

	_, err = c.Get(1)
	require.NoError(t, err)

	fail = true
	_, err = c.Get(2)
	require.ErrorIs(t, err, boom)

	// The failed load must not have overwritten the resident entry.
	assert.True(t, c.Contains(1))
	assert.False(t, c.Contains(2))

	fail = false
	v, err := c.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestCapacityOneAlternation(t *testing.T) {
	calls := map[int]int{}
	c, err := New(1, countingLoader(calls))
	require.NoError(t, err)

	for _, k := range []int{1, 2, 1, 2} {
		_, err := c.Get(k)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls[1])
	assert.Equal(t, 2, calls[2])
}

func TestStatsAndPurge(t *testing.T) {
	calls := map[int]int{}
	c, err := New(2, countingLoader(calls))
	require.NoError(t, err)

	_, _ = c.Get(1)
	_, _ = c.Get(1)
	_, _ = c.Get(2)

	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(2), misses)

	c.Purge()
	assert.Equal(t, 0, c.Len())
	_, err = c.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 2, calls[1], "purged key reloads")
}

func TestBadCapacity(t *testing.T) {
	_, err := New(0, countingLoader(map[int]int{}))
	assert.ErrorIs(t, err, ErrBadCapacity)
}
