package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU(t *testing.T) {
	c := New[string, int](2)

	c.Set("a", 1)
	c.Set("b", 2)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	// b is now least recently used.
	c.Set("c", 3)
	_, ok = c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())

	stats := c.GetStats()
	assert.Equal(t, Stats{Hits: 1, Misses: 1, Evictions: 1, Size: 2, MaxSize: 2, HitRate: 0.5}, stats)
}

func TestGetOrLoad(t *testing.T) {
	c := New[string, string](0)
	calls := 0
	load := func() (string, error) {
		calls++
		return "loaded", nil
	}

	for range 3 {
		v, err := c.GetOrLoad("k", load)
		require.NoError(t, err)
		assert.Equal(t, "loaded", v)
	}
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, err := c.GetOrLoad("bad", func() (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get("bad")
	assert.False(t, ok)
	assert.Equal(t, DefaultSize, c.GetStats().MaxSize)
}

func TestClear(t *testing.T) {
	c := New[int, int](4)
	c.Set(1, 1)
	c.Set(2, 2)
	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.GetStats().Evictions)
}

func TestNewWithEvict(t *testing.T) {
	var dropped []string
	c := NewWithEvict[string, int](2, func(k string, _ int) {
		dropped = append(dropped, k)
	})

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	assert.Equal(t, []string{"a"}, dropped)

	c.Clear()
	assert.ElementsMatch(t, []string{"a", "b", "c"}, dropped)
}
