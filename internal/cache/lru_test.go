package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[string, int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Len())
}

func TestLRUTTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int, string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set(1, "one")
	c.Set(2, "two")
	now = now.Add(2 * time.Minute)
	c.Set(3, "three")

	_, ok := c.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 1, c.Len())
}

func TestLRUOverwriteAndPurge(t *testing.T) {
	c := NewLRUCache[string, int](4, 0)
	c.Set("a", 1)
	c.Set("a", 5)
	v, _ := c.Get("a")
	assert.Equal(t, 5, v)

	c.Delete("a")
	assert.Equal(t, 0, c.Len())

	c.Set("x", 1)
	c.Set("y", 2)
	c.Purge()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("x")
	assert.False(t, ok)
}

func TestManagerSweep(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string, int](4, time.Second)
	c.now = func() time.Time { return now }
	c.Set("a", 1)
	now = now.Add(time.Hour)

	m := NewManager()
	m.Register(c)
	assert.Equal(t, 1, m.Sweep())

	m.StartCleanup(10 * time.Millisecond)
	m.Stop()
	m.Stop()
}
