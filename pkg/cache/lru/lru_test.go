package lru

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRU_Capacity(t *testing.T) {
	var evicted []string
	c := New[string, int](Config{MaxSize: 2}, WithOnEvict(func(k string, _ int) {
		evicted = append(evicted, k)
	}))

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, 2, c.Len())

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestLRU_TTL(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time { return now }
	c := New[string, int](Config{TTL: time.Second}, WithClock[string, int](clock))

	c.Set("a", 1)
	now = now.Add(500 * time.Millisecond)
	_, ok := c.Get("a")
	assert.True(t, ok, "access refreshes ttl")

	now = now.Add(1500 * time.Millisecond)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestLRU_GetOrCreate(t *testing.T) {
	c := New[string, int](Config{})
	calls := 0
	create := func() int { calls++; return 7 }

	assert.Equal(t, 7, c.GetOrCreate("k", create))
	assert.Equal(t, 7, c.GetOrCreate("k", create))
	assert.Equal(t, 1, calls)

	c.Delete("k")
	assert.Equal(t, 7, c.GetOrCreate("k", create))
	assert.Equal(t, 2, calls)
}
