package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryCachePutGet(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	c.Put(ctx, "list:skip=0", []byte("page-one"), time.Minute)
	c.Put(ctx, "list:skip=50", []byte("page-two"), time.Minute)

	value, ok := c.Get(ctx, "list:skip=0")
	require.True(t, ok)
	require.Equal(t, []byte("page-one"), value)

	_, ok = c.Get(ctx, "list:skip=100")
	require.False(t, ok)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	c.Put(ctx, "stats", []byte("cached"), 10*time.Millisecond)
	_, ok := c.Get(ctx, "stats")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get(ctx, "stats")
	require.False(t, ok)
}

func TestMemoryCacheInvalidateAllDropsEveryEntry(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	c.Put(ctx, "a", []byte("1"), time.Minute)
	c.Put(ctx, "b", []byte("2"), time.Minute)
	c.InvalidateAll(ctx)

	_, ok := c.Get(ctx, "a")
	require.False(t, ok)
	_, ok = c.Get(ctx, "b")
	require.False(t, ok)
	require.Zero(t, c.Size())

	// Entries written after the invalidation are hits again.
	c.Put(ctx, "a", []byte("3"), time.Minute)
	value, ok := c.Get(ctx, "a")
	require.True(t, ok)
	require.Equal(t, []byte("3"), value)
}

func TestMemoryCacheOverwrite(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	c.Put(ctx, "key", []byte("old"), time.Minute)
	c.Put(ctx, "key", []byte("new"), time.Minute)

	value, ok := c.Get(ctx, "key")
	require.True(t, ok)
	require.Equal(t, []byte("new"), value)
	require.Equal(t, 1, c.Size())
}
