package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryCache(t *testing.T, config Config) *MemoryCache {
	t.Helper()
	c := NewMemoryCache(config)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	c := newTestMemoryCache(t, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestMemoryCache_Miss(t *testing.T) {
	c := newTestMemoryCache(t, DefaultConfig())
	_, err := c.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := newTestMemoryCache(t, Config{DefaultTTL: time.Minute})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	now = now.Add(59 * time.Second)
	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_NegativeTTLNeverExpires(t *testing.T) {
	c := newTestMemoryCache(t, DefaultConfig())
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), -1))
	now = now.Add(1000 * time.Hour)
	_, err := c.Get(ctx, "k")
	assert.NoError(t, err)
}

func TestMemoryCache_DeleteAndClose(t *testing.T) {
	c := newTestMemoryCache(t, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, c.Delete(ctx, "a"))
	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Close())
	_, err = c.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_ValuesAreCopied(t *testing.T) {
	c := newTestMemoryCache(t, DefaultConfig())
	ctx := context.Background()

	buf := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", buf, 0))
	buf[0] = 'x'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestMemoryCache_CancelledContext(t *testing.T) {
	c := newTestMemoryCache(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, c.Set(ctx, "k", nil, 0), context.Canceled)
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryCache_SweepDropsUnreadExpiredEntries(t *testing.T) {
	c := newTestMemoryCache(t, Config{DefaultTTL: time.Minute})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "old", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "keep", []byte("2"), -1))
	now = now.Add(30 * time.Second)
	require.NoError(t, c.Set(ctx, "new", []byte("3"), 0))

	now = now.Add(45 * time.Second)
	assert.Equal(t, 1, c.sweep())
	assert.Equal(t, 2, c.size())

	now = now.Add(time.Hour)
	assert.Equal(t, 1, c.sweep())
	assert.Equal(t, 1, c.size())
	_, err := c.Get(ctx, "keep")
	assert.NoError(t, err)
}

func TestMemoryCache_BackgroundSweep(t *testing.T) {
	c := newTestMemoryCache(t, Config{DefaultTTL: time.Millisecond, CleanupInterval: 5 * time.Millisecond})
	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 0))

	assert.Eventually(t, func() bool { return c.size() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
