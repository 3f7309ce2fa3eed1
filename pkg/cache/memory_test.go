package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	Steps int `json:"steps"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "day:2026-10-17:steps", point{Steps: 42}, time.Minute))

	var got point
	require.NoError(t, mc.Get(ctx, "day:2026-10-17:steps", &got))
	assert.Equal(t, 42, got.Steps)

	assert.ErrorIs(t, mc.Get(ctx, "missing", &got), ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", 1, time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var v int
	assert.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	for _, k := range []string{"day:2026-10-17:steps", "day:2026-10-17:hourly", "day:2026-10-16:steps"} {
		require.NoError(t, mc.Set(ctx, k, 1, time.Minute))
	}

	require.NoError(t, mc.DeleteByPattern(ctx, "day:2026-10-17:*"))
	assert.Equal(t, 1, mc.Len())

	var v int
	require.NoError(t, mc.Get(ctx, "day:2026-10-16:steps", &v))

	assert.Error(t, mc.DeleteByPattern(ctx, "day:["))
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "a", 1, time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", 2, time.Minute))
	time.Sleep(time.Millisecond)

	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	require.NoError(t, mc.Set(ctx, "c", 3, time.Minute))

	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "a", &v))
}

func TestLayeredCacheFillsL1(t *testing.T) {
	remote := NewMemoryCache()
	defer remote.Close()
	lc := NewLayeredCache(remote, time.Minute)
	defer lc.Close()
	ctx := context.Background()

	require.NoError(t, remote.Set(ctx, "k", point{Steps: 7}, time.Minute))

	var got point
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, 7, got.Steps)

	// served from L1 after the remote copy is gone
	require.NoError(t, remote.Delete(ctx, "k"))
	got = point{}
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, 7, got.Steps)

	require.NoError(t, lc.DeleteByPattern(ctx, "*"))
	assert.ErrorIs(t, lc.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "day:2026-10-17:steps", Key("day", "2026-10-17", "steps"))
	assert.Equal(t, "day", Key("day"))
}
