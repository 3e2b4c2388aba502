package records

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return s, rdb
}

func TestCachedSource_ReadThrough(t *testing.T) {
	mr, rdb := newTestRedis(t)
	next := &stubSource{snaps: []Snapshot{DemoSnapshot()}}
	src := NewCachedSource(next, rdb, time.Minute, zap.NewNop())
	ctx := context.Background()

	first, err := src.Fetch(ctx)
	require.NoError(t, err)
	second, err := src.Fetch(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, first.Products[0].Title, second.Products[0].Title)
	assert.True(t, mr.Exists(DefaultCacheKey))

	mr.FastForward(2 * time.Minute)
	_, err = src.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedSource_Invalidate(t *testing.T) {
	_, rdb := newTestRedis(t)
	next := &stubSource{snaps: []Snapshot{DemoSnapshot()}}
	src := NewCachedSource(next, rdb, time.Minute, nil)
	ctx := context.Background()

	_, err := src.Fetch(ctx)
	require.NoError(t, err)
	require.NoError(t, src.Invalidate(ctx))
	_, err = src.Fetch(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, next.calls)
}

func TestCachedSource_RedisDownFallsThrough(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()

	next := &stubSource{snaps: []Snapshot{DemoSnapshot()}}
	src := NewCachedSource(next, rdb, time.Minute, zap.NewNop())

	snap, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Users, 3)
}

func TestCachedSource_CorruptEntryFallsThrough(t *testing.T) {
	mr, rdb := newTestRedis(t)
	require.NoError(t, mr.Set(DefaultCacheKey, "{not json"))

	next := &stubSource{snaps: []Snapshot{DemoSnapshot()}}
	src := NewCachedSource(next, rdb, time.Minute, nil)

	_, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls)
}
