package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRedisStore(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisStore) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	store, err := NewRedisStore(StoreConfig{
		Type:      StoreRedis,
		RedisAddr: mr.Addr(),
		TTL:       ttl,
	}, zap.NewNop())
	require.NoError(t, err)

	return mr, store
}

func TestRedisStore_FlushAndLoadRoundTrip(t *testing.T) {
	mr, store := setupRedisStore(t, 0)
	defer mr.Close()
	defer store.Close()

	ctx := context.Background()
	newer := time.Now().Truncate(time.Millisecond)
	older := newer.Add(-time.Hour)

	require.NoError(t, store.Flush(ctx, []Record{
		{Fingerprint: "fp-old", Result: sampleResult("old"), CreatedAt: older, Confidence: 0.6, Category: "coding"},
		{Fingerprint: "fp-new", Result: sampleResult("new"), CreatedAt: newer, Confidence: 0.9, Category: "security", ContextSig: "sig"},
	}))

	out, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)

	// 新记录在前
	assert.Equal(t, "fp-new", out[0].Fingerprint)
	assert.Equal(t, "new", out[0].Result.Answer)
	assert.Equal(t, 0.9, out[0].Confidence)
	assert.Equal(t, "security", out[0].Category)
	assert.Equal(t, "sig", out[0].ContextSig)
	assert.True(t, out[0].CreatedAt.Equal(newer))
	assert.Equal(t, "fp-old", out[1].Fingerprint)
}

func TestRedisStore_FlushDeletesStaleKeys(t *testing.T) {
	mr, store := setupRedisStore(t, 0)
	defer mr.Close()
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Flush(ctx, []Record{
		{Fingerprint: "fp-1", Result: sampleResult("a"), CreatedAt: time.Now()},
		{Fingerprint: "fp-2", Result: sampleResult("b"), CreatedAt: time.Now()},
	}))
	require.NoError(t, store.Flush(ctx, []Record{
		{Fingerprint: "fp-2", Result: sampleResult("b"), CreatedAt: time.Now()},
	}))

	out, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1, "覆盖语义要求清除快照之外的键")
	assert.Equal(t, "fp-2", out[0].Fingerprint)
	assert.False(t, mr.Exists(redisKeyPrefix+"fp-1"))
}

func TestRedisStore_TTLExpiresRecords(t *testing.T) {
	mr, store := setupRedisStore(t, time.Minute)
	defer mr.Close()
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Flush(ctx, []Record{
		{Fingerprint: "fp-1", Result: sampleResult("a"), CreatedAt: time.Now()},
	}))

	out, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)

	mr.FastForward(2 * time.Minute)

	out, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, out, "超过 TTL 的键应已过期")
}

func TestRedisStore_LoadSkipsBrokenRecords(t *testing.T) {
	mr, store := setupRedisStore(t, 0)
	defer mr.Close()
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Flush(ctx, []Record{
		{Fingerprint: "fp-good", Result: sampleResult("good"), CreatedAt: time.Now()},
	}))

	// 手工塞入一条坏记录
	mr.HSet(redisKeyPrefix+"fp-bad", "result", "{broken", "created_at", "not-a-time")

	out, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1, "坏记录跳过,好记录保留")
	assert.Equal(t, "fp-good", out[0].Fingerprint)
}

func TestRedisStore_EmptyFlushClearsAll(t *testing.T) {
	mr, store := setupRedisStore(t, 0)
	defer mr.Close()
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Flush(ctx, []Record{
		{Fingerprint: "fp-1", Result: sampleResult("a"), CreatedAt: time.Now()},
	}))
	require.NoError(t, store.Flush(ctx, nil))

	out, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, out)
}
