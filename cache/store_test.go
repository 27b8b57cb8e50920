package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewStore_DefaultsToMemory(t *testing.T) {
	store, err := NewStore(StoreConfig{}, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, store)

	records, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records, "内存后端不持久化")
	assert.NoError(t, store.Flush(context.Background(), []Record{{Fingerprint: "fp"}}))
	assert.NoError(t, store.Close())
}

func TestNewStore_UnknownType(t *testing.T) {
	_, err := NewStore(StoreConfig{Type: "etcd"}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported cache store type")
}

func TestNewStore_GormRequiresDSN(t *testing.T) {
	_, err := NewStore(StoreConfig{Type: StoreGorm}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn")
}

func TestNewStore_RedisConnectFailure(t *testing.T) {
	_, err := NewStore(StoreConfig{Type: StoreRedis, RedisAddr: "localhost:9999"}, zap.NewNop())
	assert.Error(t, err)
}

func TestFileStore_RequiresPath(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}

func TestFileStore_LoadMissingFileIsEmpty(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "cache.json"))
	require.NoError(t, err)

	records, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestFileStore_FlushAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.json")
	store, err := NewFileStore(path)
	require.NoError(t, err, "父目录应自动创建")

	ctx := context.Background()
	in := []Record{
		{
			Fingerprint: "fp-1",
			Result:      sampleResult("first"),
			CreatedAt:   time.Now().Truncate(time.Second),
			Confidence:  0.9,
			Category:    "coding",
		},
		{
			Fingerprint: "fp-2",
			Result:      sampleResult("second"),
			CreatedAt:   time.Now().Add(-time.Minute).Truncate(time.Second),
			Confidence:  0.7,
			Category:    "security",
			ContextSig:  "sig-1",
		},
	}

	require.NoError(t, store.Flush(ctx, in))

	// 原子写不应留下临时文件
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	out, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "fp-1", out[0].Fingerprint)
	assert.Equal(t, "first", out[0].Result.Answer)
	assert.Equal(t, 0.7, out[1].Confidence)
	assert.Equal(t, "sig-1", out[1].ContextSig)
}

func TestFileStore_FlushOverwrites(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "cache.json"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Flush(ctx, []Record{
		{Fingerprint: "fp-1", Result: sampleResult("a"), CreatedAt: time.Now()},
		{Fingerprint: "fp-2", Result: sampleResult("b"), CreatedAt: time.Now()},
	}))
	require.NoError(t, store.Flush(ctx, []Record{
		{Fingerprint: "fp-3", Result: sampleResult("c"), CreatedAt: time.Now()},
	}))

	out, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1, "刷写是整体覆盖而非追加")
	assert.Equal(t, "fp-3", out[0].Fingerprint)
}

func TestFileStore_LoadCorruptedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	assert.Error(t, err)
}
