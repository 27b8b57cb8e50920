package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// setupGormStore 在临时目录建一个 sqlite 库并准备好表结构。
// 生产路径上表由迁移创建,测试里直接建表。
func setupGormStore(t *testing.T) *GormStore {
	dsn := filepath.Join(t.TempDir(), "cache.db")

	setup, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, setup.AutoMigrate(&cacheRow{}))
	sqlDB, err := setup.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	store, err := NewGormStore(StoreConfig{
		Type:   StoreGorm,
		Driver: "sqlite",
		DSN:    dsn,
	}, zap.NewNop())
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestGormStore_FlushAndLoadRoundTrip(t *testing.T) {
	store := setupGormStore(t)
	ctx := context.Background()

	newer := time.Now().Truncate(time.Second)
	older := newer.Add(-time.Hour)

	require.NoError(t, store.Flush(ctx, []Record{
		{Fingerprint: "fp-old", Result: sampleResult("old"), CreatedAt: older, Confidence: 0.5, Category: "coding"},
		{Fingerprint: "fp-new", Result: sampleResult("new"), CreatedAt: newer, Confidence: 0.95, Category: "security", ContextPath: "/src", ContextSig: "sig"},
	}))

	out, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)

	// 新记录在前
	assert.Equal(t, "fp-new", out[0].Fingerprint)
	assert.Equal(t, "new", out[0].Result.Answer)
	assert.Equal(t, 0.95, out[0].Confidence)
	assert.Equal(t, "/src", out[0].ContextPath)
	assert.Equal(t, "fp-old", out[1].Fingerprint)
}

func TestGormStore_FlushOverwrites(t *testing.T) {
	store := setupGormStore(t)
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
	require.Len(t, out, 1, "刷写是整体覆盖")
	assert.Equal(t, "fp-3", out[0].Fingerprint)
}

func TestGormStore_EmptyFlushClearsTable(t *testing.T) {
	store := setupGormStore(t)
	ctx := context.Background()

	require.NoError(t, store.Flush(ctx, []Record{
		{Fingerprint: "fp-1", Result: sampleResult("a"), CreatedAt: time.Now()},
	}))
	require.NoError(t, store.Flush(ctx, nil))

	out, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGormStore_LoadSkipsBrokenRows(t *testing.T) {
	store := setupGormStore(t)
	ctx := context.Background()

	require.NoError(t, store.Flush(ctx, []Record{
		{Fingerprint: "fp-good", Result: sampleResult("good"), CreatedAt: time.Now()},
	}))

	// 直接塞入一行坏负载
	broken := cacheRow{
		Fingerprint: "fp-bad",
		Result:      "{broken",
		CreatedAt:   time.Now(),
	}
	require.NoError(t, store.db.Create(&broken).Error)

	out, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "fp-good", out[0].Fingerprint)
}

func TestNewGormStore_UnsupportedDriver(t *testing.T) {
	_, err := NewGormStore(StoreConfig{DSN: "whatever", Driver: "oracle"}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported gorm driver")
}
