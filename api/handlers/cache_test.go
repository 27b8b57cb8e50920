package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BaSui01/debateflow/api"
	"github.com/BaSui01/debateflow/cache"
	"github.com/BaSui01/debateflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 测试辅助类型
// =============================================================================

// mockCacheManager 模拟引擎的缓存切面
type mockCacheManager struct {
	stats    cache.CacheStats
	cleared  bool
	lastPred func(cache.Entry) bool
	removed  int
}

func (m *mockCacheManager) CacheStats() cache.CacheStats { return m.stats }

func (m *mockCacheManager) ClearCache() { m.cleared = true }

func (m *mockCacheManager) InvalidateCache(pred func(cache.Entry) bool) int {
	m.lastPred = pred
	return m.removed
}

// entryWith 构造一条带元数据的缓存条目
func entryWith(cat types.Category, confidence float64) cache.Entry {
	return cache.Entry{
		Fingerprint: "fp",
		Meta: cache.EntryMeta{
			Category:   cat,
			Confidence: confidence,
		},
	}
}

// postInvalidate 以 JSON 请求体调用失效端点
func postInvalidate(h *CacheHandler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/cache/invalidate", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	h.HandleCacheInvalidate(w, r)
	return w
}

// =============================================================================
// 🧪 CacheHandler 测试
// =============================================================================

func TestCacheHandler_HandleCacheStats(t *testing.T) {
	manager := &mockCacheManager{
		stats: cache.CacheStats{
			Entries:     12,
			Hits:        90,
			Misses:      10,
			Evictions:   3,
			Expirations: 2,
			HitRate:     0.9,
		},
	}
	handler := NewCacheHandler(manager, zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/cache/stats", nil)
	handler.HandleCacheStats(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool                   `json:"success"`
		Data    api.CacheStatsResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	assert.True(t, resp.Success)
	assert.Equal(t, 12, resp.Data.Entries)
	assert.Equal(t, int64(90), resp.Data.Hits)
	assert.Equal(t, int64(10), resp.Data.Misses)
	assert.Equal(t, int64(3), resp.Data.Evictions)
	assert.Equal(t, int64(2), resp.Data.Expirations)
	assert.InDelta(t, 0.9, resp.Data.HitRate, 1e-9)
}

func TestCacheHandler_HandleCacheClear(t *testing.T) {
	manager := &mockCacheManager{}
	handler := NewCacheHandler(manager, zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodDelete, "/v1/cache", nil)
	handler.HandleCacheClear(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, manager.cleared)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
}

func TestCacheHandler_HandleCacheInvalidate_ByCategory(t *testing.T) {
	manager := &mockCacheManager{removed: 4}
	handler := NewCacheHandler(manager, zap.NewNop())

	w := postInvalidate(handler, `{"category":"coding"}`)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool                        `json:"success"`
		Data    api.CacheInvalidateResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 4, resp.Data.Removed)

	// 传给引擎的谓词只命中指定类别
	require.NotNil(t, manager.lastPred)
	assert.True(t, manager.lastPred(entryWith(types.CategoryCoding, 0.9)))
	assert.False(t, manager.lastPred(entryWith(types.CategoryGeneral, 0.9)))
}

func TestCacheHandler_HandleCacheInvalidate_BothConditionsIntersect(t *testing.T) {
	manager := &mockCacheManager{removed: 1}
	handler := NewCacheHandler(manager, zap.NewNop())

	w := postInvalidate(handler, `{"category":"coding","below_confidence":0.8}`)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, manager.lastPred)

	// 两个条件同时给出时取交集
	assert.True(t, manager.lastPred(entryWith(types.CategoryCoding, 0.5)))
	assert.False(t, manager.lastPred(entryWith(types.CategoryCoding, 0.9)))
	assert.False(t, manager.lastPred(entryWith(types.CategoryGeneral, 0.5)))
}

func TestCacheHandler_HandleCacheInvalidate_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "no condition at all",
			body: `{}`,
		},
		{
			name: "below_confidence above one",
			body: `{"below_confidence":1.5}`,
		},
		{
			name: "below_confidence negative",
			body: `{"below_confidence":-0.1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := &mockCacheManager{}
			handler := NewCacheHandler(manager, zap.NewNop())

			w := postInvalidate(handler, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Nil(t, manager.lastPred, "非法请求不应触发失效")
		})
	}
}

func TestCacheHandler_HandleCacheInvalidate_RejectsWrongContentType(t *testing.T) {
	manager := &mockCacheManager{}
	handler := NewCacheHandler(manager, zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/cache/invalidate", strings.NewReader(`{"category":"coding"}`))
	r.Header.Set("Content-Type", "text/plain")
	handler.HandleCacheInvalidate(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, manager.lastPred)
}
