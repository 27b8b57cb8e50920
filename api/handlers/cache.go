package handlers

import (
	"net/http"

	"github.com/BaSui01/debateflow/api"
	"github.com/BaSui01/debateflow/cache"
	"github.com/BaSui01/debateflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🗄️ 缓存管理 Handler
// =============================================================================

// CacheManager 是缓存处理器需要的引擎切面。
type CacheManager interface {
	CacheStats() cache.CacheStats
	ClearCache()
	InvalidateCache(pred func(cache.Entry) bool) int
}

// CacheHandler 缓存管理处理器
type CacheHandler struct {
	manager CacheManager
	logger  *zap.Logger
}

// NewCacheHandler 创建缓存处理器
func NewCacheHandler(manager CacheManager, logger *zap.Logger) *CacheHandler {
	return &CacheHandler{
		manager: manager,
		logger:  logger,
	}
}

// HandleCacheStats 返回缓存计数快照
// @Summary 缓存统计
// @Description 获取缓存条目数与命中率
// @Tags 缓存
// @Produce json
// @Success 200 {object} Response{data=api.CacheStatsResponse} "缓存统计"
// @Security ApiKeyAuth
// @Router /v1/cache/stats [get]
func (h *CacheHandler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats := h.manager.CacheStats()
	WriteSuccess(w, api.CacheStatsResponse{
		Entries:     stats.Entries,
		Hits:        stats.Hits,
		Misses:      stats.Misses,
		Evictions:   stats.Evictions,
		Expirations: stats.Expirations,
		HitRate:     stats.HitRate,
	})
}

// HandleCacheClear 清空全部缓存条目
// @Summary 清空缓存
// @Description 丢弃全部缓存的辩论结果
// @Tags 缓存
// @Produce json
// @Success 200 {object} Response "已清空"
// @Security ApiKeyAuth
// @Router /v1/cache [delete]
func (h *CacheHandler) HandleCacheClear(w http.ResponseWriter, r *http.Request) {
	h.manager.ClearCache()
	h.logger.Info("cache cleared via API")
	WriteSuccess(w, map[string]any{"cleared": true})
}

// HandleCacheInvalidate 按条件清除缓存条目
// @Summary 按条件清除缓存
// @Description 按类别或置信度条件清除缓存条目,两个条件同时给出时取交集
// @Tags 缓存
// @Accept json
// @Produce json
// @Param request body api.CacheInvalidateRequest true "失效条件"
// @Success 200 {object} Response{data=api.CacheInvalidateResponse} "清除结果"
// @Failure 400 {object} Response "无效请求"
// @Security ApiKeyAuth
// @Router /v1/cache/invalidate [post]
func (h *CacheHandler) HandleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.CacheInvalidateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	if req.BelowConfidence < 0 || req.BelowConfidence > 1 {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidQuestion,
			"below_confidence must be between 0 and 1", h.logger)
		return
	}

	var preds []func(cache.Entry) bool
	if req.Category != "" {
		preds = append(preds, cache.ByCategory(types.Category(req.Category)))
	}
	if req.BelowConfidence > 0 {
		preds = append(preds, cache.BelowConfidence(req.BelowConfidence))
	}
	if len(preds) == 0 {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidQuestion,
			"at least one of category or below_confidence is required", h.logger)
		return
	}

	removed := h.manager.InvalidateCache(func(e cache.Entry) bool {
		for _, p := range preds {
			if !p(e) {
				return false
			}
		}
		return true
	})

	h.logger.Info("cache invalidated via API",
		zap.String("category", req.Category),
		zap.Float64("below_confidence", req.BelowConfidence),
		zap.Int("removed", removed),
	)

	WriteSuccess(w, api.CacheInvalidateResponse{Removed: removed})
}
