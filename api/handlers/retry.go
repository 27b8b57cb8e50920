package handlers

import (
	"net/http"

	"github.com/BaSui01/debateflow/api"
	"github.com/BaSui01/debateflow/retry"
	"go.uber.org/zap"
)

// =============================================================================
// 🔄 重试统计 Handler
// =============================================================================

// RetryReporter 是重试处理器需要的引擎切面。
type RetryReporter interface {
	RetryStats() retry.Snapshot
	ResetRetryStats()
}

// RetryHandler 重试统计处理器
type RetryHandler struct {
	reporter RetryReporter
	logger   *zap.Logger
}

// NewRetryHandler 创建重试统计处理器
func NewRetryHandler(reporter RetryReporter, logger *zap.Logger) *RetryHandler {
	return &RetryHandler{
		reporter: reporter,
		logger:   logger,
	}
}

// HandleRetryStats 返回重试计数快照
// @Summary 重试统计
// @Description 获取重试执行器的累计计数与成功率
// @Tags 重试
// @Produce json
// @Success 200 {object} Response{data=api.RetryStatsResponse} "重试统计"
// @Security ApiKeyAuth
// @Router /v1/retry/stats [get]
func (h *RetryHandler) HandleRetryStats(w http.ResponseWriter, r *http.Request) {
	snap := h.reporter.RetryStats()

	resp := api.RetryStatsResponse{
		TotalInvocations: snap.TotalInvocations,
		Successes:        snap.Successes,
		SuccessRate:      snap.SuccessRate,
		TotalRetries:     snap.TotalRetries,
		AvgRetries:       snap.AvgRetries,
		MaxRetries:       snap.MaxRetries,
	}
	if len(snap.ByClassification) > 0 {
		resp.ByClassification = make(map[string]int64, len(snap.ByClassification))
		for cls, n := range snap.ByClassification {
			resp.ByClassification[string(cls)] = n
		}
	}

	WriteSuccess(w, resp)
}

// HandleRetryReset 清零重试计数
// @Summary 重置重试统计
// @Description 将重试执行器的累计计数清零
// @Tags 重试
// @Produce json
// @Success 200 {object} Response "已重置"
// @Security ApiKeyAuth
// @Router /v1/retry/stats [delete]
func (h *RetryHandler) HandleRetryReset(w http.ResponseWriter, r *http.Request) {
	h.reporter.ResetRetryStats()
	h.logger.Info("retry stats reset via API")
	WriteSuccess(w, map[string]any{"reset": true})
}
