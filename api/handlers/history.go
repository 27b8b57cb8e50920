package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/api"
	"github.com/BaSui01/debateflow/telemetry"
	"github.com/BaSui01/debateflow/types"
)

// =============================================================================
// 📜 辩论历史处理器
// =============================================================================

// HistoryLister 列出持久化的辩论历史。*telemetry.HistorySink 实现了它。
type HistoryLister interface {
	List(ctx context.Context, filter telemetry.HistoryFilter) ([]types.DebateRecord, error)
}

// HistoryHandler 处理辩论历史的查询请求。
type HistoryHandler struct {
	lister HistoryLister
	logger *zap.Logger
}

// NewHistoryHandler 创建辩论历史处理器。
func NewHistoryHandler(lister HistoryLister, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{
		lister: lister,
		logger: logger.With(zap.String("component", "history-handler")),
	}
}

// HandleListHistory 返回最近的辩论记录,新到旧排列。
// @Summary 查询辩论历史
// @Description 按类别、标记状态过滤最近的辩论记录
// @Tags history
// @Produce json
// @Param category query string false "问题类别"
// @Param flagged query bool false "只看被标记/未被标记的记录"
// @Param limit query int false "返回条数,默认 50,上限 500"
// @Success 200 {object} Response{data=api.HistoryListResponse}
// @Failure 400 {object} Response
// @Router /v1/debates/history [get]
func (h *HistoryHandler) HandleListHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := parseHistoryFilter(r)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	records, lerr := h.lister.List(r.Context(), filter)
	if lerr != nil {
		WriteError(w, types.NewError(types.ErrRetriable, "failed to load debate history").
			WithCause(lerr).
			WithHTTPStatus(http.StatusInternalServerError), h.logger)
		return
	}

	entries := make([]api.HistoryEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, newHistoryEntry(rec))
	}

	WriteSuccess(w, api.HistoryListResponse{Entries: entries})
}

// parseHistoryFilter 解析查询参数,非法值返回 400 错误。
func parseHistoryFilter(r *http.Request) (telemetry.HistoryFilter, *types.Error) {
	q := r.URL.Query()
	filter := telemetry.HistoryFilter{Category: q.Get("category")}

	if raw := q.Get("flagged"); raw != "" {
		flagged, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, types.NewError(types.ErrInvalidQuestion, "flagged must be true or false").
				WithHTTPStatus(http.StatusBadRequest)
		}
		filter.Flagged = &flagged
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return filter, types.NewError(types.ErrInvalidQuestion, "limit must be a positive integer").
				WithHTTPStatus(http.StatusBadRequest)
		}
		filter.Limit = limit
	}

	return filter, nil
}

// newHistoryEntry 把持久化记录转成 API 表示。
func newHistoryEntry(rec types.DebateRecord) api.HistoryEntry {
	return api.HistoryEntry{
		SessionID:  rec.SessionID,
		Question:   rec.Question,
		Category:   string(rec.Category),
		AgentsUsed: agentIDsToStrings(rec.AgentsUsed),
		Winner:     string(rec.Winner),
		Duration:   rec.Duration.String(),
		Confidence: rec.Confidence,
		FromCache:  rec.FromCache,
		Verified:   rec.Verified,
		Flagged:    rec.Flagged,
		FinishedAt: rec.FinishedAt,
	}
}
