package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/BaSui01/debateflow/api"
	"github.com/BaSui01/debateflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 📡 进度事件 Handler
// =============================================================================

// EventSource 是事件处理器需要的订阅切面。
// channel.Fanout[types.ProgressEvent] 实现它。
type EventSource interface {
	Subscribe() (<-chan types.ProgressEvent, func())
}

// EventsHandler 进度事件处理器,以 SSE 推送辩论进度
type EventsHandler struct {
	source    EventSource
	logger    *zap.Logger
	heartbeat time.Duration
}

// NewEventsHandler 创建事件处理器
func NewEventsHandler(source EventSource, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		source:    source,
		logger:    logger,
		heartbeat: 15 * time.Second,
	}
}

// HandleEvents 以 SSE 流推送进度事件
// @Summary 订阅进度事件
// @Description 以 Server-Sent Events 推送辩论进度,直到客户端断开
// @Tags 辩论
// @Produce text/event-stream
// @Param session_id query string false "只推送该会话的事件"
// @Success 200 {string} string "SSE 流"
// @Failure 500 {object} Response "内部错误"
// @Security ApiKeyAuth
// @Router /v1/events [get]
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrConfiguration,
			"streaming not supported", h.logger)
		return
	}

	// 设置 SSE 响应头
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // 禁用 nginx 缓冲
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sessionFilter := r.URL.Query().Get("session_id")

	events, cancel := h.source.Subscribe()
	defer cancel()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case <-heartbeat.C:
			// SSE 注释行,只为维持代理连接
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case ev, open := <-events:
			if !open {
				// 引擎关闭,发送结束标记
				w.Write([]byte("data: [DONE]\n\n"))
				flusher.Flush()
				return
			}
			if sessionFilter != "" && ev.SessionID != sessionFilter {
				continue
			}

			payload, err := json.Marshal(newProgressEventPayload(ev))
			if err != nil {
				h.logger.Error("failed to marshal progress event", zap.Error(err))
				continue
			}
			w.Write([]byte("event: progress\ndata: "))
			w.Write(payload)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

// newProgressEventPayload 转换进度事件
func newProgressEventPayload(ev types.ProgressEvent) api.ProgressEventPayload {
	return api.ProgressEventPayload{
		Type:      string(ev.Type),
		SessionID: ev.SessionID,
		Agent:     string(ev.Agent),
		Instance:  ev.Instance,
		Phase:     string(ev.Phase),
		Message:   ev.Message,
		Timestamp: ev.Timestamp,
	}
}
