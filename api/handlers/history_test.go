package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaSui01/debateflow/api"
	"github.com/BaSui01/debateflow/telemetry"
	"github.com/BaSui01/debateflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 测试辅助类型
// =============================================================================

// mockHistoryLister 模拟历史存储
type mockHistoryLister struct {
	records   []types.DebateRecord
	err       error
	gotFilter telemetry.HistoryFilter
	calls     int
}

func (m *mockHistoryLister) List(ctx context.Context, filter telemetry.HistoryFilter) ([]types.DebateRecord, error) {
	m.calls++
	m.gotFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	return m.records, nil
}

// getHistory 调用历史端点
func getHistory(h *HistoryHandler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	h.HandleListHistory(w, r)
	return w
}

// =============================================================================
// 🧪 HistoryHandler 测试
// =============================================================================

func TestHistoryHandler_HandleListHistory(t *testing.T) {
	finished := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lister := &mockHistoryLister{
		records: []types.DebateRecord{
			{
				SessionID:  "sess-2",
				Question:   "should the payment worker pool be resized",
				Category:   types.CategoryFinancial,
				AgentsUsed: []types.AgentID{types.AgentDeepSeek, types.AgentClaude},
				Winner:     types.AgentDeepSeek,
				Duration:   42 * time.Second,
				Confidence: 0.87,
				Verified:   true,
				FinishedAt: finished,
			},
			{
				SessionID:  "sess-1",
				Question:   "should the session store be sharded",
				Category:   types.CategoryArchitecture,
				AgentsUsed: []types.AgentID{types.AgentClaude, types.AgentGemini},
				Winner:     types.AgentClaude,
				Duration:   21 * time.Second,
				Confidence: 0.8,
				FromCache:  true,
				FinishedAt: finished.Add(-time.Hour),
			},
		},
	}
	handler := NewHistoryHandler(lister, zap.NewNop())

	w := getHistory(handler, "/v1/debates/history")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool                    `json:"success"`
		Data    api.HistoryListResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	assert.True(t, resp.Success)
	require.Len(t, resp.Data.Entries, 2)

	first := resp.Data.Entries[0]
	assert.Equal(t, "sess-2", first.SessionID)
	assert.Equal(t, "financial", first.Category)
	assert.Equal(t, []string{"deepseek", "claude"}, first.AgentsUsed)
	assert.Equal(t, "deepseek", first.Winner)
	assert.Equal(t, "42s", first.Duration)
	assert.InDelta(t, 0.87, first.Confidence, 1e-9)
	assert.True(t, first.Verified)
	assert.True(t, first.FinishedAt.Equal(finished))

	assert.True(t, resp.Data.Entries[1].FromCache)
}

func TestHistoryHandler_HandleListHistory_QueryParsing(t *testing.T) {
	lister := &mockHistoryLister{}
	handler := NewHistoryHandler(lister, zap.NewNop())

	w := getHistory(handler, "/v1/debates/history?category=financial&flagged=true&limit=10")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "financial", lister.gotFilter.Category)
	require.NotNil(t, lister.gotFilter.Flagged)
	assert.True(t, *lister.gotFilter.Flagged)
	assert.Equal(t, 10, lister.gotFilter.Limit)
}

func TestHistoryHandler_HandleListHistory_FlaggedFalse(t *testing.T) {
	lister := &mockHistoryLister{}
	handler := NewHistoryHandler(lister, zap.NewNop())

	getHistory(handler, "/v1/debates/history?flagged=false")

	require.NotNil(t, lister.gotFilter.Flagged)
	assert.False(t, *lister.gotFilter.Flagged)
}

func TestHistoryHandler_HandleListHistory_NoFilters(t *testing.T) {
	lister := &mockHistoryLister{}
	handler := NewHistoryHandler(lister, zap.NewNop())

	w := getHistory(handler, "/v1/debates/history")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, lister.gotFilter.Category)
	assert.Nil(t, lister.gotFilter.Flagged)
	assert.Zero(t, lister.gotFilter.Limit)
}

func TestHistoryHandler_HandleListHistory_Validation(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{
			name:   "flagged not a bool",
			target: "/v1/debates/history?flagged=maybe",
		},
		{
			name:   "limit not a number",
			target: "/v1/debates/history?limit=abc",
		},
		{
			name:   "limit zero",
			target: "/v1/debates/history?limit=0",
		},
		{
			name:   "limit negative",
			target: "/v1/debates/history?limit=-5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := &mockHistoryLister{}
			handler := NewHistoryHandler(lister, zap.NewNop())

			w := getHistory(handler, tt.target)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, 0, lister.calls, "非法参数不应触发查询")
		})
	}
}

func TestHistoryHandler_HandleListHistory_StoreFailure(t *testing.T) {
	lister := &mockHistoryLister{err: errors.New("database locked")}
	handler := NewHistoryHandler(lister, zap.NewNop())

	w := getHistory(handler, "/v1/debates/history")

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrRetriable), resp.Error.Code)
	// 内部细节不出响应
	assert.NotContains(t, resp.Error.Message, "database locked")
}
