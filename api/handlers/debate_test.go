package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/debateflow/api"
	"github.com/BaSui01/debateflow/debate"
	"github.com/BaSui01/debateflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 测试辅助类型
// =============================================================================

// mockRunner 模拟辩论引擎
type mockRunner struct {
	result      types.ConsensusResult
	err         error
	calls       int
	gotQuestion string
	gotOpts     []debate.RunOption
	hadDeadline bool
}

func (m *mockRunner) Ask(ctx context.Context, question string, opts ...debate.RunOption) (types.ConsensusResult, error) {
	m.calls++
	m.gotQuestion = question
	m.gotOpts = opts
	_, m.hadDeadline = ctx.Deadline()
	if m.err != nil {
		return types.ConsensusResult{}, m.err
	}
	return m.result, nil
}

// postDebate 以 JSON 请求体调用辩论端点
func postDebate(h *DebateHandler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/debates", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	h.HandleDebate(w, r)
	return w
}

// =============================================================================
// 🧪 DebateHandler 测试
// =============================================================================

func TestDebateHandler_HandleDebate(t *testing.T) {
	runner := &mockRunner{
		result: types.ConsensusResult{
			SessionID:          "sess-42",
			Answer:             "shard by tenant id",
			Winner:             types.AgentClaude,
			Score:              8.7,
			Confidence:         0.91,
			Category:           types.CategoryArchitecture,
			ContributingAgents: []types.AgentID{types.AgentClaude, types.AgentDeepSeek},
			FailedAgents:       []types.AgentID{types.AgentQwen},
			Duration:           42 * time.Second,
			Verification: &types.VerificationResult{
				Required:         true,
				FactAccuracy:     92.1,
				ChallengesPassed: 3,
				ChallengesTotal:  3,
				Confidence:       0.9,
				PerVerifier: map[types.AgentID]types.VerifierScore{
					types.AgentGemini: {Accuracy: 95, Security: 90, Completeness: 88, Weighted: 92.1},
				},
			},
		},
	}
	handler := NewDebateHandler(runner, zap.NewNop())

	w := postDebate(handler, `{"question":"Should the session store be sharded?"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, "Should the session store be sharded?", runner.gotQuestion)

	var resp struct {
		Success bool               `json:"success"`
		Data    api.DebateResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	assert.True(t, resp.Success)
	assert.Equal(t, "sess-42", resp.Data.SessionID)
	assert.Equal(t, "shard by tenant id", resp.Data.Answer)
	assert.Equal(t, "claude", resp.Data.Winner)
	assert.InDelta(t, 8.7, resp.Data.Score, 1e-9)
	assert.InDelta(t, 0.91, resp.Data.Confidence, 1e-9)
	assert.Equal(t, "architecture", resp.Data.Category)
	assert.Equal(t, []string{"claude", "deepseek"}, resp.Data.ContributingAgents)
	assert.Equal(t, []string{"qwen"}, resp.Data.FailedAgents)
	assert.Equal(t, "42s", resp.Data.Duration)
	assert.False(t, resp.Data.FromCache)

	require.NotNil(t, resp.Data.Verification)
	assert.True(t, resp.Data.Verification.Required)
	assert.Equal(t, 3, resp.Data.Verification.ChallengesPassed)
	require.Contains(t, resp.Data.Verification.PerVerifier, "gemini")
	assert.InDelta(t, 92.1, resp.Data.Verification.PerVerifier["gemini"].Weighted, 1e-9)
}

func TestDebateHandler_HandleDebate_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing question",
			body: `{}`,
		},
		{
			name: "whitespace question",
			body: `{"question":"   "}`,
		},
		{
			name: "confidence threshold above one",
			body: `{"question":"q","confidence_threshold":1.5}`,
		},
		{
			name: "unparseable timeout",
			body: `{"question":"q","timeout":"banana"}`,
		},
		{
			name: "negative timeout",
			body: `{"question":"q","timeout":"-5s"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{}
			handler := NewDebateHandler(runner, zap.NewNop())

			w := postDebate(handler, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, 0, runner.calls, "非法请求不应触发辩论")

			var resp Response
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(types.ErrInvalidQuestion), resp.Error.Code)
		})
	}
}

func TestDebateHandler_HandleDebate_RejectsUnknownField(t *testing.T) {
	runner := &mockRunner{}
	handler := NewDebateHandler(runner, zap.NewNop())

	w := postDebate(handler, `{"question":"q","surprise":"field"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, runner.calls)
}

func TestDebateHandler_HandleDebate_RejectsWrongContentType(t *testing.T) {
	runner := &mockRunner{}
	handler := NewDebateHandler(runner, zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/debates", strings.NewReader(`{"question":"q"}`))
	r.Header.Set("Content-Type", "text/plain")
	handler.HandleDebate(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, runner.calls)
}

func TestDebateHandler_HandleDebate_EngineFailure(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "insufficient consensus",
			err:            types.NewDebateError(types.ErrInsufficientConsensus, types.PhaseSynthesizing, "no proposal above floor", nil),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   string(types.ErrInsufficientConsensus),
		},
		{
			name:           "all agents failed",
			err:            types.NewDebateError(types.ErrNoWinner, types.PhaseProposing, "quorum lost", nil),
			expectedStatus: http.StatusBadGateway,
			expectedCode:   string(types.ErrNoWinner),
		},
		{
			name:           "invalid plan",
			err:            types.NewError(types.ErrInvalidPlan, "unknown agent \"gpt9\" in plan"),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   string(types.ErrInvalidPlan),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{err: tt.err}
			handler := NewDebateHandler(runner, zap.NewNop())

			w := postDebate(handler, `{"question":"q"}`)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var resp Response
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.expectedCode, resp.Error.Code)
		})
	}
}

func TestDebateHandler_HandleDebate_TimeoutSetsDeadline(t *testing.T) {
	runner := &mockRunner{}
	handler := NewDebateHandler(runner, zap.NewNop())

	postDebate(handler, `{"question":"q","timeout":"30s"}`)
	assert.True(t, runner.hadDeadline, "请求级超时应转成 context 截止时间")

	runner2 := &mockRunner{}
	handler2 := NewDebateHandler(runner2, zap.NewNop())

	postDebate(handler2, `{"question":"q"}`)
	assert.False(t, runner2.hadDeadline, "未给超时不应设置截止时间")
}

func TestBuildRunOptions(t *testing.T) {
	useCache := false
	keepCache := true
	verifyOn := true
	verifyOff := false

	tests := []struct {
		name     string
		req      api.DebateRequest
		wantOpts int
	}{
		{
			name:     "bare question builds nothing",
			req:      api.DebateRequest{Question: "q"},
			wantOpts: 0,
		},
		{
			name: "every field set",
			req: api.DebateRequest{
				Question:            "q",
				ContextPath:         "./docs",
				Plan:                "claude:2,codex",
				UseCache:            &useCache,
				Verify:              &verifyOn,
				DeepReasoning:       true,
				ConfidenceThreshold: 0.9,
			},
			wantOpts: 6,
		},
		{
			name:     "use_cache true is the default and builds nothing",
			req:      api.DebateRequest{Question: "q", UseCache: &keepCache},
			wantOpts: 0,
		},
		{
			name:     "explicit verify false still builds an option",
			req:      api.DebateRequest{Question: "q", Verify: &verifyOff},
			wantOpts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := buildRunOptions(&tt.req)
			assert.Len(t, opts, tt.wantOpts)
		})
	}
}
