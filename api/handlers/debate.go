package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/debateflow/api"
	"github.com/BaSui01/debateflow/debate"
	"github.com/BaSui01/debateflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 💬 辩论接口 Handler
// =============================================================================

// DebateRunner 是辩论处理器需要的引擎切面。
type DebateRunner interface {
	Ask(ctx context.Context, question string, opts ...debate.RunOption) (types.ConsensusResult, error)
}

// DebateHandler 辩论接口处理器
type DebateHandler struct {
	runner DebateRunner
	logger *zap.Logger
}

// NewDebateHandler 创建辩论处理器
func NewDebateHandler(runner DebateRunner, logger *zap.Logger) *DebateHandler {
	return &DebateHandler{
		runner: runner,
		logger: logger,
	}
}

// HandleDebate 处理辩论请求
// @Summary 发起辩论
// @Description 将问题交给多智能体辩论并返回共识答案
// @Tags 辩论
// @Accept json
// @Produce json
// @Param request body api.DebateRequest true "辩论请求"
// @Success 200 {object} Response{data=api.DebateResponse} "辩论结果"
// @Failure 400 {object} Response "无效请求"
// @Failure 422 {object} Response "未达成可用共识"
// @Failure 502 {object} Response "全部智能体失败"
// @Failure 504 {object} Response "辩论超时"
// @Security ApiKeyAuth
// @Router /v1/debates [post]
func (h *DebateHandler) HandleDebate(w http.ResponseWriter, r *http.Request) {
	// 验证 Content-Type
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	// 解码请求
	var req api.DebateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	// 验证请求
	if err := h.validateDebateRequest(&req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	// 设置超时
	ctx := r.Context()
	if req.Timeout != "" {
		timeout, _ := time.ParseDuration(req.Timeout)
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// 交给引擎辩论
	start := time.Now()
	result, err := h.runner.Ask(ctx, req.Question, buildRunOptions(&req)...)
	if err != nil {
		WriteFailure(w, err, h.logger)
		return
	}

	// 记录日志
	h.logger.Info("debate completed",
		zap.String("session_id", result.SessionID),
		zap.String("category", string(result.Category)),
		zap.String("winner", string(result.Winner)),
		zap.Float64("confidence", result.Confidence),
		zap.Bool("from_cache", result.FromCache),
		zap.Duration("duration", time.Since(start)),
	)

	WriteSuccess(w, newDebateResponse(result))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// validateDebateRequest 验证辩论请求
func (h *DebateHandler) validateDebateRequest(req *api.DebateRequest) *types.Error {
	if strings.TrimSpace(req.Question) == "" {
		return types.NewError(types.ErrInvalidQuestion, "question is required")
	}

	if req.ConfidenceThreshold < 0 || req.ConfidenceThreshold > 1 {
		return types.NewError(types.ErrInvalidQuestion, "confidence_threshold must be between 0 and 1")
	}

	if req.Timeout != "" {
		if d, err := time.ParseDuration(req.Timeout); err != nil || d <= 0 {
			return types.NewError(types.ErrInvalidQuestion, "timeout must be a positive duration like 120s")
		}
	}

	return nil
}

// buildRunOptions 将请求字段转换为运行选项,缺省字段不产生选项
func buildRunOptions(req *api.DebateRequest) []debate.RunOption {
	var opts []debate.RunOption

	if req.ContextPath != "" {
		opts = append(opts, debate.WithContextPath(req.ContextPath))
	}
	if req.Plan != "" {
		opts = append(opts, debate.WithPlan(req.Plan))
	}
	if req.UseCache != nil && !*req.UseCache {
		opts = append(opts, debate.WithoutCache())
	}
	if req.Verify != nil {
		if *req.Verify {
			opts = append(opts, debate.WithVerification())
		} else {
			opts = append(opts, debate.WithoutVerification())
		}
	}
	if req.DeepReasoning {
		opts = append(opts, debate.WithDeepReasoning())
	}
	if req.ConfidenceThreshold > 0 {
		opts = append(opts, debate.WithConfidenceThreshold(req.ConfidenceThreshold))
	}

	return opts
}

// =============================================================================
// 🔄 类型转换辅助函数
// =============================================================================

// newDebateResponse 转换为 API 响应
func newDebateResponse(res types.ConsensusResult) *api.DebateResponse {
	return &api.DebateResponse{
		SessionID:          res.SessionID,
		Answer:             res.Answer,
		Winner:             string(res.Winner),
		Score:              res.Score,
		Confidence:         res.Confidence,
		Category:           string(res.Category),
		ContributingAgents: agentIDsToStrings(res.ContributingAgents),
		FailedAgents:       agentIDsToStrings(res.FailedAgents),
		Duration:           res.Duration.String(),
		FromCache:          res.FromCache,
		Verification:       newVerificationDetail(res.Verification),
	}
}

// newVerificationDetail 转换核验明细
func newVerificationDetail(v *types.VerificationResult) *api.VerificationDetail {
	if v == nil {
		return nil
	}

	detail := &api.VerificationDetail{
		Required:         v.Required,
		FactAccuracy:     v.FactAccuracy,
		ChallengesPassed: v.ChallengesPassed,
		ChallengesTotal:  v.ChallengesTotal,
		Confidence:       v.Confidence,
		Flagged:          v.Flagged,
		Issues:           v.Issues,
	}
	if len(v.PerVerifier) > 0 {
		detail.PerVerifier = make(map[string]api.VerifierScoreDetail, len(v.PerVerifier))
		for id, s := range v.PerVerifier {
			detail.PerVerifier[string(id)] = api.VerifierScoreDetail{
				Accuracy:     s.Accuracy,
				Security:     s.Security,
				Completeness: s.Completeness,
				Weighted:     s.Weighted,
			}
		}
	}
	return detail
}

// agentIDsToStrings 转换智能体标识列表
func agentIDsToStrings(ids []types.AgentID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
