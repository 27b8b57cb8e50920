package handlers

import (
	"net/http"
	"strings"

	"github.com/BaSui01/debateflow/api"
	"github.com/BaSui01/debateflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🤖 智能体目录 Handler
// =============================================================================

// AgentDirectory 是智能体处理器需要的引擎切面。
type AgentDirectory interface {
	Registry() *types.Registry
}

// AgentHandler 智能体目录处理器
type AgentHandler struct {
	directory AgentDirectory
	logger    *zap.Logger
}

// NewAgentHandler 创建智能体处理器
func NewAgentHandler(directory AgentDirectory, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{
		directory: directory,
		logger:    logger,
	}
}

// HandleListAgents 列出全部已注册的智能体
// @Summary 智能体列表
// @Description 按注册顺序返回全部智能体
// @Tags 智能体
// @Produce json
// @Success 200 {object} Response{data=api.AgentListResponse} "智能体列表"
// @Security ApiKeyAuth
// @Router /v1/agents [get]
func (h *AgentHandler) HandleListAgents(w http.ResponseWriter, r *http.Request) {
	agents := h.directory.Registry().Agents()

	result := make([]api.AgentInfo, 0, len(agents))
	for _, a := range agents {
		result = append(result, toAgentInfo(a))
	}

	WriteSuccess(w, api.AgentListResponse{Agents: result})
}

// HandleGetAgent 获取单个智能体信息
// @Summary 智能体详情
// @Description 按标识获取单个智能体
// @Tags 智能体
// @Produce json
// @Param id path string true "智能体标识"
// @Success 200 {object} Response{data=api.AgentInfo} "智能体信息"
// @Failure 404 {object} Response "智能体不存在"
// @Security ApiKeyAuth
// @Router /v1/agents/{id} [get]
func (h *AgentHandler) HandleGetAgent(w http.ResponseWriter, r *http.Request) {
	agentID := extractAgentID(r)
	if agentID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidQuestion,
			"agent id is required", h.logger)
		return
	}

	a, err := h.directory.Registry().Get(types.AgentID(agentID))
	if err != nil {
		WriteError(w, types.NewError(types.ErrUnknownAgent, "agent not found").
			WithHTTPStatus(http.StatusNotFound), h.logger)
		return
	}

	WriteSuccess(w, toAgentInfo(a))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// toAgentInfo 转换注册表条目,命令行细节不出 API
func toAgentInfo(a types.Agent) api.AgentInfo {
	kind := "command"
	if a.Endpoint != "" {
		kind = "http"
	}
	return api.AgentInfo{
		ID:                    string(a.ID),
		Name:                  a.Name,
		Role:                  a.Role,
		Strengths:             a.Strengths,
		Kind:                  kind,
		SupportsDeepReasoning: a.SupportsDeepReasoning,
		CostPerKiloChars:      a.CostPerKiloChars,
	}
}

// extractAgentID 从 URL 路径提取智能体标识。
// 同时支持 /v1/agents/{id}（PathValue）与前缀裁剪两种方式。
func extractAgentID(r *http.Request) string {
	if id := r.PathValue("id"); id != "" {
		return id
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/agents/")
	if path != "" && path != r.URL.Path && !strings.Contains(path, "/") {
		return path
	}
	return ""
}
