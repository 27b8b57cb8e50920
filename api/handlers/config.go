package handlers

import (
	"net/http"

	"github.com/BaSui01/debateflow/config"
	"github.com/BaSui01/debateflow/types"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// ⚙️ 配置查看 Handler
// =============================================================================

// ConfigProvider 是配置处理器需要的引擎切面。
type ConfigProvider interface {
	Config() config.Config
}

// ConfigHandler 配置查看处理器,只读。配置变更走热加载或重启,
// 不走 API。
type ConfigHandler struct {
	provider ConfigProvider
	logger   *zap.Logger
}

// NewConfigHandler 创建配置处理器
func NewConfigHandler(provider ConfigProvider, logger *zap.Logger) *ConfigHandler {
	return &ConfigHandler{
		provider: provider,
		logger:   logger,
	}
}

// HandleGetConfig 返回脱敏后的生效配置
// @Summary 查看配置
// @Description 以 YAML 返回当前生效配置,密钥与连接串已脱敏
// @Tags 配置
// @Produce plain
// @Success 200 {string} string "YAML 配置"
// @Failure 500 {object} Response "序列化失败"
// @Security ApiKeyAuth
// @Router /v1/config [get]
func (h *ConfigHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.provider.Config()

	out, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrConfiguration,
			"failed to render config", h.logger)
		return
	}

	w.Header().Set("Content-Type", "application/x-yaml; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}
