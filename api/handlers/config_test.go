package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/debateflow/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🧪 测试辅助类型
// =============================================================================

// mockConfigProvider 模拟引擎的配置切面
type mockConfigProvider struct {
	cfg config.Config
}

func (m *mockConfigProvider) Config() config.Config { return m.cfg }

// =============================================================================
// 🧪 ConfigHandler 测试
// =============================================================================

func TestConfigHandler_HandleGetConfig(t *testing.T) {
	cfg := config.Config{}
	cfg.Log.Level = "info"
	cfg.Server.Addr = ":8080"
	cfg.Server.APIKeys = []string{"super-secret-key"}
	cfg.Server.JWT.Secret = "jwt-signing-secret"
	cfg.Cache.Store.RedisPassword = "hunter2"
	cfg.Cache.Store.DSN = "postgres://user:pass@db/debateflow"

	handler := NewConfigHandler(&mockConfigProvider{cfg: cfg}, zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/config", nil)
	handler.HandleGetConfig(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-yaml; charset=utf-8", w.Header().Get("Content-Type"))

	body := w.Body.String()

	// 密钥与连接串必须脱敏
	assert.NotContains(t, body, "super-secret-key")
	assert.NotContains(t, body, "jwt-signing-secret")
	assert.NotContains(t, body, "hunter2")
	assert.NotContains(t, body, "postgres://user:pass@db/debateflow")
	assert.Contains(t, body, "[REDACTED]")

	// 其余字段原样可见,且输出是合法 YAML
	var round config.Config
	require.NoError(t, yaml.Unmarshal(w.Body.Bytes(), &round))
	assert.Equal(t, "info", round.Log.Level)
	assert.Equal(t, ":8080", round.Server.Addr)
	assert.Equal(t, []string{"[REDACTED]"}, round.Server.APIKeys)
}

func TestConfigHandler_HandleGetConfig_EmptyConfigHasNoPlaceholder(t *testing.T) {
	handler := NewConfigHandler(&mockConfigProvider{}, zap.NewNop())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/config", nil)
	handler.HandleGetConfig(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	// 没配置密钥就没有可脱敏的字段
	assert.NotContains(t, w.Body.String(), "[REDACTED]")
}
