// 配置热重载相关测试。
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/debateflow/types"
)

// --- 文件操作枚举 ---

func TestFileOp_String(t *testing.T) {
	tests := []struct {
		op       FileOp
		expected string
	}{
		{FileOpCreate, "CREATE"},
		{FileOpWrite, "WRITE"},
		{FileOpRemove, "REMOVE"},
		{FileOp(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.op.String())
		})
	}
}

// --- 热重载管理器基础 ---

func TestHotReloadManager_New(t *testing.T) {
	cfg := DefaultConfig()
	manager := NewHotReloadManager(cfg)

	require.NotNil(t, manager)
	assert.Equal(t, cfg, manager.GetConfig())
}

func TestHotReloadManager_GetConfigReturnsCopy(t *testing.T) {
	cfg := DefaultConfig()
	manager := NewHotReloadManager(cfg)

	got := manager.GetConfig()
	got.Debate.Quorum = 99
	got.Server.APIKeys = append(got.Server.APIKeys, "sneaky")

	// 改副本不影响管理器持有的配置
	assert.Equal(t, 3, manager.GetConfig().Debate.Quorum)
	assert.Empty(t, manager.GetConfig().Server.APIKeys)
}

func TestHotReloadManager_StartStop(t *testing.T) {
	manager := NewHotReloadManager(DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, manager.Start(ctx))

	// 重复启动报错
	err := manager.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	require.NoError(t, manager.Stop())
	// 重复停止是空操作
	require.NoError(t, manager.Stop())
}

// --- ApplyConfig ---

func TestHotReloadManager_ApplyConfig(t *testing.T) {
	cfg := DefaultConfig()
	manager := NewHotReloadManager(cfg)

	var reloadCalled bool
	manager.OnReload(func(oldConfig, newConfig *Config) {
		reloadCalled = true
		assert.Equal(t, "info", oldConfig.Log.Level)
		assert.Equal(t, "debug", newConfig.Log.Level)
	})

	newCfg := DefaultConfig()
	newCfg.Log.Level = "debug"

	require.NoError(t, manager.ApplyConfig(newCfg, "test"))

	assert.True(t, reloadCalled)
	assert.Equal(t, "debug", manager.GetConfig().Log.Level)

	changes := manager.GetChangeLog(10)
	require.Len(t, changes, 1)
	assert.Equal(t, "log.level", changes[0].Path)
	assert.Equal(t, "test", changes[0].Source)
	assert.True(t, changes[0].Applied)
	assert.False(t, changes[0].RequiresRestart)
}

func TestHotReloadManager_ApplyConfig_MarksRestartRequired(t *testing.T) {
	manager := NewHotReloadManager(DefaultConfig())

	newCfg := DefaultConfig()
	newCfg.Server.Addr = ":9999"

	require.NoError(t, manager.ApplyConfig(newCfg, "test"))

	changes := manager.GetChangeLog(10)
	require.Len(t, changes, 1)
	assert.Equal(t, "server.addr", changes[0].Path)
	assert.True(t, changes[0].RequiresRestart)
}

func TestHotReloadManager_ApplyConfig_UnknownFieldDefaultsToRestart(t *testing.T) {
	manager := NewHotReloadManager(DefaultConfig())

	// debate.quorum 未登记在注册表里，按保守路径走
	newCfg := DefaultConfig()
	newCfg.Debate.Quorum = 2

	require.NoError(t, manager.ApplyConfig(newCfg, "test"))

	changes := manager.GetChangeLog(10)
	require.Len(t, changes, 1)
	assert.Equal(t, "debate.quorum", changes[0].Path)
	assert.True(t, changes[0].RequiresRestart)
}

func TestHotReloadManager_ApplyConfig_RedactsSensitiveValues(t *testing.T) {
	manager := NewHotReloadManager(DefaultConfig())

	newCfg := DefaultConfig()
	newCfg.Server.JWT.Secret = "super-secret"
	newCfg.Server.APIKeys = []string{"key-one"}

	require.NoError(t, manager.ApplyConfig(newCfg, "test"))

	changes := manager.GetChangeLog(10)
	require.Len(t, changes, 2)
	for _, change := range changes {
		assert.Equal(t, redactedPlaceholder, change.OldValue, "敏感字段旧值要掩蔽: %s", change.Path)
		assert.Equal(t, redactedPlaceholder, change.NewValue, "敏感字段新值要掩蔽: %s", change.Path)
	}

	// 配置本体不受掩蔽影响
	assert.Equal(t, "super-secret", manager.GetConfig().Server.JWT.Secret)
}

func TestHotReloadManager_ApplyConfig_ValidationHookRejects(t *testing.T) {
	manager := NewHotReloadManager(DefaultConfig(),
		WithValidateFunc(func(newConfig *Config) error {
			if newConfig.Debate.Quorum < 3 {
				return fmt.Errorf("quorum too small for this deployment")
			}
			return nil
		}))

	newCfg := DefaultConfig()
	newCfg.Debate.Quorum = 1

	err := manager.ApplyConfig(newCfg, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")

	// 当前配置保持不动
	assert.Equal(t, 3, manager.GetConfig().Debate.Quorum)

	// 留下一条未应用的审计记录
	changes := manager.GetChangeLog(10)
	require.Len(t, changes, 1)
	assert.Equal(t, "(validation_hook)", changes[0].Path)
	assert.False(t, changes[0].Applied)
}

func TestHotReloadManager_CallbackPanicRollsBack(t *testing.T) {
	cfg := DefaultConfig()
	manager := NewHotReloadManager(cfg)

	manager.OnReload(func(oldConfig, newConfig *Config) {
		panic("subsystem rejected the new config")
	})

	newCfg := DefaultConfig()
	newCfg.Log.Level = "debug"

	err := manager.ApplyConfig(newCfg, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "callback failed")

	// 回滚到旧配置
	assert.Equal(t, "info", manager.GetConfig().Log.Level)

	// 审计日志里有回滚记录
	var sawRollback bool
	for _, change := range manager.GetChangeLog(0) {
		if change.Path == "(rollback)" {
			sawRollback = true
		}
	}
	assert.True(t, sawRollback, "变更日志应当记录回滚")
}

func TestHotReloadManager_OnChangePerField(t *testing.T) {
	manager := NewHotReloadManager(DefaultConfig())

	var mu sync.Mutex
	var received []ConfigChange
	manager.OnChange(func(change ConfigChange) {
		mu.Lock()
		received = append(received, change)
		mu.Unlock()
	})

	newCfg := DefaultConfig()
	newCfg.Log.Level = "warn"
	newCfg.Retry.MaxRetries = 5

	require.NoError(t, manager.ApplyConfig(newCfg, "test"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)

	paths := []string{received[0].Path, received[1].Path}
	assert.Contains(t, paths, "log.level")
	assert.Contains(t, paths, "retry.max_retries")
}

// --- Rollback ---

func TestHotReloadManager_Rollback(t *testing.T) {
	manager := NewHotReloadManager(DefaultConfig())

	newCfg := DefaultConfig()
	newCfg.Log.Level = "debug"
	require.NoError(t, manager.ApplyConfig(newCfg, "test"))
	require.Equal(t, "debug", manager.GetConfig().Log.Level)

	require.NoError(t, manager.Rollback())
	assert.Equal(t, "info", manager.GetConfig().Log.Level)
}

func TestHotReloadManager_RollbackWithoutHistory(t *testing.T) {
	manager := NewHotReloadManager(DefaultConfig())

	err := manager.Rollback()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no previous config")
}

// --- 文件驱动的重载 ---

func TestHotReloadManager_ReloadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "debateflow.yaml")

	fileConfig := `
log:
  level: "warn"
debate:
  quorum: 2
`
	require.NoError(t, os.WriteFile(tmpFile, []byte(fileConfig), 0644))

	manager := NewHotReloadManager(DefaultConfig(), WithConfigPath(tmpFile))

	require.NoError(t, manager.ReloadFromFile())

	got := manager.GetConfig()
	assert.Equal(t, "warn", got.Log.Level)
	assert.Equal(t, 2, got.Debate.Quorum)
}

func TestHotReloadManager_ReloadFromFile_NoPath(t *testing.T) {
	manager := NewHotReloadManager(DefaultConfig())

	err := manager.ReloadFromFile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no config path set")
}

func TestHotReloadManager_ReloadFromFile_InvalidKeepsCurrent(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "debateflow.yaml")

	// 法定人数为 0 过不了校验
	require.NoError(t, os.WriteFile(tmpFile, []byte("debate:\n  quorum: 0\n"), 0644))

	manager := NewHotReloadManager(DefaultConfig(), WithConfigPath(tmpFile))

	err := manager.ReloadFromFile()
	require.Error(t, err)

	// 坏配置被拒，当前配置原样保留
	assert.Equal(t, 3, manager.GetConfig().Debate.Quorum)
}

func TestHotReloadManager_FileWatchTriggersReload(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "debateflow.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("debate:\n  quorum: 3\n"), 0644))

	manager := NewHotReloadManager(DefaultConfig(),
		WithConfigPath(tmpFile),
		WithWatcherOptions(
			WithPollInterval(10*time.Millisecond),
			WithDebounceDelay(20*time.Millisecond),
		))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, manager.Start(ctx))
	t.Cleanup(func() { manager.Stop() })

	// 改写配置文件，等热重载把新值换进来
	require.NoError(t, os.WriteFile(tmpFile,
		[]byte("debate:\n  quorum: 2\nlog:\n  level: \"debug\"\n"), 0644))

	require.Eventually(t, func() bool {
		got := manager.GetConfig()
		return got.Debate.Quorum == 2 && got.Log.Level == "debug"
	}, 3*time.Second, 20*time.Millisecond, "文件变更应当触发自动重载")
}

// --- 变更检测 ---

func TestDetectChanges_UsesYAMLPaths(t *testing.T) {
	manager := NewHotReloadManager(DefaultConfig())

	oldCfg := DefaultConfig()
	newCfg := DefaultConfig()
	newCfg.Log.Level = "debug"
	newCfg.Server.JWT.Secret = "s3cret"
	newCfg.Debate.VerifierAgents = []types.AgentID{types.AgentQwen}

	changes := manager.detectChanges(oldCfg, newCfg)

	paths := make([]string, 0, len(changes))
	for _, change := range changes {
		paths = append(paths, change.Path)
	}
	assert.ElementsMatch(t, []string{
		"log.level",
		"server.jwt.secret",
		"debate.verifier_agents",
	}, paths)
}

func TestDetectChanges_NoChanges(t *testing.T) {
	manager := NewHotReloadManager(DefaultConfig())
	changes := manager.detectChanges(DefaultConfig(), DefaultConfig())
	assert.Empty(t, changes)
}

// --- 可热重载字段注册表 ---

func TestGetHotReloadableFields(t *testing.T) {
	fields := GetHotReloadableFields()

	assert.NotEmpty(t, fields)
	assert.Contains(t, fields, "log.level")
	assert.Contains(t, fields, "retry.max_retries")
	assert.Contains(t, fields, "server.addr")
}

func TestIsHotReloadable(t *testing.T) {
	// 无需重启即可生效的字段
	assert.True(t, IsHotReloadable("log.level"))
	assert.True(t, IsHotReloadable("retry.max_retries"))
	assert.True(t, IsHotReloadable("debate.confidence_threshold"))
	assert.True(t, IsHotReloadable("cache.min_confidence"))

	// 要重启的字段
	assert.False(t, IsHotReloadable("server.addr"))
	assert.False(t, IsHotReloadable("cache.store.type"))

	// 未知字段
	assert.False(t, IsHotReloadable("unknown.field"))
}

// --- 深拷贝 ---

func TestCopyConfig_Independent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.APIKeys = []string{"original"}

	copied := copyConfig(cfg)
	copied.Server.APIKeys[0] = "mutated"
	copied.Debate.VerifierAgents[0] = types.AgentQwen

	assert.Equal(t, "original", cfg.Server.APIKeys[0])
	assert.Equal(t, types.AgentClaude, cfg.Debate.VerifierAgents[0])
}

func TestCopyConfig_Nil(t *testing.T) {
	assert.Nil(t, copyConfig(nil))
}
