// 配置热重载管理器实现。
//
// 监听配置文件变更，校验通过后原子地换入新配置；
// 支持变更检测、变更通知、审计日志与失败回滚。
package config

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/types"
)

// --- 热重载类型定义 ---

// HotReloadManager 管理配置热重载
type HotReloadManager struct {
	mu sync.RWMutex

	// 当前配置
	config     *Config
	configPath string

	// 回滚支持
	previousConfig *Config      // 上一个成功应用的配置
	validateFunc   ValidateFunc // 应用前的验证钩子（可选）

	// 文件观察者
	watcher     *FileWatcher
	watcherOpts []WatcherOption

	// 回调
	changeCallbacks []ChangeCallback
	reloadCallbacks []ReloadCallback

	// 变更日志
	changeLog []ConfigChange

	// 记录器
	logger *zap.Logger

	// 运行状态
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// ChangeCallback 配置字段变更时逐条调用
type ChangeCallback func(change ConfigChange)

// ReloadCallback 整份配置换入后调用
type ReloadCallback func(oldConfig, newConfig *Config)

// ValidateFunc 应用前的验证钩子，返回 error 表示拒绝该配置
type ValidateFunc func(newConfig *Config) error

// ConfigChange 代表一次配置字段变更
type ConfigChange struct {
	// 变更时间戳
	Timestamp time.Time `json:"timestamp"`

	// 变更来源: file, api, rollback
	Source string `json:"source"`

	// 字段路径，与 YAML 键一致（例如 "log.level"）
	Path string `json:"path"`

	// 变更前的值（敏感字段会被掩蔽）
	OldValue any `json:"old_value,omitempty"`

	// 变更后的值（敏感字段会被掩蔽）
	NewValue any `json:"new_value,omitempty"`

	// 该变更是否需要重启进程才能生效
	RequiresRestart bool `json:"requires_restart"`

	// 变更是否已应用
	Applied bool `json:"applied"`

	// 变更失败时的错误信息
	Error string `json:"error,omitempty"`
}

// HotReloadableField 描述一个配置字段的热重载能力
type HotReloadableField struct {
	// Path 字段路径，与 YAML 键一致（例如 "log.level"）
	Path string

	// 字段描述
	Description string

	// RequiresRestart 指示变更该字段是否需要重启
	RequiresRestart bool

	// Sensitive 表示该字段包含敏感数据，日志与接口中掩蔽
	Sensitive bool
}

// --- 可热重载字段注册表 ---

// hotReloadableFields 定义各配置字段的热重载能力。
// 未登记的字段一律按需要重启处理。
var hotReloadableFields = map[string]HotReloadableField{
	// 日志配置 - 级别可热切，格式与输出要重建 logger
	"log.level": {
		Path:            "log.level",
		Description:     "Log level (debug, info, warn, error)",
		RequiresRestart: false,
	},
	"log.format": {
		Path:            "log.format",
		Description:     "Log format (json, console)",
		RequiresRestart: true,
	},
	"log.output_path": {
		Path:            "log.output_path",
		Description:     "Log output path",
		RequiresRestart: true,
	},

	// 辩论配置 - 置信度门槛是逐场读取的，可热调
	"debate.confidence_threshold": {
		Path:            "debate.confidence_threshold",
		Description:     "Minimum confidence for caching a debate result",
		RequiresRestart: false,
	},

	// 重试策略 - 整组可热调，经 ConfigureRetry 下发
	"retry.max_retries": {
		Path:            "retry.max_retries",
		Description:     "Maximum retry attempts per agent invocation",
		RequiresRestart: false,
	},
	"retry.initial_delay": {
		Path:            "retry.initial_delay",
		Description:     "Initial retry backoff delay",
		RequiresRestart: false,
	},
	"retry.max_delay": {
		Path:            "retry.max_delay",
		Description:     "Maximum retry backoff delay",
		RequiresRestart: false,
	},
	"retry.multiplier": {
		Path:            "retry.multiplier",
		Description:     "Exponential backoff multiplier",
		RequiresRestart: false,
	},
	"retry.jitter_range": {
		Path:            "retry.jitter_range",
		Description:     "Retry backoff jitter range",
		RequiresRestart: false,
	},
	"retry.timeout": {
		Path:            "retry.timeout",
		Description:     "Per-attempt timeout",
		RequiresRestart: false,
	},
	"retry.rate_limit_floor": {
		Path:            "retry.rate_limit_floor",
		Description:     "Minimum delay after a rate-limited failure",
		RequiresRestart: false,
	},
	"retry.rate_limit_multiplier": {
		Path:            "retry.rate_limit_multiplier",
		Description:     "Extra backoff multiplier for rate-limited failures",
		RequiresRestart: false,
	},

	// 缓存配置 - 置信度下限可热调（换入时顺带清扫），后端要重建
	"cache.min_confidence": {
		Path:            "cache.min_confidence",
		Description:     "Minimum confidence for cached entries to survive",
		RequiresRestart: false,
	},
	"cache.enabled": {
		Path:            "cache.enabled",
		Description:     "Enable the debate result cache",
		RequiresRestart: true,
	},
	"cache.store.type": {
		Path:            "cache.store.type",
		Description:     "Cache persistence backend (memory, file, redis, gorm)",
		RequiresRestart: true,
	},
	"cache.store.redis_password": {
		Path:            "cache.store.redis_password",
		Description:     "Redis password",
		RequiresRestart: true,
		Sensitive:       true,
	},
	"cache.store.dsn": {
		Path:            "cache.store.dsn",
		Description:     "Database connection string",
		RequiresRestart: true,
		Sensitive:       true,
	},

	// 服务配置 - 监听地址与认证材料都要重启
	"server.addr": {
		Path:            "server.addr",
		Description:     "HTTP listen address",
		RequiresRestart: true,
	},
	"server.metrics_addr": {
		Path:            "server.metrics_addr",
		Description:     "Metrics listen address",
		RequiresRestart: true,
	},
	"server.api_keys": {
		Path:            "server.api_keys",
		Description:     "API keys accepted by the server",
		RequiresRestart: true,
		Sensitive:       true,
	},
	"server.jwt.secret": {
		Path:            "server.jwt.secret",
		Description:     "JWT signing secret",
		RequiresRestart: true,
		Sensitive:       true,
	},
	"server.tls_cert": {
		Path:            "server.tls_cert",
		Description:     "TLS certificate path",
		RequiresRestart: true,
	},
	"server.tls_key": {
		Path:            "server.tls_key",
		Description:     "TLS private key path",
		RequiresRestart: true,
	},

	// 遥测配置 - 导出管线建立在启动期
	"telemetry.otlp_endpoint": {
		Path:            "telemetry.otlp_endpoint",
		Description:     "OTLP gRPC endpoint",
		RequiresRestart: true,
	},
}

// maxChangeLog 变更日志保留的最大条数
const maxChangeLog = 256

// --- 热重载管理器选项 ---

// HotReloadOption 配置 HotReloadManager
type HotReloadOption func(*HotReloadManager)

// WithHotReloadLogger 设置记录器
func WithHotReloadLogger(logger *zap.Logger) HotReloadOption {
	return func(m *HotReloadManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithConfigPath 设置要监听的配置文件路径
func WithConfigPath(path string) HotReloadOption {
	return func(m *HotReloadManager) {
		m.configPath = path
	}
}

// WithValidateFunc 设置应用前的验证钩子
func WithValidateFunc(fn ValidateFunc) HotReloadOption {
	return func(m *HotReloadManager) {
		m.validateFunc = fn
	}
}

// WithWatcherOptions 透传文件监听器选项（测试里用来加快轮询）
func WithWatcherOptions(opts ...WatcherOption) HotReloadOption {
	return func(m *HotReloadManager) {
		m.watcherOpts = append(m.watcherOpts, opts...)
	}
}

// --- 热重载管理器实现 ---

// NewHotReloadManager 创建一个新的热重载管理器
func NewHotReloadManager(config *Config, opts ...HotReloadOption) *HotReloadManager {
	m := &HotReloadManager{
		config:          config,
		changeCallbacks: make([]ChangeCallback, 0),
		reloadCallbacks: make([]ReloadCallback, 0),
		changeLog:       make([]ConfigChange, 0, 16),
		logger:          zap.NewNop(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start 启动热重载管理器
func (m *HotReloadManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("hot reload manager already running")
	}

	m.ctx, m.cancel = context.WithCancel(ctx)

	// 设置了配置路径才需要文件监听
	if m.configPath != "" {
		watcherOpts := append([]WatcherOption{
			WithWatcherLogger(m.logger),
			WithDebounceDelay(500 * time.Millisecond),
		}, m.watcherOpts...)

		watcher, err := NewFileWatcher([]string{m.configPath}, watcherOpts...)
		if err != nil {
			return fmt.Errorf("failed to create file watcher: %w", err)
		}

		watcher.OnChange(m.handleFileChange)

		if err := watcher.Start(m.ctx); err != nil {
			return fmt.Errorf("failed to start file watcher: %w", err)
		}

		m.watcher = watcher
	}

	m.running = true
	m.logger.Info("hot reload manager started",
		zap.String("config_path", m.configPath))

	return nil
}

// Stop 停止热重载管理器
func (m *HotReloadManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	if m.cancel != nil {
		m.cancel()
	}

	if m.watcher != nil {
		if err := m.watcher.Stop(); err != nil {
			m.logger.Error("failed to stop file watcher", zap.Error(err))
		}
	}

	m.running = false
	m.logger.Info("hot reload manager stopped")

	return nil
}

// handleFileChange 处理配置文件变更事件
func (m *HotReloadManager) handleFileChange(event FileEvent) {
	m.logger.Info("configuration file changed",
		zap.String("path", event.Path),
		zap.String("op", event.Op.String()))

	if event.Op == FileOpWrite || event.Op == FileOpCreate {
		if err := m.ReloadFromFile(); err != nil {
			m.logger.Error("failed to reload configuration", zap.Error(err))
		}
	}
}

// ReloadFromFile 从文件重新加载配置。加载或校验失败时保持
// 当前配置不动，只记一条失败日志。
func (m *HotReloadManager) ReloadFromFile() error {
	if m.configPath == "" {
		return fmt.Errorf("no config path set")
	}

	newConfig, err := NewLoader().WithConfigPath(m.configPath).Load()
	if err != nil {
		m.logger.Error("failed to load config from file, keeping current config",
			zap.Error(err), zap.String("path", m.configPath))
		return fmt.Errorf("failed to load config: %w", err)
	}

	return m.ApplyConfig(newConfig, "file")
}

// ApplyConfig 应用新配置。校验、变更检测、换入与日志更新都在
// 同一把锁内完成；回调通知在锁外执行，回调 panic 会触发回滚。
func (m *HotReloadManager) ApplyConfig(newConfig *Config, source string) error {
	m.mu.Lock()

	oldConfig := m.config

	// 1. 验证钩子，拒绝则保持当前配置
	if m.validateFunc != nil {
		if err := m.validateFunc(newConfig); err != nil {
			m.logger.Warn("config validation hook rejected new config",
				zap.Error(err), zap.String("source", source))
			m.appendChangeLocked(ConfigChange{
				Timestamp: time.Now(),
				Source:    source,
				Path:      "(validation_hook)",
				Applied:   false,
				Error:     err.Error(),
			})
			m.mu.Unlock()
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	// 2. 检测变更并按注册表标注
	changes := m.detectChanges(oldConfig, newConfig)
	var requiresRestart bool
	applied := make([]ConfigChange, 0, len(changes))

	for _, change := range changes {
		change.Source = source
		change.Timestamp = time.Now()
		if field, known := hotReloadableFields[change.Path]; known {
			change.RequiresRestart = field.RequiresRestart
			if field.Sensitive {
				change.OldValue = redactedPlaceholder
				change.NewValue = redactedPlaceholder
			}
		} else {
			change.RequiresRestart = true
		}
		if change.RequiresRestart {
			requiresRestart = true
		}
		change.Applied = true
		applied = append(applied, change)
		m.logChange(change)
	}

	// 3. 换入新配置并更新日志
	m.previousConfig = copyConfig(oldConfig)
	m.config = newConfig
	for _, change := range applied {
		m.appendChangeLocked(change)
	}

	// 复制回调列表，在锁外安全调用
	changeCallbacks := append([]ChangeCallback(nil), m.changeCallbacks...)
	reloadCallbacks := append([]ReloadCallback(nil), m.reloadCallbacks...)
	m.mu.Unlock()

	// 4. 通知回调，panic 视为应用失败并回滚
	if err := m.notifyCallbacks(changeCallbacks, reloadCallbacks, oldConfig, newConfig, applied); err != nil {
		m.mu.Lock()
		if m.config == newConfig {
			m.logger.Error("reload callback failed, rolling back", zap.Error(err))
			m.rollbackLocked(oldConfig, fmt.Sprintf("callback error: %v", err))
		} else {
			m.logger.Warn("reload callback failed but config changed concurrently, skip rollback",
				zap.Error(err))
		}
		m.mu.Unlock()
		return fmt.Errorf("config applied but callback failed: %w", err)
	}

	if requiresRestart {
		m.logger.Warn("some configuration changes require restart to take effect")
	}
	m.logger.Info("configuration reloaded",
		zap.String("source", source),
		zap.Int("changes", len(applied)),
		zap.Bool("requires_restart", requiresRestart))
	return nil
}

// notifyCallbacks 通知回调并把 panic 转成 error
func (m *HotReloadManager) notifyCallbacks(changeCallbacks []ChangeCallback, reloadCallbacks []ReloadCallback, oldConfig, newConfig *Config, changes []ConfigChange) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("callback panicked: %v", r)
		}
	}()
	for _, cb := range changeCallbacks {
		for _, change := range changes {
			cb(change)
		}
	}
	for _, cb := range reloadCallbacks {
		cb(oldConfig, newConfig)
	}
	return nil
}

// Rollback 回滚到上一个成功应用的配置
func (m *HotReloadManager) Rollback() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.previousConfig == nil {
		return fmt.Errorf("no previous config available for rollback")
	}
	m.rollbackLocked(m.previousConfig, "manual rollback")
	return nil
}

// rollbackLocked 执行回滚，调用方必须持有 m.mu 写锁
func (m *HotReloadManager) rollbackLocked(target *Config, reason string) {
	m.config = copyConfig(target)
	m.appendChangeLocked(ConfigChange{
		Timestamp: time.Now(),
		Source:    "rollback",
		Path:      "(rollback)",
		Applied:   true,
		Error:     reason,
	})
	m.logger.Warn("configuration rolled back", zap.String("reason", reason))
}

// appendChangeLocked 追加变更记录并裁剪到上限，调用方持有写锁
func (m *HotReloadManager) appendChangeLocked(change ConfigChange) {
	m.changeLog = append(m.changeLog, change)
	if len(m.changeLog) > maxChangeLog {
		m.changeLog = m.changeLog[len(m.changeLog)-maxChangeLog:]
	}
}

// detectChanges 检测新旧配置之间的字段级差异
func (m *HotReloadManager) detectChanges(oldConfig, newConfig *Config) []ConfigChange {
	var changes []ConfigChange
	compareStructs("", reflect.ValueOf(oldConfig).Elem(), reflect.ValueOf(newConfig).Elem(), &changes)
	return changes
}

// compareStructs 递归比较结构体字段，路径采用 YAML 键拼点
func compareStructs(prefix string, oldVal, newVal reflect.Value, changes *[]ConfigChange) {
	if oldVal.Kind() != reflect.Struct || newVal.Kind() != reflect.Struct {
		return
	}

	t := oldVal.Type()
	for i := 0; i < oldVal.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		path := yamlKey(field)
		if prefix != "" {
			path = prefix + "." + path
		}

		oldField := oldVal.Field(i)
		newField := newVal.Field(i)

		if oldField.Kind() == reflect.Struct {
			compareStructs(path, oldField, newField, changes)
			continue
		}
		if !reflect.DeepEqual(oldField.Interface(), newField.Interface()) {
			*changes = append(*changes, ConfigChange{
				Path:     path,
				OldValue: oldField.Interface(),
				NewValue: newField.Interface(),
			})
		}
	}
}

// yamlKey 取字段的 YAML 键名，没有 tag 时退回小写字段名
func yamlKey(field reflect.StructField) string {
	tag := field.Tag.Get("yaml")
	if tag == "" || tag == "-" {
		return strings.ToLower(field.Name)
	}
	if idx := strings.Index(tag, ","); idx >= 0 {
		tag = tag[:idx]
	}
	return tag
}

// copyConfig 深拷贝配置。Config 只有值字段和字符串切片，
// 值拷贝后重建切片即可。
func copyConfig(c *Config) *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Debate.VerifierAgents = append([]types.AgentID(nil), c.Debate.VerifierAgents...)
	out.Debate.SensitiveCategories = append([]types.Category(nil), c.Debate.SensitiveCategories...)
	out.Server.APIKeys = append([]string(nil), c.Server.APIKeys...)
	out.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	return &out
}

// logChange 记录一条配置变更
func (m *HotReloadManager) logChange(change ConfigChange) {
	fields := []zap.Field{
		zap.String("path", change.Path),
		zap.String("source", change.Source),
		zap.Bool("requires_restart", change.RequiresRestart),
	}

	// 敏感字段不落值
	if field, known := hotReloadableFields[change.Path]; !known || !field.Sensitive {
		fields = append(fields,
			zap.Any("old_value", change.OldValue),
			zap.Any("new_value", change.NewValue),
		)
	}

	m.logger.Info("configuration changed", fields...)
}

// OnChange 注册配置字段变更回调
func (m *HotReloadManager) OnChange(callback ChangeCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changeCallbacks = append(m.changeCallbacks, callback)
}

// OnReload 注册配置重载完成回调
func (m *HotReloadManager) OnReload(callback ReloadCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloadCallbacks = append(m.reloadCallbacks, callback)
}

// GetConfig 返回当前配置的副本
func (m *HotReloadManager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyConfig(m.config)
}

// GetChangeLog 返回最近的配置变更记录
func (m *HotReloadManager) GetChangeLog(limit int) []ConfigChange {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.changeLog) {
		limit = len(m.changeLog)
	}

	start := len(m.changeLog) - limit
	result := make([]ConfigChange, limit)
	copy(result, m.changeLog[start:])

	return result
}

// GetHotReloadableFields 返回可热重载字段注册表的副本
func GetHotReloadableFields() map[string]HotReloadableField {
	result := make(map[string]HotReloadableField, len(hotReloadableFields))
	for k, v := range hotReloadableFields {
		result[k] = v
	}
	return result
}

// IsHotReloadable 检查字段是否无需重启即可生效
func IsHotReloadable(path string) bool {
	field, known := hotReloadableFields[path]
	return known && !field.RequiresRestart
}
