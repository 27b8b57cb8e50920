// =============================================================================
// 📦 DebateFlow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("debateflow.yaml").
//	    WithEnvPrefix("DEBATEFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/debateflow/types"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 DebateFlow 的完整配置结构
type Config struct {
	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Debate 辩论编排配置
	Debate DebateConfig `yaml:"debate" env:"DEBATE"`

	// Retry 重试策略配置
	Retry RetryConfig `yaml:"retry" env:"RETRY"`

	// Cache 结果缓存配置
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// Backend 执行后端配置
	Backend BackendConfig `yaml:"backend" env:"BACKEND"`

	// AgentsFile 花名册 YAML 路径，空值使用内置花名册
	AgentsFile string `yaml:"agents_file" env:"AGENTS_FILE"`

	// Telemetry 遥测导出配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Server HTTP 服务配置
	Server ServerConfig `yaml:"server" env:"SERVER"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径: stdout, stderr 或文件路径
	OutputPath string `yaml:"output_path" env:"OUTPUT_PATH"`
}

// DebateConfig 辩论编排配置
type DebateConfig struct {
	// 整场辩论的全局预算
	GlobalTimeout time.Duration `yaml:"global_timeout" env:"GLOBAL_TIMEOUT"`
	// 提案与改进阶段各自的预算
	StageTimeout time.Duration `yaml:"stage_timeout" env:"STAGE_TIMEOUT"`
	// 存活 Agent 法定人数
	Quorum int `yaml:"quorum" env:"QUORUM"`
	// 高危问题的实例总数上限
	MaxInstancesCritical int `yaml:"max_instances_critical" env:"MAX_INSTANCES_CRITICAL"`
	// 达到该档位才允许并行实例: trivial, low, medium, high, critical
	ParallelThreshold types.Level `yaml:"parallel_threshold" env:"PARALLEL_THRESHOLD"`
	// 协调 Agent，空值只用启发式选型
	CoordinatorAgent types.AgentID `yaml:"coordinator_agent" env:"COORDINATOR_AGENT"`
	// 裁判 Agent
	JudgeAgent types.AgentID `yaml:"judge_agent" env:"JUDGE_AGENT"`
	// 验证 Agent 候选列表
	VerifierAgents []types.AgentID `yaml:"verifier_agents" env:"VERIFIER_AGENTS"`
	// 触发自动验证的问题类别
	SensitiveCategories []types.Category `yaml:"sensitive_categories" env:"SENSITIVE_CATEGORIES"`
	// 置信度低于该值的结果不写缓存，0 不设门槛
	ConfidenceThreshold float64 `yaml:"confidence_threshold" env:"CONFIDENCE_THRESHOLD"`
	// 进度事件缓冲大小
	EventBuffer int `yaml:"event_buffer" env:"EVENT_BUFFER"`
}

// RetryConfig 重试策略配置，与 retry.Policy 字段一一对应
type RetryConfig struct {
	// 最大重试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 首次重试延迟
	InitialDelay time.Duration `yaml:"initial_delay" env:"INITIAL_DELAY"`
	// 延迟上限
	MaxDelay time.Duration `yaml:"max_delay" env:"MAX_DELAY"`
	// 指数退避倍率
	Multiplier float64 `yaml:"multiplier" env:"MULTIPLIER"`
	// 抖动幅度 [0, 1]
	JitterRange float64 `yaml:"jitter_range" env:"JITTER_RANGE"`
	// 单次尝试超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 限流类失败的延迟下限
	RateLimitFloor time.Duration `yaml:"rate_limit_floor" env:"RATE_LIMIT_FLOOR"`
	// 限流类失败的额外倍率
	RateLimitMultiplier float64 `yaml:"rate_limit_multiplier" env:"RATE_LIMIT_MULTIPLIER"`
}

// CacheConfig 结果缓存配置
type CacheConfig struct {
	// 是否启用缓存
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 容量上限，超出按 LRU 淘汰
	MaxEntries int `yaml:"max_entries" env:"MAX_ENTRIES"`
	// 条目最大存活期
	MaxAge time.Duration `yaml:"max_age" env:"MAX_AGE"`
	// 启动装载后低于该置信度的条目直接清除，0 不清
	MinConfidence float64 `yaml:"min_confidence" env:"MIN_CONFIDENCE"`
	// 持久化刷写周期
	FlushInterval time.Duration `yaml:"flush_interval" env:"FLUSH_INTERVAL"`
	// 持久化后端
	Store StoreConfig `yaml:"store" env:"STORE"`
}

// StoreConfig 缓存持久化后端配置
type StoreConfig struct {
	// 后端类型: memory, file, redis, gorm
	Type string `yaml:"type" env:"TYPE"`
	// file 后端的存储路径
	Path string `yaml:"path" env:"PATH"`
	// redis 后端连接参数
	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	// gorm 后端驱动: sqlite, postgres
	Driver string `yaml:"driver" env:"DRIVER"`
	// gorm 后端连接串
	DSN string `yaml:"dsn" env:"DSN"`
	// gorm 后端连接池上限，0 取默认值
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
}

// BackendConfig 执行后端配置
type BackendConfig struct {
	// 单次 Agent 调用的默认预算
	InvokeTimeout time.Duration `yaml:"invoke_timeout" env:"INVOKE_TIMEOUT"`
	// 回答长度上限，0 不截断
	MaxOutputChars int `yaml:"max_output_chars" env:"MAX_OUTPUT_CHARS"`
	// HTTP 传输的每 Agent 出站速率
	HTTPRateRPS   float64 `yaml:"http_rate_rps" env:"HTTP_RATE_RPS"`
	HTTPRateBurst int     `yaml:"http_rate_burst" env:"HTTP_RATE_BURST"`
}

// TelemetryConfig 遥测导出配置
type TelemetryConfig struct {
	// 是否启用 OTel 导出
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP gRPC 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率 [0, 1]
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	// 监听地址
	Addr string `yaml:"addr" env:"ADDR"`
	// Prometheus 指标监听地址，空值不开指标端口
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时；SSE 端点单独豁免
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// TLS 证书与私钥路径，两者齐备时服务走 HTTPS
	TLSCert string `yaml:"tls_cert" env:"TLS_CERT"`
	TLSKey  string `yaml:"tls_key" env:"TLS_KEY"`
	// API Key 列表，非空时启用 Key 认证
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
	// JWT 认证配置
	JWT JWTConfig `yaml:"jwt" env:"JWT"`
	// 入站限流
	RateRPS   float64 `yaml:"rate_rps" env:"RATE_RPS"`
	RateBurst int     `yaml:"rate_burst" env:"RATE_BURST"`
	// CORS 允许来源
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
}

// JWTConfig JWT 认证配置
type JWTConfig struct {
	// 是否启用 JWT 认证
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 签名密钥
	Secret string `yaml:"secret" env:"SECRET"`
	// 签发方
	Issuer string `yaml:"issuer" env:"ISSUER"`
	// 令牌有效期
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "DEBATEFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 内置校验 + 自定义验证器
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片；具名字符串类型（AgentID 等）逐元素赋值
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			out := reflect.MakeSlice(field.Type(), len(parts), len(parts))
			for i, part := range parts {
				out.Index(i).SetString(strings.TrimSpace(part))
			}
			field.Set(out)
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// knownStoreTypes 缓存持久化后端的合法类型
var knownStoreTypes = map[string]bool{
	"": true, "memory": true, "file": true, "redis": true, "gorm": true,
}

// knownLogLevels 日志级别合法值
var knownLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if !knownLogLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Sprintf("unknown log format %q", c.Log.Format))
	}

	if c.Debate.Quorum < 1 {
		errs = append(errs, "debate quorum must be at least 1")
	}
	if c.Debate.GlobalTimeout <= 0 {
		errs = append(errs, "debate global_timeout must be positive")
	}
	if c.Debate.StageTimeout <= 0 {
		errs = append(errs, "debate stage_timeout must be positive")
	}
	if c.Debate.ConfidenceThreshold < 0 || c.Debate.ConfidenceThreshold > 1 {
		errs = append(errs, "debate confidence_threshold must be within [0, 1]")
	}

	if c.Retry.MaxRetries < 0 {
		errs = append(errs, "retry max_retries must not be negative")
	}
	if c.Retry.JitterRange < 0 || c.Retry.JitterRange > 1 {
		errs = append(errs, "retry jitter_range must be within [0, 1]")
	}

	if !knownStoreTypes[c.Cache.Store.Type] {
		errs = append(errs, fmt.Sprintf("unknown cache store type %q", c.Cache.Store.Type))
	}
	if c.Cache.MinConfidence < 0 || c.Cache.MinConfidence > 1 {
		errs = append(errs, "cache min_confidence must be within [0, 1]")
	}

	if c.Server.Addr == "" {
		errs = append(errs, "server addr must not be empty")
	}
	if c.Server.JWT.Enabled && c.Server.JWT.Secret == "" {
		errs = append(errs, "server jwt secret must be set when jwt is enabled")
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		errs = append(errs, "server tls_cert and tls_key must be set together")
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry sample_rate must be within [0, 1]")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// =============================================================================
// 👥 花名册加载
// =============================================================================

// rosterFile 花名册文件结构
type rosterFile struct {
	Agents []types.Agent `yaml:"agents"`
}

// LoadRoster 从 YAML 文件加载 Agent 花名册。每个条目都经过
// types.Agent 校验，空文件视为错误。
func LoadRoster(path string) ([]types.Agent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster file: %w", err)
	}

	var roster rosterFile
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("failed to parse roster file: %w", err)
	}
	if len(roster.Agents) == 0 {
		return nil, fmt.Errorf("roster file %s defines no agents", path)
	}

	for _, agent := range roster.Agents {
		if err := agent.Validate(); err != nil {
			return nil, fmt.Errorf("invalid roster entry: %w", err)
		}
	}
	return roster.Agents, nil
}

// =============================================================================
// 🔒 脱敏视图
// =============================================================================

// redactedPlaceholder 敏感字段的展示替身
const redactedPlaceholder = "[REDACTED]"

// Redacted 返回脱敏副本：密钥、密码与连接串掩蔽后可安全
// 写日志或经接口外发。
func (c *Config) Redacted() *Config {
	out := *c

	if out.Cache.Store.RedisPassword != "" {
		out.Cache.Store.RedisPassword = redactedPlaceholder
	}
	if out.Cache.Store.DSN != "" {
		out.Cache.Store.DSN = redactedPlaceholder
	}
	if out.Server.JWT.Secret != "" {
		out.Server.JWT.Secret = redactedPlaceholder
	}
	if len(out.Server.APIKeys) > 0 {
		keys := make([]string, len(out.Server.APIKeys))
		for i := range keys {
			keys[i] = redactedPlaceholder
		}
		out.Server.APIKeys = keys
	}

	return &out
}
