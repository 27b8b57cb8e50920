// Package debateflow provides a top-level convenience entry point for running
// multi-agent debates with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/debateflow"
//
//	eng, err := debateflow.New(debateflow.WithConfigFile("debateflow.yaml"))
//	result, err := eng.Ask(ctx, "How should the session store be sharded?")
//
// New resolves configuration (explicit > file > environment > defaults),
// builds the agent registry, executor, selector, consensus engine, verifier
// and cache, and returns an Engine that delegates to [debate.Orchestrator].
package debateflow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/debateflow/backend"
	"github.com/BaSui01/debateflow/cache"
	"github.com/BaSui01/debateflow/config"
	"github.com/BaSui01/debateflow/consensus"
	"github.com/BaSui01/debateflow/debate"
	"github.com/BaSui01/debateflow/retry"
	"github.com/BaSui01/debateflow/selection"
	"github.com/BaSui01/debateflow/telemetry"
	"github.com/BaSui01/debateflow/types"
	"github.com/BaSui01/debateflow/verify"
)

// Option configures the engine created by New.
type Option func(*options)

type options struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	registry   *types.Registry
	invoker    backend.Invoker
	store      cache.Store
	sinks      []telemetry.Sink
}

// WithConfig sets a pre-built configuration. It is validated by New;
// the engine keeps the pointer, so callers must not mutate it afterwards.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithConfigFile loads configuration from the given YAML file, with
// DEBATEFLOW_* environment variables applied on top. Ignored when
// WithConfig is also given.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithLogger sets a custom zap logger. When omitted, New builds one from
// the log section of the configuration. Note that log-level hot reload via
// ApplyConfig only works with the built-in logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRegistry sets a custom agent registry. Overrides both the default
// roster and the agents_file configuration key.
func WithRegistry(registry *types.Registry) Option {
	return func(o *options) { o.registry = registry }
}

// WithInvoker replaces the CLI/HTTP invoker on the executor. Intended for
// tests and embedders that bring their own transport.
func WithInvoker(inv backend.Invoker) Option {
	return func(o *options) { o.invoker = inv }
}

// WithCacheStore attaches a pre-built persistence store to the cache,
// bypassing the store factory. The store is loaded immediately and flushed
// on the configured interval.
func WithCacheStore(store cache.Store) Option {
	return func(o *options) { o.store = store }
}

// WithTelemetrySink adds a sink for completed debate records. May be given
// more than once; sinks are fanned out in order. Defaults to a log sink on
// the engine logger.
func WithTelemetrySink(sink telemetry.Sink) Option {
	return func(o *options) {
		if sink != nil {
			o.sinks = append(o.sinks, sink)
		}
	}
}

// Engine 是门面类型:持有装配完成的编排器与其协作组件,
// 并提供热更新入口(ApplyConfig)与运维只读视图。
type Engine struct {
	mu       sync.RWMutex
	cfg      *config.Config
	logger   *zap.Logger
	level    zap.AtomicLevel
	hasLevel bool
	registry *types.Registry
	executor *backend.Executor
	cache    *cache.DebateCache
	orch     *debate.Orchestrator
}

// New assembles a ready-to-use debate engine.
func New(opts ...Option) (*Engine, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	cfg := o.cfg
	if cfg == nil {
		loader := config.NewLoader()
		if o.configPath != "" {
			loader = loader.WithConfigPath(o.configPath)
		}
		loaded, err := loader.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	} else if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := o.logger
	var level zap.AtomicLevel
	ownLogger := logger == nil
	if ownLogger {
		var err error
		logger, level, err = NewLogger(cfg.Log)
		if err != nil {
			return nil, err
		}
	}

	registry := o.registry
	if registry == nil {
		if cfg.AgentsFile != "" {
			agents, err := config.LoadRoster(cfg.AgentsFile)
			if err != nil {
				return nil, fmt.Errorf("load agent roster: %w", err)
			}
			registry, err = types.NewRegistry(agents)
			if err != nil {
				return nil, fmt.Errorf("build agent registry: %w", err)
			}
		} else {
			registry = types.DefaultRegistry()
		}
	}

	executor := backend.NewExecutor(registry, backendConfig(cfg.Backend), retryPolicy(cfg.Retry), logger)
	if o.invoker != nil {
		executor.SetInvoker(o.invoker)
	}

	selector := selection.NewSelector(executor, registry, selectionConfig(cfg.Debate), logger)
	engine := consensus.NewEngine(executor, registry, consensusConfig(cfg.Debate), logger)
	verifier := verify.New(executor, registry, verifyConfig(cfg.Debate), logger)

	cacheCfg := cacheConfig(cfg.Cache)
	dcache := cache.New(cacheCfg, logger)
	if o.store != nil {
		dcache.AttachStore(o.store, cfg.Cache.FlushInterval)
	} else if cfg.Cache.Enabled && cacheCfg.Store.Type != "" && cacheCfg.Store.Type != cache.StoreMemory {
		store, err := cache.NewStore(cacheCfg.Store, logger)
		if err != nil {
			// 持久化失败降级为纯内存,不阻塞引擎启动。
			logger.Warn("cache store unavailable, continuing memory-only",
				zap.String("type", string(cacheCfg.Store.Type)),
				zap.Error(err))
		} else {
			dcache.AttachStore(store, cfg.Cache.FlushInterval)
		}
	}
	// 载入持久层后按置信度下限清理一轮,淘汰历史低质量条目。
	if cfg.Cache.MinConfidence > 0 {
		if n := dcache.Invalidate(cache.BelowConfidence(cfg.Cache.MinConfidence)); n > 0 {
			logger.Info("evicted low-confidence cache entries",
				zap.Int("count", n),
				zap.Float64("floor", cfg.Cache.MinConfidence))
		}
	}

	var sink telemetry.Sink
	switch len(o.sinks) {
	case 0:
		sink = telemetry.NewLogSink(logger)
	case 1:
		sink = o.sinks[0]
	default:
		sink = telemetry.NewMultiSink(o.sinks...)
	}

	orch, err := debate.New(debate.Components{
		Registry: registry,
		Executor: executor,
		Selector: selector,
		Engine:   engine,
		Cache:    dcache,
		Verifier: verifier,
		Sink:     sink,
	}, debateConfig(cfg.Debate), logger)
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	return &Engine{
		cfg:      cfg,
		logger:   logger,
		level:    level,
		hasLevel: ownLogger,
		registry: registry,
		executor: executor,
		cache:    dcache,
		orch:     orch,
	}, nil
}

// Ask runs a full debate for the given question and blocks until consensus
// (or failure). Options are passed through to the orchestrator; the current
// confidence threshold is injected first so explicit options still win.
func (e *Engine) Ask(ctx context.Context, question string, opts ...debate.RunOption) (types.ConsensusResult, error) {
	e.mu.RLock()
	threshold := e.cfg.Debate.ConfidenceThreshold
	e.mu.RUnlock()

	runOpts := append([]debate.RunOption{debate.WithConfidenceThreshold(threshold)}, opts...)
	return e.orch.Run(ctx, question, runOpts...)
}

// Events returns the progress event stream of the underlying orchestrator.
func (e *Engine) Events() <-chan types.ProgressEvent {
	return e.orch.Events()
}

// Config returns a shallow copy of the current configuration. Callers must
// treat slice fields as read-only; use Redacted before exposing it.
func (e *Engine) Config() config.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return *e.cfg
}

// Registry returns the agent registry the engine was built with.
func (e *Engine) Registry() *types.Registry {
	return e.registry
}

// Logger returns the engine logger, for embedders that want to share it.
func (e *Engine) Logger() *zap.Logger {
	return e.logger
}

// CacheStats returns a snapshot of cache counters.
func (e *Engine) CacheStats() cache.CacheStats {
	return e.orch.CacheStats()
}

// ClearCache drops all cached debate results.
func (e *Engine) ClearCache() {
	e.orch.ClearCache()
}

// InvalidateCache removes cached entries matching the predicate and returns
// how many were dropped. Predicates compose with the helpers in the cache
// package, e.g. cache.ByCategory or cache.BelowConfidence.
func (e *Engine) InvalidateCache(pred func(cache.Entry) bool) int {
	return e.cache.Invalidate(pred)
}

// RetryStats returns cumulative retry counters of the executor.
func (e *Engine) RetryStats() retry.Snapshot {
	return e.orch.RetryStats()
}

// ResetRetryStats zeroes the retry counters.
func (e *Engine) ResetRetryStats() {
	e.orch.ResetRetryStats()
}

// ApplyConfig validates and applies a new configuration to the running
// engine. Only hot-applicable settings take effect immediately: log level,
// the retry policy and the cache confidence floor. Everything else (store
// type, server addresses, ...) is recorded and picked up on the next start.
func (e *Engine) ApplyConfig(newCfg *config.Config) error {
	if newCfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := newCfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	e.mu.Lock()
	old := e.cfg
	e.cfg = newCfg
	e.mu.Unlock()

	if e.hasLevel && !strings.EqualFold(old.Log.Level, newCfg.Log.Level) {
		e.level.SetLevel(parseLevel(newCfg.Log.Level))
		e.logger.Info("log level updated", zap.String("level", newCfg.Log.Level))
	}
	if old.Retry != newCfg.Retry {
		e.executor.SetPolicy(retryPolicy(newCfg.Retry))
		e.logger.Info("retry policy updated",
			zap.Int("max_retries", newCfg.Retry.MaxRetries),
			zap.Duration("initial_delay", newCfg.Retry.InitialDelay))
	}
	// 下限升高时立即按新标准清理存量;降低则只影响后续淘汰判断。
	if newCfg.Cache.MinConfidence > old.Cache.MinConfidence {
		if n := e.cache.Invalidate(cache.BelowConfidence(newCfg.Cache.MinConfidence)); n > 0 {
			e.logger.Info("evicted low-confidence cache entries",
				zap.Int("count", n),
				zap.Float64("floor", newCfg.Cache.MinConfidence))
		}
	}
	return nil
}

// Close shuts the orchestrator down, flushing the cache store and closing
// the event channel. Safe to call once; the engine is unusable afterwards.
func (e *Engine) Close() error {
	err := e.orch.Close()
	if e.hasLevel {
		_ = e.logger.Sync()
	}
	return err
}

// NewLogger builds a zap logger from the log configuration and returns the
// atomic level handle so the level can be changed at runtime.
func NewLogger(cfg config.LogConfig) (*zap.Logger, zap.AtomicLevel, error) {
	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	encoding := cfg.Format
	if encoding == "" {
		encoding = "json"
	}
	var encoderConfig zapcore.EncoderConfig
	if encoding == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	output := cfg.OutputPath
	if output == "" {
		output = "stdout"
	}

	zapCfg := zap.Config{
		Level:            level,
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapCfg.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, level, fmt.Errorf("build logger: %w", err)
	}
	return logger, level, nil
}

// NewCacheStore 按缓存配置构建持久化存储;纯内存配置返回 (nil, nil)。
// 调用方可以先拿到存储、复用其数据库连接(如辩论历史落盘),再通过
// WithCacheStore 交给引擎托管刷写与关闭。
func NewCacheStore(cc config.CacheConfig, logger *zap.Logger) (cache.Store, error) {
	sc := cacheConfig(cc).Store
	if !cc.Enabled || sc.Type == "" || sc.Type == cache.StoreMemory {
		return nil, nil
	}
	return cache.NewStore(sc, logger)
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// --- 配置翻译:config 节 → 各子系统 Config ---

func retryPolicy(rc config.RetryConfig) retry.Policy {
	return retry.Policy{
		MaxRetries:          rc.MaxRetries,
		InitialDelay:        rc.InitialDelay,
		MaxDelay:            rc.MaxDelay,
		Multiplier:          rc.Multiplier,
		JitterRange:         rc.JitterRange,
		Timeout:             rc.Timeout,
		RateLimitFloor:      rc.RateLimitFloor,
		RateLimitMultiplier: rc.RateLimitMultiplier,
	}
}

func backendConfig(bc config.BackendConfig) backend.Config {
	cfg := backend.DefaultConfig()
	if bc.InvokeTimeout > 0 {
		cfg.InvokeTimeout = bc.InvokeTimeout
	}
	if bc.MaxOutputChars > 0 {
		cfg.MaxOutputChars = bc.MaxOutputChars
	}
	if bc.HTTPRateRPS > 0 {
		cfg.HTTP.RateRPS = bc.HTTPRateRPS
	}
	if bc.HTTPRateBurst > 0 {
		cfg.HTTP.RateBurst = bc.HTTPRateBurst
	}
	return cfg
}

func selectionConfig(dc config.DebateConfig) selection.Config {
	cfg := selection.DefaultConfig()
	if dc.CoordinatorAgent != "" {
		cfg.Coordinator = dc.CoordinatorAgent
	}
	if dc.Quorum > 0 {
		cfg.Quorum = dc.Quorum
	}
	if dc.MaxInstancesCritical > 0 {
		cfg.MaxCriticalInstances = dc.MaxInstancesCritical
	}
	if dc.ParallelThreshold != "" {
		cfg.ParallelThreshold = dc.ParallelThreshold
	}
	return cfg
}

func consensusConfig(dc config.DebateConfig) consensus.Config {
	cfg := consensus.DefaultConfig()
	if dc.JudgeAgent != "" {
		cfg.Judge = dc.JudgeAgent
	}
	return cfg
}

func verifyConfig(dc config.DebateConfig) verify.Config {
	cfg := verify.DefaultConfig()
	if len(dc.VerifierAgents) > 0 {
		cfg.Verifiers = dc.VerifierAgents
	}
	if len(dc.SensitiveCategories) > 0 {
		cfg.SensitiveCategories = dc.SensitiveCategories
	}
	return cfg
}

func cacheConfig(cc config.CacheConfig) cache.Config {
	return cache.Config{
		Enabled:       cc.Enabled,
		MaxEntries:    cc.MaxEntries,
		MaxAge:        cc.MaxAge,
		FlushInterval: cc.FlushInterval,
		Store: cache.StoreConfig{
			Type:          cache.StoreType(cc.Store.Type),
			Path:          cc.Store.Path,
			RedisAddr:     cc.Store.RedisAddr,
			RedisDB:       cc.Store.RedisDB,
			RedisPassword: cc.Store.RedisPassword,
			TTL:           cc.MaxAge,
			Driver:        cc.Store.Driver,
			DSN:           cc.Store.DSN,
			MaxOpenConns:  cc.Store.MaxOpenConns,
			MaxIdleConns:  cc.Store.MaxIdleConns,
		},
	}
}

func debateConfig(dc config.DebateConfig) debate.Config {
	cfg := debate.DefaultConfig()
	if dc.GlobalTimeout > 0 {
		cfg.GlobalTimeout = dc.GlobalTimeout
	}
	if dc.StageTimeout > 0 {
		cfg.StageTimeout = dc.StageTimeout
	}
	if dc.Quorum > 0 {
		cfg.Quorum = dc.Quorum
	}
	cfg.ConfidenceThreshold = dc.ConfidenceThreshold
	if dc.EventBuffer > 0 {
		cfg.EventBuffer = dc.EventBuffer
	}
	return cfg
}
