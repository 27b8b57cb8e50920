package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/debateflow"
	"github.com/BaSui01/debateflow/api/handlers"
	"github.com/BaSui01/debateflow/cache"
	"github.com/BaSui01/debateflow/config"
	"github.com/BaSui01/debateflow/internal/channel"
	"github.com/BaSui01/debateflow/internal/database"
	"github.com/BaSui01/debateflow/internal/metrics"
	"github.com/BaSui01/debateflow/internal/server"
	otelinit "github.com/BaSui01/debateflow/internal/telemetry"
	"github.com/BaSui01/debateflow/telemetry"
	"github.com/BaSui01/debateflow/types"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 DebateFlow 的主服务器
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	level      zap.AtomicLevel

	// 辩论引擎及其外围
	engine  *debateflow.Engine
	store   cache.Store
	history *telemetry.HistorySink
	fanout  *channel.Fanout[types.ProgressEvent]
	otel    *otelinit.Providers

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// Handlers
	healthHandler  *handlers.HealthHandler
	debateHandler  *handlers.DebateHandler
	eventsHandler  *handlers.EventsHandler
	agentHandler   *handlers.AgentHandler
	cacheHandler   *handlers.CacheHandler
	retryHandler   *handlers.RetryHandler
	configHandler  *handlers.ConfigHandler
	historyHandler *handlers.HistoryHandler

	// 指标收集器
	metricsCollector *metrics.Collector

	// 热更新管理器
	hotReloadManager *config.HotReloadManager

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc

	// 事件扇出泵结束信号
	pumpDone chan struct{}
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger, level zap.AtomicLevel, otel *otelinit.Providers) *Server {
	return &Server{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		level:      level,
		otel:       otel,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector("debateflow", s.logger)

	// 2. 装配辩论引擎
	if err := s.initEngine(); err != nil {
		return fmt.Errorf("failed to init engine: %w", err)
	}

	// 3. 初始化 Handlers
	s.initHandlers()

	// 4. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 5. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	// 6. 启动热更新管理器,放最后避免回调追着启动流程改配置
	if err := s.initHotReloadManager(); err != nil {
		return fmt.Errorf("failed to init hot reload manager: %w", err)
	}

	s.logger.Info("all servers started",
		zap.String("http_addr", s.cfg.Server.Addr),
		zap.String("metrics_addr", s.cfg.Server.MetricsAddr),
		zap.Bool("hot_reload_enabled", s.configPath != ""),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initEngine 预建持久化存储、遥测 Sink 与辩论引擎。
// 存储先于引擎创建,历史落盘可以复用同一条数据库连接。
func (s *Server) initEngine() error {
	store, err := debateflow.NewCacheStore(s.cfg.Cache, s.logger)
	if err != nil {
		// 持久化失败降级为纯内存,不阻塞启动
		s.logger.Warn("cache store unavailable, continuing memory-only", zap.Error(err))
		store = nil
	}
	s.store = store

	sinks := []telemetry.Sink{telemetry.NewLogSink(s.logger)}
	if gs, ok := store.(*cache.GormStore); ok {
		hist, histErr := telemetry.NewHistorySink(gs.DB(), s.logger)
		if histErr != nil {
			s.logger.Warn("debate history disabled", zap.Error(histErr))
		} else {
			s.history = hist
			sinks = append(sinks, hist)
		}

		driver := s.cfg.Cache.Store.Driver
		gs.Pool().SetStatsHook(func(ps database.PoolStats) {
			s.metricsCollector.RecordDBConnections(driver, ps.OpenConnections, ps.Idle)
		})
	}

	opts := []debateflow.Option{
		debateflow.WithConfig(s.cfg),
		debateflow.WithLogger(s.logger),
	}
	if store != nil {
		opts = append(opts, debateflow.WithCacheStore(store))
	}
	for _, sink := range sinks {
		opts = append(opts, debateflow.WithTelemetrySink(sink))
	}

	eng, err := debateflow.New(opts...)
	if err != nil {
		return err
	}
	s.engine = eng

	// 单一事件源扇出给任意数量的 SSE 订阅者
	s.fanout = channel.NewFanout[types.ProgressEvent](s.cfg.Debate.EventBuffer)
	s.pumpDone = make(chan struct{})
	go func() {
		defer close(s.pumpDone)
		s.fanout.Run(eng.Events())
	}()

	return nil
}

// initHandlers 初始化所有 handlers。除事件与历史外,引擎本身就是
// 各个切面接口的实现。
func (s *Server) initHandlers() {
	eng := s.engine

	s.debateHandler = handlers.NewDebateHandler(eng, s.logger)
	s.eventsHandler = handlers.NewEventsHandler(s.fanout, s.logger)
	s.agentHandler = handlers.NewAgentHandler(eng, s.logger)
	s.cacheHandler = handlers.NewCacheHandler(eng, s.logger)
	s.retryHandler = handlers.NewRetryHandler(eng, s.logger)
	s.configHandler = handlers.NewConfigHandler(eng, s.logger)
	if s.history != nil {
		s.historyHandler = handlers.NewHistoryHandler(s.history, s.logger)
	}

	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewAgentCommandCheck(eng.Registry()))
	if gs, ok := s.store.(*cache.GormStore); ok {
		s.healthHandler.RegisterCheck(handlers.NewPingCheck("cache-store", gs.Pool().Ping))
	}

	s.logger.Info("handlers initialized",
		zap.Bool("history_enabled", s.historyHandler != nil))
}

// initHotReloadManager 初始化热更新管理器并联动引擎
func (s *Server) initHotReloadManager() error {
	opts := []config.HotReloadOption{
		config.WithHotReloadLogger(s.logger),
	}
	if s.configPath != "" {
		opts = append(opts, config.WithConfigPath(s.configPath))
	}

	s.hotReloadManager = config.NewHotReloadManager(s.cfg, opts...)

	s.hotReloadManager.OnChange(func(change config.ConfigChange) {
		s.logger.Info("configuration changed",
			zap.String("path", change.Path),
			zap.String("source", change.Source),
			zap.Bool("requires_restart", change.RequiresRestart),
		)
	})

	// 配置重载:引擎吃热生效项,日志级别归 cmd 管
	s.hotReloadManager.OnReload(func(oldCfg, newCfg *config.Config) {
		if err := s.engine.ApplyConfig(newCfg); err != nil {
			s.logger.Error("failed to apply new configuration", zap.Error(err))
			return
		}
		if !strings.EqualFold(oldCfg.Log.Level, newCfg.Log.Level) {
			if lvl, perr := zapcore.ParseLevel(strings.ToLower(newCfg.Log.Level)); perr == nil {
				s.level.SetLevel(lvl)
				s.logger.Info("log level updated", zap.String("level", newCfg.Log.Level))
			}
		}
		s.logger.Info("configuration reloaded")
	})

	if err := s.hotReloadManager.Start(context.Background()); err != nil {
		return err
	}

	return nil
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 注册路由、组装中间件链并启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// 健康检查与版本端点
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// 辩论 API
	mux.HandleFunc("POST /v1/debates", s.debateHandler.HandleDebate)
	if s.historyHandler != nil {
		mux.HandleFunc("GET /v1/debates/history", s.historyHandler.HandleListHistory)
	}
	// SSE 长连接,写超时单独豁免
	mux.Handle("GET /v1/events", noWriteTimeout(http.HandlerFunc(s.eventsHandler.HandleEvents)))

	// 运维 API
	mux.HandleFunc("GET /v1/agents", s.agentHandler.HandleListAgents)
	mux.HandleFunc("GET /v1/agents/{id}", s.agentHandler.HandleGetAgent)
	mux.HandleFunc("GET /v1/cache/stats", s.cacheHandler.HandleCacheStats)
	mux.HandleFunc("POST /v1/cache/invalidate", s.cacheHandler.HandleCacheInvalidate)
	mux.HandleFunc("DELETE /v1/cache", s.cacheHandler.HandleCacheClear)
	mux.HandleFunc("GET /v1/retry/stats", s.retryHandler.HandleRetryStats)
	mux.HandleFunc("DELETE /v1/retry/stats", s.retryHandler.HandleRetryReset)
	mux.HandleFunc("GET /v1/config", s.configHandler.HandleGetConfig)

	// 中间件链
	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version"}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		CORS(s.cfg.Server.AllowedOrigins),
	}
	if s.cfg.Telemetry.Enabled {
		middlewares = append(middlewares, OTelTracing())
	}
	if s.cfg.Server.RateRPS > 0 {
		middlewares = append(middlewares,
			RateLimiter(rateLimiterCtx, s.cfg.Server.RateRPS, s.cfg.Server.RateBurst, s.logger))
	}
	// JWT 优先于 API Key;两者都没配就是开放实例
	switch {
	case s.cfg.Server.JWT.Enabled:
		middlewares = append(middlewares, JWTAuth(s.cfg.Server.JWT, skipAuthPaths, s.logger))
	case len(s.cfg.Server.APIKeys) > 0:
		middlewares = append(middlewares, APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, s.logger))
	default:
		s.logger.Warn("no authentication configured, API is open")
	}
	handler := Chain(mux, middlewares...)

	serverConfig := server.Config{
		Addr:            s.cfg.Server.Addr,
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if s.cfg.Server.TLSCert != "" && s.cfg.Server.TLSKey != "" {
		if err := s.httpManager.StartTLS(s.cfg.Server.TLSCert, s.cfg.Server.TLSKey); err != nil {
			return err
		}
		s.logger.Info("HTTPS server started", zap.String("addr", s.cfg.Server.Addr))
		return nil
	}

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.String("addr", s.cfg.Server.Addr))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器。未配置监听地址时不开。
func (s *Server) startMetricsServer() error {
	if s.cfg.Server.MetricsAddr == "" {
		s.logger.Info("metrics server disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            s.cfg.Server.MetricsAddr,
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("metrics server started", zap.String("addr", s.cfg.Server.MetricsAddr))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务。顺序固定:先断入口,再清外围,
// 最后关引擎——历史 Sink 与缓存共用数据库连接,必须赶在引擎
// 关闭连接池之前落盘。
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")

	ctx := context.Background()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	if s.hotReloadManager != nil {
		if err := s.hotReloadManager.Stop(); err != nil {
			s.logger.Error("hot reload manager shutdown error", zap.Error(err))
		}
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}

	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.logger.Error("history sink shutdown error", zap.Error(err))
		}
	}

	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			s.logger.Error("engine shutdown error", zap.Error(err))
		}
	}
	// 引擎关闭后事件源随之关闭,等扇出泵排空退出
	if s.pumpDone != nil {
		<-s.pumpDone
	}

	if s.otel != nil {
		otelCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := s.otel.Shutdown(otelCtx); err != nil {
			s.logger.Error("telemetry shutdown error", zap.Error(err))
		}
		cancel()
	}

	s.logger.Info("graceful shutdown completed")
}
