// =============================================================================
// 📦 DebateFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/debateflow/types"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Log:       DefaultLogConfig(),
		Debate:    DefaultDebateConfig(),
		Retry:     DefaultRetryConfig(),
		Cache:     DefaultCacheConfig(),
		Backend:   DefaultBackendConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Server:    DefaultServerConfig(),
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Format:     "json",
		OutputPath: "stdout",
	}
}

// DefaultDebateConfig 返回默认辩论配置
func DefaultDebateConfig() DebateConfig {
	return DebateConfig{
		GlobalTimeout:        10 * time.Minute,
		StageTimeout:         2 * time.Minute,
		Quorum:               3,
		MaxInstancesCritical: 5,
		ParallelThreshold:    types.LevelHigh,
		CoordinatorAgent:     types.AgentClaude,
		JudgeAgent:           types.AgentDeepSeek,
		VerifierAgents: []types.AgentID{
			types.AgentClaude,
			types.AgentDeepSeek,
		},
		SensitiveCategories: []types.Category{
			types.CategorySecurity,
			types.CategoryFinancial,
			types.CategoryProductionInfra,
		},
		ConfidenceThreshold: 0,
		EventBuffer:         256,
	}
}

// DefaultRetryConfig 返回默认重试配置
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:          3,
		InitialDelay:        1 * time.Second,
		MaxDelay:            30 * time.Second,
		Multiplier:          2.0,
		JitterRange:         0.25,
		Timeout:             2 * time.Minute,
		RateLimitFloor:      5 * time.Second,
		RateLimitMultiplier: 2.0,
	}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:       true,
		MaxEntries:    512,
		MaxAge:        24 * time.Hour,
		MinConfidence: 0,
		FlushInterval: 5 * time.Minute,
		Store: StoreConfig{
			Type: "memory",
			Path: "./data/debate_cache.json",
		},
	}
}

// DefaultBackendConfig 返回默认执行后端配置
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		InvokeTimeout:  90 * time.Second,
		MaxOutputChars: 60_000,
		HTTPRateRPS:    2,
		HTTPRateBurst:  4,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "debateflow",
		SampleRate:   0.1,
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		MetricsAddr:     ":9091",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateRPS:         100,
		RateBurst:       200,
	}
}
