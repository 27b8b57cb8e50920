package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Policy 定义重试策略配置
// 遵循 KISS 原则：简单但功能完整的重试策略
type Policy struct {
	MaxRetries   int           // 最大重试次数（0 表示不重试）
	InitialDelay time.Duration // 初始延迟时间
	MaxDelay     time.Duration // 最大延迟时间
	Multiplier   float64       // 延迟时间倍增因子（指数退避）

	// JitterRange 随机抖动幅度（0.25 表示 ±25%），防止多个客户端
	// 同时重试导致的雪崩效应。0 表示不抖动。
	JitterRange float64

	// Timeout 覆盖整次调用（含全部重试与退避等待）的总超时。
	// 超过后中断在途尝试，以 timeout 分类失败。0 表示不限制。
	Timeout time.Duration

	// RateLimitFloor / RateLimitMultiplier 针对限流错误的特殊退避：
	// 延迟先抬升到下限（默认 5s），再乘以限流系数。下限优先于 MaxDelay。
	RateLimitFloor      time.Duration
	RateLimitMultiplier float64

	// OnRetry 每次重试前回调（attempt 从 1 开始计数）
	OnRetry func(attempt int, cls Classification, err error, delay time.Duration)
}

// DefaultPolicy 返回默认重试策略，适用于大部分 Agent 调用场景
func DefaultPolicy() Policy {
	return Policy{
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

// normalize 校验并修正策略参数
func (p Policy) normalize() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 1 * time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = 2.0
	}
	if p.JitterRange < 0 {
		p.JitterRange = 0
	}
	if p.RateLimitFloor <= 0 {
		p.RateLimitFloor = 5 * time.Second
	}
	if p.RateLimitMultiplier < 1.0 {
		p.RateLimitMultiplier = 2.0
	}
	return p
}

// BaseDelay 计算第 attempt 次重试的基础延迟（不含抖动）。
// 纯函数：delay = min(maxDelay, initialDelay × multiplier^(attempt−1))，
// 限流分类额外应用下限与系数。对固定分类，结果随 attempt 单调不减。
func (p Policy) BaseDelay(attempt int, cls Classification) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if cls == ClassRateLimit {
		// 下限优先于 MaxDelay：限流时宁可多等
		if delay < float64(p.RateLimitFloor) {
			delay = float64(p.RateLimitFloor)
		}
		delay *= p.RateLimitMultiplier
	}
	return time.Duration(delay)
}

// RetryError 重试耗尽后的结构化错误，携带尝试次数、最后错误与分类
type RetryError struct {
	Attempts       int
	Classification Classification
	LastErr        error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("exhausted %d attempts (%s): %v", e.Attempts, e.Classification, e.LastErr)
}

func (e *RetryError) Unwrap() error {
	return e.LastErr
}

// Retryer 重试器接口，提供统一的重试能力
type Retryer interface {
	// Do 执行函数，失败时按分类与策略重试
	Do(ctx context.Context, fn func() error) error

	// Policy 返回当前生效的策略
	Policy() Policy
}

// backoffRetryer 基于指数退避的重试器实现
type backoffRetryer struct {
	policy Policy
	logger *zap.Logger
	stats  *Stats
}

// New 创建指数退避重试器。stats 可为 nil（不记录统计）。
func New(policy Policy, logger *zap.Logger, stats *Stats) Retryer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &backoffRetryer{
		policy: policy.normalize(),
		logger: logger.With(zap.String("component", "retry")),
		stats:  stats,
	}
}

// Policy 实现 Retryer.Policy
func (r *backoffRetryer) Policy() Policy {
	return r.policy
}

// Do 实现 Retryer.Do
// 核心重试逻辑：错误分类 + 指数退避 + 随机抖动 + 总超时
func (r *backoffRetryer) Do(ctx context.Context, fn func() error) error {
	if r.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
		defer cancel()
	}

	var lastErr error
	var lastCls Classification
	retries := 0

	defer func() {
		r.stats.observe(retries, lastErr == nil)
	}()

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		// 第一次执行不延迟
		if attempt > 0 {
			retries = attempt
			delay := r.jitter(r.policy.BaseDelay(attempt, lastCls))

			r.logger.Debug("重试中",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.policy.MaxRetries),
				zap.String("classification", string(lastCls)),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)

			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastCls, lastErr, delay)
			}

			// 等待延迟，同时监听总超时与取消
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				return &RetryError{Attempts: attempt, Classification: ClassTimeout, LastErr: lastErr}
			case <-time.After(delay):
			}
		}

		lastErr = fn()

		// 成功，直接返回
		if lastErr == nil {
			if attempt > 0 {
				r.logger.Info("重试成功", zap.Int("attempt", attempt))
			}
			return nil
		}

		lastCls = Classify(lastErr)
		r.stats.classified(lastCls)

		// 总超时已到：中断在途尝试，以 timeout 分类失败
		if ctx.Err() != nil {
			return &RetryError{Attempts: attempt + 1, Classification: ClassTimeout, LastErr: lastErr}
		}

		// 不可重试的分类立即失败，不消耗重试次数
		if !lastCls.Retriable() {
			r.logger.Debug("错误不可重试",
				zap.String("classification", string(lastCls)),
				zap.Error(lastErr),
			)
			return lastErr
		}
	}

	// 所有重试都失败了
	r.logger.Warn("重试次数耗尽",
		zap.Int("attempts", r.policy.MaxRetries+1),
		zap.String("classification", string(lastCls)),
		zap.Error(lastErr),
	)

	return &RetryError{
		Attempts:       r.policy.MaxRetries + 1,
		Classification: lastCls,
		LastErr:        lastErr,
	}
}

// jitter 应用 ±JitterRange 抖动；结果不低于零，不超过 d × (1 + JitterRange)
func (r *backoffRetryer) jitter(d time.Duration) time.Duration {
	if r.policy.JitterRange <= 0 {
		return d
	}
	factor := 1 + (rand.Float64()*2-1)*r.policy.JitterRange
	jittered := time.Duration(float64(d) * factor)
	if jittered < 0 {
		return 0
	}
	return jittered
}
