package retry

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"pgregory.net/rapid"
)

// TestProperty_BaseDelay_Monotonic 验证退避延迟的单调性：
// 对固定分类，任意策略下连续的基础延迟随尝试次数单调不减，且普通分类
// 的延迟不超过 MaxDelay。
func TestProperty_BaseDelay_Monotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		policy := Policy{
			MaxRetries:          5,
			InitialDelay:        time.Duration(rapid.Int64Range(int64(time.Millisecond), int64(time.Second)).Draw(rt, "initial")),
			MaxDelay:            time.Duration(rapid.Int64Range(int64(time.Second), int64(time.Minute)).Draw(rt, "max")),
			Multiplier:          rapid.Float64Range(1.0, 4.0).Draw(rt, "multiplier"),
			RateLimitFloor:      5 * time.Second,
			RateLimitMultiplier: rapid.Float64Range(1.0, 3.0).Draw(rt, "rl_mult"),
		}.normalize()

		cls := rapid.SampledFrom([]Classification{ClassGeneric, ClassTimeout, ClassNetwork, ClassRateLimit}).Draw(rt, "cls")

		prev := time.Duration(0)
		for attempt := 1; attempt <= 10; attempt++ {
			d := policy.BaseDelay(attempt, cls)
			if d < prev {
				rt.Fatalf("delay decreased at attempt %d: %v < %v", attempt, d, prev)
			}
			prev = d

			if cls != ClassRateLimit && d > policy.MaxDelay {
				rt.Fatalf("non-rate-limit delay %v exceeds max %v at attempt %d", d, policy.MaxDelay, attempt)
			}
		}
	})
}

// TestProperty_JitteredDelay_Cap 验证抖动后的延迟上界：
// 普通分类下 jitter(BaseDelay(n)) ≤ MaxDelay × (1 + JitterRange)，且非负。
func TestProperty_JitteredDelay_Cap(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		policy := Policy{
			MaxRetries:   5,
			InitialDelay: time.Duration(rapid.Int64Range(int64(time.Millisecond), int64(time.Second)).Draw(rt, "initial")),
			MaxDelay:     time.Duration(rapid.Int64Range(int64(time.Second), int64(30*time.Second)).Draw(rt, "max")),
			Multiplier:   rapid.Float64Range(1.0, 4.0).Draw(rt, "multiplier"),
			JitterRange:  rapid.Float64Range(0, 0.5).Draw(rt, "jitter"),
		}.normalize()

		r := New(policy, zap.NewNop(), nil).(*backoffRetryer)

		attempt := rapid.IntRange(1, 20).Draw(rt, "attempt")
		base := policy.BaseDelay(attempt, ClassGeneric)
		jittered := r.jitter(base)

		bound := time.Duration(float64(policy.MaxDelay) * (1 + policy.JitterRange))
		if jittered > bound {
			rt.Fatalf("jittered delay %v exceeds cap %v (attempt %d)", jittered, bound, attempt)
		}
		if jittered < 0 {
			rt.Fatalf("jittered delay %v is negative", jittered)
		}
	})
}

// TestProperty_RateLimitDelay_Dominates 验证限流分类的延迟在任意策略下
// 都不低于下限，且不小于同次普通分类延迟。
func TestProperty_RateLimitDelay_Dominates(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		policy := Policy{
			MaxRetries:          3,
			InitialDelay:        time.Duration(rapid.Int64Range(int64(time.Millisecond), int64(2*time.Second)).Draw(rt, "initial")),
			MaxDelay:            time.Duration(rapid.Int64Range(int64(2*time.Second), int64(time.Minute)).Draw(rt, "max")),
			Multiplier:          rapid.Float64Range(1.0, 4.0).Draw(rt, "multiplier"),
			RateLimitFloor:      5 * time.Second,
			RateLimitMultiplier: rapid.Float64Range(1.0, 3.0).Draw(rt, "rl_mult"),
		}.normalize()

		attempt := rapid.IntRange(1, 10).Draw(rt, "attempt")
		rl := policy.BaseDelay(attempt, ClassRateLimit)
		plain := policy.BaseDelay(attempt, ClassGeneric)

		if rl < policy.RateLimitFloor {
			rt.Fatalf("rate-limit delay %v below floor %v", rl, policy.RateLimitFloor)
		}
		if rl < plain {
			rt.Fatalf("rate-limit delay %v below plain delay %v", rl, plain)
		}
	})
}
