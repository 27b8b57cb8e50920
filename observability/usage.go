package observability

import (
	"sync"

	"github.com/BaSui01/debateflow/types"
)

// AgentUsage 单个 agent 在一场辩论中的用量。
type AgentUsage struct {
	Calls          int
	TokensEstimate int
}

// UsageTracker 会话级用量追踪器（按 agent 汇总）
type UsageTracker struct {
	mu    sync.Mutex
	usage map[types.AgentID]*AgentUsage
}

// NewUsageTracker 创建用量追踪器
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{
		usage: make(map[types.AgentID]*AgentUsage),
	}
}

// Track 记录一次 agent 调用及其输出规模。
func (t *UsageTracker) Track(agent types.AgentID, output string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	u, ok := t.usage[agent]
	if !ok {
		u = &AgentUsage{}
		t.usage[agent] = u
	}
	u.Calls++
	u.TokensEstimate += estimateTokens(output)
}

// Summary 获取按 agent 的用量快照。
func (t *UsageTracker) Summary() map[types.AgentID]AgentUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[types.AgentID]AgentUsage, len(t.usage))
	for id, u := range t.usage {
		out[id] = *u
	}
	return out
}

// Total 获取全部 agent 的累计用量。
func (t *UsageTracker) Total() AgentUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total AgentUsage
	for _, u := range t.usage {
		total.Calls += u.Calls
		total.TokensEstimate += u.TokensEstimate
	}
	return total
}

// Reset 重置统计
func (t *UsageTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage = make(map[types.AgentID]*AgentUsage)
}

// estimateTokens 按 4 字符/Token 粗略估算
func estimateTokens(text string) int {
	return len(text) / 4
}
