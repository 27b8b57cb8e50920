package selection

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/debateflow/types"
)

func newSelector(caller *fakeCaller) *Selector {
	if caller == nil {
		return NewSelector(nil, types.DefaultRegistry(), DefaultConfig(), nil)
	}
	return NewSelector(caller, types.DefaultRegistry(), DefaultConfig(), nil)
}

func TestSelector_FallsBackWhenCoordinatorFails(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{err: errors.New("coordinator down")}
	analysis := newSelector(caller).Analyze(context.Background(), "Write a function to merge two sorted lists", "")

	assert.Equal(t, types.CategoryCoding, analysis.Category, "降级后应得到启发式结论")
	assert.GreaterOrEqual(t, len(analysis.Plan), 3)
	assert.Equal(t, 1, caller.calls)
}

func TestSelector_HeuristicOnlyWithoutCaller(t *testing.T) {
	t.Parallel()

	analysis := newSelector(nil).Analyze(context.Background(), "Compare Kafka and NATS: pros and cons", "")
	assert.Equal(t, types.CategoryResearch, analysis.Category)
	assert.NotEmpty(t, analysis.Plan)
}

func TestSelector_QuorumExpansion(t *testing.T) {
	t.Parallel()

	// 协调结论只给了一个 Agent，但问题并非平凡，应补齐法定人数
	caller := &fakeCaller{response: `{"category": "coding", "complexity": "medium", "criticality": "low",
		"agents": [{"id": "codex", "instances": 1}], "rationale": "just codex"}`}

	analysis := newSelector(caller).Analyze(context.Background(), "q", "")

	require.GreaterOrEqual(t, len(analysis.Plan), 3, "非平凡问题至少 3 个 Agent")
	assert.Equal(t, types.AgentCodex, analysis.Plan[0].Agent, "原有条目保持在前")
	seen := map[types.AgentID]bool{}
	for _, e := range analysis.Plan {
		assert.False(t, seen[e.Agent], "扩充不得引入重复 Agent")
		seen[e.Agent] = true
	}
}

func TestSelector_TrivialSkipsQuorum(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{response: `{"category": "general", "complexity": "trivial", "criticality": "trivial",
		"agents": [{"id": "qwen", "instances": 1}], "rationale": "simple lookup"}`}

	analysis := newSelector(caller).Analyze(context.Background(), "What is DNS?", "")
	assert.Len(t, analysis.Plan, 1, "平凡问题允许单 Agent")
}

func TestSelector_CollapsesParallelBelowThreshold(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{response: `{"category": "coding", "complexity": "low", "criticality": "low",
		"agents": [{"id": "codex", "instances": 3}, {"id": "claude", "instances": 2}, {"id": "qwen", "instances": 1}],
		"rationale": "x"}`}

	analysis := newSelector(caller).Analyze(context.Background(), "q", "")

	for _, e := range analysis.Plan {
		assert.Equal(t, 1, e.Instances, "低复杂度低风险不允许并行实例")
	}
}

func TestSelector_KeepsParallelAboveThreshold(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{response: `{"category": "architecture", "complexity": "high", "criticality": "medium",
		"agents": [{"id": "claude", "instances": 2}, {"id": "codex", "instances": 1}, {"id": "deepseek", "instances": 1}],
		"rationale": "x"}`}

	analysis := newSelector(caller).Analyze(context.Background(), "q", "")
	assert.Equal(t, 2, analysis.Plan[0].Instances, "达到门槛的并行实例应保留")
}

func TestSelector_CriticalCapsTotalInstances(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{response: `{"category": "security", "complexity": "high", "criticality": "critical",
		"agents": [{"id": "claude", "instances": 4}, {"id": "codex", "instances": 3}, {"id": "deepseek", "instances": 2}],
		"rationale": "x"}`}

	analysis := newSelector(caller).Analyze(context.Background(), "q", "")

	assert.LessOrEqual(t, analysis.Plan.TotalInstances(), 5, "高危问题实例总数不得超过上限")
	assert.GreaterOrEqual(t, len(analysis.Plan), 3, "裁剪应优先压缩实例而不是踢掉 Agent")
}

func TestSelector_InstancesUsesConfiguredOptions(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Instance.BaseTemperature = 0.5
	cfg.Instance.TemperatureStep = 0.05
	sel := NewSelector(nil, types.DefaultRegistry(), cfg, nil)

	out := sel.Instances(types.AgentPlan{{Agent: types.AgentClaude, Instances: 2}})
	configs := out[types.AgentClaude]
	require.Len(t, configs, 2)
	assert.InDelta(t, 0.5, configs[0].Temperature, 1e-9)
	assert.InDelta(t, 0.55, configs[1].Temperature, 1e-9)
}
