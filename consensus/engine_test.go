package consensus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/debateflow/types"
)

func newEngine(caller *fakeCaller) *Engine {
	cfg := DefaultConfig()
	if caller == nil {
		return NewEngine(nil, types.DefaultRegistry(), cfg, nil)
	}
	return NewEngine(caller, types.DefaultRegistry(), cfg, nil)
}

func TestEngine_PrefersJudge(t *testing.T) {
	t.Parallel()

	caller := newFakeCaller()
	caller.responses[types.AgentDeepSeek] = `{"scores": {"claude": 3, "codex": 9}, "best": "codex", "reasoning": "codex nailed it"}`

	res, err := newEngine(caller).Evaluate(context.Background(), "q", twoProposals())
	require.NoError(t, err)
	assert.Equal(t, "judge", res.Method)
	assert.Equal(t, types.AgentCodex, res.Best)
}

func TestEngine_FallsBackToHeuristic(t *testing.T) {
	t.Parallel()

	caller := newFakeCaller()
	caller.errs[types.AgentDeepSeek] = errors.New("judge down")

	res, err := newEngine(caller).Evaluate(context.Background(), "q", twoProposals())
	require.NoError(t, err)
	assert.Equal(t, "heuristic", res.Method, "裁判失败必须降级而不是失败")
	assert.NotEmpty(t, res.Best)
}

func TestEngine_NoCallerUsesHeuristic(t *testing.T) {
	t.Parallel()

	res, err := newEngine(nil).Evaluate(context.Background(), "q", twoProposals())
	require.NoError(t, err)
	assert.Equal(t, "heuristic", res.Method)
}

func TestEngine_AllFailedProposals(t *testing.T) {
	t.Parallel()

	proposals := []types.Proposal{
		{Agent: types.AgentClaude, Instance: 1, Err: "x"},
		{Agent: types.AgentCodex, Instance: 1, Err: "y"},
	}
	_, err := newEngine(nil).Evaluate(context.Background(), "q", proposals)
	require.Error(t, err)
	assert.Equal(t, types.ErrNoWinner, types.GetErrorCode(err))
}

func TestEngine_RepresentativesOnePerAgent(t *testing.T) {
	t.Parallel()

	e := newEngine(nil)
	live := []types.Proposal{
		{Agent: types.AgentClaude, Instance: 1, Content: "tiny"},
		{Agent: types.AgentClaude, Instance: 2, Content: structuredAnswer},
		{Agent: types.AgentCodex, Instance: 1, Content: "an ordinary answer about the topic"},
	}

	reps := e.representatives("rate limiter token bucket", live)
	require.Len(t, reps, 2, "每个 Agent 只保留一个代表实例")
	assert.Equal(t, types.AgentClaude, reps[0].Agent)
	assert.Equal(t, 2, reps[0].Instance, "代表实例应是该 Agent 的最佳表现")
	assert.Equal(t, types.AgentCodex, reps[1].Agent)
}

func TestEngine_ImproveCollectsRefinements(t *testing.T) {
	t.Parallel()

	caller := newFakeCaller()
	caller.responses[types.AgentCodex] = "Add input validation."
	caller.responses[types.AgentGemini] = "Mention the operational cost."

	winner := types.Proposal{Agent: types.AgentClaude, Instance: 1, Content: "the winning answer"}
	proposals := []types.Proposal{
		winner,
		{Agent: types.AgentCodex, Instance: 1, Content: "codex answer"},
		{Agent: types.AgentGemini, Instance: 1, Content: "gemini answer"},
	}

	improvements := newEngine(caller).Improve(context.Background(), "q", winner, proposals)

	require.Len(t, improvements, 2)
	assert.Equal(t, types.AgentCodex, improvements[0].Agent, "改进意见按 ID 排序，保证合成顺序稳定")
	assert.Equal(t, types.AgentGemini, improvements[1].Agent)
	assert.Contains(t, caller.promptFor(types.AgentCodex), "the winning answer")
}

func TestEngine_ImproveSkipsFailuresAndWinner(t *testing.T) {
	t.Parallel()

	caller := newFakeCaller()
	caller.responses[types.AgentCodex] = "A useful refinement."
	caller.errs[types.AgentGemini] = errors.New("gemini down")

	winner := types.Proposal{Agent: types.AgentClaude, Instance: 1, Content: "w"}
	proposals := []types.Proposal{
		winner,
		{Agent: types.AgentCodex, Instance: 1, Content: "c"},
		{Agent: types.AgentGemini, Instance: 1, Content: "g"},
		{Agent: types.AgentQwen, Instance: 1, Err: "failed during debate"},
	}

	improvements := newEngine(caller).Improve(context.Background(), "q", winner, proposals)

	require.Len(t, improvements, 1, "失败的改进调用与失败提案都应跳过")
	assert.Equal(t, types.AgentCodex, improvements[0].Agent)
	for _, imp := range improvements {
		assert.NotEqual(t, winner.Agent, imp.Agent, "胜者不参与改进轮")
	}
}

func TestEngine_ImproveDeduplicatesInstances(t *testing.T) {
	t.Parallel()

	caller := newFakeCaller()
	caller.responses[types.AgentCodex] = "refinement"

	winner := types.Proposal{Agent: types.AgentClaude, Instance: 1, Content: "w"}
	proposals := []types.Proposal{
		winner,
		{Agent: types.AgentClaude, Instance: 2, Content: "second claude instance"},
		{Agent: types.AgentCodex, Instance: 1, Content: "a"},
		{Agent: types.AgentCodex, Instance: 2, Content: "b"},
	}

	improvements := newEngine(caller).Improve(context.Background(), "q", winner, proposals)

	require.Len(t, improvements, 1, "同一 Agent 的多个实例只发起一次改进调用")
	assert.Equal(t, 1, caller.calls)
}

func TestFindProposal(t *testing.T) {
	t.Parallel()

	proposals := []types.Proposal{
		{Agent: types.AgentClaude, Instance: 1, Content: "a"},
		{Agent: types.AgentClaude, Instance: 2, Content: "b"},
	}

	p, err := FindProposal(proposals, types.AgentClaude, 2)
	require.NoError(t, err)
	assert.Equal(t, "b", p.Content)

	// 未知实例退回该 Agent 的任一成功提案
	p, err = FindProposal(proposals, types.AgentClaude, 9)
	require.NoError(t, err)
	assert.Equal(t, types.AgentClaude, p.Agent)

	_, err = FindProposal(proposals, types.AgentQwen, 1)
	assert.Error(t, err)
}
