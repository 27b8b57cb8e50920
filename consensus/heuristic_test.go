package consensus

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/debateflow/types"
)

const structuredAnswer = `Use a token bucket.

## Why

- constant memory
- smooth bursts

` + "```go\nlimiter := rate.NewLimiter(10, 100)\n```" + `

1. create the limiter
2. call Wait before each request
`

func TestHeuristicEvaluator_PrefersStructuredRelevantAnswer(t *testing.T) {
	t.Parallel()

	h := NewHeuristicEvaluator(nil)
	question := "How do I implement a rate limiter with a token bucket?"

	proposals := []types.Proposal{
		{Agent: types.AgentQwen, Instance: 1, Content: "maybe use redis"},
		{Agent: types.AgentCodex, Instance: 1, Content: structuredAnswer + strings.Repeat("Token bucket rate limiter details. ", 10)},
	}

	res, err := h.Evaluate(context.Background(), question, proposals)
	require.NoError(t, err)

	assert.Equal(t, types.AgentCodex, res.Best)
	assert.Equal(t, "heuristic", res.Method)
	assert.Greater(t, res.Scores[types.AgentCodex], res.Scores[types.AgentQwen])

	bd := res.Breakdown[types.AgentCodex]
	assert.Greater(t, bd.Structure, 0.0, "代码块与列表应计入结构分")
	assert.Greater(t, bd.Relevance, 5.0, "关键词覆盖应计入相关性分")
}

func TestHeuristicEvaluator_TieBreaksLowestAgentID(t *testing.T) {
	t.Parallel()

	h := NewHeuristicEvaluator(nil)
	same := strings.Repeat("An identical answer about database indexing strategies. ", 8)

	proposals := []types.Proposal{
		{Agent: types.AgentQwen, Instance: 1, Content: same},
		{Agent: types.AgentClaude, Instance: 1, Content: same},
		{Agent: types.AgentCodex, Instance: 1, Content: same},
	}

	res, err := h.Evaluate(context.Background(), "How should I index this table?", proposals)
	require.NoError(t, err)
	assert.Equal(t, types.AgentClaude, res.Best, "同分必须取 ID 字典序最小者")
	assert.Equal(t, res.Scores[types.AgentQwen], res.Scores[types.AgentClaude])
}

func TestHeuristicEvaluator_Deterministic(t *testing.T) {
	t.Parallel()

	h := NewHeuristicEvaluator(nil)
	proposals := []types.Proposal{
		{Agent: types.AgentClaude, Instance: 1, Content: structuredAnswer},
		{Agent: types.AgentGemini, Instance: 1, Content: "A shorter take on the problem."},
	}

	first, err := h.Evaluate(context.Background(), "rate limiter design", proposals)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := h.Evaluate(context.Background(), "rate limiter design", proposals)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestHeuristicEvaluator_BestInstancePerAgent(t *testing.T) {
	t.Parallel()

	h := NewHeuristicEvaluator(nil)
	question := "Explain token bucket rate limiting"

	proposals := []types.Proposal{
		{Agent: types.AgentClaude, Instance: 1, Content: "short"},
		{Agent: types.AgentClaude, Instance: 2, Content: structuredAnswer + " token bucket rate limiting explained at length with examples and tradeoffs."},
	}

	res, err := h.Evaluate(context.Background(), question, proposals)
	require.NoError(t, err)
	assert.Equal(t, types.AgentClaude, res.Best)
	assert.Equal(t, 2, res.BestInstance, "应取该 Agent 得分最高的实例")
}

func TestHeuristicEvaluator_FailedProposalsExcluded(t *testing.T) {
	t.Parallel()

	h := NewHeuristicEvaluator(nil)
	proposals := []types.Proposal{
		{Agent: types.AgentClaude, Instance: 1, Err: "timeout"},
		{Agent: types.AgentCodex, Instance: 1, Content: "a working answer with enough substance to score"},
	}

	res, err := h.Evaluate(context.Background(), "q", proposals)
	require.NoError(t, err)
	assert.Equal(t, types.AgentCodex, res.Best)
	_, scored := res.Scores[types.AgentClaude]
	assert.False(t, scored, "失败提案不得参与评分")
}

func TestHeuristicEvaluator_AllFailed(t *testing.T) {
	t.Parallel()

	h := NewHeuristicEvaluator(nil)
	proposals := []types.Proposal{
		{Agent: types.AgentClaude, Instance: 1, Err: "boom"},
		{Agent: types.AgentCodex, Instance: 1, Err: "boom"},
	}

	_, err := h.Evaluate(context.Background(), "q", proposals)
	require.Error(t, err)
	assert.Equal(t, types.ErrNoWinner, types.GetErrorCode(err))
}

func TestLengthScoreBands(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2.0, lengthScore(10))
	assert.Equal(t, 6.0, lengthScore(150))
	assert.Equal(t, 10.0, lengthScore(1000))
	assert.Equal(t, 8.0, lengthScore(4000))
	assert.Equal(t, 5.0, lengthScore(20000))
}

func TestQuestionTerms(t *testing.T) {
	t.Parallel()

	terms := questionTerms("How should I design the database schema for multi-tenant billing?")
	assert.Contains(t, terms, "design")
	assert.Contains(t, terms, "database")
	assert.Contains(t, terms, "schema")
	assert.NotContains(t, terms, "how", "疑问词应被过滤")
	assert.NotContains(t, terms, "the")
}
