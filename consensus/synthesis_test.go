package consensus

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/debateflow/types"
)

func TestSynthesize_WinnerFirstWithRefinements(t *testing.T) {
	t.Parallel()

	out := Synthesize("The winning answer.", []Improvement{
		{Agent: types.AgentCodex, Content: "Validate inputs before use."},
		{Agent: types.AgentGemini, Content: "Note the memory overhead."},
	})

	assert.True(t, strings.HasPrefix(out, "The winning answer."), "胜出内容必须在最前")
	assert.Contains(t, out, "## Refinement from codex")
	assert.Contains(t, out, "Validate inputs before use.")
	assert.Contains(t, out, "## Refinement from gemini")

	codexAt := strings.Index(out, "## Refinement from codex")
	geminiAt := strings.Index(out, "## Refinement from gemini")
	assert.Less(t, codexAt, geminiAt, "改进小节顺序应与传入顺序一致")
}

func TestSynthesize_NoImprovementsKeepsWinner(t *testing.T) {
	t.Parallel()

	out := Synthesize("Just the winner.", nil)
	assert.Equal(t, "Just the winner.", out)

	out = Synthesize("Just the winner.", []Improvement{
		{Agent: types.AgentCodex, Content: "   "},
	})
	assert.Equal(t, "Just the winner.", out, "空白改进应跳过，胜出内容原样保留")
}

func TestSynthesize_CollapsesBlankRuns(t *testing.T) {
	t.Parallel()

	out := Synthesize("first\n\n\n\n\nsecond", nil)
	assert.Equal(t, "first\n\nsecond", out)
	assert.NotContains(t, out, "\n\n\n")
}

func TestSynthesize_StripsAttribution(t *testing.T) {
	t.Parallel()

	winner := "[claude] The answer starts here.\nAs agent claude, I believe caching helps."
	out := Synthesize(winner, []Improvement{
		{Agent: types.AgentCodex, Content: "Agent claude said: the cache needs a TTL. That is correct and worth adding."},
	})

	assert.NotContains(t, out, "[claude]")
	assert.NotContains(t, out, "As agent claude")
	assert.NotContains(t, out, "Agent claude said")
	assert.Contains(t, out, "The answer starts here.")
	assert.Contains(t, out, "the cache needs a TTL.")
}

func TestSynthesize_TrimsEdges(t *testing.T) {
	t.Parallel()

	out := Synthesize("\n\n  content body  \n\n", nil)
	assert.Equal(t, "content body", out)
}
