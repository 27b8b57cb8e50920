package consensus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/backend"
	"github.com/BaSui01/debateflow/internal/jsonutil"
	"github.com/BaSui01/debateflow/types"
)

// JudgeEvaluator 评审 Agent 评审器：把全部提案交给一个裁判 Agent
// 打分。裁判调用走统一执行后端，共享重试与超时纪律。
// 任何失败（调用失败、JSON 不可解析、没有可用分数）都返回错误，
// 由 Engine 降级到启发式评审——绝不在失败时捏造固定赢家。
type JudgeEvaluator struct {
	caller  backend.Caller
	judge   types.AgentID
	timeout time.Duration
	logger  *zap.Logger
}

// NewJudgeEvaluator 创建评审 Agent 评审器
func NewJudgeEvaluator(caller backend.Caller, judge types.AgentID, timeout time.Duration, logger *zap.Logger) *JudgeEvaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &JudgeEvaluator{
		caller:  caller,
		judge:   judge,
		timeout: timeout,
		logger:  logger.With(zap.String("component", "judge_evaluator")),
	}
}

// judgeVerdict 裁判的结构化结论
type judgeVerdict struct {
	Scores    map[string]float64 `json:"scores"`
	Best      string             `json:"best"`
	Reasoning string             `json:"reasoning"`
}

// Evaluate 实现 Evaluator。proposals 应当每个 Agent 只出现一次
// （Engine 已做实例代表选择）。
func (j *JudgeEvaluator) Evaluate(ctx context.Context, question string, proposals []types.Proposal) (types.EvaluationResult, error) {
	live := successful(proposals)
	if len(live) == 0 {
		return types.EvaluationResult{}, types.NewError(types.ErrNoWinner,
			"no successful proposals to judge")
	}

	raw, err := j.caller.Complete(ctx, j.judge, j.buildPrompt(question, live), j.timeout)
	if err != nil {
		return types.EvaluationResult{}, fmt.Errorf("judge %s: %w", j.judge, err)
	}

	obj, ok := jsonutil.ExtractObject(raw)
	if !ok {
		return types.EvaluationResult{}, fmt.Errorf("judge %s returned no JSON object", j.judge)
	}
	var verdict judgeVerdict
	if err := json.Unmarshal([]byte(obj), &verdict); err != nil {
		return types.EvaluationResult{}, fmt.Errorf("judge %s verdict unparsable: %w", j.judge, err)
	}

	return j.toResult(live, verdict)
}

// toResult 校验裁判结论：分数收敛到 [0,10]，未参赛 Agent 的分数
// 丢弃，漏评的参赛 Agent 记 0 分并告警；裁判给出的 best 无效时
// 按分数重新决出。
func (j *JudgeEvaluator) toResult(live []types.Proposal, verdict judgeVerdict) (types.EvaluationResult, error) {
	contenders := make(map[types.AgentID]int, len(live))
	for _, p := range live {
		contenders[p.Agent] = p.Instance
	}

	scores := make(map[types.AgentID]float64, len(contenders))
	for raw, score := range verdict.Scores {
		id := types.AgentID(strings.TrimSpace(strings.ToLower(raw)))
		if _, ok := contenders[id]; !ok {
			j.logger.Warn("judge scored unknown contender", zap.String("agent", raw))
			continue
		}
		scores[id] = roundScore(clamp(score, 0, 10))
	}
	if len(scores) == 0 {
		return types.EvaluationResult{}, fmt.Errorf("judge %s scored no contenders", j.judge)
	}
	for id := range contenders {
		if _, ok := scores[id]; !ok {
			j.logger.Warn("judge omitted contender, scoring zero", zap.String("agent", string(id)))
			scores[id] = 0
		}
	}

	best := types.AgentID(strings.TrimSpace(strings.ToLower(verdict.Best)))
	if _, ok := scores[best]; !ok {
		best = pickBest(scores)
	}

	justification := strings.TrimSpace(verdict.Reasoning)
	if justification == "" {
		justification = "judge verdict"
	}

	return types.EvaluationResult{
		Scores:        scores,
		Best:          best,
		BestInstance:  contenders[best],
		Justification: justification,
		Method:        "judge",
	}, nil
}

// buildPrompt 渲染裁判提示词：问题、逐条提案与严格的 JSON 输出要求
func (j *JudgeEvaluator) buildPrompt(question string, live []types.Proposal) string {
	var b strings.Builder
	b.WriteString("You are the impartial judge of a multi-agent debate. Score every proposal on its merits.\n\n")
	b.WriteString("Question:\n")
	b.WriteString(question)
	b.WriteString("\n")

	for _, p := range live {
		fmt.Fprintf(&b, "\n--- proposal from %s ---\n%s\n", p.Agent, p.Content)
	}

	b.WriteString(`
Score each proposal from 0 to 10 for correctness, completeness and clarity.
Respond with ONLY a JSON object, no prose:
{"scores": {"<agent>": <number>}, "best": "<agent>", "reasoning": "<one paragraph>"}
`)
	return b.String()
}
