package consensus

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/backend"
	"github.com/BaSui01/debateflow/types"
)

// Evaluator 提案评审接口
type Evaluator interface {
	Evaluate(ctx context.Context, question string, proposals []types.Proposal) (types.EvaluationResult, error)
}

// Improvement 一个落选 Agent 对胜出答案的改进意见
type Improvement struct {
	Agent   types.AgentID `json:"agent"`
	Content string        `json:"content"`
}

// Config 共识引擎配置
type Config struct {
	// Judge 裁判 Agent；为空或不在花名册时只用启发式评审
	Judge types.AgentID `yaml:"judge" json:"judge"`

	// JudgeTimeout 裁判调用超时
	JudgeTimeout time.Duration `yaml:"judge_timeout" json:"judge_timeout"`

	// ImproveTimeout 单次改进调用超时
	ImproveTimeout time.Duration `yaml:"improve_timeout" json:"improve_timeout"`

	// MaxConcurrency 改进轮的并发上限
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency"`
}

// DefaultConfig 返回默认共识配置
func DefaultConfig() Config {
	return Config{
		Judge:          types.AgentDeepSeek,
		JudgeTimeout:   45 * time.Second,
		ImproveTimeout: 60 * time.Second,
		MaxConcurrency: 4,
	}
}

// Engine 共识引擎：评审优先走裁判 Agent，失败降级启发式；
// 再驱动改进轮让落选者补强胜出答案，最终合成单一结论。
type Engine struct {
	caller    backend.Caller
	heuristic *HeuristicEvaluator
	judge     *JudgeEvaluator
	cfg       Config
	logger    *zap.Logger
}

// NewEngine 创建共识引擎。caller 为 nil 时禁用裁判与改进轮。
func NewEngine(caller backend.Caller, registry *types.Registry, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	if cfg.ImproveTimeout <= 0 {
		cfg.ImproveTimeout = DefaultConfig().ImproveTimeout
	}

	e := &Engine{
		caller:    caller,
		heuristic: NewHeuristicEvaluator(logger),
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "consensus_engine")),
	}
	if caller != nil && cfg.Judge != "" {
		if registry.Has(cfg.Judge) {
			e.judge = NewJudgeEvaluator(caller, cfg.Judge, cfg.JudgeTimeout, logger)
		} else {
			logger.Warn("configured judge not in registry, judge path disabled",
				zap.String("judge", string(cfg.Judge)))
		}
	}
	return e
}

// Evaluate 评审提案集。裁判路径失败时降级启发式，两条路径
// 共用同一套决胜规则，结论方法记录在 Method 字段。
func (e *Engine) Evaluate(ctx context.Context, question string, proposals []types.Proposal) (types.EvaluationResult, error) {
	live := successful(proposals)
	if len(live) == 0 {
		return types.EvaluationResult{}, types.NewError(types.ErrNoWinner,
			"no successful proposals to evaluate")
	}

	if e.judge != nil {
		res, err := e.judge.Evaluate(ctx, question, e.representatives(question, live))
		if err == nil {
			return res, nil
		}
		e.logger.Warn("judge evaluation failed, falling back to heuristic", zap.Error(err))
	}
	return e.heuristic.Evaluate(ctx, question, live)
}

// representatives 为每个 Agent 选出代表实例（启发式最高分，
// 同分取序号最小），裁判只看每个 Agent 的最佳表现。
func (e *Engine) representatives(question string, live []types.Proposal) []types.Proposal {
	terms := questionTerms(question)

	bestByAgent := make(map[types.AgentID]types.Proposal, len(live))
	bestScore := make(map[types.AgentID]float64, len(live))
	for _, p := range live {
		score, _ := e.heuristic.Score(terms, p.Content)
		prev, seen := bestByAgent[p.Agent]
		if !seen || score > bestScore[p.Agent] || (score == bestScore[p.Agent] && p.Instance < prev.Instance) {
			bestByAgent[p.Agent] = p
			bestScore[p.Agent] = score
		}
	}

	out := make([]types.Proposal, 0, len(bestByAgent))
	for _, p := range bestByAgent {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Agent < out[j].Agent })
	return out
}

// Improve 驱动改进轮：每个落选且成功的 Agent 批评并补强胜出
// 答案。失败只告警，不影响已拿到的改进；结果按 Agent ID 排序，
// 保证合成顺序稳定。
func (e *Engine) Improve(ctx context.Context, question string, winner types.Proposal, proposals []types.Proposal) []Improvement {
	if e.caller == nil {
		return nil
	}

	critics := make([]types.AgentID, 0, len(proposals))
	seen := map[types.AgentID]bool{winner.Agent: true}
	for _, p := range successful(proposals) {
		if seen[p.Agent] {
			continue
		}
		seen[p.Agent] = true
		critics = append(critics, p.Agent)
	}
	if len(critics) == 0 {
		return nil
	}

	prompt := improvePrompt(question, winner.Content)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		out []Improvement
	)
	sem := make(chan struct{}, e.cfg.MaxConcurrency)

	for _, critic := range critics {
		wg.Add(1)
		go func(agent types.AgentID) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			content, err := e.caller.Complete(ctx, agent, prompt, e.cfg.ImproveTimeout)
			if err != nil {
				e.logger.Warn("improvement round call failed",
					zap.String("agent", string(agent)),
					zap.Error(err))
				return
			}

			mu.Lock()
			out = append(out, Improvement{Agent: agent, Content: content})
			mu.Unlock()
		}(critic)
	}
	wg.Wait()

	sort.Slice(out, func(i, j int) bool { return out[i].Agent < out[j].Agent })
	return out
}

// improvePrompt 渲染改进轮提示词
func improvePrompt(question, winning string) string {
	var b strings.Builder
	b.WriteString("The following answer won a multi-agent debate on this question.\n\n")
	b.WriteString("Question:\n")
	b.WriteString(question)
	b.WriteString("\n\nWinning answer:\n")
	b.WriteString(winning)
	b.WriteString("\n\n")
	b.WriteString("Strengthen this answer: correct any mistakes, fill real gaps, tighten the reasoning. ")
	b.WriteString("Reply with the refinement only, no preamble and no restatement of the full answer.")
	return b.String()
}

// FindProposal 在提案集中定位指定 Agent 与实例的提案
func FindProposal(proposals []types.Proposal, agent types.AgentID, instance int) (types.Proposal, error) {
	for _, p := range proposals {
		if p.Agent == agent && p.Instance == instance {
			return p, nil
		}
	}
	for _, p := range proposals {
		if p.Agent == agent && !p.Failed() {
			return p, nil
		}
	}
	return types.Proposal{}, fmt.Errorf("no proposal from %s instance %d", agent, instance)
}
