package consensus

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/types"
)

// 启发式评分权重：相关性占大头，长度与结构辅助
const (
	lengthWeight    = 0.3
	structureWeight = 0.3
	relevanceWeight = 0.4
)

var numberedItemRe = regexp.MustCompile(`^\d+[.)]\s`)

// stopwords 提取问题关键词时忽略的常见词
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "what": true, "when": true, "where": true, "which": true,
	"how": true, "why": true, "should": true, "would": true, "could": true,
	"from": true, "your": true, "have": true, "does": true, "about": true,
	"into": true, "will": true, "can": true, "are": true, "you": true,
	"please": true, "need": true, "want": true, "there": true, "their": true,
}

// HeuristicEvaluator 确定性启发式评审：按回答长度档位、结构化
// 内容密度与问题关键词覆盖率加权打分。
// 无外部调用、无随机性：同一输入永远得到同一结论，
// 是评审 Agent 不可用时的兜底路径，绝不缺省偏向某个固定赢家。
type HeuristicEvaluator struct {
	logger *zap.Logger
}

// NewHeuristicEvaluator 创建启发式评审器
func NewHeuristicEvaluator(logger *zap.Logger) *HeuristicEvaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HeuristicEvaluator{
		logger: logger.With(zap.String("component", "heuristic_evaluator")),
	}
}

// Evaluate 实现 Evaluator。同一 Agent 的多个实例按最高分实例计入，
// 同分实例取序号最小者；Agent 间同分取 ID 字典序最小者。
func (h *HeuristicEvaluator) Evaluate(_ context.Context, question string, proposals []types.Proposal) (types.EvaluationResult, error) {
	live := successful(proposals)
	if len(live) == 0 {
		return types.EvaluationResult{}, types.NewError(types.ErrNoWinner,
			"no successful proposals to evaluate")
	}

	terms := questionTerms(question)
	scores := make(map[types.AgentID]float64, len(live))
	breakdown := make(map[types.AgentID]types.ScoreBreakdown, len(live))
	instances := make(map[types.AgentID]int, len(live))

	for _, p := range live {
		score, bd := h.Score(terms, p.Content)
		prev, seen := scores[p.Agent]
		if !seen || score > prev || (score == prev && p.Instance < instances[p.Agent]) {
			scores[p.Agent] = score
			breakdown[p.Agent] = bd
			instances[p.Agent] = p.Instance
		}
	}

	best := pickBest(scores)
	return types.EvaluationResult{
		Scores:       scores,
		Breakdown:    breakdown,
		Best:         best,
		BestInstance: instances[best],
		Justification: fmt.Sprintf("deterministic scoring over length, structure and keyword coverage; best=%s (%.4f)",
			best, scores[best]),
		Method: "heuristic",
	}, nil
}

// Score 为单条回答打分并返回分项拆解，分数域 [0,10]
func (h *HeuristicEvaluator) Score(terms []string, content string) (float64, types.ScoreBreakdown) {
	bd := types.ScoreBreakdown{
		Length:    lengthScore(len(content)),
		Structure: structureScore(content),
		Relevance: relevanceScore(terms, content),
	}
	total := lengthWeight*bd.Length + structureWeight*bd.Structure + relevanceWeight*bd.Relevance
	return roundScore(total), bd
}

// lengthScore 回答长度档位分：太短信息量不足，太长噪声过多
func lengthScore(chars int) float64 {
	switch {
	case chars < 80:
		return 2
	case chars < 300:
		return 6
	case chars <= 2500:
		return 10
	case chars <= 6000:
		return 8
	default:
		return 5
	}
}

// structureScore 结构化内容密度分：代码块、标题与列表项
func structureScore(content string) float64 {
	fences := strings.Count(content, "```") / 2

	headings, bullets := 0, 0
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "#"):
			headings++
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			bullets++
		case numberedItemRe.MatchString(trimmed):
			bullets++
		}
	}

	score := 3*float64(fences) + 2*float64(headings) + 0.5*float64(bullets)
	if score > 10 {
		score = 10
	}
	return score
}

// relevanceScore 问题关键词覆盖率分
func relevanceScore(terms []string, content string) float64 {
	if len(terms) == 0 {
		// 问题没有可提取的关键词时给中性分
		return 5
	}
	lower := strings.ToLower(content)
	matched := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			matched++
		}
	}
	return 10 * float64(matched) / float64(len(terms))
}

// questionTerms 提取问题关键词：长度不小于 4、去停用词、去重
func questionTerms(question string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.Fields(strings.ToLower(question)) {
		w = strings.Trim(w, ".,!?;:\"'()[]{}`")
		if len(w) < 4 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// successful 过滤出成功的提案
func successful(proposals []types.Proposal) []types.Proposal {
	out := make([]types.Proposal, 0, len(proposals))
	for _, p := range proposals {
		if !p.Failed() {
			out = append(out, p)
		}
	}
	return out
}

// roundScore 四舍五入到 4 位小数，抹平浮点噪声后再决胜
func roundScore(s float64) float64 {
	return math.Round(s*10000) / 10000
}

// pickBest 返回最高分 Agent；同分取 ID 字典序最小者，保证跨次运行可复现
func pickBest(scores map[types.AgentID]float64) types.AgentID {
	ids := make([]types.AgentID, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var best types.AgentID
	bestScore := math.Inf(-1)
	for _, id := range ids {
		if scores[id] > bestScore {
			best = id
			bestScore = scores[id]
		}
	}
	return best
}

// clamp 把分数收敛到 [min, max]
func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
