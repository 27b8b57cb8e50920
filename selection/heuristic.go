package selection

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/types"
)

// categoryRule 把关键词映射到问题类别；匹配按声明顺序决胜，保证确定性
type categoryRule struct {
	category types.Category
	keywords []string
}

// categoryRules 类别关键词表。顺序即平分时的优先级：敏感类别在前，
// 使安全/资金/生产类问题不会被更宽泛的类别抢走。
var categoryRules = []categoryRule{
	{types.CategorySecurity, []string{
		"security", "vulnerab", "exploit", "injection", "xss", "csrf",
		"encrypt", "authentication", "authorization", "password", "secret", "cve",
	}},
	{types.CategoryFinancial, []string{
		"financial", "payment", "billing", "invoice", "money", "currency",
		"ledger", "accounting", "tax", "interest rate", "portfolio",
	}},
	{types.CategoryProductionInfra, []string{
		"production", "deploy", "kubernetes", "terraform", "outage", "incident",
		"rollback", "infrastructure", "ci/cd", "on-call", "downtime", "cluster",
	}},
	{types.CategoryDebugging, []string{
		"debug", "bug", "crash", "stack trace", "panic", "segfault",
		"not working", "fails with", "error message", "reproduce",
	}},
	{types.CategoryArchitecture, []string{
		"architecture", "system design", "microservice", "monolith",
		"scalab", "distributed", "event-driven", "schema design", "api design",
	}},
	{types.CategoryCoding, []string{
		"code", "function", "implement", "algorithm", "refactor", "class",
		"method", "library", "compile", "unit test", "regex", "parse",
	}},
	{types.CategoryResearch, []string{
		"research", "compare", "comparison", "survey", "state of the art",
		"literature", "pros and cons", "alternatives", "benchmark",
	}},
	{types.CategoryCreative, []string{
		"story", "poem", "creative", "slogan", "marketing copy",
		"brainstorm", "name for", "tagline",
	}},
}

// complexityMarkers 出现即抬升复杂度判定的信号词
var complexityMarkers = []string{
	"design", "architecture", "distributed", "scalab", "concurren",
	"trade-off", "tradeoff", "optimize", "migrate", "end-to-end", "multi-tenant",
}

// stakeMarkers 出现即抬升风险判定的信号词
var stakeMarkers = []string{
	"production", "outage", "customer data", "breach", "data loss",
	"irreversible", "compliance", "incident", "live traffic", "real money",
}

// urgencyMarkers 直接把风险推到最高档的信号词
var urgencyMarkers = []string{"critical", "urgent", "emergency", "sev1", "right now"}

// categoryAffinity 类别到 Agent 专长标签的亲和表，用于花名册排序
var categoryAffinity = map[types.Category][]string{
	types.CategoryGeneral:         {"reasoning", "writing", "breadth"},
	types.CategoryCoding:          {"coding", "refactoring", "debugging"},
	types.CategoryArchitecture:    {"architecture", "reasoning", "performance"},
	types.CategoryDebugging:       {"debugging", "coding", "reasoning"},
	types.CategorySecurity:        {"security", "reasoning", "coding"},
	types.CategoryFinancial:       {"math", "reasoning", "writing"},
	types.CategoryProductionInfra: {"reasoning", "debugging", "performance"},
	types.CategoryCreative:        {"writing", "breadth", "multilingual"},
	types.CategoryResearch:        {"research", "breadth", "summarization"},
}

var levelLadder = []types.Level{
	types.LevelTrivial, types.LevelLow, types.LevelMedium,
	types.LevelHigh, types.LevelCritical,
}

// HeuristicStrategy 基于关键词表的确定性问题分析。
// 无外部调用、无随机性：同一问题永远得到同一份计划，
// 是协调 Agent 不可用时的兜底路径。
type HeuristicStrategy struct {
	registry *types.Registry
	logger   *zap.Logger
}

// NewHeuristicStrategy 创建关键词启发式策略
func NewHeuristicStrategy(registry *types.Registry, logger *zap.Logger) *HeuristicStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HeuristicStrategy{
		registry: registry,
		logger:   logger.With(zap.String("component", "heuristic_strategy")),
	}
}

// Name 实现 Strategy
func (h *HeuristicStrategy) Name() string { return "heuristic" }

// Analyze 实现 Strategy：类别取关键词命中最多者，复杂度看长度与
// 信号词，风险看类别与风险信号词，计划按专长亲和度排序截取。
func (h *HeuristicStrategy) Analyze(_ context.Context, question, contextHint string) (types.QuestionAnalysis, error) {
	lower := strings.ToLower(question + " " + contextHint)

	category, categoryHits := h.classify(lower)
	complexity := h.complexity(lower, question, categoryHits)
	criticality := h.criticality(lower, category)

	ranked := h.RankRoster(category)
	plan := h.buildPlan(ranked, complexity, criticality)

	analysis := types.QuestionAnalysis{
		Category:    category,
		Complexity:  complexity,
		Criticality: criticality,
		Plan:        plan,
		Rationale: fmt.Sprintf("keyword heuristic: category=%s complexity=%s criticality=%s agents=%s",
			category, complexity, criticality, plan.String()),
	}
	analysis.CostReduction = CostReduction(question, plan, h.registry)
	return analysis, nil
}

// classify 返回命中最多的类别及其命中数；无命中归入 general
func (h *HeuristicStrategy) classify(lower string) (types.Category, int) {
	best := types.CategoryGeneral
	bestHits := 0
	for _, rule := range categoryRules {
		hits := 0
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best = rule.category
			bestHits = hits
		}
	}
	return best, bestHits
}

func (h *HeuristicStrategy) complexity(lower, question string, categoryHits int) types.Level {
	words := len(strings.Fields(question))

	markerHits := 0
	for _, kw := range complexityMarkers {
		if strings.Contains(lower, kw) {
			markerHits++
		}
	}

	if words <= 7 && categoryHits == 0 && markerHits == 0 {
		return types.LevelTrivial
	}

	score := 0
	if words > 40 {
		score++
	}
	if words > 120 {
		score++
	}
	if markerHits >= 1 {
		score++
	}
	if markerHits >= 3 {
		score++
	}
	if categoryHits >= 2 {
		score++
	}

	switch {
	case score == 0:
		return types.LevelLow
	case score == 1:
		return types.LevelMedium
	case score == 2:
		return types.LevelHigh
	default:
		if words > 120 && markerHits >= 2 {
			return types.LevelCritical
		}
		return types.LevelHigh
	}
}

func (h *HeuristicStrategy) criticality(lower string, category types.Category) types.Level {
	base := types.LevelLow
	switch category {
	case types.CategorySecurity, types.CategoryFinancial, types.CategoryProductionInfra:
		base = types.LevelHigh
	case types.CategoryArchitecture, types.CategoryDebugging:
		base = types.LevelMedium
	}

	stakes := 0
	for _, kw := range stakeMarkers {
		if strings.Contains(lower, kw) {
			stakes++
		}
	}
	for _, kw := range urgencyMarkers {
		if strings.Contains(lower, kw) {
			stakes += 2
			break
		}
	}

	rank := base.Rank()
	if stakes >= 1 {
		rank++
	}
	if stakes >= 2 {
		rank++
	}
	if rank >= len(levelLadder) {
		rank = len(levelLadder) - 1
	}
	return levelLadder[rank]
}

// RankRoster 按专长与类别的亲和度排序花名册；同分按 ID 字典序，
// 排序结果与 map 迭代顺序无关。
func (h *HeuristicStrategy) RankRoster(category types.Category) []types.AgentID {
	affinity := categoryAffinity[category]
	if affinity == nil {
		affinity = categoryAffinity[types.CategoryGeneral]
	}

	type rankedAgent struct {
		id    types.AgentID
		score int
	}
	ranked := make([]rankedAgent, 0, h.registry.Len())
	for _, agent := range h.registry.Agents() {
		score := 0
		for _, strength := range agent.Strengths {
			for i, term := range affinity {
				// 亲和表靠前的标签权重更高
				if strings.EqualFold(strength, term) {
					score += len(affinity) - i
				}
			}
		}
		ranked = append(ranked, rankedAgent{id: agent.ID, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})

	out := make([]types.AgentID, len(ranked))
	for i, r := range ranked {
		out[i] = r.id
	}
	return out
}

// buildPlan 从排好序的花名册截取计划：复杂度决定人数，
// 高风险高复杂度时给头部 Agent 多实例。
func (h *HeuristicStrategy) buildPlan(ranked []types.AgentID, complexity, criticality types.Level) types.AgentPlan {
	agentCount := 3
	switch {
	case complexity == types.LevelTrivial:
		agentCount = 1
	case complexity == types.LevelLow:
		agentCount = 3
	case complexity.AtLeast(types.LevelHigh) || criticality.AtLeast(types.LevelHigh):
		agentCount = 4
	}
	if agentCount > len(ranked) {
		agentCount = len(ranked)
	}

	plan := make(types.AgentPlan, 0, agentCount)
	for _, id := range ranked[:agentCount] {
		plan = append(plan, types.PlanEntry{Agent: id, Instances: 1})
	}

	// 头部 Agent 双实例，只在高复杂度或高风险时启用
	if len(plan) > 0 && (complexity.AtLeast(types.LevelHigh) || criticality.AtLeast(types.LevelHigh)) {
		plan[0].Instances = 2
	}
	return plan
}
