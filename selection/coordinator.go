package selection

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

// knownCategories 协调 Agent 允许返回的类别集合
var knownCategories = map[types.Category]bool{
	types.CategoryGeneral:         true,
	types.CategoryCoding:          true,
	types.CategoryArchitecture:    true,
	types.CategoryDebugging:       true,
	types.CategorySecurity:        true,
	types.CategoryFinancial:       true,
	types.CategoryProductionInfra: true,
	types.CategoryCreative:        true,
	types.CategoryResearch:        true,
}

var knownLevels = map[types.Level]bool{
	types.LevelTrivial:  true,
	types.LevelLow:      true,
	types.LevelMedium:   true,
	types.LevelHigh:     true,
	types.LevelCritical: true,
}

// CoordinatorStrategy 委托协调 Agent 做问题分析。
// 协调调用走与辩论相同的执行后端，因此共享重试与超时纪律；
// 任何失败（调用失败、JSON 不可解析、计划为空）都返回错误，
// 由 Selector 降级到启发式策略，绝不在此处兜底。
type CoordinatorStrategy struct {
	caller      backend.Caller
	registry    *types.Registry
	coordinator types.AgentID
	timeout     time.Duration
	logger      *zap.Logger
}

// NewCoordinatorStrategy 创建协调 Agent 策略
func NewCoordinatorStrategy(caller backend.Caller, registry *types.Registry, coordinator types.AgentID, timeout time.Duration, logger *zap.Logger) *CoordinatorStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CoordinatorStrategy{
		caller:      caller,
		registry:    registry,
		coordinator: coordinator,
		timeout:     timeout,
		logger:      logger.With(zap.String("component", "coordinator_strategy")),
	}
}

// Name 实现 Strategy
func (c *CoordinatorStrategy) Name() string { return "coordinator" }

// coordinatorVerdict 协调 Agent 的结构化结论
type coordinatorVerdict struct {
	Category    string `json:"category"`
	Complexity  string `json:"complexity"`
	Criticality string `json:"criticality"`
	Agents      []struct {
		ID        string `json:"id"`
		Instances int    `json:"instances"`
	} `json:"agents"`
	Rationale string `json:"rationale"`
}

// Analyze 实现 Strategy
func (c *CoordinatorStrategy) Analyze(ctx context.Context, question, contextHint string) (types.QuestionAnalysis, error) {
	raw, err := c.caller.Complete(ctx, c.coordinator, c.buildPrompt(question, contextHint), c.timeout)
	if err != nil {
		return types.QuestionAnalysis{}, fmt.Errorf("coordinator %s: %w", c.coordinator, err)
	}

	obj, ok := jsonutil.ExtractObject(raw)
	if !ok {
		return types.QuestionAnalysis{}, fmt.Errorf("coordinator %s returned no JSON object", c.coordinator)
	}
	var verdict coordinatorVerdict
	if err := json.Unmarshal([]byte(obj), &verdict); err != nil {
		return types.QuestionAnalysis{}, fmt.Errorf("coordinator %s verdict unparsable: %w", c.coordinator, err)
	}

	return c.toAnalysis(question, verdict)
}

// toAnalysis 校验结论并转换为 QuestionAnalysis。
// 未知类别/档位单独降级，未知 Agent 逐条丢弃；计划彻底为空才算失败。
func (c *CoordinatorStrategy) toAnalysis(question string, verdict coordinatorVerdict) (types.QuestionAnalysis, error) {
	category := types.Category(strings.ToLower(strings.TrimSpace(verdict.Category)))
	if !knownCategories[category] {
		c.logger.Warn("coordinator returned unknown category, using general",
			zap.String("category", verdict.Category))
		category = types.CategoryGeneral
	}

	normalizeLevel := func(raw string) types.Level {
		level := types.Level(strings.ToLower(strings.TrimSpace(raw)))
		if !knownLevels[level] {
			c.logger.Warn("coordinator returned unknown level, using medium", zap.String("level", raw))
			return types.LevelMedium
		}
		return level
	}

	plan := make(types.AgentPlan, 0, len(verdict.Agents))
	seen := make(map[types.AgentID]bool, len(verdict.Agents))
	for _, entry := range verdict.Agents {
		id := types.AgentID(strings.TrimSpace(entry.ID))
		if id == "" || !c.registry.Has(id) || seen[id] {
			c.logger.Warn("dropping coordinator plan entry", zap.String("agent", entry.ID))
			continue
		}
		count := entry.Instances
		if count < 1 {
			count = 1
		}
		if count > maxInstancesPerAgent {
			count = maxInstancesPerAgent
		}
		seen[id] = true
		plan = append(plan, types.PlanEntry{Agent: id, Instances: count})
	}
	if len(plan) == 0 {
		return types.QuestionAnalysis{}, fmt.Errorf("coordinator %s produced no usable plan", c.coordinator)
	}

	analysis := types.QuestionAnalysis{
		Category:    category,
		Complexity:  normalizeLevel(verdict.Complexity),
		Criticality: normalizeLevel(verdict.Criticality),
		Plan:        plan,
		Rationale:   strings.TrimSpace(verdict.Rationale),
	}
	if analysis.Rationale == "" {
		analysis.Rationale = "coordinator verdict"
	}
	analysis.CostReduction = CostReduction(question, plan, c.registry)
	return analysis, nil
}

// buildPrompt 渲染协调提示词：花名册、问题与严格的 JSON 输出要求
func (c *CoordinatorStrategy) buildPrompt(question, contextHint string) string {
	var b strings.Builder
	b.WriteString("You are the debate coordinator. Analyze the question and assemble the best agent team.\n\n")
	b.WriteString("Available agents:\n")
	for _, agent := range c.registry.Agents() {
		fmt.Fprintf(&b, "- %s (%s): %s\n", agent.ID, agent.Role, strings.Join(agent.Strengths, ", "))
	}

	b.WriteString("\nQuestion:\n")
	b.WriteString(question)
	b.WriteString("\n")
	if contextHint != "" {
		b.WriteString("\nContext hint: ")
		b.WriteString(contextHint)
		b.WriteString("\n")
	}

	b.WriteString(`
Respond with ONLY a JSON object, no prose:
{"category": "...", "complexity": "...", "criticality": "...", "agents": [{"id": "...", "instances": 1}], "rationale": "..."}

category: one of general, coding, architecture, debugging, security, financial, production-infra, creative, research.
complexity and criticality: one of trivial, low, medium, high, critical.
Pick a single agent only for trivial questions; otherwise pick at least 3.
Request instances > 1 only when parallel diversity genuinely helps.
`)
	return b.String()
}
