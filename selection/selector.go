package selection

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/backend"
	"github.com/BaSui01/debateflow/types"
)

// Strategy 问题分析策略：判定问题类别、复杂度、风险并给出执行计划
type Strategy interface {
	Analyze(ctx context.Context, question, contextHint string) (types.QuestionAnalysis, error)
	Name() string
}

// Config 选型策略配置
type Config struct {
	// Coordinator 协调 Agent；为空或不在花名册时只用启发式
	Coordinator types.AgentID `yaml:"coordinator" json:"coordinator"`

	// CoordinatorTimeout 协调调用超时
	CoordinatorTimeout time.Duration `yaml:"coordinator_timeout" json:"coordinator_timeout"`

	// Quorum 非平凡问题的最少参与 Agent 数
	Quorum int `yaml:"quorum" json:"quorum"`

	// MaxCriticalInstances 高危问题的实例总数上限
	MaxCriticalInstances int `yaml:"max_critical_instances" json:"max_critical_instances"`

	// ParallelThreshold 达到该档位（复杂度或风险任一）才允许并行实例
	ParallelThreshold types.Level `yaml:"parallel_threshold" json:"parallel_threshold"`

	// Instance 实例变体参数
	Instance InstanceOptions `yaml:"instance" json:"instance"`
}

// DefaultConfig 返回默认选型配置
func DefaultConfig() Config {
	return Config{
		Coordinator:          types.AgentClaude,
		CoordinatorTimeout:   30 * time.Second,
		Quorum:               3,
		MaxCriticalInstances: 5,
		ParallelThreshold:    types.LevelHigh,
		Instance:             DefaultInstanceOptions(),
	}
}

// Selector 策略编排：优先走协调 Agent，失败降级启发式，
// 再对任一路径的产出统一执行席位策略（法定人数、并行门槛、
// 高危实例上限）。Analyze 永不失败。
type Selector struct {
	primary  Strategy
	fallback *HeuristicStrategy
	registry *types.Registry
	cfg      Config
	logger   *zap.Logger
}

// NewSelector 创建选型器。caller 为 nil 时只启用启发式策略。
func NewSelector(caller backend.Caller, registry *types.Registry, cfg Config, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Quorum <= 0 {
		cfg.Quorum = DefaultConfig().Quorum
	}
	if cfg.MaxCriticalInstances <= 0 {
		cfg.MaxCriticalInstances = DefaultConfig().MaxCriticalInstances
	}
	if cfg.ParallelThreshold == "" {
		cfg.ParallelThreshold = DefaultConfig().ParallelThreshold
	}

	s := &Selector{
		fallback: NewHeuristicStrategy(registry, logger),
		registry: registry,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "selector")),
	}
	if caller != nil && cfg.Coordinator != "" && registry.Has(cfg.Coordinator) {
		s.primary = NewCoordinatorStrategy(caller, registry, cfg.Coordinator, cfg.CoordinatorTimeout, logger)
	}
	return s
}

// Analyze 执行问题分析并套用席位策略。协调路径失败时自动降级，
// 启发式路径不会失败，因此本方法总能给出可执行的计划。
func (s *Selector) Analyze(ctx context.Context, question, contextHint string) types.QuestionAnalysis {
	var analysis types.QuestionAnalysis
	fromPrimary := false

	if s.primary != nil {
		a, err := s.primary.Analyze(ctx, question, contextHint)
		if err != nil {
			s.logger.Warn("primary strategy failed, falling back to heuristic",
				zap.String("strategy", s.primary.Name()),
				zap.Error(err),
			)
		} else {
			analysis = a
			fromPrimary = true
		}
	}
	if !fromPrimary {
		analysis, _ = s.fallback.Analyze(ctx, question, contextHint)
	}

	return s.enforcePolicy(question, analysis)
}

// Instances 按配置参数展开计划
func (s *Selector) Instances(plan types.AgentPlan) map[types.AgentID][]types.InstanceConfig {
	return InstancesWith(plan, s.cfg.Instance)
}

// enforcePolicy 无论计划出自哪条路径，席位策略一律生效：
//  1. 未达并行门槛的计划收拢为每 Agent 一实例
//  2. 非平凡问题补齐法定人数，按亲和度从花名册扩充
//  3. 高危问题裁剪到实例总数上限
func (s *Selector) enforcePolicy(question string, a types.QuestionAnalysis) types.QuestionAnalysis {
	if !a.Complexity.AtLeast(s.cfg.ParallelThreshold) && !a.Criticality.AtLeast(s.cfg.ParallelThreshold) {
		for i := range a.Plan {
			if a.Plan[i].Instances > 1 {
				s.logger.Debug("collapsing parallel instances below threshold",
					zap.String("agent", string(a.Plan[i].Agent)))
				a.Plan[i].Instances = 1
			}
		}
	}

	quorum := s.cfg.Quorum
	if quorum > s.registry.Len() {
		quorum = s.registry.Len()
	}
	if a.Complexity != types.LevelTrivial && len(a.Plan) < quorum {
		have := make(map[types.AgentID]bool, len(a.Plan))
		for _, e := range a.Plan {
			have[e.Agent] = true
		}
		for _, id := range s.fallback.RankRoster(a.Category) {
			if len(a.Plan) >= quorum {
				break
			}
			if have[id] {
				continue
			}
			have[id] = true
			a.Plan = append(a.Plan, types.PlanEntry{Agent: id, Instances: 1})
		}
		s.logger.Info("expanded plan to quorum",
			zap.Int("quorum", quorum),
			zap.String("plan", a.Plan.String()),
		)
	}

	if a.Criticality == types.LevelCritical {
		a.Plan = capInstances(a.Plan, s.cfg.MaxCriticalInstances, s.logger)
	}

	a.CostReduction = CostReduction(question, a.Plan, s.registry)
	return a
}

// capInstances 把计划裁剪到实例总数上限：先压缩多实例条目，
// 仍超限时从计划尾部（亲和度最低）整条移除。
func capInstances(plan types.AgentPlan, limit int, logger *zap.Logger) types.AgentPlan {
	if limit <= 0 || plan.TotalInstances() <= limit {
		return plan
	}

	for plan.TotalInstances() > limit {
		widest := -1
		for i, e := range plan {
			if e.Instances > 1 && (widest < 0 || e.Instances > plan[widest].Instances) {
				widest = i
			}
		}
		if widest >= 0 {
			plan[widest].Instances--
			continue
		}
		plan = plan[:len(plan)-1]
	}

	logger.Info("capped plan for critical question",
		zap.Int("limit", limit),
		zap.String("plan", plan.String()),
	)
	return plan
}
