package selection

import (
	"hash/fnv"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/types"
)

// maxInstancesPerAgent 单个 Agent 的并行实例上限，防止手写计划失控
const maxInstancesPerAgent = 10

// focusDirectives 并行实例的关注点指令，按轮转分配
var focusDirectives = []string{"edge cases", "performance", "security", "simplicity"}

// ParsePlan 解析手写执行计划，如 "claude:2,codex,gemini:3"。
// 显式计划完全绕过问题分析。非法条目（空 ID、未知 Agent、无效实例数、
// 重复 Agent）逐条丢弃并告警；全部条目都非法时返回 ErrInvalidPlan。
func ParsePlan(registry *types.Registry, s string, logger *zap.Logger) (types.AgentPlan, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	raw := strings.Split(s, ",")
	plan := make(types.AgentPlan, 0, len(raw))
	seen := make(map[types.AgentID]bool, len(raw))

	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		id, count, ok := parsePlanEntry(entry)
		if !ok {
			logger.Warn("dropping malformed plan entry", zap.String("entry", entry))
			continue
		}
		if !registry.Has(id) {
			logger.Warn("dropping plan entry for unknown agent",
				zap.String("entry", entry),
				zap.String("agent", string(id)),
			)
			continue
		}
		if seen[id] {
			logger.Warn("dropping duplicate plan entry", zap.String("agent", string(id)))
			continue
		}

		seen[id] = true
		plan = append(plan, types.PlanEntry{Agent: id, Instances: count})
	}

	if len(plan) == 0 {
		return nil, types.NewError(types.ErrInvalidPlan,
			"plan contains no valid entries: "+s)
	}
	return plan, nil
}

// parsePlanEntry 解析单个 "agent" 或 "agent:count" 条目
func parsePlanEntry(entry string) (types.AgentID, int, bool) {
	name := entry
	count := 1

	if i := strings.IndexByte(entry, ':'); i >= 0 {
		name = strings.TrimSpace(entry[:i])
		n, err := strconv.Atoi(strings.TrimSpace(entry[i+1:]))
		if err != nil || n < 1 || n > maxInstancesPerAgent {
			return "", 0, false
		}
		count = n
	}
	if name == "" {
		return "", 0, false
	}
	return types.AgentID(name), count, true
}

// InstanceOptions 控制实例变体参数的生成
type InstanceOptions struct {
	// BaseSeed 采样种子基值，实例种子由基值、Agent 哈希与序号混合而来
	BaseSeed int64 `yaml:"base_seed" json:"base_seed"`

	// BaseTemperature 首个实例的采样温度
	BaseTemperature float64 `yaml:"base_temperature" json:"base_temperature"`

	// TemperatureStep 相邻实例的温度递增步长
	TemperatureStep float64 `yaml:"temperature_step" json:"temperature_step"`

	// MaxTemperature 温度上限；实例数较多时步长会收窄以保持严格递增
	MaxTemperature float64 `yaml:"max_temperature" json:"max_temperature"`
}

// DefaultInstanceOptions 返回默认实例变体参数
func DefaultInstanceOptions() InstanceOptions {
	return InstanceOptions{
		BaseSeed:        42,
		BaseTemperature: 0.7,
		TemperatureStep: 0.1,
		MaxTemperature:  1.0,
	}
}

// Instances 用默认参数展开执行计划
func Instances(plan types.AgentPlan) map[types.AgentID][]types.InstanceConfig {
	return InstancesWith(plan, DefaultInstanceOptions())
}

// InstancesWith 把执行计划展开为每个 Agent 的实例变体列表：
// 序号从 1 连续编号，种子互不相同，温度严格递增且不超过上限，
// 多实例时按轮转分配关注点指令。
func InstancesWith(plan types.AgentPlan, opts InstanceOptions) map[types.AgentID][]types.InstanceConfig {
	if opts.MaxTemperature <= 0 {
		opts.MaxTemperature = 1.0
	}
	if opts.BaseTemperature <= 0 {
		opts.BaseTemperature = DefaultInstanceOptions().BaseTemperature
	}
	if opts.TemperatureStep <= 0 {
		opts.TemperatureStep = DefaultInstanceOptions().TemperatureStep
	}
	if opts.BaseTemperature >= opts.MaxTemperature {
		opts.BaseTemperature = opts.MaxTemperature * 0.7
	}

	out := make(map[types.AgentID][]types.InstanceConfig, len(plan))
	for _, entry := range plan {
		count := entry.Instances
		if count < 1 {
			count = 1
		}

		// 实例数多到会触顶时收窄步长，保证温度仍严格递增
		step := opts.TemperatureStep
		if count > 1 {
			if ceiling := (opts.MaxTemperature - opts.BaseTemperature) / float64(count-1); ceiling < step {
				step = ceiling
			}
		}

		configs := make([]types.InstanceConfig, 0, count)
		for idx := 1; idx <= count; idx++ {
			cfg := types.InstanceConfig{
				Index:       idx,
				Total:       count,
				Seed:        instanceSeed(opts.BaseSeed, entry.Agent, idx),
				Temperature: opts.BaseTemperature + float64(idx-1)*step,
			}
			if cfg.Temperature > opts.MaxTemperature {
				cfg.Temperature = opts.MaxTemperature
			}
			if count > 1 {
				cfg.Focus = focusDirectives[(idx-1)%len(focusDirectives)]
			}
			configs = append(configs, cfg)
		}
		out[entry.Agent] = configs
	}
	return out
}

// instanceSeed 混合基值、Agent 哈希与实例序号，保证同一 Agent 的
// 各实例种子互不相同
func instanceSeed(base int64, id types.AgentID, idx int) int64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	return base + int64(h.Sum64()&0xFFFF)<<4 + int64(idx)
}
