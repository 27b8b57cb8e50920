package selection

import "github.com/BaSui01/debateflow/types"

// avgResponseChars 估算用的平均回答长度
const avgResponseChars = 4000

// EstimateTokens 粗略 token 估算：字符数除以 4。
// 刻意保持近似，只用于成本对比排序，不作计费依据。
func EstimateTokens(text string) int {
	return len(text) / 4
}

// CostReduction 估算计划相对于"全员一实例"的成本节省比例，
// 结果落在 [0,1]。基于字符数近似，不追求精确。
func CostReduction(question string, plan types.AgentPlan, registry *types.Registry) float64 {
	charge := func(id types.AgentID, instances int) float64 {
		agent, err := registry.Get(id)
		if err != nil {
			return 0
		}
		perInstance := agent.CostPerKiloChars * float64(len(question)+avgResponseChars) / 1000
		return perInstance * float64(instances)
	}

	full := 0.0
	for _, id := range registry.IDs() {
		full += charge(id, 1)
	}
	if full <= 0 {
		return 0
	}

	planned := 0.0
	for _, e := range plan {
		planned += charge(e.Agent, e.Instances)
	}

	reduction := 1 - planned/full
	if reduction < 0 {
		return 0
	}
	return reduction
}
