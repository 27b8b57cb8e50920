// 测试数据工厂:Agent 花名册与注册表。
package fixtures

import (
	"github.com/BaSui01/debateflow/types"
)

// RosterYAML 是一份合法的花名册文件内容:一个命令行 Agent
// 加一个 HTTP Agent,覆盖两种触达方式。
const RosterYAML = `agents:
  - id: claude
    name: Claude
    role: generalist
    strengths: [architecture, coding]
    command: claude
    args: ["-p"]
    supports_deep_reasoning: true
    cost_per_kilo_chars: 3.0
  - id: local-llm
    name: Local LLM
    role: reviewer
    strengths: [debugging]
    endpoint: http://127.0.0.1:8080/v1/chat/completions
    model: qwen3-32b
    cost_per_kilo_chars: 0.1
`

// SubsetRegistry 从内置花名册挑选给定 Agent 构建注册表。
// 用于人数受控的选型与法定人数测试。
func SubsetRegistry(ids ...types.AgentID) *types.Registry {
	full := types.DefaultRegistry()
	agents := make([]types.Agent, 0, len(ids))
	for _, id := range ids {
		a, err := full.Get(id)
		if err != nil {
			panic(err)
		}
		agents = append(agents, a)
	}
	r, err := types.NewRegistry(agents)
	if err != nil {
		panic(err)
	}
	return r
}
