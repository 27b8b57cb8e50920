// 测试数据工厂:问题样例与各角色的结构化应答。
package fixtures

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BaSui01/debateflow/types"
)

// Questions 覆盖常见类别的问题样例。
var Questions = []string{
	"How should the session store be sharded across regions?",
	"Why does the payment worker deadlock under load?",
	"Is it safe to expose the admin API through the public gateway?",
	"Design a rollout plan for swapping the message broker.",
}

// CoordinatorPlan 构造协调 Agent 的计划 JSON,每个 Agent 一个实例。
func CoordinatorPlan(category types.Category, criticality types.Level, agents ...types.AgentID) string {
	type planEntry struct {
		ID        string `json:"id"`
		Instances int    `json:"instances"`
	}
	entries := make([]planEntry, 0, len(agents))
	for _, id := range agents {
		entries = append(entries, planEntry{ID: string(id), Instances: 1})
	}
	raw, err := json.Marshal(map[string]any{
		"category":    string(category),
		"complexity":  string(criticality),
		"criticality": string(criticality),
		"agents":      entries,
		"rationale":   "scripted plan",
	})
	if err != nil {
		panic(err)
	}
	return string(raw)
}

// JudgeVerdict 构造裁判结论 JSON,scores 需覆盖全部提案 Agent。
func JudgeVerdict(best types.AgentID, scores map[types.AgentID]float64) string {
	converted := make(map[string]float64, len(scores))
	for id, s := range scores {
		converted[string(id)] = s
	}
	raw, err := json.Marshal(map[string]any{
		"scores":    converted,
		"best":      string(best),
		"reasoning": "most rigorous answer",
	})
	if err != nil {
		panic(err)
	}
	return string(raw)
}

// FactCheckScores 构造事实核查评分 JSON,分值区间 0-100。
func FactCheckScores(accuracy, security, completeness float64) string {
	return fmt.Sprintf(`{"technical_accuracy": %g, "security": %g, "completeness": %g}`,
		accuracy, security, completeness)
}

// ChallengeIssues 构造对抗质询的问题清单。无参数时返回 PASS。
func ChallengeIssues(issues ...string) string {
	if len(issues) == 0 {
		return "PASS"
	}
	var b strings.Builder
	for _, issue := range issues {
		fmt.Fprintf(&b, "- %s\n", issue)
	}
	return b.String()
}
