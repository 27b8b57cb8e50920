package consensus

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// blankRunRe 连续空行（3 个及以上换行）收拢为一个空行
	blankRunRe = regexp.MustCompile(`\n{3,}`)

	// leadingTagRe 行首的 "[claude]" 式署名标签
	leadingTagRe = regexp.MustCompile(`(?m)^\[[A-Za-z0-9_-]+\]\s*`)

	// asAgentRe "As agent claude, ..." 式自指
	asAgentRe = regexp.MustCompile(`(?i)\bas agent [a-z0-9_-]+\s*,?\s*`)

	// agentSaidRe "Agent claude said:" 式转述
	agentSaidRe = regexp.MustCompile(`(?i)\bagent [a-z0-9_-]+ (?:said|wrote|suggested|noted|mentioned)\s*[:,]?\s*`)
)

// Synthesize 把胜出答案与改进意见合成为单一结论：胜出内容在前，
// 每条改进作为带署名标题的独立小节，最后统一规整格式。
// 空改进意见跳过；即使改进轮全军覆没，胜出内容也原样保留。
func Synthesize(winnerContent string, improvements []Improvement) string {
	var b strings.Builder
	b.WriteString(stripAttribution(winnerContent))

	for _, imp := range improvements {
		body := strings.TrimSpace(stripAttribution(imp.Content))
		if body == "" {
			continue
		}
		fmt.Fprintf(&b, "\n\n## Refinement from %s\n\n%s", imp.Agent, body)
	}

	return normalize(b.String())
}

// normalize 收拢连续空行并去除首尾空白
func normalize(s string) string {
	return strings.TrimSpace(blankRunRe.ReplaceAllString(s, "\n\n"))
}

// stripAttribution 清除跨 Agent 署名痕迹，避免合成结论里
// 出现辩论过程的内部称谓
func stripAttribution(s string) string {
	s = leadingTagRe.ReplaceAllString(s, "")
	s = asAgentRe.ReplaceAllString(s, "")
	s = agentSaidRe.ReplaceAllString(s, "")
	return s
}
