// =============================================================================
// 📦 JSON 提取工具
// =============================================================================
// Agent 的回答经常把 JSON 包在 markdown 代码块或解释文字里。
// 本包从自由文本中切出第一个完整的 JSON 对象，供协调、评审与
// 验证阶段解析结构化结论。
// =============================================================================

package jsonutil

import (
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// ExtractObject 从可能夹杂说明文字的回答中取出 JSON 对象文本。
// 优先匹配 markdown 代码块，其次取首个 '{' 到最后一个 '}' 的区间。
// 找不到对象边界时返回 ok=false。
func ExtractObject(response string) (string, bool) {
	response = strings.TrimSpace(response)
	if response == "" {
		return "", false
	}

	if strings.Contains(response, "```") {
		if m := fenceRe.FindStringSubmatch(response); len(m) > 1 {
			candidate := strings.TrimSpace(m[1])
			if strings.HasPrefix(candidate, "{") {
				response = candidate
			}
		}
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return response[start : end+1], true
}
