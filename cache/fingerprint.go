package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/BaSui01/debateflow/types"
)

// fingerprintPayload 是指纹哈希的规范化输入。字段顺序固定,
// 同一请求的序列化结果字节级一致。
type fingerprintPayload struct {
	Question string `json:"question"`
	Context  string `json:"context,omitempty"`
	Plan     string `json:"plan"`
}

// Fingerprint 计算一次辩论请求的缓存指纹:对规范化后的问题、解析
// 后的上下文路径与规范序的执行计划做 SHA-256。仅有空白差异的问题
// 或仅有顺序差异的计划得到相同指纹。
func Fingerprint(question, resolvedContextPath string, plan types.AgentPlan) string {
	payload := fingerprintPayload{
		Question: normalizeQuestion(question),
		Context:  resolvedContextPath,
		Plan:     plan.Signature(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		// 负载只含字符串字段,Marshal 不会失败;退路保持确定性
		data = []byte(payload.Question + "|" + payload.Context + "|" + payload.Plan)
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

// normalizeQuestion 折叠空白并统一小写,语义相同的问题映射到同一键。
func normalizeQuestion(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
