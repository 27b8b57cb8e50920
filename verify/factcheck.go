package verify

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/debateflow/internal/jsonutil"
	"github.com/BaSui01/debateflow/types"
)

// 事实核查三个维度的权重:准确性 0.5,安全性 0.3,完整性 0.2。
const (
	factAccuracyWeight     = 0.5
	factSecurityWeight     = 0.3
	factCompletenessWeight = 0.2
)

// factVerdict 是验证者返回的严格 JSON 结构。
type factVerdict struct {
	TechnicalAccuracy float64 `json:"technical_accuracy"`
	Security          float64 `json:"security"`
	Completeness      float64 `json:"completeness"`
}

// factCheck 让每个验证者独立打分,失败的验证者跳过。返回按 Agent
// 汇总的加权分,可能为空。
func (v *Verifier) factCheck(ctx context.Context, question, answer string, verifiers []types.AgentID) map[types.AgentID]types.VerifierScore {
	scores := make([]*types.VerifierScore, len(verifiers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.cfg.MaxConcurrency)

	prompt := v.factCheckPrompt(question, answer)
	for i, id := range verifiers {
		i, id := i, id
		g.Go(func() error {
			raw, err := v.caller.Complete(gctx, id, prompt, v.cfg.Timeout)
			if err != nil {
				v.logger.Warn("事实核查调用失败",
					zap.String("verifier", string(id)),
					zap.Error(err))
				return nil // 失败的验证者跳过,不终止其余
			}

			score, err := parseFactVerdict(raw)
			if err != nil {
				v.logger.Warn("事实核查结论不可解析",
					zap.String("verifier", string(id)),
					zap.Error(err))
				return nil
			}
			scores[i] = &score
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[types.AgentID]types.VerifierScore, len(verifiers))
	for i, score := range scores {
		if score != nil {
			out[verifiers[i]] = *score
		}
	}
	return out
}

// parseFactVerdict 提取并校验严格 JSON 结论,各维度截断到 [0, 100]。
func parseFactVerdict(raw string) (types.VerifierScore, error) {
	payload, ok := jsonutil.ExtractObject(raw)
	if !ok {
		return types.VerifierScore{}, fmt.Errorf("response contains no JSON object")
	}

	var verdict factVerdict
	if err := json.Unmarshal([]byte(payload), &verdict); err != nil {
		return types.VerifierScore{}, fmt.Errorf("broken fact-check verdict: %w", err)
	}

	score := types.VerifierScore{
		Accuracy:     clamp(verdict.TechnicalAccuracy, 0, 100),
		Security:     clamp(verdict.Security, 0, 100),
		Completeness: clamp(verdict.Completeness, 0, 100),
	}
	score.Weighted = round2(factAccuracyWeight*score.Accuracy +
		factSecurityWeight*score.Security +
		factCompletenessWeight*score.Completeness)
	return score, nil
}

// factCheckPrompt 构造事实核查提示词,要求严格 JSON 输出。
func (v *Verifier) factCheckPrompt(question, answer string) string {
	return fmt.Sprintf(`You are an independent technical reviewer. Rate the answer below.

Question:
%s

Answer under review:
%s

Rate each dimension from 0 to 100:
- technical_accuracy: are the technical claims correct?
- security: does it avoid introducing security problems?
- completeness: does it fully address the question?

Respond with strict JSON only, no prose:
{"technical_accuracy": <0-100>, "security": <0-100>, "completeness": <0-100>}`, question, answer)
}
