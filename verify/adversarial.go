package verify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/debateflow/types"
)

// challenge 是对抗测试清单中的一项。
type challenge struct {
	id     string
	demand string
}

// challenges 是固定的对抗挑战清单。验证者要么给出具体发现,
// 要么明确回复 PASS。
var challenges = []challenge{
	{id: "security-vulnerability", demand: "find a security vulnerability"},
	{id: "edge-case", demand: "find a failing edge case"},
	{id: "performance-cliff", demand: "find a performance cliff"},
}

// passMarker 是挑战通过的显式标记。
const passMarker = "PASS"

// noFindingPhrases 覆盖验证者没按格式回答但明确表示无发现的情况。
var noFindingPhrases = []string{
	"no issues found",
	"no vulnerabilities found",
	"no vulnerability found",
	"could not find any",
	"couldn't find any",
	"no edge case",
	"no performance cliff",
	"none found",
	"nothing found",
}

// challengeOutcome 是一项挑战的执行结果。
type challengeOutcome struct {
	challenge challenge
	verifier  types.AgentID
	passed    bool
	finding   string
}

// issue 把未通过的挑战渲染成一条问题描述。
func (oc challengeOutcome) issue() string {
	finding := oc.finding
	if len(finding) > 200 {
		finding = finding[:200] + "..."
	}
	return fmt.Sprintf("%s challenge raised by %s: %s", oc.challenge.id, oc.verifier, finding)
}

// runChallenges 把挑战清单轮转分配给验证者并行执行。调用失败的
// 挑战不产生结果,既不计通过也不计失败。
func (v *Verifier) runChallenges(ctx context.Context, question, answer string, verifiers []types.AgentID) []challengeOutcome {
	outcomes := make([]*challengeOutcome, len(challenges))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.cfg.MaxConcurrency)

	for i, ch := range challenges {
		i, ch := i, ch
		verifier := verifiers[i%len(verifiers)]
		g.Go(func() error {
			raw, err := v.caller.Complete(gctx, verifier, v.challengePrompt(ch, question, answer), v.cfg.Timeout)
			if err != nil {
				v.logger.Warn("对抗挑战调用失败",
					zap.String("challenge", ch.id),
					zap.String("verifier", string(verifier)),
					zap.Error(err))
				return nil
			}

			outcomes[i] = &challengeOutcome{
				challenge: ch,
				verifier:  verifier,
				passed:    challengePassed(raw),
				finding:   strings.TrimSpace(raw),
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]challengeOutcome, 0, len(outcomes))
	for _, oc := range outcomes {
		if oc != nil {
			out = append(out, *oc)
		}
	}
	return out
}

// challengePassed 判定挑战是否通过:显式 PASS 标记,或没按格式
// 回答但措辞明确表示无发现。
func challengePassed(response string) bool {
	trimmed := strings.TrimSpace(response)
	if strings.HasPrefix(strings.ToUpper(trimmed), passMarker) {
		return true
	}

	lower := strings.ToLower(trimmed)
	for _, phrase := range noFindingPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// challengePrompt 构造对抗测试提示词。
func (v *Verifier) challengePrompt(ch challenge, question, answer string) string {
	return fmt.Sprintf(`You are a red-team reviewer. Your task: %s in the answer below.

Question:
%s

Answer under review:
%s

If you find a concrete problem, describe it in one short paragraph.
If you cannot find one, reply with exactly: %s`, ch.demand, question, answer, passMarker)
}
