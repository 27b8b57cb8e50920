package cache

import (
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/BaSui01/debateflow/types"
)

var fingerprintRoster = []types.AgentID{
	types.AgentClaude,
	types.AgentCodex,
	types.AgentGemini,
	types.AgentQwen,
	types.AgentDeepSeek,
}

// drawQuestionWords 生成问题的词序列
func drawQuestionWords(t *rapid.T) []string {
	return rapid.SliceOfN(rapid.StringMatching(`[A-Za-z]{1,10}`), 1, 12).Draw(t, "words")
}

// drawFingerprintPlan 生成互异 Agent 的非空计划
func drawFingerprintPlan(t *rapid.T) types.AgentPlan {
	n := rapid.IntRange(1, len(fingerprintRoster)).Draw(t, "agents")
	start := rapid.IntRange(0, len(fingerprintRoster)-1).Draw(t, "start")

	plan := make(types.AgentPlan, 0, n)
	for i := 0; i < n; i++ {
		plan = append(plan, types.PlanEntry{
			Agent:     fingerprintRoster[(start+i)%len(fingerprintRoster)],
			Instances: rapid.IntRange(1, 5).Draw(t, "instances"),
		})
	}
	return plan
}

// joinNoisy 用随机空白拼接词序列,两端再各加一段空白
func joinNoisy(t *rapid.T, words []string) string {
	seps := []string{" ", "  ", "\t", "\n", " \t ", "\n\n "}

	var b strings.Builder
	b.WriteString(rapid.SampledFrom(seps).Draw(t, "lead"))
	for i, w := range words {
		if i > 0 {
			b.WriteString(rapid.SampledFrom(seps).Draw(t, "sep"))
		}
		b.WriteString(w)
	}
	b.WriteString(rapid.SampledFrom(seps).Draw(t, "trail"))
	return b.String()
}

func TestProperty_Fingerprint_WhitespaceAndCaseInsensitive(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		words := drawQuestionWords(t)
		plan := drawFingerprintPlan(t)

		canonical := strings.Join(words, " ")
		base := Fingerprint(canonical, "/ctx", plan)

		noisy := Fingerprint(joinNoisy(t, words), "/ctx", plan)
		if noisy != base {
			t.Fatalf("whitespace variant changed fingerprint: %s != %s", noisy, base)
		}

		upper := Fingerprint(strings.ToUpper(canonical), "/ctx", plan)
		if upper != base {
			t.Fatalf("case variant changed fingerprint: %s != %s", upper, base)
		}
	})
}

func TestProperty_Fingerprint_PlanOrderInsensitive(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		words := drawQuestionWords(t)
		plan := drawFingerprintPlan(t)
		question := strings.Join(words, " ")

		k := rapid.IntRange(0, len(plan)-1).Draw(t, "rotation")
		rotated := make(types.AgentPlan, 0, len(plan))
		rotated = append(rotated, plan[k:]...)
		rotated = append(rotated, plan[:k]...)

		if got, want := Fingerprint(question, "/ctx", rotated), Fingerprint(question, "/ctx", plan); got != want {
			t.Fatalf("plan order changed fingerprint: %s != %s", got, want)
		}
	})
}

func TestProperty_Fingerprint_DiscriminatesInputs(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		words := drawQuestionWords(t)
		plan := drawFingerprintPlan(t)
		question := strings.Join(words, " ")

		base := Fingerprint(question, "/ctx", plan)

		if got := Fingerprint(question+" extra", "/ctx", plan); got == base {
			t.Fatalf("different question produced same fingerprint %s", got)
		}
		if got := Fingerprint(question, "/other", plan); got == base {
			t.Fatalf("different context path produced same fingerprint %s", got)
		}

		bumped := make(types.AgentPlan, len(plan))
		copy(bumped, plan)
		bumped[0].Instances++
		if got := Fingerprint(question, "/ctx", bumped); got == base {
			t.Fatalf("different plan produced same fingerprint %s", got)
		}
	})
}
