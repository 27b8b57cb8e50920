package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Category labels the broad topic of a question. Selection uses it to rank
// agents; the cache supports invalidation by category; verification treats
// some categories as sensitive.
type Category string

// Question categories.
const (
	CategoryGeneral         Category = "general"
	CategoryCoding          Category = "coding"
	CategoryArchitecture    Category = "architecture"
	CategoryDebugging       Category = "debugging"
	CategorySecurity        Category = "security"
	CategoryFinancial       Category = "financial"
	CategoryProductionInfra Category = "production-infra"
	CategoryCreative        Category = "creative"
	CategoryResearch        Category = "research"
)

// Level is an ordinal scale shared by the complexity and criticality axes.
type Level string

// Ordinal levels, lowest to highest.
const (
	LevelTrivial  Level = "trivial"
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

var levelRank = map[Level]int{
	LevelTrivial:  0,
	LevelLow:      1,
	LevelMedium:   2,
	LevelHigh:     3,
	LevelCritical: 4,
}

// Rank returns the ordinal position of the level; unknown levels rank as
// medium so a malformed coordinator answer degrades safely.
func (l Level) Rank() int {
	if r, ok := levelRank[l]; ok {
		return r
	}
	return levelRank[LevelMedium]
}

// AtLeast reports whether l ranks at or above other.
func (l Level) AtLeast(other Level) bool {
	return l.Rank() >= other.Rank()
}

// InstanceConfig is the per-invocation variation applied when an agent runs
// as N parallel instances of itself. Indices are contiguous starting at 1;
// temperatures increase strictly with the index so sibling instances
// diversify. Created per debate, consumed once, never persisted.
type InstanceConfig struct {
	Index       int     `json:"index"`
	Total       int     `json:"total"`
	Seed        int64   `json:"seed"`
	Temperature float64 `json:"temperature"`
	Focus       string  `json:"focus,omitempty"`
}

// PlanEntry is one agent with its parallel instance count.
type PlanEntry struct {
	Agent     AgentID `json:"agent"`
	Instances int     `json:"instances"`
}

// AgentPlan is the set of agents (with instance counts) selected for one
// debate.
type AgentPlan []PlanEntry

// TotalInstances returns the number of agent-instances the plan launches.
func (p AgentPlan) TotalInstances() int {
	n := 0
	for _, e := range p {
		n += e.Instances
	}
	return n
}

// Agents returns the distinct agent identifiers in plan order.
func (p AgentPlan) Agents() []AgentID {
	out := make([]AgentID, 0, len(p))
	for _, e := range p {
		out = append(out, e.Agent)
	}
	return out
}

// Signature renders the plan in canonical order (sorted by agent id) so two
// plans differing only in ordering produce the same signature. Used for
// cache fingerprinting.
func (p AgentPlan) Signature() string {
	parts := make([]string, 0, len(p))
	for _, e := range p {
		parts = append(parts, fmt.Sprintf("%s:%d", e.Agent, e.Instances))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// String renders the plan in its original order for logs.
func (p AgentPlan) String() string {
	parts := make([]string, 0, len(p))
	for _, e := range p {
		if e.Instances == 1 {
			parts = append(parts, string(e.Agent))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:%d", e.Agent, e.Instances))
	}
	return strings.Join(parts, ",")
}

// QuestionAnalysis is the selection verdict for one question: what kind of
// question it is and which agents should debate it. Produced once per
// debate, read-only afterwards.
type QuestionAnalysis struct {
	Category    Category  `json:"category"`
	Complexity  Level     `json:"complexity"`
	Criticality Level     `json:"criticality"`
	Plan        AgentPlan `json:"plan"`
	Rationale   string    `json:"rationale"`

	// CostReduction is the estimated saving relative to invoking the full
	// roster, derived from a character-count heuristic. Approximate by
	// design; useful for relative ranking only.
	CostReduction float64 `json:"cost_reduction"`
}

// Proposal is one agent instance's answer. Immutable once recorded.
type Proposal struct {
	Agent    AgentID       `json:"agent"`
	Instance int           `json:"instance"`
	Content  string        `json:"content"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"error,omitempty"`
}

// Failed reports whether the proposal records a failure.
func (p Proposal) Failed() bool {
	return p.Err != ""
}

// ScoreBreakdown is the component view of one proposal's score.
type ScoreBreakdown struct {
	Length    float64 `json:"length"`
	Structure float64 `json:"structure"`
	Relevance float64 `json:"relevance"`
}

// EvaluationResult is the outcome of scoring a proposal set.
type EvaluationResult struct {
	Scores        map[AgentID]float64        `json:"scores"`
	Breakdown     map[AgentID]ScoreBreakdown `json:"breakdown,omitempty"`
	Best          AgentID                    `json:"best"`
	BestInstance  int                        `json:"best_instance"`
	Justification string                     `json:"justification"`

	// Method records which evaluation path produced the result:
	// "judge" or "heuristic".
	Method string `json:"method"`
}

// VerifierScore is one verifier agent's fact-check verdict.
type VerifierScore struct {
	Accuracy     float64 `json:"accuracy"`
	Security     float64 `json:"security"`
	Completeness float64 `json:"completeness"`
	Weighted     float64 `json:"weighted"`
}

// VerificationResult is the optional cross-verification outcome. A result
// below the confidence floor is flagged, never discarded.
type VerificationResult struct {
	Required         bool                      `json:"required"`
	FactAccuracy     float64                   `json:"fact_accuracy"`
	ChallengesPassed int                       `json:"challenges_passed"`
	ChallengesTotal  int                       `json:"challenges_total"`
	PerVerifier      map[AgentID]VerifierScore `json:"per_verifier,omitempty"`
	Confidence       float64                   `json:"confidence"`
	Flagged          bool                      `json:"flagged"`
	Issues           []string                  `json:"issues,omitempty"`
}

// ConsensusResult is the final deliverable of one debate: the synthesized
// answer plus its provenance. The winner always appears among the
// session's successful proposals.
type ConsensusResult struct {
	Answer             string              `json:"answer"`
	Winner             AgentID             `json:"winner"`
	Score              float64             `json:"score"`
	ContributingAgents []AgentID           `json:"contributing_agents"`
	FailedAgents       []AgentID           `json:"failed_agents,omitempty"`
	Duration           time.Duration       `json:"duration"`
	FromCache          bool                `json:"from_cache"`
	Verification       *VerificationResult `json:"verification,omitempty"`
	Category           Category            `json:"category"`
	Confidence         float64             `json:"confidence"`
	SessionID          string              `json:"session_id"`
}
