package types

import "fmt"

// AgentID identifies one configured reasoning backend.
type AgentID string

// Built-in agent identifiers.
const (
	AgentClaude   AgentID = "claude"
	AgentCodex    AgentID = "codex"
	AgentGemini   AgentID = "gemini"
	AgentQwen     AgentID = "qwen"
	AgentDeepSeek AgentID = "deepseek"
)

// Agent describes a reasoning backend: how to reach it and what it is good
// at. Agents are immutable; they are defined once in static configuration
// and looked up by identifier.
//
// Exactly one of Command (subprocess invocation) or Endpoint (HTTP
// invocation) must be set.
type Agent struct {
	ID        AgentID  `yaml:"id" json:"id"`
	Name      string   `yaml:"name" json:"name"`
	Role      string   `yaml:"role" json:"role"`
	Strengths []string `yaml:"strengths" json:"strengths"`
	Command   string   `yaml:"command,omitempty" json:"command,omitempty"`
	Args      []string `yaml:"args,omitempty" json:"args,omitempty"`
	Endpoint  string   `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Model     string   `yaml:"model,omitempty" json:"model,omitempty"`

	// SupportsDeepReasoning marks agents that accept an extended-thinking
	// directive in their prompt.
	SupportsDeepReasoning bool `yaml:"supports_deep_reasoning" json:"supports_deep_reasoning"`

	// CostPerKiloChars is a relative cost weight used only for ranking
	// candidate plans; it is not billing-accurate.
	CostPerKiloChars float64 `yaml:"cost_per_kilo_chars" json:"cost_per_kilo_chars"`
}

// Validate checks that the agent definition is usable.
func (a Agent) Validate() error {
	if a.ID == "" {
		return NewError(ErrConfiguration, "agent id must not be empty")
	}
	if a.Command == "" && a.Endpoint == "" {
		return NewError(ErrConfiguration, fmt.Sprintf("agent %q has neither command nor endpoint", a.ID))
	}
	if a.Command != "" && a.Endpoint != "" {
		return NewError(ErrConfiguration, fmt.Sprintf("agent %q has both command and endpoint", a.ID))
	}
	return nil
}

// Registry is the validated static agent table. It is built once at
// startup and never mutated afterwards, so lookups need no locking.
// Unknown identifiers are rejected here rather than propagated downstream.
type Registry struct {
	agents map[AgentID]Agent
	order  []AgentID
}

// NewRegistry builds a registry from the given agents, validating each.
func NewRegistry(agents []Agent) (*Registry, error) {
	r := &Registry{agents: make(map[AgentID]Agent, len(agents))}
	for _, a := range agents {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.agents[a.ID]; dup {
			return nil, NewError(ErrConfiguration, fmt.Sprintf("duplicate agent id %q", a.ID))
		}
		r.agents[a.ID] = a
		r.order = append(r.order, a.ID)
	}
	if len(r.agents) == 0 {
		return nil, NewError(ErrConfiguration, "agent registry must not be empty")
	}
	return r, nil
}

// DefaultRegistry returns the built-in roster.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(builtinAgents())
	if err != nil {
		// builtin roster is statically correct
		panic(err)
	}
	return r
}

// Get looks up an agent by identifier.
func (r *Registry) Get(id AgentID) (Agent, error) {
	a, ok := r.agents[id]
	if !ok {
		return Agent{}, NewError(ErrUnknownAgent, fmt.Sprintf("unknown agent %q", id))
	}
	return a, nil
}

// Has reports whether the identifier is registered.
func (r *Registry) Has(id AgentID) bool {
	_, ok := r.agents[id]
	return ok
}

// IDs returns all registered identifiers in registration order.
func (r *Registry) IDs() []AgentID {
	out := make([]AgentID, len(r.order))
	copy(out, r.order)
	return out
}

// Agents returns all registered agents in registration order.
func (r *Registry) Agents() []Agent {
	out := make([]Agent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id])
	}
	return out
}

// Len returns the roster size.
func (r *Registry) Len() int {
	return len(r.agents)
}

func builtinAgents() []Agent {
	return []Agent{
		{
			ID:                    AgentClaude,
			Name:                  "Claude",
			Role:                  "architect",
			Strengths:             []string{"reasoning", "architecture", "security", "writing"},
			Command:               "claude",
			Args:                  []string{"--print"},
			SupportsDeepReasoning: true,
			CostPerKiloChars:      0.012,
		},
		{
			ID:               AgentCodex,
			Name:             "Codex",
			Role:             "implementer",
			Strengths:        []string{"coding", "debugging", "refactoring"},
			Command:          "codex",
			Args:             []string{"exec"},
			CostPerKiloChars: 0.010,
		},
		{
			ID:               AgentGemini,
			Name:             "Gemini",
			Role:             "researcher",
			Strengths:        []string{"research", "breadth", "multimodal"},
			Command:          "gemini",
			Args:             []string{"--prompt-stdin"},
			CostPerKiloChars: 0.008,
		},
		{
			ID:               AgentQwen,
			Name:             "Qwen",
			Role:             "generalist",
			Strengths:        []string{"coding", "multilingual", "summarization"},
			Command:          "qwen",
			CostPerKiloChars: 0.004,
		},
		{
			ID:                    AgentDeepSeek,
			Name:                  "DeepSeek",
			Role:                  "analyst",
			Strengths:             []string{"reasoning", "math", "performance"},
			Command:               "deepseek",
			SupportsDeepReasoning: true,
			CostPerKiloChars:      0.003,
		},
	}
}
