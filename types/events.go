package types

import "time"

// Phase is one stage of the debate lifecycle. Phases advance strictly in
// order; a stage's outputs are fully materialized before the next begins.
type Phase string

// Debate phases.
const (
	PhaseSelecting    Phase = "selecting"
	PhaseProposing    Phase = "proposing"
	PhaseEvaluating   Phase = "evaluating"
	PhaseImproving    Phase = "improving"
	PhaseSynthesizing Phase = "synthesizing"
	PhaseVerifying    Phase = "verifying"
	PhaseDone         Phase = "done"
	PhaseFailed       Phase = "failed"
)

// EventType classifies a progress event.
type EventType string

// Progress event types. Agent status transitions follow
// waiting → starting → running → completed|failed.
const (
	EventAgentWaiting   EventType = "agent_waiting"
	EventAgentStarting  EventType = "agent_starting"
	EventAgentRunning   EventType = "agent_running"
	EventAgentCompleted EventType = "agent_completed"
	EventAgentFailed    EventType = "agent_failed"
	EventPhaseChange    EventType = "phase_change"
)

// ProgressEvent is a fire-and-forget observability signal. Publishing never
// blocks debate control flow; slow or absent consumers lose events rather
// than stalling the debate.
type ProgressEvent struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Agent     AgentID   `json:"agent,omitempty"`
	Instance  int       `json:"instance,omitempty"`
	Phase     Phase     `json:"phase,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DebateRecord is the structured outcome record handed to the telemetry
// sink after a debate settles. Sink failures are swallowed; the record is
// advisory, never part of the debate's contract.
type DebateRecord struct {
	SessionID  string        `json:"session_id"`
	Question   string        `json:"question"`
	Category   Category      `json:"category"`
	AgentsUsed []AgentID     `json:"agents_used"`
	Winner     AgentID       `json:"winner"`
	Duration   time.Duration `json:"duration"`
	Confidence float64       `json:"confidence"`
	FromCache  bool          `json:"from_cache"`
	Verified   bool          `json:"verified"`
	Flagged    bool          `json:"flagged"`
	FinishedAt time.Time     `json:"finished_at"`
}
