// Package backend invokes individual agent instances and shields the rest
// of the engine from how an agent is reached (subprocess or HTTP) and from
// transient failures (retry with classified backoff).
package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/debateflow/types"
)

// Invoker dispatches one prompt to an agent's invocation handle and returns
// the raw response text. Implementations map transport failures onto the
// shared error taxonomy so the retry engine can classify them.
type Invoker interface {
	// Invoke sends the prompt and returns the agent's raw output.
	Invoke(ctx context.Context, agent types.Agent, prompt string, opts InvokeOptions) (string, error)

	// Name identifies the transport for logs.
	Name() string
}

// InvokeOptions carries per-call invocation parameters.
type InvokeOptions struct {
	// Timeout bounds a single dispatch attempt. Zero means the context's
	// deadline alone applies.
	Timeout time.Duration

	// Instance, when present, is forwarded to transports that accept
	// sampling parameters (temperature, seed).
	Instance *types.InstanceConfig

	// DeepReasoning asks capable agents for an extended reasoning pass.
	DeepReasoning bool
}

// EventSink receives progress events. Implementations must not block;
// the executor publishes fire-and-forget.
type EventSink interface {
	Publish(ev types.ProgressEvent)
}

// Caller is the plain completion surface consumed by selection, consensus
// and verification: one prompt in, one text out, same retry discipline as
// proposal execution.
type Caller interface {
	Complete(ctx context.Context, agent types.AgentID, prompt string, timeout time.Duration) (string, error)
}

// BuildPrompt assembles the outbound payload: the question itself plus, when
// an instance config is present, an appended block describing the instance
// so sibling instances diversify their answers, plus an optional deep
// reasoning directive for capable agents.
func BuildPrompt(prompt string, inst *types.InstanceConfig, deep bool, agent types.Agent) string {
	var b strings.Builder
	b.WriteString(prompt)

	if inst != nil && inst.Total > 1 {
		b.WriteString("\n\n--- instance directive ---\n")
		fmt.Fprintf(&b, "You are instance %d of %d answering this question in parallel.\n", inst.Index, inst.Total)
		fmt.Fprintf(&b, "Diversity seed: %d. Sampling temperature: %.2f.\n", inst.Seed, inst.Temperature)
		if inst.Focus != "" {
			fmt.Fprintf(&b, "Give special attention to: %s.\n", inst.Focus)
		}
		b.WriteString("Answer independently; do not assume what other instances will say.")
	}

	if deep && agent.SupportsDeepReasoning {
		b.WriteString("\n\nTake your time: reason through the problem step by step before giving the final answer.")
	}

	return b.String()
}
