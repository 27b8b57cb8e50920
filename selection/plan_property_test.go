package selection

import (
	"testing"

	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/BaSui01/debateflow/types"
)

// drawPlan 生成一个仅含内置 Agent、实例数合法的随机计划
func drawPlan(t *rapid.T) types.AgentPlan {
	roster := types.DefaultRegistry().IDs()
	n := rapid.IntRange(1, len(roster)).Draw(t, "agents")
	start := rapid.IntRange(0, len(roster)-1).Draw(t, "start")

	plan := make(types.AgentPlan, 0, n)
	for i := 0; i < n; i++ {
		plan = append(plan, types.PlanEntry{
			Agent:     roster[(start+i)%len(roster)],
			Instances: rapid.IntRange(1, 8).Draw(t, "instances"),
		})
	}
	return plan
}

func TestProperty_Instances_SeedsDistinctTempsIncreasing(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		plan := drawPlan(t)
		out := Instances(plan)

		if len(out) != len(plan) {
			t.Fatalf("expected %d agents in expansion, got %d", len(plan), len(out))
		}
		for _, entry := range plan {
			configs := out[entry.Agent]
			if len(configs) != entry.Instances {
				t.Fatalf("agent %s: expected %d instances, got %d", entry.Agent, entry.Instances, len(configs))
			}

			seeds := make(map[int64]bool, len(configs))
			for i, cfg := range configs {
				if cfg.Index != i+1 {
					t.Fatalf("agent %s: index %d at position %d, want contiguous from 1", entry.Agent, cfg.Index, i)
				}
				if cfg.Total != entry.Instances {
					t.Fatalf("agent %s: total %d, want %d", entry.Agent, cfg.Total, entry.Instances)
				}
				if seeds[cfg.Seed] {
					t.Fatalf("agent %s: duplicate seed %d", entry.Agent, cfg.Seed)
				}
				seeds[cfg.Seed] = true

				if cfg.Temperature > 1.0 {
					t.Fatalf("agent %s: temperature %f above cap", entry.Agent, cfg.Temperature)
				}
				if i > 0 && cfg.Temperature <= configs[i-1].Temperature {
					t.Fatalf("agent %s: temperature not strictly increasing at %d (%f <= %f)",
						entry.Agent, i, cfg.Temperature, configs[i-1].Temperature)
				}
			}
		}
	})
}

func TestProperty_ParsePlan_RoundTrip(t *testing.T) {
	t.Parallel()

	registry := types.DefaultRegistry()
	rapid.Check(t, func(t *rapid.T) {
		plan := drawPlan(t)

		parsed, err := ParsePlan(registry, plan.String(), zap.NewNop())
		if err != nil {
			t.Fatalf("rendered plan %q failed to parse: %v", plan.String(), err)
		}
		if parsed.Signature() != plan.Signature() {
			t.Fatalf("round trip changed plan: %q -> %q", plan.Signature(), parsed.Signature())
		}
	})
}
