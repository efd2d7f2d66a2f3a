// package agent implements the execution contract shared by every analytical
// agent: validate -> analyze -> score -> emit -> best-effort persist ->
// report. Agents are stateless; one Executor may serve concurrent
// invocations without coordination.
package agent

import (
	"encoding/json"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
)

// NonAuthorityConstraints are attached to every decision record so
// downstream consumers can see the agent's non-authority explicitly: agents
// observe and report, they never change or block anything.
var NonAuthorityConstraints = []string{
	"no_modification",
	"no_defaults_applied",
	"no_auto_fix",
	"no_policy_enforcement",
	"no_execution_blocking",
}

// Engine is one analytical engine plugged into the execution contract.
//
// Validate decodes and checks the raw input; any error aborts the
// invocation as VALIDATION_FAILED before output exists. Analyze must be a
// pure function of the typed input: no I/O, no wall-clock dependence in its
// decisions, no state retained between calls. Score derives a confidence in
// [0,1] from the output alone. Constraints lists the analysis policies that
// were active for this input.
type Engine interface {
	ID() string
	Version() string
	DecisionType() contracts.DecisionType
	Validate(raw json.RawMessage) (interface{}, error)
	Analyze(input interface{}) (interface{}, error)
	Score(output interface{}) float64
	Constraints(input interface{}) []string
}

// mergeConstraints prepends the non-authority labels to the engine's own
// constraint list, deduplicating.
func mergeConstraints(engineConstraints []string) []string {
	out := make([]string, 0, len(NonAuthorityConstraints)+len(engineConstraints))
	seen := map[string]bool{}
	for _, c := range NonAuthorityConstraints {
		out = append(out, c)
		seen[c] = true
	}
	for _, c := range engineConstraints {
		if !seen[c] {
			out = append(out, c)
			seen[c] = true
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
