package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
)

// Request is one pipeline run: the spec, per-step raw inputs keyed by
// step id, and an optional execution reference shared by every step.
type Request struct {
	Spec         contracts.PipelineSpec     `json:"spec"`
	Inputs       map[string]json.RawMessage `json:"inputs,omitempty"`
	ExecutionRef string                     `json:"executionRef,omitempty"`
}

// StepResult is the outcome of one step. A step whose dependency did not
// succeed is skipped, not invoked.
type StepResult struct {
	StepID     string                      `json:"stepId"`
	Domain     string                      `json:"domain"`
	Skipped    bool                        `json:"skipped"`
	SkipReason string                      `json:"skipReason,omitempty"`
	Result     *contracts.InvocationResult `json:"result,omitempty"`
}

// RunResult reports every step in declaration order.
type RunResult struct {
	ExecutionRef string       `json:"executionRef"`
	Steps        []StepResult `json:"steps"`
}

// Runner executes validated pipeline specs. Independent branches of the
// dependency graph run concurrently; a step waits for all of its declared
// dependencies and receives only their outputs.
type Runner struct {
	registry *Registry
}

func NewRunner(registry *Registry) *Runner {
	return &Runner{registry: registry}
}

type stepState struct {
	done   chan struct{}
	result StepResult
	output interface{}
}

// Run validates the spec and executes it. An invalid spec is rejected
// before any step starts; there is no partial execution.
func (r *Runner) Run(ctx context.Context, req Request) (*RunResult, error) {
	if err := r.registry.ValidateSpec(req.Spec); err != nil {
		return nil, err
	}

	executionRef := req.ExecutionRef
	if executionRef == "" {
		executionRef = uuid.New().String()
	}

	states := make(map[string]*stepState, len(req.Spec.Steps))
	for _, step := range req.Spec.Steps {
		states[step.StepID] = &stepState{done: make(chan struct{})}
	}

	var wg sync.WaitGroup
	for _, step := range req.Spec.Steps {
		step := step
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.runStep(ctx, step, states, req.Inputs[step.StepID], executionRef)
		}()
	}
	wg.Wait()

	result := &RunResult{ExecutionRef: executionRef, Steps: make([]StepResult, 0, len(req.Spec.Steps))}
	for _, step := range req.Spec.Steps {
		result.Steps = append(result.Steps, states[step.StepID].result)
	}
	return result, nil
}

func (r *Runner) runStep(ctx context.Context, step contracts.PipelineStep, states map[string]*stepState, rawInput json.RawMessage, executionRef string) {
	state := states[step.StepID]
	defer close(state.done)

	dependencies := map[string]interface{}{}
	for _, depID := range step.DependsOn {
		depState := states[depID]
		select {
		case <-depState.done:
		case <-ctx.Done():
			state.result = skippedResult(step, fmt.Sprintf("canceled while waiting for %s: %v", depID, ctx.Err()))
			return
		}
		if depState.result.Skipped {
			state.result = skippedResult(step, fmt.Sprintf("dependency %s was skipped", depID))
			return
		}
		if depState.result.Result == nil || depState.result.Result.Status != contracts.InvocationSuccess {
			state.result = skippedResult(step, fmt.Sprintf("dependency %s did not succeed", depID))
			return
		}
		dependencies[depID] = depState.output
	}

	raw, err := composeStepInput(rawInput, dependencies)
	if err != nil {
		state.result = skippedResult(step, fmt.Sprintf("compose input: %v", err))
		return
	}

	_, invoker, ok := r.registry.Lookup(step.Domain)
	if !ok {
		// ValidateSpec ran before the first step; a vanished domain means
		// the registry was mutated mid-run.
		state.result = skippedResult(step, fmt.Sprintf("domain %q no longer registered", step.Domain))
		return
	}

	res := invoker.Invoke(ctx, raw, executionRef)
	state.result = StepResult{StepID: step.StepID, Domain: step.Domain, Result: &res}
	if res.Status == contracts.InvocationSuccess && res.Record != nil {
		state.output = res.Record.Output
	}
	if res.Status != contracts.InvocationSuccess {
		log.Printf("[pipeline.runner] step %s (%s) failed: %s %s", step.StepID, step.Domain, res.ErrorCode, res.ErrorMessage)
	}
}

func skippedResult(step contracts.PipelineStep, reason string) StepResult {
	return StepResult{StepID: step.StepID, Domain: step.Domain, Skipped: true, SkipReason: reason}
}

// composeStepInput merges dependency outputs into the step's declared
// input under the reserved "dependencies" key, keyed by step id. A step
// with no dependencies receives its input unchanged.
func composeStepInput(rawInput json.RawMessage, dependencies map[string]interface{}) (json.RawMessage, error) {
	if len(dependencies) == 0 {
		if len(rawInput) == 0 {
			return json.RawMessage(`{}`), nil
		}
		return rawInput, nil
	}

	merged := map[string]interface{}{}
	if len(rawInput) > 0 {
		if err := json.Unmarshal(rawInput, &merged); err != nil {
			return nil, fmt.Errorf("step input must be a JSON object: %w", err)
		}
	}
	merged["dependencies"] = dependencies
	out, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	return out, nil
}
