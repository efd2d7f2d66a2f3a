// package pipeline composes registered agents into dependency-ordered
// workflows. The registry maps capability domains to invokers; a pipeline
// spec is validated in full before any step runs.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
)

// Validation errors. Callers match with errors.Is.
var (
	ErrEmptySpec        = errors.New("pipeline spec has no steps")
	ErrUnknownDomain    = errors.New("unknown capability domain")
	ErrDuplicateStep    = errors.New("duplicate step id")
	ErrSelfDependency   = errors.New("step depends on itself")
	ErrForwardReference = errors.New("dependency is not declared earlier in the spec")
)

// Invoker runs one agent invocation. *agent.Executor satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, raw json.RawMessage, executionRef string) contracts.InvocationResult
}

type registration struct {
	capability contracts.Capability
	invoker    Invoker
}

// Registry is the domain lookup table used for pipeline composition.
// Registration happens at wiring time; lookups are concurrent.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]registration{}}
}

// Register binds a capability domain to an invoker. Re-registering a
// domain is a wiring mistake and fails.
func (r *Registry) Register(capability contracts.Capability, invoker Invoker) error {
	if capability.Domain == "" {
		return errors.New("register: capability domain is required")
	}
	if invoker == nil {
		return fmt.Errorf("register %s: invoker is required", capability.Domain)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[capability.Domain]; exists {
		return fmt.Errorf("register %s: domain already registered", capability.Domain)
	}
	r.entries[capability.Domain] = registration{capability: capability, invoker: invoker}
	return nil
}

// Lookup resolves a domain to its capability and invoker.
func (r *Registry) Lookup(domain string) (contracts.Capability, Invoker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[domain]
	return reg.capability, reg.invoker, ok
}

// Capabilities lists every registered capability, sorted by domain.
func (r *Registry) Capabilities() []contracts.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	capabilities := make([]contracts.Capability, 0, len(r.entries))
	for _, reg := range r.entries {
		capabilities = append(capabilities, reg.capability)
	}
	sort.Slice(capabilities, func(i, j int) bool { return capabilities[i].Domain < capabilities[j].Domain })
	return capabilities
}

// ValidateSpec checks a pipeline spec against the registry: every domain
// must be registered and every dependency must name a step declared
// earlier in the list. The earlier-declaration rule makes cycles and
// forward references impossible in one pass.
func (r *Registry) ValidateSpec(spec contracts.PipelineSpec) error {
	if len(spec.Steps) == 0 {
		return ErrEmptySpec
	}

	declared := map[string]bool{}
	for i, step := range spec.Steps {
		if step.StepID == "" {
			return fmt.Errorf("steps[%d]: step id is required", i)
		}
		if declared[step.StepID] {
			return fmt.Errorf("steps[%d] %s: %w", i, step.StepID, ErrDuplicateStep)
		}
		if _, _, ok := r.Lookup(step.Domain); !ok {
			return fmt.Errorf("steps[%d] %s: domain %q: %w", i, step.StepID, step.Domain, ErrUnknownDomain)
		}
		for _, dep := range step.DependsOn {
			if dep == step.StepID {
				return fmt.Errorf("steps[%d] %s: %w", i, step.StepID, ErrSelfDependency)
			}
			if !declared[dep] {
				return fmt.Errorf("steps[%d] %s: depends on %q: %w", i, step.StepID, dep, ErrForwardReference)
			}
		}
		declared[step.StepID] = true
	}
	return nil
}

// ExecutionOrder returns a topological ordering of the spec's step ids.
// Declaration order is already topological once the spec validates.
func (r *Registry) ExecutionOrder(spec contracts.PipelineSpec) ([]string, error) {
	if err := r.ValidateSpec(spec); err != nil {
		return nil, err
	}
	order := make([]string, 0, len(spec.Steps))
	for _, step := range spec.Steps {
		order = append(order, step.StepID)
	}
	return order, nil
}
