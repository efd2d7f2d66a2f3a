// package configval is the configuration validation engine: it walks an
// arbitrary configuration tree and reports schema violations, semantic
// problems, deprecated usage, unsafe values, conflicts and missing entries
// as pure findings. It never repairs, defaults or blocks anything.
package configval

import (
	"encoding/json"
	"fmt"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/agent"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/canonical"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
)

const (
	AgentID      = "config-validation-agent"
	AgentVersion = "1.2.0"
)

// Schema is an optional descriptor for the expected configuration shape.
// Property keys are root-relative dotted paths.
type Schema struct {
	Required   []string                  `json:"required,omitempty"`
	Properties map[string]SchemaProperty `json:"properties,omitempty"`
}

// SchemaProperty declares the expected JSON type for one path.
type SchemaProperty struct {
	Type string `json:"type,omitempty"` // string|number|integer|boolean|object|array
}

// Context carries caller-supplied validation context.
type Context struct {
	Environment       string   `json:"environment,omitempty"`
	CustomConstraints []string `json:"customConstraints,omitempty"`
	DeprecatedKeys    []string `json:"deprecatedKeys,omitempty"`
}

// Options toggles which checks run.
type Options struct {
	CheckDeprecated bool `json:"checkDeprecated"`
	CheckSecurity   bool `json:"checkSecurity"`
	CheckConflicts  bool `json:"checkConflicts"`
	CheckMissing    bool `json:"checkMissing"`
	Strict          bool `json:"strict"`
}

// DefaultOptions enables every check, non-strict.
func DefaultOptions() Options {
	return Options{
		CheckDeprecated: true,
		CheckSecurity:   true,
		CheckConflicts:  true,
		CheckMissing:    true,
	}
}

// Input is the typed input of one validation invocation.
type Input struct {
	Config  map[string]interface{} `json:"config"`
	Schema  *Schema                `json:"schema,omitempty"`
	Context Context                `json:"context,omitempty"`
	Options Options                `json:"options"`
}

// wireInput is the raw request shape; a nil options object means defaults.
type wireInput struct {
	Config  map[string]interface{} `json:"config"`
	Schema  *Schema                `json:"schema,omitempty"`
	Context *Context               `json:"context,omitempty"`
	Options *Options               `json:"options,omitempty"`
}

// Output is the analysis result recorded as the decision output.
type Output struct {
	Valid             bool                          `json:"valid"`
	Findings          []contracts.Finding           `json:"findings"`
	ConstraintResults []contracts.ConstraintResult  `json:"constraintResults"`
	Readiness         contracts.ReadinessAssessment `json:"readiness"`
	MissingConfigs    []string                      `json:"missingConfigs"`
	ConfigHash        string                        `json:"configHash"`
	SchemaUsed        bool                          `json:"schemaUsed"`
	StrictMode        bool                          `json:"strictMode"`
	SeverityCounts    map[string]int                `json:"severityCounts"`
	DepthTruncated    bool                          `json:"depthTruncated"`
}

// Engine implements the agent execution contract for configuration
// validation. The heuristic tables are fixed at construction; the engine
// holds no per-invocation state.
type Engine struct {
	tables   Tables
	maxDepth int
}

// EngineConfig tunes the engine at construction time.
type EngineConfig struct {
	// Tables overrides the built-in heuristic tables when non-zero.
	Tables *Tables

	// MaxDepth bounds the configuration tree traversal. Defaults to 32.
	MaxDepth int
}

// NewEngine builds a validation engine.
func NewEngine(cfg EngineConfig) *Engine {
	tables := DefaultTables()
	if cfg.Tables != nil {
		tables = *cfg.Tables
	}
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 32
	}
	return &Engine{tables: tables, maxDepth: maxDepth}
}

func (e *Engine) ID() string      { return AgentID }
func (e *Engine) Version() string { return AgentVersion }

func (e *Engine) DecisionType() contracts.DecisionType {
	return contracts.DecisionTypeConfigValidation
}

// Validate decodes and checks the raw invocation input.
func (e *Engine) Validate(raw json.RawMessage) (interface{}, error) {
	if len(raw) == 0 {
		return nil, contracts.NewValidationError("empty input")
	}
	var wire wireInput
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, contracts.NewValidationError("decode input: %v", err)
	}
	if wire.Config == nil {
		return nil, contracts.NewValidationError("config object is required")
	}
	in := Input{Config: wire.Config, Schema: wire.Schema}
	if wire.Context != nil {
		in.Context = *wire.Context
	}
	if wire.Options != nil {
		in.Options = *wire.Options
	} else {
		in.Options = DefaultOptions()
	}
	return in, nil
}

// Analyze runs every enabled check over the configuration tree.
func (e *Engine) Analyze(input interface{}) (interface{}, error) {
	in, ok := input.(Input)
	if !ok {
		return nil, contracts.NewProcessingError("unexpected input type %T", input)
	}

	walk := walkConfig(in.Config, e.maxDepth)

	var findings []contracts.Finding
	var constraintResults []contracts.ConstraintResult

	if walk.truncated {
		findings = append(findings, newFinding(contracts.CategorySemantic, contracts.SeverityWarning,
			walk.truncatedPath,
			fmt.Sprintf("configuration nesting exceeds the maximum analyzed depth of %d; deeper entries were not checked", e.maxDepth)))
	}

	schemaFindings, schemaResult := e.checkSchema(in.Schema, walk)
	findings = append(findings, schemaFindings...)
	constraintResults = append(constraintResults, schemaResult)

	semFindings, semResult := e.checkSemantics(walk)
	findings = append(findings, semFindings...)
	constraintResults = append(constraintResults, semResult)

	customFindings, customResults := e.checkCustomConstraints(in.Context.CustomConstraints, walk)
	findings = append(findings, customFindings...)
	constraintResults = append(constraintResults, customResults...)

	if in.Options.CheckDeprecated {
		depFindings, depResult := e.checkDeprecated(in.Context.DeprecatedKeys, walk)
		findings = append(findings, depFindings...)
		constraintResults = append(constraintResults, depResult)
	}
	if in.Options.CheckSecurity {
		secFindings, secResult := e.checkUnsafe(in.Context.Environment, walk)
		findings = append(findings, secFindings...)
		constraintResults = append(constraintResults, secResult)
	}
	if in.Options.CheckConflicts {
		conFindings, conResult := e.checkConflicts(walk)
		findings = append(findings, conFindings...)
		constraintResults = append(constraintResults, conResult)
	}

	var missing []string
	if in.Options.CheckMissing {
		missFindings, missResult, missingPaths := e.checkMissing(walk)
		findings = append(findings, missFindings...)
		constraintResults = append(constraintResults, missResult)
		missing = missingPaths
	}
	if missing == nil {
		missing = []string{}
	}

	configHash, err := canonical.HashHex(in.Config)
	if err != nil {
		return nil, contracts.NewProcessingError("hash config: %v", err)
	}

	out := Output{
		Findings:          findings,
		ConstraintResults: constraintResults,
		Readiness:         assessReadiness(findings),
		MissingConfigs:    missing,
		ConfigHash:        configHash,
		SchemaUsed:        in.Schema != nil,
		StrictMode:        in.Options.Strict,
		SeverityCounts:    countBySeverity(findings),
		DepthTruncated:    walk.truncated,
	}
	out.Valid = computeValidity(findings, in.Options.Strict)
	return out, nil
}

// Score derives the invocation confidence from the output's own signals.
func (e *Engine) Score(output interface{}) float64 {
	out, ok := output.(Output)
	if !ok {
		return 0
	}
	return confidenceFor(out)
}

// Constraints names the analysis policies active for this input.
func (e *Engine) Constraints(input interface{}) []string {
	in, ok := input.(Input)
	if !ok {
		return nil
	}
	var constraints []string
	if in.Schema != nil {
		constraints = append(constraints, "schema_validation")
	}
	if in.Options.Strict {
		constraints = append(constraints, "strict_mode")
	}
	if in.Options.CheckDeprecated {
		constraints = append(constraints, "deprecated_detection")
	}
	if in.Options.CheckSecurity {
		constraints = append(constraints, "security_scanning")
	}
	if in.Options.CheckConflicts {
		constraints = append(constraints, "conflict_detection")
	}
	if in.Options.CheckMissing {
		constraints = append(constraints, "missing_config_detection")
	}
	return constraints
}

var _ agent.Engine = (*Engine)(nil)
