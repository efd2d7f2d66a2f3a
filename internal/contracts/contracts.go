// package contracts contains the canonical models shared by every agent in
// the decision-audit pipeline: the decision record, the invocation result,
// findings, readiness assessments and the pipeline composition types.
package contracts

import (
	"fmt"
	"time"
)

// DecisionType classifies what kind of decision a record captures.
type DecisionType string

const (
	DecisionTypeConfigValidation   DecisionType = "config_validation"
	DecisionTypeReflectionAnalysis DecisionType = "reflection_analysis"
)

// Error codes classifying invocation failures.
const (
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeProcessingError  = "PROCESSING_ERROR"
	ErrCodePersistenceError = "PERSISTENCE_ERROR"
)

// AgentError is a classified invocation error.
type AgentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidationError builds a VALIDATION_FAILED error.
func NewValidationError(format string, args ...interface{}) *AgentError {
	return &AgentError{Code: ErrCodeValidationFailed, Message: fmt.Sprintf(format, args...)}
}

// NewProcessingError builds a PROCESSING_ERROR.
func NewProcessingError(format string, args ...interface{}) *AgentError {
	return &AgentError{Code: ErrCodeProcessingError, Message: fmt.Sprintf(format, args...)}
}

// DecisionRecord is the immutable, hashable output of one agent invocation.
// It is created once by the record factory, never updated, and handed to the
// persistence port as-is.
type DecisionRecord struct {
	RecordID           string       `json:"recordId"`
	AgentID            string       `json:"agentId"`
	AgentVersion       string       `json:"agentVersion"`
	DecisionType       DecisionType `json:"decisionType"`
	InputHash          string       `json:"inputHash"`
	Input              interface{}  `json:"input"`
	Output             interface{}  `json:"output"`
	Confidence         float64      `json:"confidence"`
	ConstraintsApplied []string     `json:"constraintsApplied"`
	ExecutionRef       string       `json:"executionRef"`
	CreatedAt          time.Time    `json:"createdAt"`
}

// Validate checks the record against the contract's structural requirements.
func (r *DecisionRecord) Validate() error {
	if r.RecordID == "" {
		return fmt.Errorf("decision record: missing recordId")
	}
	if r.AgentID == "" {
		return fmt.Errorf("decision record: missing agentId")
	}
	if r.AgentVersion == "" {
		return fmt.Errorf("decision record: missing agentVersion")
	}
	if r.InputHash == "" {
		return fmt.Errorf("decision record: missing inputHash")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("decision record: confidence %v out of range [0,1]", r.Confidence)
	}
	return nil
}

// Persistence outcome states.
const (
	PersistencePersisted = "persisted"
	PersistenceSkipped   = "skipped"
)

// PersistenceOutcome reports the best-effort store call for one invocation.
type PersistenceOutcome struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Invocation statuses.
const (
	InvocationSuccess = "success"
	InvocationError   = "error"
)

// InvocationResult is what a caller receives from one agent invocation:
// either a complete decision record or a classified error, never both.
type InvocationResult struct {
	Status       string              `json:"status"`
	Record       *DecisionRecord     `json:"record,omitempty"`
	Persistence  *PersistenceOutcome `json:"persistenceOutcome,omitempty"`
	ErrorCode    string              `json:"errorCode,omitempty"`
	ErrorMessage string              `json:"errorMessage,omitempty"`
	ExecutionRef string              `json:"executionRef"`
	DurationMS   int64               `json:"durationMs"`
}

// FindingCategory classifies an observation made during analysis.
type FindingCategory string

const (
	CategorySchema       FindingCategory = "schema"
	CategoryTypeMismatch FindingCategory = "type_mismatch"
	CategorySemantic     FindingCategory = "semantic"
	CategoryDeprecated   FindingCategory = "deprecated"
	CategoryUnsafe       FindingCategory = "unsafe"
	CategoryConflict     FindingCategory = "conflict"
	CategoryMissing      FindingCategory = "missing"
	CategoryConstraint   FindingCategory = "constraint"
)

// Severity orders findings from informational to critical.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Rank returns a comparable ordering for severities (info lowest).
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Finding is a single pure observation: it locates and describes a problem
// but never corrects it.
type Finding struct {
	FindingID    string          `json:"findingId"`
	Category     FindingCategory `json:"category"`
	Severity     Severity        `json:"severity"`
	Path         string          `json:"path"`
	Message      string          `json:"message"`
	ActualValue  interface{}     `json:"actualValue,omitempty"`
	Expected     interface{}     `json:"expected,omitempty"`
	RelatedPaths []string        `json:"relatedPaths,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	ConcernType  string          `json:"concernType,omitempty"`
}

// ReadinessStatus summarizes a validation run.
type ReadinessStatus string

const (
	ReadinessReady             ReadinessStatus = "ready"
	ReadinessReadyWithWarnings ReadinessStatus = "ready_with_warnings"
	ReadinessNotReady          ReadinessStatus = "not_ready"
	ReadinessCriticalIssues    ReadinessStatus = "critical_issues"
)

// ReadinessAssessment is derived deterministically from one invocation's
// finding set.
type ReadinessAssessment struct {
	Status          ReadinessStatus             `json:"status"`
	Score           float64                     `json:"score"`
	CategoryScores  map[FindingCategory]float64 `json:"categoryScores"`
	BlockingIssues  []string                    `json:"blockingIssues"`
	Warnings        []string                    `json:"warnings"`
	Recommendations []string                    `json:"recommendations"`
}

// ConstraintResult reports one named semantic constraint evaluation.
type ConstraintResult struct {
	ConstraintID string   `json:"constraintId"`
	Passed       bool     `json:"passed"`
	PathsChecked []string `json:"pathsChecked"`
}

// PipelineStep is one unit of an ordered workflow.
type PipelineStep struct {
	StepID    string   `json:"stepId"`
	Domain    string   `json:"domain"`
	DependsOn []string `json:"dependsOn,omitempty"`
}

// PipelineSpec is an ordered list of steps composing independent agents
// into a workflow.
type PipelineSpec struct {
	Steps []PipelineStep `json:"steps"`
}

// Capability describes what an agent registered under a domain provides.
type Capability struct {
	Domain       string       `json:"domain"`
	AgentID      string       `json:"agentId"`
	AgentVersion string       `json:"agentVersion"`
	DecisionType DecisionType `json:"decisionType"`
	Description  string       `json:"description,omitempty"`
}
