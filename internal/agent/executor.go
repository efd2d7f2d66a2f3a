package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/record"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/store"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/telemetry"
)

// Executor drives one engine through the invocation lifecycle. The store
// and recorder ports are best-effort collaborators: their failures never
// change an otherwise-successful invocation into a failure.
type Executor struct {
	engine   Engine
	factory  *record.Factory
	store    store.Store
	recorder telemetry.Recorder
}

// NewExecutor wires an engine to its ports. store may be nil (persistence
// is then reported as skipped); recorder may be nil (telemetry discarded).
func NewExecutor(engine Engine, st store.Store, recorder telemetry.Recorder) *Executor {
	if recorder == nil {
		recorder = telemetry.NopRecorder{}
	}
	return &Executor{
		engine:   engine,
		factory:  record.NewFactory(),
		store:    st,
		recorder: recorder,
	}
}

// Invoke runs one invocation: exactly one decision record on success, a
// classified error otherwise, never a partial state.
func (e *Executor) Invoke(ctx context.Context, raw json.RawMessage, executionRef string) contracts.InvocationResult {
	executionRef = ExecutionRefOrNew(executionRef)
	started := time.Now()

	e.safeRecordStart(ctx, executionRef, raw)

	typed, err := e.engine.Validate(raw)
	if err != nil {
		return e.fail(ctx, executionRef, classify(err, contracts.ErrCodeValidationFailed))
	}

	output, err := e.analyze(typed)
	if err != nil {
		return e.fail(ctx, executionRef, classify(err, contracts.ErrCodeProcessingError))
	}

	confidence := clamp01(e.engine.Score(output))
	constraints := mergeConstraints(e.engine.Constraints(typed))

	rec := e.factory.Create(record.CreateInput{
		AgentID:      e.engine.ID(),
		AgentVersion: e.engine.Version(),
		DecisionType: e.engine.DecisionType(),
		Input:        typed,
		Output:       output,
		Confidence:   confidence,
		Constraints:  constraints,
		ExecutionRef: executionRef,
	})
	if err := rec.Validate(); err != nil {
		return e.fail(ctx, executionRef, classify(err, contracts.ErrCodeProcessingError))
	}

	persistence := e.persist(ctx, rec)

	duration := time.Since(started).Milliseconds()
	e.safeRecordSuccess(ctx, executionRef, duration)

	return contracts.InvocationResult{
		Status:       contracts.InvocationSuccess,
		Record:       &rec,
		Persistence:  persistence,
		ExecutionRef: executionRef,
		DurationMS:   duration,
	}
}

// analyze calls the engine's pure analysis, turning panics into
// PROCESSING_ERROR so a misbehaving engine cannot take down the caller.
func (e *Executor) analyze(typed interface{}) (output interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = contracts.NewProcessingError("analysis panicked: %v", r)
		}
	}()
	return e.engine.Analyze(typed)
}

// persist stores the record best-effort. Failure downgrades the outcome to
// skipped; it never propagates.
func (e *Executor) persist(ctx context.Context, rec contracts.DecisionRecord) *contracts.PersistenceOutcome {
	if e.store == nil {
		return &contracts.PersistenceOutcome{Status: contracts.PersistenceSkipped}
	}
	if err := e.store.InsertDecisionRecord(ctx, rec); err != nil {
		log.Printf("[agent.executor] persist record %s: %v", rec.RecordID, err)
		return &contracts.PersistenceOutcome{
			Status: contracts.PersistenceSkipped,
			Error:  err.Error(),
		}
	}
	return &contracts.PersistenceOutcome{Status: contracts.PersistencePersisted}
}

func (e *Executor) fail(ctx context.Context, executionRef string, aerr *contracts.AgentError) contracts.InvocationResult {
	e.safeRecordFailure(ctx, executionRef, aerr.Code, aerr.Message)
	return contracts.InvocationResult{
		Status:       contracts.InvocationError,
		ErrorCode:    aerr.Code,
		ErrorMessage: aerr.Message,
		ExecutionRef: executionRef,
	}
}

// classify maps an arbitrary engine error onto the error taxonomy. Already
// classified errors keep their code; errors naming the persistence boundary
// are tagged PERSISTENCE_ERROR; everything else takes the fallback code.
func classify(err error, fallbackCode string) *contracts.AgentError {
	var aerr *contracts.AgentError
	if errors.As(err, &aerr) {
		return aerr
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "persist") || strings.Contains(lower, "storage") {
		return &contracts.AgentError{Code: contracts.ErrCodePersistenceError, Message: msg}
	}
	return &contracts.AgentError{Code: fallbackCode, Message: msg}
}

// Telemetry calls must not throw into the invocation control flow.

func (e *Executor) safeRecordStart(ctx context.Context, executionRef string, input interface{}) {
	defer telemetryRecover("start")
	e.recorder.RecordStart(ctx, e.engine.ID(), executionRef, input)
}

func (e *Executor) safeRecordSuccess(ctx context.Context, executionRef string, durationMS int64) {
	defer telemetryRecover("success")
	e.recorder.RecordSuccess(ctx, e.engine.ID(), executionRef, durationMS)
}

func (e *Executor) safeRecordFailure(ctx context.Context, executionRef, code, message string) {
	defer telemetryRecover("failure")
	e.recorder.RecordFailure(ctx, e.engine.ID(), executionRef, code, message)
}

func telemetryRecover(hook string) {
	if r := recover(); r != nil {
		log.Printf("[agent.executor] telemetry %s hook panicked: %v", hook, r)
	}
}

// ExecutionRefOrNew returns ref, or a fresh uuid when empty. Transport
// layers use this to guarantee every logical request carries a reference.
func ExecutionRefOrNew(ref string) string {
	if ref == "" {
		return uuid.New().String()
	}
	return ref
}
