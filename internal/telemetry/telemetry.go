// package telemetry defines the reporting port that brackets every agent
// invocation. Implementations are best-effort: a recorder must never panic
// into the caller and its failures never affect the invocation result.
package telemetry

import (
	"context"
	"log"
)

// Recorder receives start/success/failure signals for agent invocations.
type Recorder interface {
	RecordStart(ctx context.Context, agentID, executionRef string, input interface{})
	RecordSuccess(ctx context.Context, agentID, executionRef string, durationMS int64)
	RecordFailure(ctx context.Context, agentID, executionRef, errorCode, errorMessage string)
}

// NopRecorder discards all telemetry.
type NopRecorder struct{}

func (NopRecorder) RecordStart(ctx context.Context, agentID, executionRef string, input interface{}) {
}
func (NopRecorder) RecordSuccess(ctx context.Context, agentID, executionRef string, durationMS int64) {
}
func (NopRecorder) RecordFailure(ctx context.Context, agentID, executionRef, errorCode, errorMessage string) {
}

// LogRecorder writes telemetry to the process log.
type LogRecorder struct{}

func (LogRecorder) RecordStart(ctx context.Context, agentID, executionRef string, input interface{}) {
	log.Printf("[telemetry] start agent=%s exec=%s", agentID, executionRef)
}

func (LogRecorder) RecordSuccess(ctx context.Context, agentID, executionRef string, durationMS int64) {
	log.Printf("[telemetry] success agent=%s exec=%s duration_ms=%d", agentID, executionRef, durationMS)
}

func (LogRecorder) RecordFailure(ctx context.Context, agentID, executionRef, errorCode, errorMessage string) {
	log.Printf("[telemetry] failure agent=%s exec=%s code=%s msg=%s", agentID, executionRef, errorCode, errorMessage)
}
