// package record builds immutable decision records. The factory is a pure
// constructor: it performs no I/O and has no failure path.
package record

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/canonical"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
)

// Factory creates decision records for agents.
type Factory struct{}

// NewFactory returns a record factory.
func NewFactory() *Factory {
	return &Factory{}
}

// CreateInput carries everything needed to build one decision record.
// Confidence must already be clamped to [0,1] by the caller.
type CreateInput struct {
	AgentID      string
	AgentVersion string
	DecisionType contracts.DecisionType
	Input        interface{}
	Output       interface{}
	Confidence   float64
	Constraints  []string
	ExecutionRef string
}

// Create builds a decision record. The input hash is the SHA-256 of the
// canonical JSON of the input, so byte-different inputs that differ only in
// object key order hash identically.
func (f *Factory) Create(in CreateInput) contracts.DecisionRecord {
	constraints := append([]string(nil), in.Constraints...)
	return contracts.DecisionRecord{
		RecordID:           uuid.New().String(),
		AgentID:            in.AgentID,
		AgentVersion:       in.AgentVersion,
		DecisionType:       in.DecisionType,
		InputHash:          InputHash(in.Input),
		Input:              in.Input,
		Output:             in.Output,
		Confidence:         in.Confidence,
		ConstraintsApplied: constraints,
		ExecutionRef:       in.ExecutionRef,
		CreatedAt:          time.Now().UTC(),
	}
}

// InputHash computes the canonical content hash for an arbitrary input.
// Values that cannot be canonicalized (channels, cycles) fall back to
// hashing their fmt representation so record creation never fails.
func InputHash(input interface{}) string {
	h, err := canonical.HashHex(input)
	if err != nil {
		return canonical.HashBytesHex([]byte(fmt.Sprintf("%#v", input)))
	}
	return h
}
