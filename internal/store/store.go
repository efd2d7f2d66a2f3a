// package store holds the persistence port for decision records and its
// backends. The executor only ever calls InsertDecisionRecord, best-effort;
// reads exist for the HTTP surface and for reflection batch assembly.
package store

import (
	"context"
	"errors"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
)

// ErrNotFound is returned when a requested record cannot be located.
var ErrNotFound = errors.New("not found")

// Store is the minimal persistence abstraction for decision records.
type Store interface {
	// InsertDecisionRecord persists a decision record. Called at most once
	// per invocation; never required to succeed.
	InsertDecisionRecord(ctx context.Context, rec contracts.DecisionRecord) error

	// GetDecisionRecord retrieves a record by id.
	GetDecisionRecord(ctx context.Context, id string) (contracts.DecisionRecord, error)

	// ListDecisionRecords returns the most recent records for an agent,
	// newest first. agentID may be empty to list across agents.
	ListDecisionRecords(ctx context.Context, agentID string, limit int) ([]contracts.DecisionRecord, error)

	// Ping validates the store is reachable.
	Ping(ctx context.Context) error
}
