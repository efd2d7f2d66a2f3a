package store

import (
	"context"
	"sort"
	"sync"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
)

// MemoryStore provides an in-memory implementation useful for tests and dev.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]contracts.DecisionRecord
	order   []string

	// FailInsert forces InsertDecisionRecord to return this error when set.
	// Used by tests exercising best-effort persistence.
	FailInsert error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]contracts.DecisionRecord{}}
}

func (m *MemoryStore) InsertDecisionRecord(ctx context.Context, rec contracts.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailInsert != nil {
		return m.FailInsert
	}
	if _, exists := m.records[rec.RecordID]; !exists {
		m.order = append(m.order, rec.RecordID)
	}
	m.records[rec.RecordID] = rec
	return nil
}

func (m *MemoryStore) GetDecisionRecord(ctx context.Context, id string) (contracts.DecisionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return contracts.DecisionRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryStore) ListDecisionRecords(ctx context.Context, agentID string, limit int) ([]contracts.DecisionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]contracts.DecisionRecord, 0, len(m.order))
	for _, id := range m.order {
		rec := m.records[id]
		if agentID != "" && rec.AgentID != agentID {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }
