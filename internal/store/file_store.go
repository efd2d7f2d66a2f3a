package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
)

// FileStore is a simple file-backed store for dev/testing. Each record is
// written as one JSON file named by record id.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore and ensures the directory exists.
func NewFileStore(dir string) *FileStore {
	_ = os.MkdirAll(dir, 0o755)
	return &FileStore{dir: dir}
}

func (f *FileStore) Ping(ctx context.Context) error { return nil }

func (f *FileStore) InsertDecisionRecord(ctx context.Context, rec contracts.DecisionRecord) error {
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	path := filepath.Join(f.dir, fmt.Sprintf("record_%s.json", rec.RecordID))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write record file: %w", err)
	}
	return nil
}

func (f *FileStore) GetDecisionRecord(ctx context.Context, id string) (contracts.DecisionRecord, error) {
	path := filepath.Join(f.dir, fmt.Sprintf("record_%s.json", id))
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return contracts.DecisionRecord{}, ErrNotFound
		}
		return contracts.DecisionRecord{}, err
	}
	var rec contracts.DecisionRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return contracts.DecisionRecord{}, fmt.Errorf("decode record file: %w", err)
	}
	return rec, nil
}

func (f *FileStore) ListDecisionRecords(ctx context.Context, agentID string, limit int) ([]contracts.DecisionRecord, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("read store dir: %w", err)
	}
	var out []contracts.DecisionRecord
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		b, err := os.ReadFile(filepath.Join(f.dir, entry.Name()))
		if err != nil {
			continue
		}
		var rec contracts.DecisionRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			continue
		}
		if agentID != "" && rec.AgentID != agentID {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
