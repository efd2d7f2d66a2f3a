package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
)

// PGStore persists decision records into Postgres.
type PGStore struct {
	db *sql.DB
}

// NewPGStore constructs a Postgres-backed store.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// Ping verifies connectivity to Postgres.
func (p *PGStore) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}

// InsertDecisionRecord persists a decision record row. Input and output are
// stored as JSONB; constraints as a JSON array.
func (p *PGStore) InsertDecisionRecord(ctx context.Context, rec contracts.DecisionRecord) error {
	inputJSON, err := json.Marshal(rec.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}
	outputJSON, err := json.Marshal(rec.Output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	constraintsJSON, err := json.Marshal(rec.ConstraintsApplied)
	if err != nil {
		return fmt.Errorf("marshal constraints: %w", err)
	}

	q := `
		INSERT INTO decision_records
		  (id, agent_id, agent_version, decision_type, input_hash, input, output,
		   confidence, constraints_applied, execution_ref, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`
	_, err = p.db.ExecContext(ctx, q,
		rec.RecordID,
		rec.AgentID,
		rec.AgentVersion,
		string(rec.DecisionType),
		rec.InputHash,
		inputJSON,
		outputJSON,
		rec.Confidence,
		constraintsJSON,
		rec.ExecutionRef,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert decision_record: %w", err)
	}
	return nil
}

const recordColumns = `id, agent_id, agent_version, decision_type, input_hash, input, output,
	confidence, constraints_applied, execution_ref, created_at`

// GetDecisionRecord fetches a record by id and unmarshals JSON fields.
func (p *PGStore) GetDecisionRecord(ctx context.Context, id string) (contracts.DecisionRecord, error) {
	q := `SELECT ` + recordColumns + ` FROM decision_records WHERE id=$1`
	rec, err := scanRecord(p.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return contracts.DecisionRecord{}, ErrNotFound
		}
		return contracts.DecisionRecord{}, fmt.Errorf("get decision_record: %w", err)
	}
	return rec, nil
}

// ListDecisionRecords returns the newest records, optionally filtered by agent.
func (p *PGStore) ListDecisionRecords(ctx context.Context, agentID string, limit int) ([]contracts.DecisionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if agentID == "" {
		q := `SELECT ` + recordColumns + ` FROM decision_records ORDER BY created_at DESC LIMIT $1`
		rows, err = p.db.QueryContext(ctx, q, limit)
	} else {
		q := `SELECT ` + recordColumns + ` FROM decision_records WHERE agent_id=$1 ORDER BY created_at DESC LIMIT $2`
		rows, err = p.db.QueryContext(ctx, q, agentID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list decision_records: %w", err)
	}
	defer rows.Close()

	var out []contracts.DecisionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan decision_record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decision_records: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (contracts.DecisionRecord, error) {
	var (
		rec                           contracts.DecisionRecord
		decisionType                  string
		inputB, outputB, constraintsB []byte
	)
	err := row.Scan(
		&rec.RecordID,
		&rec.AgentID,
		&rec.AgentVersion,
		&decisionType,
		&rec.InputHash,
		&inputB,
		&outputB,
		&rec.Confidence,
		&constraintsB,
		&rec.ExecutionRef,
		&rec.CreatedAt,
	)
	if err != nil {
		return contracts.DecisionRecord{}, err
	}
	rec.DecisionType = contracts.DecisionType(decisionType)
	if len(inputB) > 0 {
		if err := json.Unmarshal(inputB, &rec.Input); err != nil {
			rec.Input = string(inputB)
		}
	}
	if len(outputB) > 0 {
		if err := json.Unmarshal(outputB, &rec.Output); err != nil {
			rec.Output = string(outputB)
		}
	}
	if len(constraintsB) > 0 {
		if err := json.Unmarshal(constraintsB, &rec.ConstraintsApplied); err != nil {
			rec.ConstraintsApplied = nil
		}
	}
	return rec, nil
}

// FetchPendingRecords claims up to batchSize records whose stream_status is
// pending, marking them in_progress. Uses SKIP LOCKED so concurrent streamer
// instances never claim the same rows.
func (p *PGStore) FetchPendingRecords(ctx context.Context, batchSize int) ([]contracts.DecisionRecord, error) {
	if batchSize <= 0 {
		batchSize = 10
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback()

	q := `
		SELECT ` + recordColumns + `
		FROM decision_records
		WHERE stream_status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := tx.QueryContext(ctx, q, batchSize)
	if err != nil {
		return nil, fmt.Errorf("select pending records: %w", err)
	}
	var claimed []contracts.DecisionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan pending record: %w", err)
		}
		claimed = append(claimed, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending records: %w", err)
	}

	for _, rec := range claimed {
		if _, err := tx.ExecContext(ctx,
			`UPDATE decision_records SET stream_status='in_progress', stream_attempts = stream_attempts + 1 WHERE id=$1`,
			rec.RecordID,
		); err != nil {
			return nil, fmt.Errorf("claim record %s: %w", rec.RecordID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}
	return claimed, nil
}

// MarkStreamResult records the outcome of a produce/archive attempt so the
// database remains the source of truth for retries.
func (p *PGStore) MarkStreamResult(ctx context.Context, id string, archivedKey sql.NullString, ok bool, streamErr sql.NullString) error {
	status := "failed"
	if ok {
		status = "streamed"
	}
	q := `
		UPDATE decision_records
		SET stream_status=$2, archived_key=$3, stream_error=$4, streamed_at=NOW()
		WHERE id=$1
	`
	res, err := p.db.ExecContext(ctx, q, id, status, archivedKey, streamErr)
	if err != nil {
		return fmt.Errorf("mark stream result: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
