package store_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/store"
)

func sampleRecord() contracts.DecisionRecord {
	return contracts.DecisionRecord{
		RecordID:           "rec-1",
		AgentID:            "config-validation-agent",
		AgentVersion:       "1.0.0",
		DecisionType:       contracts.DecisionTypeConfigValidation,
		InputHash:          "abc123",
		Input:              map[string]interface{}{"server": map[string]interface{}{"port": float64(8080)}},
		Output:             map[string]interface{}{"valid": true},
		Confidence:         0.9,
		ConstraintsApplied: []string{"no_modification"},
		ExecutionRef:       "exec-1",
		CreatedAt:          time.Now().UTC(),
	}
}

func TestPGStoreInsertDecisionRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	st := store.NewPGStore(db)
	rec := sampleRecord()

	mock.ExpectExec("INSERT INTO decision_records").
		WithArgs(
			rec.RecordID,
			rec.AgentID,
			rec.AgentVersion,
			string(rec.DecisionType),
			rec.InputHash,
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
			rec.Confidence,
			sqlmock.AnyArg(),
			rec.ExecutionRef,
			rec.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, st.InsertDecisionRecord(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreGetDecisionRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	st := store.NewPGStore(db)
	created := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "agent_id", "agent_version", "decision_type", "input_hash",
		"input", "output", "confidence", "constraints_applied", "execution_ref", "created_at",
	}).AddRow(
		"rec-1", "config-validation-agent", "1.0.0", "config_validation", "abc123",
		[]byte(`{"server":{"port":8080}}`), []byte(`{"valid":true}`), 0.9,
		[]byte(`["no_modification"]`), "exec-1", created,
	)
	mock.ExpectQuery("SELECT .+ FROM decision_records WHERE id=").
		WithArgs("rec-1").
		WillReturnRows(rows)

	rec, err := st.GetDecisionRecord(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", rec.RecordID)
	assert.Equal(t, contracts.DecisionTypeConfigValidation, rec.DecisionType)
	assert.Equal(t, []string{"no_modification"}, rec.ConstraintsApplied)

	input, ok := rec.Input.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, input, "server")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreGetDecisionRecordNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	st := store.NewPGStore(db)
	mock.ExpectQuery("SELECT .+ FROM decision_records WHERE id=").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = st.GetDecisionRecord(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreListDecisionRecordsByAgent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	st := store.NewPGStore(db)
	created := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "agent_id", "agent_version", "decision_type", "input_hash",
		"input", "output", "confidence", "constraints_applied", "execution_ref", "created_at",
	}).AddRow(
		"rec-2", "reflection-agent", "1.0.0", "reflection_analysis", "def456",
		[]byte(`{}`), []byte(`{}`), 0.8, []byte(`[]`), "exec-2", created,
	)
	mock.ExpectQuery("SELECT .+ FROM decision_records WHERE agent_id=").
		WithArgs("reflection-agent", 10).
		WillReturnRows(rows)

	recs, err := st.ListDecisionRecords(context.Background(), "reflection-agent", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "rec-2", recs[0].RecordID)

	require.NoError(t, mock.ExpectationsWereMet())
}
