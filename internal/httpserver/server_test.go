package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/agent"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/auth"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/config"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/configval"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/httpserver"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/pipeline"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/reflection"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/store"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/telemetry"
)

func newTestServer(t *testing.T, verifier *auth.Verifier) (*httptest.Server, *store.MemoryStore) {
	t.Helper()

	db := store.NewMemoryStore()
	validationExec := agent.NewExecutor(configval.NewEngine(configval.EngineConfig{}), db, telemetry.NopRecorder{})
	reflectionExec := agent.NewExecutor(reflection.NewEngine(reflection.EngineConfig{}), db, telemetry.NopRecorder{})

	registry := pipeline.NewRegistry()
	require.NoError(t, registry.Register(contracts.Capability{
		Domain:       "config-validation",
		AgentID:      configval.AgentID,
		AgentVersion: configval.AgentVersion,
		DecisionType: contracts.DecisionTypeConfigValidation,
	}, validationExec))
	require.NoError(t, registry.Register(contracts.Capability{
		Domain:       "reflection",
		AgentID:      reflection.AgentID,
		AgentVersion: reflection.AgentVersion,
		DecisionType: contracts.DecisionTypeReflectionAnalysis,
	}, reflectionExec))

	srv := httpserver.New(
		config.Config{RequestTimeout: 30 * time.Second},
		db, validationExec, reflectionExec,
		registry, pipeline.NewRunner(registry), verifier,
	)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, db
}

func openVerifier(t *testing.T) *auth.Verifier {
	t.Helper()
	v, err := auth.NewVerifier("", true)
	require.NoError(t, err)
	return v
}

func postJSON(t *testing.T, url, body string, headers map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, openVerifier(t))
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInvokeConfigValidationAndFetchRecord(t *testing.T) {
	ts, db := newTestServer(t, openVerifier(t))

	resp, body := postJSON(t, ts.URL+"/agents/config-validation/invoke",
		`{"config":{"server":{"port":70000}}}`,
		map[string]string{"X-Execution-Ref": "req-7"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, contracts.InvocationSuccess, body["status"])
	assert.Equal(t, "req-7", body["executionRef"])

	record, ok := body["record"].(map[string]interface{})
	require.True(t, ok)
	recordID, _ := record["recordId"].(string)
	require.NotEmpty(t, recordID)

	persistence, ok := body["persistenceOutcome"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, contracts.PersistencePersisted, persistence["status"])

	stored, err := db.GetDecisionRecord(context.Background(), recordID)
	require.NoError(t, err)
	assert.Equal(t, configval.AgentID, stored.AgentID)

	getResp, err := http.Get(ts.URL + "/records/" + recordID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
}

func TestInvokeValidationFailure(t *testing.T) {
	ts, _ := newTestServer(t, openVerifier(t))

	resp, body := postJSON(t, ts.URL+"/agents/config-validation/invoke", `{"schema":{}}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, contracts.InvocationError, body["status"])
	assert.Equal(t, contracts.ErrCodeValidationFailed, body["errorCode"])
	assert.NotContains(t, body, "record")
}

func TestInvokeReflection(t *testing.T) {
	ts, _ := newTestServer(t, openVerifier(t))

	_, validation := postJSON(t, ts.URL+"/agents/config-validation/invoke",
		`{"config":{"database":{"host":"db.internal"}}}`, nil)
	record, err := json.Marshal(validation["record"])
	require.NoError(t, err)

	resp, body := postJSON(t, ts.URL+"/agents/reflection/invoke",
		`{"records":[`+string(record)+`]}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, contracts.InvocationSuccess, body["status"])
}

func TestRecordNotFound(t *testing.T) {
	ts, _ := newTestServer(t, openVerifier(t))
	resp, err := http.Get(ts.URL + "/records/no-such-record")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListRecords(t *testing.T) {
	ts, _ := newTestServer(t, openVerifier(t))

	postJSON(t, ts.URL+"/agents/config-validation/invoke", `{"config":{"a":1}}`, nil)
	postJSON(t, ts.URL+"/agents/config-validation/invoke", `{"config":{"b":2}}`, nil)

	resp, body := getJSON(t, ts.URL+"/records?agentId="+configval.AgentID+"&limit=1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	records, ok := body["records"].([]interface{})
	require.True(t, ok)
	assert.Len(t, records, 1)
}

func TestPipelineValidateAndRun(t *testing.T) {
	ts, _ := newTestServer(t, openVerifier(t))

	spec := `{"steps":[
		{"stepId":"validate","domain":"config-validation"},
		{"stepId":"reflect","domain":"reflection","dependsOn":["validate"]}
	]}`
	resp, body := postJSON(t, ts.URL+"/pipelines/validate", spec, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["valid"])

	badSpec := `{"steps":[{"stepId":"x","domain":"no-such-domain"}]}`
	resp, body = postJSON(t, ts.URL+"/pipelines/validate", badSpec, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, false, body["valid"])

	run := `{
		"spec":{"steps":[{"stepId":"validate","domain":"config-validation"}]},
		"inputs":{"validate":{"config":{"server":{"port":8080}}}}
	}`
	resp, body = postJSON(t, ts.URL+"/pipelines/run", run, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	steps, ok := body["steps"].([]interface{})
	require.True(t, ok)
	require.Len(t, steps, 1)
	step := steps[0].(map[string]interface{})
	assert.Equal(t, false, step["skipped"])
}

func TestWriteSurfaceRequiresAuth(t *testing.T) {
	v, err := auth.NewVerifier("server-secret", false)
	require.NoError(t, err)
	ts, _ := newTestServer(t, v)

	resp, body := postJSON(t, ts.URL+"/agents/config-validation/invoke", `{"config":{}}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "COPILOT_AGENTS_AUTH", body["code"])

	healthResp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer healthResp.Body.Close()
	assert.Equal(t, http.StatusOK, healthResp.StatusCode, "read surface stays open")
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}
