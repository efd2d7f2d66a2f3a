package configval_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/configval"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
)

func analyze(t *testing.T, in configval.Input) configval.Output {
	t.Helper()
	e := configval.NewEngine(configval.EngineConfig{})
	raw, err := e.Analyze(in)
	require.NoError(t, err)
	out, ok := raw.(configval.Output)
	require.True(t, ok)
	return out
}

func findingsFor(out configval.Output, category contracts.FindingCategory, path string) []contracts.Finding {
	var matches []contracts.Finding
	for _, f := range out.Findings {
		if f.Category == category && (path == "" || f.Path == path) {
			matches = append(matches, f)
		}
	}
	return matches
}

func TestValidateRejectsMissingConfig(t *testing.T) {
	e := configval.NewEngine(configval.EngineConfig{})

	_, err := e.Validate(json.RawMessage(`{"schema":{}}`))
	require.Error(t, err)
	var aerr *contracts.AgentError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, contracts.ErrCodeValidationFailed, aerr.Code)

	_, err = e.Validate(json.RawMessage(`{not json`))
	assert.Error(t, err)
}

func TestValidateDefaultsOptions(t *testing.T) {
	e := configval.NewEngine(configval.EngineConfig{})
	typed, err := e.Validate(json.RawMessage(`{"config":{"a":1}}`))
	require.NoError(t, err)
	in, ok := typed.(configval.Input)
	require.True(t, ok)
	assert.True(t, in.Options.CheckSecurity)
	assert.True(t, in.Options.CheckMissing)
	assert.False(t, in.Options.Strict)
}

func TestOutOfRangePortIsNotReady(t *testing.T) {
	out := analyze(t, configval.Input{
		Config:  map[string]interface{}{"server": map[string]interface{}{"port": float64(70000)}},
		Options: configval.Options{}, // every optional check off; semantic checks always run
	})

	port := findingsFor(out, contracts.CategorySemantic, "server.port")
	require.Len(t, port, 1)
	assert.Equal(t, contracts.SeverityError, port[0].Severity)

	assert.Equal(t, contracts.ReadinessNotReady, out.Readiness.Status)
	assert.Equal(t, 0.3, out.Readiness.Score)
	assert.False(t, out.Valid)
}

func TestHardcodedSecretIsCritical(t *testing.T) {
	out := analyze(t, configval.Input{
		Config:  map[string]interface{}{"apiKey": "sk_live_abcdef123456"},
		Options: configval.Options{CheckSecurity: true},
	})

	unsafe := findingsFor(out, contracts.CategoryUnsafe, "apiKey")
	require.Len(t, unsafe, 1)
	assert.Equal(t, contracts.SeverityCritical, unsafe[0].Severity)
	assert.Equal(t, configval.ConcernHardcodedSecret, unsafe[0].ConcernType)

	assert.Equal(t, contracts.ReadinessCriticalIssues, out.Readiness.Status)
	assert.Equal(t, 0.1, out.Readiness.Score)
}

func TestSecretReferencesAreNotFlagged(t *testing.T) {
	out := analyze(t, configval.Input{
		Config: map[string]interface{}{
			"database": map[string]interface{}{
				"host":     "db.internal",
				"password": "${DB_PASSWORD}",
			},
			"vaultToken": "vault:secret/data/app#token",
		},
		Options: configval.Options{CheckSecurity: true},
	})
	assert.Empty(t, findingsFor(out, contracts.CategoryUnsafe, ""))
}

func TestMissingDatabaseHost(t *testing.T) {
	out := analyze(t, configval.Input{
		Config:  map[string]interface{}{"server": map[string]interface{}{"port": float64(8080)}},
		Options: configval.Options{CheckMissing: true},
	})

	missing := findingsFor(out, contracts.CategoryMissing, "database.host")
	require.Len(t, missing, 1)
	assert.Equal(t, contracts.SeverityError, missing[0].Severity)
	assert.Contains(t, out.MissingConfigs, "database.host")
}

func TestCustomConstraints(t *testing.T) {
	out := analyze(t, configval.Input{
		Config: map[string]interface{}{"server": map[string]interface{}{"host": "example.com"}},
		Context: configval.Context{CustomConstraints: []string{
			"$.database.host exists",
			"$.server.host equals example.com",
			"$.server.host contains example",
			"garbage",
		}},
	})

	byID := map[string]contracts.ConstraintResult{}
	for _, r := range out.ConstraintResults {
		byID[r.ConstraintID] = r
	}

	require.Contains(t, byID, "custom_1")
	assert.False(t, byID["custom_1"].Passed)
	assert.True(t, byID["custom_2"].Passed)
	assert.True(t, byID["custom_3"].Passed)
	// Unparsable expressions pass and yield no finding.
	assert.True(t, byID["custom_4"].Passed)

	warnings := findingsFor(out, contracts.CategoryConstraint, "database.host")
	require.Len(t, warnings, 1)
	assert.Equal(t, contracts.SeverityWarning, warnings[0].Severity)
}

func TestSchemaRequiredAndTypes(t *testing.T) {
	out := analyze(t, configval.Input{
		Config: map[string]interface{}{
			"server": map[string]interface{}{"port": "not-a-number"},
		},
		Schema: &configval.Schema{
			Required: []string{"server.host"},
			Properties: map[string]configval.SchemaProperty{
				"server.port": {Type: "number"},
			},
		},
	})

	required := findingsFor(out, contracts.CategorySchema, "server.host")
	require.Len(t, required, 1)
	assert.Equal(t, contracts.SeverityError, required[0].Severity)

	mismatch := findingsFor(out, contracts.CategoryTypeMismatch, "server.port")
	require.Len(t, mismatch, 1)
	assert.Equal(t, "number", mismatch[0].Expected)
	assert.True(t, out.SchemaUsed)
}

func TestNoSchemaYieldsInfoFinding(t *testing.T) {
	out := analyze(t, configval.Input{Config: map[string]interface{}{"a": float64(1)}})
	schema := findingsFor(out, contracts.CategorySchema, "")
	require.Len(t, schema, 1)
	assert.Equal(t, contracts.SeverityInfo, schema[0].Severity)
	assert.False(t, out.SchemaUsed)
}

func TestDeprecatedDetection(t *testing.T) {
	out := analyze(t, configval.Input{
		Config: map[string]interface{}{
			"ipWhitelist": []interface{}{"10.0.0.1"},
			"legacyFlag":  true,
		},
		Context: configval.Context{DeprecatedKeys: []string{"legacyFlag"}},
		Options: configval.Options{CheckDeprecated: true},
	})

	declared := findingsFor(out, contracts.CategoryDeprecated, "legacyFlag")
	require.Len(t, declared, 1)
	assert.Equal(t, contracts.SeverityWarning, declared[0].Severity)

	heuristic := findingsFor(out, contracts.CategoryDeprecated, "ipWhitelist")
	require.Len(t, heuristic, 1)
	assert.Equal(t, contracts.SeverityInfo, heuristic[0].Severity)
	assert.Equal(t, "ipallowlist", heuristic[0].Expected)
}

func TestConflictDetection(t *testing.T) {
	out := analyze(t, configval.Input{
		Config: map[string]interface{}{
			"cache": map[string]interface{}{"enabled": true, "disabled": true},
		},
		Options: configval.Options{CheckConflicts: true},
	})

	conflicts := findingsFor(out, contracts.CategoryConflict, "cache.enabled")
	require.Len(t, conflicts, 1)
	assert.Equal(t, contracts.SeverityError, conflicts[0].Severity)
	assert.Equal(t, []string{"cache.disabled"}, conflicts[0].RelatedPaths)
}

func TestDebugInProductionAndPlaintextHTTP(t *testing.T) {
	out := analyze(t, configval.Input{
		Config: map[string]interface{}{
			"debug":       true,
			"apiEndpoint": "http://api.example.com",
			"localUrl":    "http://localhost:8080",
		},
		Context: configval.Context{Environment: "production"},
		Options: configval.Options{CheckSecurity: true},
	})

	debug := findingsFor(out, contracts.CategoryUnsafe, "debug")
	require.Len(t, debug, 1)
	assert.Equal(t, contracts.SeverityError, debug[0].Severity)
	assert.Equal(t, configval.ConcernDebugInProduction, debug[0].ConcernType)

	plaintext := findingsFor(out, contracts.CategoryUnsafe, "apiEndpoint")
	require.Len(t, plaintext, 1)
	assert.Equal(t, configval.ConcernPlaintextHTTP, plaintext[0].ConcernType)

	assert.Empty(t, findingsFor(out, contracts.CategoryUnsafe, "localUrl"))
}

func TestTimeoutAndMemorySemantics(t *testing.T) {
	out := analyze(t, configval.Input{
		Config: map[string]interface{}{
			"requestTimeout": float64(-5),
			"idleTimeout":    float64(7_200_000),
			"maxMemory":      float64(-1),
		},
	})

	negative := findingsFor(out, contracts.CategorySemantic, "requestTimeout")
	require.Len(t, negative, 1)
	assert.Equal(t, contracts.SeverityError, negative[0].Severity)

	long := findingsFor(out, contracts.CategorySemantic, "idleTimeout")
	require.Len(t, long, 1)
	assert.Equal(t, contracts.SeverityWarning, long[0].Severity)

	memory := findingsFor(out, contracts.CategorySemantic, "maxMemory")
	require.Len(t, memory, 1)
	assert.Equal(t, contracts.SeverityError, memory[0].Severity)
}

func TestStrictModeValidity(t *testing.T) {
	config := map[string]interface{}{
		"serviceUrl": "not a url",
	}

	relaxed := analyze(t, configval.Input{Config: config})
	assert.True(t, relaxed.Valid)

	strict := analyze(t, configval.Input{Config: config, Options: configval.Options{Strict: true}})
	assert.False(t, strict.Valid)
	assert.True(t, strict.StrictMode)
}

func TestConfigHashDeterministic(t *testing.T) {
	config := map[string]interface{}{"server": map[string]interface{}{"port": float64(8080)}}
	out1 := analyze(t, configval.Input{Config: config})
	out2 := analyze(t, configval.Input{Config: config})
	assert.Equal(t, out1.ConfigHash, out2.ConfigHash)
	assert.Len(t, out1.ConfigHash, 64)
}

func TestDepthGuardTruncatesDeepNesting(t *testing.T) {
	deep := map[string]interface{}{}
	node := deep
	for i := 0; i < 10; i++ {
		child := map[string]interface{}{}
		node["level"] = child
		node = child
	}
	node["leaf"] = float64(1)

	e := configval.NewEngine(configval.EngineConfig{MaxDepth: 4})
	raw, err := e.Analyze(configval.Input{Config: deep})
	require.NoError(t, err)
	out := raw.(configval.Output)

	assert.True(t, out.DepthTruncated)
	found := false
	for _, f := range out.Findings {
		if f.Category == contracts.CategorySemantic && f.Severity == contracts.SeverityWarning &&
			f.Message != "" && f.Path != "" {
			found = true
		}
	}
	assert.True(t, found, "expected a depth-truncation warning finding")
}

func TestConfidenceHeuristic(t *testing.T) {
	e := configval.NewEngine(configval.EngineConfig{})

	clean := analyze(t, configval.Input{Config: map[string]interface{}{"a": float64(1)}})
	assert.InDelta(t, 0.8, e.Score(clean), 1e-9)

	withSchema := analyze(t, configval.Input{
		Config: map[string]interface{}{"a": float64(1)},
		Schema: &configval.Schema{},
	})
	assert.InDelta(t, 0.9, e.Score(withSchema), 1e-9)

	critical := analyze(t, configval.Input{
		Config:  map[string]interface{}{"apiKey": "sk_live_abcdef123456"},
		Options: configval.Options{CheckSecurity: true},
	})
	assert.InDelta(t, 0.6, e.Score(critical), 1e-9)
}

func TestConstraintsReflectActivePolicies(t *testing.T) {
	e := configval.NewEngine(configval.EngineConfig{})

	constraints := e.Constraints(configval.Input{
		Schema:  &configval.Schema{},
		Options: configval.Options{Strict: true, CheckSecurity: true},
	})
	assert.Contains(t, constraints, "schema_validation")
	assert.Contains(t, constraints, "strict_mode")
	assert.Contains(t, constraints, "security_scanning")
	assert.NotContains(t, constraints, "conflict_detection")
}
