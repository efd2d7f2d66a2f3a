package canonical_test

import (
	"encoding/json"
	"testing"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/canonical"
)

func TestMarshalSortsObjectKeys(t *testing.T) {
	a := map[string]interface{}{
		"server": map[string]interface{}{"port": 8080, "host": "db.internal"},
		"debug":  false,
	}
	b := map[string]interface{}{
		"debug":  false,
		"server": map[string]interface{}{"host": "db.internal", "port": 8080},
	}

	ca, err := canonical.Marshal(a)
	if err != nil {
		t.Fatalf("canonical.Marshal(a) error: %v", err)
	}
	cb, err := canonical.Marshal(b)
	if err != nil {
		t.Fatalf("canonical.Marshal(b) error: %v", err)
	}

	if string(ca) != string(cb) {
		t.Fatalf("canonical outputs differ:\nA: %s\nB: %s", ca, cb)
	}

	var tmp interface{}
	if err := json.Unmarshal(ca, &tmp); err != nil {
		t.Fatalf("canonical output is not valid JSON: %v", err)
	}
}

func TestMarshalPreservesArrayOrder(t *testing.T) {
	in := map[string]interface{}{
		"list": []interface{}{3, 2, 1},
		"num":  json.Number("123.45"),
		"str":  "hello",
		"bool": true,
		"nil":  nil,
	}

	c, err := canonical.Marshal(in)
	if err != nil {
		t.Fatalf("canonical.Marshal error: %v", err)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(c, &out); err != nil {
		t.Fatalf("unmarshal canonical: %v", err)
	}

	list, ok := out["list"].([]interface{})
	if !ok || len(list) != 3 {
		t.Fatalf("expected 3-element list, got %#v", out["list"])
	}
	if list[0].(float64) != 3 || list[2].(float64) != 1 {
		t.Fatalf("array order not preserved: %#v", list)
	}
}

func TestHashHexStableUnderKeyReordering(t *testing.T) {
	h1, err := canonical.HashHex(map[string]interface{}{"a": 1, "b": "x"})
	if err != nil {
		t.Fatalf("HashHex error: %v", err)
	}
	h2, err := canonical.HashHex(map[string]interface{}{"b": "x", "a": 1})
	if err != nil {
		t.Fatalf("HashHex error: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("hashes differ for semantically identical input: %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64 hex chars for sha256, got %d", len(h1))
	}

	h3, err := canonical.HashHex(map[string]interface{}{"a": 2, "b": "x"})
	if err != nil {
		t.Fatalf("HashHex error: %v", err)
	}
	if h1 == h3 {
		t.Fatalf("different inputs produced the same hash")
	}
}

func TestMarshalTypedStructFallback(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	c, err := canonical.Marshal(payload{Name: "x", Count: 2})
	if err != nil {
		t.Fatalf("canonical.Marshal struct: %v", err)
	}
	if string(c) != `{"count":2,"name":"x"}` {
		t.Fatalf("unexpected canonical form: %s", c)
	}
}
