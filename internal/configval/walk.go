package configval

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
)

// entry is one visited node of the configuration tree.
type entry struct {
	path  string // root-relative dotted locator, e.g. "server.port"
	key   string // final path segment, lowercased
	value interface{}
	leaf  bool
}

// walkResult is the flattened view the checks operate on.
type walkResult struct {
	entries       []entry
	byPath        map[string]entry
	truncated     bool
	truncatedPath string
}

// walkConfig flattens the tree depth-first. Descent stops at maxDepth so an
// adversarially nested or self-referential structure cannot recurse without
// bound; the first skipped subtree is reported.
func walkConfig(config map[string]interface{}, maxDepth int) *walkResult {
	w := &walkResult{byPath: map[string]entry{}}
	walkNode(w, "", config, 0, maxDepth)
	sort.Slice(w.entries, func(i, j int) bool { return w.entries[i].path < w.entries[j].path })
	return w
}

func walkNode(w *walkResult, prefix string, node interface{}, depth, maxDepth int) {
	m, ok := node.(map[string]interface{})
	if !ok {
		return
	}
	if depth >= maxDepth {
		if !w.truncated {
			w.truncated = true
			w.truncatedPath = prefix
		}
		return
	}
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		_, isMap := v.(map[string]interface{})
		e := entry{
			path:  path,
			key:   strings.ToLower(k),
			value: v,
			leaf:  !isMap,
		}
		w.entries = append(w.entries, e)
		w.byPath[path] = e
		if isMap {
			walkNode(w, path, v, depth+1, maxDepth)
		}
	}
}

// lookup resolves a dotted path, tolerating an optional "$." prefix.
func (w *walkResult) lookup(path string) (entry, bool) {
	path = strings.TrimPrefix(path, "$.")
	e, ok := w.byPath[path]
	return e, ok
}

func newFinding(category contracts.FindingCategory, severity contracts.Severity, path, message string) contracts.Finding {
	return contracts.Finding{
		FindingID: uuid.New().String(),
		Category:  category,
		Severity:  severity,
		Path:      path,
		Message:   message,
	}
}

// asNumber extracts a numeric value from JSON-decoded data.
func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// truthy reports whether a config value means "enabled".
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true") || strings.EqualFold(t, "yes") || t == "1"
	case float64:
		return t != 0
	default:
		return false
	}
}

func countBySeverity(findings []contracts.Finding) map[string]int {
	counts := map[string]int{}
	for _, f := range findings {
		counts[string(f.Severity)]++
	}
	return counts
}
