package graph

import (
	"encoding/json"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/WessleyAI/wessley-kg/engine/kg"
)

// propPrefix namespaces extracted properties so they never collide with
// the id, type and source_id bookkeeping properties.
const propPrefix = "prop_"

// flattenProps converts extracted properties into values Neo4j can store:
// nested maps become dotted keys, homogeneous scalar lists are kept and
// anything else is stored as its JSON encoding. Nil values are dropped.
func flattenProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	flattenInto(out, propPrefix, props)
	return out
}

func flattenInto(out map[string]any, prefix string, in map[string]any) {
	for k, v := range in {
		key := prefix + k
		switch x := v.(type) {
		case nil:
		case map[string]any:
			flattenInto(out, key+".", x)
		case []any:
			if isHomogeneous(x) {
				out[key] = x
			} else if b, err := json.Marshal(x); err == nil {
				out[key] = string(b)
			}
		case string, bool, int64, float64, int:
			out[key] = x
		default:
			if b, err := json.Marshal(x); err == nil {
				out[key] = string(b)
			}
		}
	}
}

func isHomogeneous(xs []any) bool {
	kind := ""
	for _, x := range xs {
		var k string
		switch x.(type) {
		case string:
			k = "string"
		case bool:
			k = "bool"
		case int64, int, float64:
			k = "number"
		default:
			return false
		}
		if kind != "" && k != kind {
			return false
		}
		kind = k
	}
	return true
}

// unflattenProps reverses flattenProps for keys carrying propPrefix.
// Lists and JSON strings come back as stored.
func unflattenProps(stored map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range stored {
		rest, ok := strings.CutPrefix(k, propPrefix)
		if !ok {
			continue
		}
		parts := strings.Split(rest, ".")
		m := out
		for _, p := range parts[:len(parts)-1] {
			next, ok := m[p].(map[string]any)
			if !ok {
				next = map[string]any{}
				m[p] = next
			}
			m = next
		}
		m[parts[len(parts)-1]] = v
	}
	return out
}

// nodeFromProps builds a kg.Node from stored node properties.
func nodeFromProps(props map[string]any) kg.Node {
	n := kg.Node{Properties: unflattenProps(props)}
	switch id := props["id"].(type) {
	case string:
		n.ID = kg.StringID(id)
	case int64:
		n.ID = kg.IntID(id)
	}
	n.Type, _ = props["type"].(string)
	return n
}

func nodeFromRecord(rec *neo4j.Record) (kg.Node, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return kg.Node{}, err
	}
	return nodeFromProps(node.Props), nil
}

func nodeToMap(n kg.Node) map[string]any {
	m := flattenProps(n.Properties)
	m["id"] = n.ID.Value()
	m["type"] = n.Type
	return m
}

// sanitizeLabel keeps letters, digits and underscores. Labels that would
// start with a digit get a "T_" prefix; empty labels become "Unknown".
func sanitizeLabel(t string) string {
	safe := make([]byte, 0, len(t)+2)
	for i := range t {
		c := t[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			safe = append(safe, c)
		}
	}
	if len(safe) == 0 {
		return "Unknown"
	}
	if safe[0] >= '0' && safe[0] <= '9' {
		return "T_" + string(safe)
	}
	return string(safe)
}

// sanitizeRelType maps a relationship type to an upper snake case Cypher
// identifier: "WorksAt" and "works-at" both become "WORKS_AT".
func sanitizeRelType(t string) string {
	safe := make([]byte, 0, len(t)+4)
	sep := func() {
		if len(safe) > 0 && safe[len(safe)-1] != '_' {
			safe = append(safe, '_')
		}
	}
	for i := range t {
		c := t[i]
		switch {
		case c >= 'A' && c <= 'Z':
			if i > 0 && (isLower(t[i-1]) || isDigit(t[i-1])) {
				sep()
			}
			safe = append(safe, c)
		case isLower(c):
			safe = append(safe, c-32)
		case isDigit(c):
			safe = append(safe, c)
		default:
			sep()
		}
	}
	for len(safe) > 0 && safe[len(safe)-1] == '_' {
		safe = safe[:len(safe)-1]
	}
	if len(safe) == 0 {
		return "RELATED_TO"
	}
	if isDigit(safe[0]) {
		return "R_" + string(safe)
	}
	return string(safe)
}

func isLower(c byte) bool { return c >= 'a' && c <= 'z' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
