package kg

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Render writes nodes and relationships in the grammar Parse reads, one
// element per line, nodes first. Property keys are sorted so output is
// stable.
func Render(nodes []Node, rels []Relationship) string {
	var b strings.Builder
	for _, n := range nodes {
		writeNode(&b, n)
		b.WriteByte('\n')
	}
	for _, r := range rels {
		writeRelationship(&b, r)
		b.WriteByte('\n')
	}
	return b.String()
}

// RenderElement renders the nodes and relationships of e.
func RenderElement(e *GraphElement) string {
	if e == nil {
		return ""
	}
	return Render(e.nodes, e.relationships)
}

func writeNode(b *strings.Builder, n Node) {
	b.WriteString("Node(id=")
	writeID(b, n.ID)
	b.WriteString(", type=")
	writeString(b, n.Type)
	b.WriteString(", properties=")
	writeMap(b, n.Properties)
	b.WriteByte(')')
}

func writeRelationship(b *strings.Builder, r Relationship) {
	b.WriteString("Relationship(subj=")
	writeRef(b, r.Subject)
	b.WriteString(", obj=")
	writeRef(b, r.Object)
	b.WriteString(", type=")
	writeString(b, r.Type)
	b.WriteString(", properties=")
	writeMap(b, r.Properties)
	b.WriteByte(')')
}

func writeRef(b *strings.Builder, n Node) {
	b.WriteString("Node(id=")
	writeID(b, n.ID)
	b.WriteString(", type=")
	writeString(b, n.Type)
	b.WriteByte(')')
}

func writeID(b *strings.Builder, id ID) {
	if n, ok := id.Int(); ok {
		b.WriteString(strconv.FormatInt(n, 10))
		return
	}
	writeString(b, id.String())
}

func writeString(b *strings.Builder, s string) {
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', '\'':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if c < 0x20 || c == 0x7f {
				fmt.Fprintf(b, `\x%02x`, c)
				continue
			}
			b.WriteByte(c)
		}
	}
	b.WriteByte('\'')
}

func writeMap(b *strings.Builder, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		writeString(b, k)
		b.WriteString(": ")
		writeValue(b, m[k])
	}
	b.WriteByte('}')
}

func writeValue(b *strings.Builder, v any) {
	switch tv := v.(type) {
	case nil:
		b.WriteString("None")
	case string:
		writeString(b, tv)
	case bool:
		if tv {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case int:
		b.WriteString(strconv.Itoa(tv))
	case int32:
		b.WriteString(strconv.FormatInt(int64(tv), 10))
	case int64:
		b.WriteString(strconv.FormatInt(tv, 10))
	case float32:
		writeFloat(b, float64(tv))
	case float64:
		writeFloat(b, tv)
	case []any:
		b.WriteByte('[')
		for i, e := range tv {
			if i > 0 {
				b.WriteString(", ")
			}
			writeValue(b, e)
		}
		b.WriteByte(']')
	case map[string]any:
		writeMap(b, tv)
	default:
		writeString(b, fmt.Sprint(tv))
	}
}

// writeFloat keeps a decimal point so the value reads back as a float.
func writeFloat(b *strings.Builder, f float64) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		b.WriteString("None")
		return
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	b.WriteString(s)
}
