// Package kg defines the extracted knowledge-graph model and turns
// free-form completion text into validated nodes and relationships.
package kg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// idKind tags which variant an ID holds.
type idKind uint8

const (
	idNone idKind = iota
	idString
	idInt
)

// ID identifies a node within one extraction. It holds either a string or
// an integer; the zero value is an absent identifier.
type ID struct {
	kind idKind
	str  string
	num  int64
}

// StringID returns a string identifier.
func StringID(s string) ID { return ID{kind: idString, str: s} }

// IntID returns an integer identifier.
func IntID(n int64) ID { return ID{kind: idInt, num: n} }

// IsZero reports whether the identifier is absent.
func (id ID) IsZero() bool { return id.kind == idNone }

// IsString reports whether the identifier holds a string.
func (id ID) IsString() bool { return id.kind == idString }

// IsInt reports whether the identifier holds an integer.
func (id ID) IsInt() bool { return id.kind == idInt }

// Str returns the string value and whether the identifier is a string.
func (id ID) Str() (string, bool) { return id.str, id.kind == idString }

// Int returns the integer value and whether the identifier is an integer.
func (id ID) Int() (int64, bool) { return id.num, id.kind == idInt }

// Value returns the identifier as a plain Go value (string, int64 or nil),
// suitable for query parameters.
func (id ID) Value() any {
	switch id.kind {
	case idString:
		return id.str
	case idInt:
		return id.num
	default:
		return nil
	}
}

func (id ID) String() string {
	switch id.kind {
	case idString:
		return id.str
	case idInt:
		return strconv.FormatInt(id.num, 10)
	default:
		return ""
	}
}

// MarshalJSON encodes a string identifier as a JSON string and an integer
// identifier as a JSON number.
func (id ID) MarshalJSON() ([]byte, error) {
	switch id.kind {
	case idString:
		return json.Marshal(id.str)
	case idInt:
		return []byte(strconv.FormatInt(id.num, 10)), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a JSON string, an integral number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	switch tv := v.(type) {
	case nil:
		*id = ID{}
	case string:
		*id = StringID(tv)
	case json.Number:
		n, err := tv.Int64()
		if err != nil {
			return fmt.Errorf("kg: id %s is not an integer", tv)
		}
		*id = IntID(n)
	default:
		return fmt.Errorf("kg: id must be a string or integer, got %T", v)
	}
	return nil
}

// Node is a typed entity. Identity is the ID alone.
type Node struct {
	ID         ID             `json:"id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// Relationship is a typed directed edge between two nodes of the same
// extraction.
type Relationship struct {
	Subject    Node           `json:"subj"`
	Object     Node           `json:"obj"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// Content is the input of an extraction: anything with a textual form.
type Content interface {
	String() string
}

// Text is plain-string content.
type Text string

func (t Text) String() string { return string(t) }
