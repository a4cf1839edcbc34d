package kg

import (
	"regexp"
	"strings"
)

// MatchKind classifies a raw candidate.
type MatchKind int

const (
	NodeMatch MatchKind = iota
	RelationshipMatch
)

func (k MatchKind) String() string {
	switch k {
	case NodeMatch:
		return "node"
	case RelationshipMatch:
		return "relationship"
	default:
		return "unknown"
	}
}

// Field names carried by a Match. Values are raw tokens exactly as they
// appeared in the text (quoted strings keep their quotes).
const (
	FieldID         = "id"
	FieldType       = "type"
	FieldProperties = "properties"
	FieldSubjID     = "subj_id"
	FieldSubjType   = "subj_type"
	FieldObjID      = "obj_id"
	FieldObjType    = "obj_type"
)

// Match is an untyped candidate recovered from text.
type Match struct {
	Kind   MatchKind
	Fields map[string]string
	Offset int // byte offset of the match in the scanned text
}

// CandidateExtractor finds node and relationship candidates in text.
// Implementations must not fail: unmatched text is ignored.
type CandidateExtractor interface {
	ExtractCandidates(text string) []Match
}

// CandidateExtractorFunc adapts a function to CandidateExtractor.
type CandidateExtractorFunc func(text string) []Match

func (f CandidateExtractorFunc) ExtractCandidates(text string) []Match { return f(text) }

const (
	quotedTok = `'(?:[^'\\]|\\.)*'|"(?:[^"\\]|\\.)*"`
	idTok     = `(` + quotedTok + `|-?\d+)`
	strTok    = `(` + quotedTok + `)`
)

var (
	nodeHead = regexp.MustCompile(
		`Node\(\s*id\s*=\s*` + idTok + `\s*,\s*type\s*=\s*` + strTok + `\s*,\s*properties\s*=\s*`)
	relHead = regexp.MustCompile(
		`Relationship\(\s*subj\s*=\s*Node\(\s*id\s*=\s*` + idTok + `\s*,\s*type\s*=\s*` + strTok + `\s*\)\s*,` +
			`\s*obj\s*=\s*Node\(\s*id\s*=\s*` + idTok + `\s*,\s*type\s*=\s*` + strTok + `\s*\)\s*,` +
			`\s*type\s*=\s*` + strTok + `\s*,\s*properties\s*=\s*`)
)

// RegexExtractor matches the Node(...) and Relationship(...) forms taught
// by the extraction prompt. A pattern locates each head; the properties
// literal that follows is delimited by bracket balancing, so node and
// relationship properties share one grammar.
type RegexExtractor struct{}

// ExtractCandidates returns all node matches followed by all relationship
// matches, each in order of appearance.
func (RegexExtractor) ExtractCandidates(text string) []Match {
	var out []Match
	out = append(out, scan(text, nodeHead, NodeMatch, []string{FieldID, FieldType})...)
	out = append(out, scan(text, relHead, RelationshipMatch,
		[]string{FieldSubjID, FieldSubjType, FieldObjID, FieldObjType, FieldType})...)
	return out
}

// scan finds non-overlapping matches of head followed by a properties
// fragment and a closing parenthesis. A fragment never extends past the
// start of the next head, so unterminated candidates cost time linear in
// the text between heads rather than in the rest of the text.
func scan(text string, head *regexp.Regexp, kind MatchKind, names []string) []Match {
	heads := head.FindAllStringSubmatchIndex(text, -1)
	var out []Match
	for i, loc := range heads {
		start, end := loc[0], loc[1]
		limit := len(text)
		if i+1 < len(heads) {
			limit = heads[i+1][0]
		}
		frag, ok := propertiesFragment(text[:limit], end)
		if !ok {
			continue
		}
		fields := make(map[string]string, len(names)+1)
		for j, name := range names {
			fields[name] = text[loc[2+2*j]:loc[3+2*j]]
		}
		fields[FieldProperties] = frag
		out = append(out, Match{Kind: kind, Fields: fields, Offset: start})
	}
	return out
}

// propertiesFragment returns the fragment starting at from when a closing
// parenthesis follows it. Balanced literals are delimited exactly;
// anything else runs up to the next ')' and is left for the decoder to
// reject.
func propertiesFragment(text string, from int) (frag string, ok bool) {
	rest := text[from:]
	n, balanced := literalExtent(rest)
	if !balanced {
		n = strings.IndexByte(rest, ')')
		if n < 0 {
			return "", false
		}
	}
	i := n
	for i < len(rest) && isSpace(rest[i]) {
		i++
	}
	if i >= len(rest) || rest[i] != ')' {
		return "", false
	}
	return strings.TrimSpace(rest[:n]), true
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
