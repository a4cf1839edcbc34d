package kg

import (
	"log/slog"
)

// Tally counts candidates discarded while parsing, by reason.
type Tally struct {
	DecodeErrors int `json:"decode_errors"`
	Invalid      int `json:"invalid"`
	Duplicates   int `json:"duplicates"`
	Dangling     int `json:"dangling"`
}

// Total returns the number of discarded candidates.
func (t Tally) Total() int { return t.DecodeErrors + t.Invalid + t.Duplicates + t.Dangling }

// Report is the outcome of one parse.
type Report struct {
	Nodes         []Node
	Relationships []Relationship
	Tally         Tally
}

// Parser converts completion text into validated nodes and relationships.
// A Parser holds no per-call state and is safe for concurrent use.
type Parser struct {
	extractor CandidateExtractor
	logger    *slog.Logger
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithExtractor replaces the candidate matching strategy.
func WithExtractor(e CandidateExtractor) ParserOption {
	return func(p *Parser) {
		if e != nil {
			p.extractor = e
		}
	}
}

// WithLogger sets the logger used for discarded candidates. Without it
// the parser logs to slog.Default() as of each call.
func WithLogger(l *slog.Logger) ParserOption {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewParser returns a Parser using RegexExtractor unless overridden.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{extractor: RegexExtractor{}}
	for _, o := range opts {
		o(p)
	}
	return p
}

var defaultParser = NewParser()

func (p *Parser) log() *slog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return slog.Default()
}

// Parse parses text with the default parser.
func Parse(text string) ([]Node, []Relationship) {
	r := defaultParser.ParseReport(text)
	return r.Nodes, r.Relationships
}

// ParseReport parses text with the default parser and reports discards.
func ParseReport(text string) Report { return defaultParser.ParseReport(text) }

// Parse returns the accepted nodes in first-seen order and the accepted
// relationships in match order.
func (p *Parser) Parse(text string) ([]Node, []Relationship) {
	r := p.ParseReport(text)
	return r.Nodes, r.Relationships
}

// ParseReport scans text for node then relationship candidates. Nodes are
// keyed by ID with the first valid occurrence winning; relationships whose
// endpoints are not registered nodes are discarded. Irregular candidates
// are counted, never returned as errors.
func (p *Parser) ParseReport(text string) Report {
	rep := Report{Nodes: []Node{}, Relationships: []Relationship{}}
	if text == "" {
		return rep
	}

	matches := p.extractor.ExtractCandidates(text)
	registry := make(map[ID]int)

	for _, m := range matches {
		if m.Kind != NodeMatch {
			continue
		}
		n, err := decodeNode(m)
		if err != nil {
			rep.Tally.DecodeErrors++
			p.log().Debug("kg: skipping node candidate", "offset", m.Offset, "error", err)
			continue
		}
		if _, seen := registry[n.ID]; seen {
			rep.Tally.Duplicates++
			continue
		}
		if !ValidateNode(n) {
			rep.Tally.Invalid++
			continue
		}
		registry[n.ID] = len(rep.Nodes)
		rep.Nodes = append(rep.Nodes, n)
	}

	for _, m := range matches {
		if m.Kind != RelationshipMatch {
			continue
		}
		c, err := decodeRelationship(m)
		if err != nil {
			rep.Tally.DecodeErrors++
			p.log().Debug("kg: skipping relationship candidate", "offset", m.Offset, "error", err)
			continue
		}
		si, okS := registry[c.subj]
		oi, okO := registry[c.obj]
		if !okS || !okO {
			rep.Tally.Dangling++
			continue
		}
		rel := Relationship{
			Subject:    rep.Nodes[si],
			Object:     rep.Nodes[oi],
			Type:       c.typ,
			Properties: c.props,
		}
		if !ValidateRelationship(rel) {
			rep.Tally.Invalid++
			continue
		}
		rep.Relationships = append(rep.Relationships, rel)
	}

	if rep.Tally.Total() > 0 {
		p.log().Debug("kg: parse discarded candidates",
			"decode_errors", rep.Tally.DecodeErrors,
			"invalid", rep.Tally.Invalid,
			"duplicates", rep.Tally.Duplicates,
			"dangling", rep.Tally.Dangling)
	}
	return rep
}

// ParseGraphElement parses text and assembles the result with source.
func (p *Parser) ParseGraphElement(text string, source Content) *GraphElement {
	nodes, rels := p.Parse(text)
	return NewGraphElement(nodes, rels, source)
}

func decodeNode(m Match) (Node, error) {
	id, err := decodeID(m.Fields[FieldID])
	if err != nil {
		return Node{}, err
	}
	typ, err := decodeString(m.Fields[FieldType])
	if err != nil {
		return Node{}, err
	}
	props, err := DecodeProperties(m.Fields[FieldProperties])
	if err != nil {
		return Node{}, err
	}
	return Node{ID: id, Type: typ, Properties: props}, nil
}

type relCandidate struct {
	subj, obj ID
	typ       string
	props     map[string]any
}

func decodeRelationship(m Match) (relCandidate, error) {
	var c relCandidate
	var err error
	if c.subj, err = decodeID(m.Fields[FieldSubjID]); err != nil {
		return c, err
	}
	if c.obj, err = decodeID(m.Fields[FieldObjID]); err != nil {
		return c, err
	}
	if c.typ, err = decodeString(m.Fields[FieldType]); err != nil {
		return c, err
	}
	if c.props, err = DecodeProperties(m.Fields[FieldProperties]); err != nil {
		return c, err
	}
	return c, nil
}

// decodeID decodes a quoted or bare integer identifier token.
func decodeID(tok string) (ID, error) {
	v, err := DecodeLiteral(tok)
	if err != nil {
		return ID{}, err
	}
	switch tv := v.(type) {
	case string:
		return StringID(tv), nil
	case int64:
		return IntID(tv), nil
	default:
		return ID{}, &PropertiesDecodeError{Fragment: tok, Reason: "identifier must be a string or integer"}
	}
}

func decodeString(tok string) (string, error) {
	v, err := DecodeLiteral(tok)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", &PropertiesDecodeError{Fragment: tok, Reason: "type must be a string"}
	}
	return s, nil
}
