package kg

import (
	"bytes"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"
)

const johnXYZ = "Node(id='John', type='Person', properties={})\n" +
	"Node(id='XYZ', type='Organization', properties={})\n" +
	"Relationship(subj=Node(id='John', type='Person'), obj=Node(id='XYZ', type='Organization'), type='WorksAt', properties={})"

func TestParseJohnWorksAtXYZ(t *testing.T) {
	nodes, rels := Parse(johnXYZ)
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if nodes[0].ID != StringID("John") || nodes[0].Type != "Person" {
		t.Errorf("node 0 = %+v", nodes[0])
	}
	if nodes[1].ID != StringID("XYZ") || nodes[1].Type != "Organization" {
		t.Errorf("node 1 = %+v", nodes[1])
	}
	if len(rels) != 1 {
		t.Fatalf("expected 1 relationship, got %d", len(rels))
	}
	r := rels[0]
	if r.Subject.ID != StringID("John") || r.Object.ID != StringID("XYZ") || r.Type != "WorksAt" {
		t.Errorf("relationship = %+v", r)
	}
}

func TestParseEmpty(t *testing.T) {
	for _, in := range []string{"", "   \n\t", "no graph here"} {
		nodes, rels := Parse(in)
		if len(nodes) != 0 || len(rels) != 0 {
			t.Errorf("Parse(%q) = %d nodes, %d rels", in, len(nodes), len(rels))
		}
		if nodes == nil || rels == nil {
			t.Errorf("Parse(%q) returned nil slices", in)
		}
	}
}

func TestParseFirstSeenWins(t *testing.T) {
	text := "Node(id='a', type='Person', properties={'age': 30})\n" +
		"Node(id='a', type='Robot', properties={'age': 1})"
	rep := ParseReport(text)
	if len(rep.Nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(rep.Nodes))
	}
	if rep.Nodes[0].Type != "Person" {
		t.Errorf("expected first type Person, got %s", rep.Nodes[0].Type)
	}
	if rep.Nodes[0].Properties["age"] != int64(30) {
		t.Errorf("expected first properties, got %v", rep.Nodes[0].Properties)
	}
	if rep.Tally.Duplicates != 1 {
		t.Errorf("expected 1 duplicate, got %d", rep.Tally.Duplicates)
	}
}

func TestParseInvalidDoesNotBlockLaterValid(t *testing.T) {
	text := "Node(id='a', type='', properties={})\nNode(id='a', type='Thing', properties={})"
	rep := ParseReport(text)
	if len(rep.Nodes) != 1 || rep.Nodes[0].Type != "Thing" {
		t.Fatalf("nodes = %+v", rep.Nodes)
	}
	if rep.Tally.Invalid != 1 {
		t.Errorf("expected 1 invalid, got %d", rep.Tally.Invalid)
	}
}

func TestParseMalformedPropertiesSkipsOnlyThatCandidate(t *testing.T) {
	text := "Node(id='bad', type='Person', properties={'x': os.system('rm')})\n" +
		"Node(id='good', type='Person', properties={'name': 'Ann'})\n" +
		"Node(id='worse', type='Person', properties=__import__)\n" +
		"Relationship(subj=Node(id='good', type='Person'), obj=Node(id='good', type='Person'), type='Knows', properties={oops})"
	rep := ParseReport(text)
	if len(rep.Nodes) != 1 || rep.Nodes[0].ID != StringID("good") {
		t.Fatalf("nodes = %+v", rep.Nodes)
	}
	if rep.Nodes[0].Properties["name"] != "Ann" {
		t.Errorf("properties = %v", rep.Nodes[0].Properties)
	}
	if len(rep.Relationships) != 0 {
		t.Errorf("expected relationship with bad properties to be skipped")
	}
	if rep.Tally.DecodeErrors != 3 {
		t.Errorf("expected 3 decode errors, got %d", rep.Tally.DecodeErrors)
	}
}

func TestParseDanglingRelationship(t *testing.T) {
	text := "Node(id='John', type='Person', properties={})\n" +
		"Relationship(subj=Node(id='John', type='Person'), obj=Node(id='Acme', type='Organization'), type='WorksAt', properties={})"
	rep := ParseReport(text)
	if len(rep.Nodes) != 1 {
		t.Errorf("node count should be unaffected, got %d", len(rep.Nodes))
	}
	if len(rep.Relationships) != 0 {
		t.Errorf("dangling relationship kept: %+v", rep.Relationships)
	}
	if rep.Tally.Dangling != 1 {
		t.Errorf("expected 1 dangling, got %d", rep.Tally.Dangling)
	}
}

func TestParseDuplicateRelationshipsKept(t *testing.T) {
	rel := "Relationship(subj=Node(id='John', type='Person'), obj=Node(id='XYZ', type='Organization'), type='WorksAt', properties={})"
	text := johnXYZ + "\n" + rel
	_, rels := Parse(text)
	if len(rels) != 2 {
		t.Fatalf("expected 2 relationships, got %d", len(rels))
	}
	if !reflect.DeepEqual(rels[0], rels[1]) {
		t.Errorf("identical matches should produce equal records")
	}
}

func TestParseRelationshipUsesRegisteredNodes(t *testing.T) {
	text := "Node(id='a', type='Person', properties={'name': 'Ann'})\n" +
		"Node(id='b', type='City', properties={})\n" +
		"Relationship(subj=Node(id='a', type='Alien'), obj=Node(id='b', type='City'), type='LivesIn', properties={'since': 2019})"
	_, rels := Parse(text)
	if len(rels) != 1 {
		t.Fatalf("expected 1 relationship, got %d", len(rels))
	}
	if rels[0].Subject.Type != "Person" || rels[0].Subject.Properties["name"] != "Ann" {
		t.Errorf("subject should be the registered node, got %+v", rels[0].Subject)
	}
	if rels[0].Properties["since"] != int64(2019) {
		t.Errorf("relationship properties = %v", rels[0].Properties)
	}
}

func TestParseSetProperties(t *testing.T) {
	text := "Node(id='n1', type='Concept', properties={'agent_generated'})"
	nodes, _ := Parse(text)
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
	want := map[string]any{"agent_generated": true}
	if !reflect.DeepEqual(nodes[0].Properties, want) {
		t.Errorf("properties = %v, want %v", nodes[0].Properties, want)
	}
}

func TestParseTolerantTokens(t *testing.T) {
	text := `Node( id = "Ann" , type = "Person",
	  properties = {"nested": {"k": [1, 2.5, None]}, 'ok': True} )
Node(id=7, type='Number', properties=None)
Relationship(
  subj=Node(id="Ann", type="Person"),
  obj=Node(id=7, type='Number'),
  type="Likes",
  properties={'weight': -0.5}
)`
	rep := ParseReport(text)
	if len(rep.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %+v (tally %+v)", rep.Nodes, rep.Tally)
	}
	if rep.Nodes[1].ID != IntID(7) {
		t.Errorf("expected integer id, got %#v", rep.Nodes[1].ID)
	}
	nested, ok := rep.Nodes[0].Properties["nested"].(map[string]any)
	if !ok || !reflect.DeepEqual(nested["k"], []any{int64(1), 2.5, nil}) {
		t.Errorf("nested properties = %v", rep.Nodes[0].Properties)
	}
	if len(rep.Relationships) != 1 || rep.Relationships[0].Properties["weight"] != -0.5 {
		t.Errorf("relationships = %+v", rep.Relationships)
	}
}

func TestParseIntAndStringIDsAreDistinct(t *testing.T) {
	text := "Node(id=1, type='A', properties={})\nNode(id='1', type='B', properties={})"
	nodes, _ := Parse(text)
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
}

func TestParseQuotesDoNotSpan(t *testing.T) {
	text := "Node(id='it\\'s', type='Phrase', properties={'a': ')'})\n" +
		"Node(id='b', type='Phrase', properties={})"
	nodes, _ := Parse(text)
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %+v", nodes)
	}
	if nodes[0].ID != StringID("it's") {
		t.Errorf("id = %q", nodes[0].ID)
	}
	if nodes[0].Properties["a"] != ")" {
		t.Errorf("properties = %v", nodes[0].Properties)
	}
}

func TestParseUnterminatedCandidate(t *testing.T) {
	text := "Node(id='a', type='T', properties={'x': 1}\nNode(id='b', type='T', properties={})"
	nodes, _ := Parse(text)
	if len(nodes) != 1 || nodes[0].ID != StringID("b") {
		t.Fatalf("nodes = %+v", nodes)
	}
}

func TestParseManyUnterminatedCandidates(t *testing.T) {
	bad := strings.Repeat("Node(id='a', type='b', properties={", 20000)
	text := bad + "\nNode(id='ok', type='T', properties={})" + bad

	start := time.Now()
	rep := ParseReport(text)
	if d := time.Since(start); d > 3*time.Second {
		t.Errorf("parsing %d bytes took %v", len(text), d)
	}
	if len(rep.Nodes) != 1 || rep.Nodes[0].ID != StringID("ok") {
		t.Fatalf("nodes = %+v", rep.Nodes)
	}
}

func TestParseEmptyStringID(t *testing.T) {
	text := "Node(id='', type='Person', properties={})\n" +
		"Node(id='B', type='Person', properties={})\n" +
		"Relationship(subj=Node(id='', type='Person'), obj=Node(id='B', type='Person'), type='Knows', properties={})"
	nodes, rels := Parse(text)
	if len(nodes) != 2 || len(rels) != 1 {
		t.Fatalf("got %d nodes, %d rels", len(nodes), len(rels))
	}
	if nodes[0].ID != StringID("") || rels[0].Subject.ID != StringID("") {
		t.Errorf("nodes = %+v, rels = %+v", nodes, rels)
	}
}

func TestParseInvariants(t *testing.T) {
	inputs := []string{
		johnXYZ,
		johnXYZ + "\n" + johnXYZ,
		"Node(id='a', type='T', properties={})\nRelationship(subj=Node(id='a', type='T'), obj=Node(id='z', type='T'), type='R', properties={})",
		strings.Repeat("Node(id='x', type='T', properties={})\n", 5),
	}
	for _, in := range inputs {
		nodes, rels := Parse(in)
		seen := map[ID]bool{}
		for _, n := range nodes {
			if seen[n.ID] {
				t.Errorf("duplicate node id %v", n.ID)
			}
			seen[n.ID] = true
			if !ValidateNode(n) {
				t.Errorf("invalid node returned: %+v", n)
			}
		}
		for _, r := range rels {
			if !seen[r.Subject.ID] || !seen[r.Object.ID] {
				t.Errorf("relationship endpoint missing: %+v", r)
			}
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	text := johnXYZ + "\n" +
		"Node(id=42, type='Answer', properties={'pi': 3.14, 'whole': 2.0, 'tags': ['a', 'b'], 'q': 'say \"hi\"\\n'})\n" +
		"Relationship(subj=Node(id='XYZ', type='Organization'), obj=Node(id=42, type='Answer'), type='Knows', properties={'flag'})"
	nodes, rels := Parse(text)
	nodes2, rels2 := Parse(Render(nodes, rels))
	if !reflect.DeepEqual(nodes, nodes2) {
		t.Errorf("nodes differ after round trip:\n%+v\n%+v", nodes, nodes2)
	}
	if !reflect.DeepEqual(rels, rels2) {
		t.Errorf("relationships differ after round trip:\n%+v\n%+v", rels, rels2)
	}
}

func TestParserCustomExtractor(t *testing.T) {
	ext := CandidateExtractorFunc(func(string) []Match {
		return []Match{
			{Kind: NodeMatch, Fields: map[string]string{FieldID: "'a'", FieldType: "'T'", FieldProperties: "{}"}},
			{Kind: NodeMatch, Fields: map[string]string{FieldID: "'b'", FieldType: "'T'", FieldProperties: "{}"}},
			{Kind: RelationshipMatch, Fields: map[string]string{
				FieldSubjID: "'a'", FieldSubjType: "'T'", FieldObjID: "'b'", FieldObjType: "'T'",
				FieldType: "'R'", FieldProperties: "{}",
			}},
		}
	})
	p := NewParser(WithExtractor(ext))
	el := p.ParseGraphElement("ignored", Text("src"))
	if el.NodeCount() != 2 || el.RelationshipCount() != 1 {
		t.Fatalf("got %d nodes, %d rels", el.NodeCount(), el.RelationshipCount())
	}
	if el.Source().String() != "src" {
		t.Errorf("source = %q", el.Source())
	}
}

func TestRegexExtractorOffsets(t *testing.T) {
	ms := RegexExtractor{}.ExtractCandidates("xx" + johnXYZ)
	if len(ms) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(ms))
	}
	if ms[0].Kind != NodeMatch || ms[0].Offset != 2 {
		t.Errorf("first match = %+v", ms[0])
	}
	if ms[2].Kind != RelationshipMatch || ms[2].Fields[FieldType] != "'WorksAt'" {
		t.Errorf("relationship match = %+v", ms[2])
	}
	if MatchKind(9).String() != "unknown" || RelationshipMatch.String() != "relationship" {
		t.Error("MatchKind.String mismatch")
	}
}

func TestParseLogsToCurrentDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	ParseReport("Node(id='a', type='T', properties={oops})")
	if !strings.Contains(buf.String(), "kg: skipping node candidate") {
		t.Errorf("default parser did not log to the installed default: %q", buf.String())
	}
}
