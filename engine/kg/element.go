package kg

import (
	"encoding/json"
	"maps"
)

// GraphElement bundles the accepted nodes and relationships of one
// extraction with the content they were extracted from. It is never
// modified after NewGraphElement returns.
type GraphElement struct {
	nodes         []Node
	relationships []Relationship
	source        Content
}

// NewGraphElement assembles a GraphElement. Nodes, relationships and
// their property values are deep-copied.
func NewGraphElement(nodes []Node, rels []Relationship, source Content) *GraphElement {
	return &GraphElement{
		nodes:         cloneNodes(nodes),
		relationships: cloneRelationships(rels),
		source:        source,
	}
}

// Nodes returns a deep copy of the nodes in first-seen order.
func (g *GraphElement) Nodes() []Node { return cloneNodes(g.nodes) }

// Relationships returns a deep copy of the relationships in match order.
func (g *GraphElement) Relationships() []Relationship { return cloneRelationships(g.relationships) }

// Source returns the content the element was extracted from.
func (g *GraphElement) Source() Content { return g.source }

// NodeCount returns the number of nodes.
func (g *GraphElement) NodeCount() int { return len(g.nodes) }

// RelationshipCount returns the number of relationships.
func (g *GraphElement) RelationshipCount() int { return len(g.relationships) }

// Node looks up a node by identifier.
func (g *GraphElement) Node(id ID) (Node, bool) {
	for _, n := range g.nodes {
		if n.ID == id {
			return cloneNode(n), true
		}
	}
	return Node{}, false
}

type graphElementJSON struct {
	Nodes         []Node         `json:"nodes"`
	Relationships []Relationship `json:"relationships"`
	Source        string         `json:"source"`
}

// MarshalJSON encodes the element with the source reduced to its text.
func (g *GraphElement) MarshalJSON() ([]byte, error) {
	out := graphElementJSON{
		Nodes:         g.nodes,
		Relationships: g.relationships,
	}
	if out.Nodes == nil {
		out.Nodes = []Node{}
	}
	if out.Relationships == nil {
		out.Relationships = []Relationship{}
	}
	if g.source != nil {
		out.Source = g.source.String()
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an element produced by MarshalJSON. The source
// becomes Text.
func (g *GraphElement) UnmarshalJSON(data []byte) error {
	var in graphElementJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*g = GraphElement{
		nodes:         in.Nodes,
		relationships: in.Relationships,
		source:        Text(in.Source),
	}
	return nil
}

func cloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = cloneNode(n)
	}
	return out
}

func cloneRelationships(rels []Relationship) []Relationship {
	if rels == nil {
		return nil
	}
	out := make([]Relationship, len(rels))
	for i, r := range rels {
		r.Subject = cloneNode(r.Subject)
		r.Object = cloneNode(r.Object)
		r.Properties = cloneProps(r.Properties)
		out[i] = r
	}
	return out
}

func cloneNode(n Node) Node {
	n.Properties = cloneProps(n.Properties)
	return n
}

func cloneProps(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := maps.Clone(m)
	for k, v := range out {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return cloneProps(tv)
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
