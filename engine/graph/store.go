// Package graph persists extracted knowledge-graph elements in Neo4j.
// Every stored node carries the Entity label plus a label derived from
// its type; relationship types are stored upper snake case with the
// original type kept in the "type" property.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/WessleyAI/wessley-kg/engine/kg"
	"github.com/WessleyAI/wessley-kg/pkg/repo"
)

// EntityLabel is carried by every node the store writes.
const EntityLabel = "Entity"

// MaxDepth bounds Neighbors traversals.
const MaxDepth = 5

// ErrNilElement is returned by SaveElement for a nil element.
var ErrNilElement = errors.New("graph: nil element")

// ErrNoPath is returned by Path when the nodes are not connected.
var ErrNoPath = errors.New("graph: no path")

// sourceNamespace seeds the name-based UUIDs of sources and relationships.
var sourceNamespace = uuid.MustParse("8f6a5c1e-3b1d-4f0e-9a57-2d6c0b7e4a19")

// SaveSummary describes one SaveElement call.
type SaveSummary struct {
	SourceID      string `json:"source_id"`
	Nodes         int    `json:"nodes"`
	Relationships int    `json:"relationships"`
}

// Store reads and writes graph elements.
type Store struct {
	sessions repo.SessionFactory
	nodes    *repo.Neo4jRepo[kg.Node, any]
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Store over sessions.
func New(sessions repo.SessionFactory, opts ...Option) *Store {
	s := &Store{
		sessions: sessions,
		nodes:    repo.NewNeo4jRepo[kg.Node, any](sessions, EntityLabel, nodeToMap, nodeFromRecord),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewFromDriver creates a Store opening sessions on driver.
func NewFromDriver(driver neo4j.DriverWithContext, database string, opts ...Option) *Store {
	return New(repo.DriverSessions(driver, database), opts...)
}

// SourceID returns the stable identifier recorded for content.
func SourceID(content kg.Content) string {
	text := ""
	if content != nil {
		text = content.String()
	}
	return uuid.NewSHA1(sourceNamespace, []byte(text)).String()
}

// RelationshipID returns the identifier of the i-th relationship extracted
// from the source identified by sourceID.
func RelationshipID(sourceID string, i int) string {
	return uuid.NewSHA1(uuid.MustParse(sourceID), []byte(strconv.Itoa(i))).String()
}

const mergeNode = `MERGE (n:` + EntityLabel + ` {id: $id})
SET n.type = $type, n.source_id = $source, n += $props
SET n:%s`

const mergeRel = `MATCH (a:` + EntityLabel + ` {id: $subj}), (b:` + EntityLabel + ` {id: $obj})
MERGE (a)-[r:%s {id: $id}]->(b)
SET r.type = $type, r.source_id = $source, r += $props`

// SaveElement writes every node and relationship of el in one write
// transaction. Nodes are merged on id, so saving overlapping elements
// updates shared nodes. Relationship ids derive from the source text and
// position, so saving the same element twice is idempotent.
func (s *Store) SaveElement(ctx context.Context, el *kg.GraphElement) (SaveSummary, error) {
	if el == nil {
		return SaveSummary{}, ErrNilElement
	}
	sum := SaveSummary{SourceID: SourceID(el.Source())}
	nodes, rels := el.Nodes(), el.Relationships()

	sess := s.sessions(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx repo.Runner) (any, error) {
		for _, n := range nodes {
			cypher := fmt.Sprintf(mergeNode, "`"+sanitizeLabel(n.Type)+"`")
			if _, err := tx.Run(ctx, cypher, map[string]any{
				"id":     n.ID.Value(),
				"type":   n.Type,
				"source": sum.SourceID,
				"props":  flattenProps(n.Properties),
			}); err != nil {
				return nil, fmt.Errorf("node %s: %w", n.ID, err)
			}
		}
		for i, r := range rels {
			cypher := fmt.Sprintf(mergeRel, sanitizeRelType(r.Type))
			if _, err := tx.Run(ctx, cypher, map[string]any{
				"subj":   r.Subject.ID.Value(),
				"obj":    r.Object.ID.Value(),
				"id":     RelationshipID(sum.SourceID, i),
				"type":   r.Type,
				"source": sum.SourceID,
				"props":  flattenProps(r.Properties),
			}); err != nil {
				return nil, fmt.Errorf("relationship %d: %w", i, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return SaveSummary{}, fmt.Errorf("graph: save element: %w", err)
	}
	sum.Nodes, sum.Relationships = len(nodes), len(rels)
	s.logger.Debug("graph: element saved",
		"source_id", sum.SourceID,
		"node_count", sum.Nodes,
		"relationship_count", sum.Relationships,
	)
	return sum, nil
}

// GetNode returns the stored node with id. The error wraps
// repo.ErrNotFound when there is none.
func (s *Store) GetNode(ctx context.Context, id kg.ID) (kg.Node, error) {
	return s.nodes.Get(ctx, id.Value())
}

// ListNodes pages through stored nodes ordered by id. A non-empty typ
// restricts the listing to nodes of that type.
func (s *Store) ListNodes(ctx context.Context, typ string, offset, limit int) ([]kg.Node, error) {
	opts := repo.ListOpts{Offset: offset, Limit: limit}
	if typ != "" {
		opts.Filter = map[string]any{"type": typ}
	}
	return s.nodes.List(ctx, opts)
}

// DeleteNode removes a node and its relationships.
func (s *Store) DeleteNode(ctx context.Context, id kg.ID) error {
	return s.nodes.Delete(ctx, id.Value())
}

// CountNodes returns the number of stored entities.
func (s *Store) CountNodes(ctx context.Context) (int64, error) {
	return s.nodes.Count(ctx)
}

// Neighbors returns nodes within depth hops of id in either direction.
// Depth is clamped to [1, MaxDepth].
func (s *Store) Neighbors(ctx context.Context, id kg.ID, depth int) ([]kg.Node, error) {
	depth = min(max(depth, 1), MaxDepth)
	sess := s.sessions(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(
		`MATCH (start:%s {id: $id})-[*1..%d]-(n:%s)
		 WHERE n <> start
		 RETURN DISTINCT n ORDER BY n.id`, EntityLabel, depth, EntityLabel)
	result, err := sess.Run(ctx, cypher, map[string]any{"id": id.Value()})
	if err != nil {
		return nil, err
	}
	var out []kg.Node
	for result.Next(ctx) {
		n, err := nodeFromRecord(result.Record())
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Path returns the nodes on a shortest path between from and to.
func (s *Store) Path(ctx context.Context, from, to kg.ID) ([]kg.Node, error) {
	sess := s.sessions(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH p = shortestPath((a:` + EntityLabel + ` {id: $from})-[*..15]-(b:` + EntityLabel + ` {id: $to}))
				RETURN nodes(p) AS nodes`
	result, err := sess.Run(ctx, cypher, map[string]any{"from": from.Value(), "to": to.Value()})
	if err != nil {
		return nil, err
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w from %s to %s", ErrNoPath, from, to)
	}
	raw, _, err := neo4j.GetRecordValue[[]any](result.Record(), "nodes")
	if err != nil {
		return nil, err
	}
	out := make([]kg.Node, 0, len(raw))
	for _, v := range raw {
		if node, ok := v.(dbtype.Node); ok {
			out = append(out, nodeFromProps(node.Props))
		}
	}
	return out, nil
}
