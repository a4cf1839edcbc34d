package graph

import (
	"context"
	"fmt"
)

// Stats summarizes the stored graph.
type Stats struct {
	Nodes         map[string]int64 `json:"nodes"`
	Relationships map[string]int64 `json:"relationships"`
}

// NodeCounts returns entity counts grouped by node type.
func (s *Store) NodeCounts(ctx context.Context) (map[string]int64, error) {
	return s.counts(ctx, `MATCH (n:`+EntityLabel+`) RETURN n.type AS type, count(*) AS count`)
}

// RelationshipCounts returns relationship counts grouped by extracted type.
func (s *Store) RelationshipCounts(ctx context.Context) (map[string]int64, error) {
	return s.counts(ctx, `MATCH (:`+EntityLabel+`)-[r]->(:`+EntityLabel+`) RETURN r.type AS type, count(*) AS count`)
}

// Stats returns node and relationship counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	nodes, err := s.NodeCounts(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("graph: node counts: %w", err)
	}
	rels, err := s.RelationshipCounts(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("graph: relationship counts: %w", err)
	}
	return Stats{Nodes: nodes, Relationships: rels}, nil
}

func (s *Store) counts(ctx context.Context, cypher string) (map[string]int64, error) {
	sess := s.sessions(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for result.Next(ctx) {
		rec := result.Record()
		typ, _ := rec.Get("type")
		cnt, _ := rec.Get("count")
		if t, ok := typ.(string); ok {
			if c, ok := cnt.(int64); ok {
				counts[t] = c
			}
		}
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}
