package repo

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

var propName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Neo4jRepo is a generic Neo4j-backed repository.
type Neo4jRepo[T any, ID comparable] struct {
	sessions   SessionFactory
	label      string
	idKey      string
	toMap      func(T) map[string]any
	fromRecord func(*neo4j.Record) (T, error)
}

// Neo4jOption configures a Neo4jRepo.
type Neo4jOption[T any, ID comparable] func(*Neo4jRepo[T, ID])

// WithIDKey sets the property name used as the ID (default "id").
func WithIDKey[T any, ID comparable](key string) Neo4jOption[T, ID] {
	return func(r *Neo4jRepo[T, ID]) { r.idKey = key }
}

// NewNeo4jRepo creates a repository for nodes labelled label. Records
// passed to fromRecord hold the node under key "n".
func NewNeo4jRepo[T any, ID comparable](
	sessions SessionFactory,
	label string,
	toMap func(T) map[string]any,
	fromRecord func(*neo4j.Record) (T, error),
	opts ...Neo4jOption[T, ID],
) *Neo4jRepo[T, ID] {
	r := &Neo4jRepo[T, ID]{
		sessions:   sessions,
		label:      label,
		idKey:      "id",
		toMap:      toMap,
		fromRecord: fromRecord,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Compile-time interface check.
var _ Repository[any, string] = (*Neo4jRepo[any, string])(nil)

func (r *Neo4jRepo[T, ID]) Get(ctx context.Context, id ID) (T, error) {
	var zero T
	sess := r.sessions(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) RETURN n", r.label, r.idKey)
	result, err := sess.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return zero, err
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("%s %v: %w", r.label, id, ErrNotFound)
	}
	return r.fromRecord(result.Record())
}

func (r *Neo4jRepo[T, ID]) List(ctx context.Context, opts ListOpts) ([]T, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	params := map[string]any{"offset": max(opts.Offset, 0), "limit": limit}

	var where []string
	keys := make([]string, 0, len(opts.Filter))
	for k := range opts.Filter {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for i, k := range keys {
		if !propName.MatchString(k) {
			return nil, fmt.Errorf("repo: list %s: invalid filter key %q", r.label, k)
		}
		p := fmt.Sprintf("f%d", i)
		where = append(where, fmt.Sprintf("n.%s = $%s", k, p))
		params[p] = opts.Filter[k]
	}

	cypher := fmt.Sprintf("MATCH (n:%s)", r.label)
	if len(where) > 0 {
		cypher += " WHERE " + strings.Join(where, " AND ")
	}
	cypher += fmt.Sprintf(" RETURN n ORDER BY n.%s SKIP $offset LIMIT $limit", r.idKey)

	sess := r.sessions(ctx)
	defer sess.Close(ctx)
	result, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	var items []T
	for result.Next(ctx) {
		item, err := r.fromRecord(result.Record())
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Neo4jRepo[T, ID]) Create(ctx context.Context, entity T) (T, error) {
	var zero T
	sess := r.sessions(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("CREATE (n:%s $props) RETURN n", r.label)
	result, err := sess.Run(ctx, cypher, map[string]any{"props": r.toMap(entity)})
	if err != nil {
		return zero, err
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("repo: failed to create %s", r.label)
	}
	return r.fromRecord(result.Record())
}

func (r *Neo4jRepo[T, ID]) Update(ctx context.Context, entity T) (T, error) {
	var zero T
	sess := r.sessions(ctx)
	defer sess.Close(ctx)

	props := r.toMap(entity)
	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) SET n += $props RETURN n", r.label, r.idKey)
	result, err := sess.Run(ctx, cypher, map[string]any{"id": props[r.idKey], "props": props})
	if err != nil {
		return zero, err
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("%s %v: %w", r.label, props[r.idKey], ErrNotFound)
	}
	return r.fromRecord(result.Record())
}

// Delete removes the node and its relationships.
func (r *Neo4jRepo[T, ID]) Delete(ctx context.Context, id ID) error {
	sess := r.sessions(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) DETACH DELETE n RETURN count(n) AS deleted", r.label, r.idKey)
	result, err := sess.Run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return err
	}
	if result.Next(ctx) {
		if n, ok := result.Record().Get("deleted"); ok && n == int64(0) {
			return fmt.Errorf("%s %v: %w", r.label, id, ErrNotFound)
		}
	}
	return result.Err()
}

// Count returns the number of nodes with the repository's label.
func (r *Neo4jRepo[T, ID]) Count(ctx context.Context) (int64, error) {
	sess := r.sessions(ctx)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, fmt.Sprintf("MATCH (n:%s) RETURN count(n) AS count", r.label), nil)
	if err != nil {
		return 0, err
	}
	if !result.Next(ctx) {
		return 0, result.Err()
	}
	n, _, err := neo4j.GetRecordValue[int64](result.Record(), "count")
	return n, err
}
