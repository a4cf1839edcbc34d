// Package repotest provides a scripted in-memory repo.Session for tests.
package repotest

import (
	"context"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WessleyAI/wessley-kg/pkg/repo"
)

// Call is one recorded statement.
type Call struct {
	Cypher string
	Params map[string]any
	InTx   bool
}

// Session records every statement and answers with Respond. A nil
// Respond returns empty results.
type Session struct {
	Respond func(cypher string, params map[string]any) ([]*neo4j.Record, error)
	// StreamErr, if set, is reported by Result.Err once the records
	// returned by Respond are exhausted.
	StreamErr func(cypher string) error

	mu         sync.Mutex
	calls      []Call
	opened     int
	closed     int
	rolledBack int
}

// Factory returns a repo.SessionFactory handing out s.
func (s *Session) Factory() repo.SessionFactory {
	return func(context.Context) repo.Session {
		s.mu.Lock()
		s.opened++
		s.mu.Unlock()
		return &session{s: s}
	}
}

// Calls returns the recorded statements in order.
func (s *Session) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Cyphers returns the recorded statement texts in order.
func (s *Session) Cyphers() []string {
	var out []string
	for _, c := range s.Calls() {
		out = append(out, c.Cypher)
	}
	return out
}

// Balanced reports whether every opened session was closed.
func (s *Session) Balanced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened == s.closed
}

// RolledBack returns how many write transactions failed.
func (s *Session) RolledBack() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rolledBack
}

func (s *Session) run(cypher string, params map[string]any, inTx bool) (repo.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Cypher: cypher, Params: params, InTx: inTx})
	respond, streamErr := s.Respond, s.StreamErr
	s.mu.Unlock()
	res := &Result{}
	if respond != nil {
		recs, err := respond(cypher, params)
		if err != nil {
			return nil, err
		}
		res.Records = recs
	}
	if streamErr != nil {
		res.StreamErr = streamErr(cypher)
	}
	return res, nil
}

type session struct{ s *Session }

func (x *session) Run(_ context.Context, cypher string, params map[string]any) (repo.Result, error) {
	return x.s.run(cypher, params, false)
}

func (x *session) ExecuteWrite(_ context.Context, work func(tx repo.Runner) (any, error)) (any, error) {
	v, err := work(txRunner{s: x.s})
	if err != nil {
		x.s.mu.Lock()
		x.s.rolledBack++
		x.s.mu.Unlock()
		return nil, err
	}
	return v, nil
}

func (x *session) Close(context.Context) error {
	x.s.mu.Lock()
	x.s.closed++
	x.s.mu.Unlock()
	return nil
}

type txRunner struct{ s *Session }

func (t txRunner) Run(_ context.Context, cypher string, params map[string]any) (repo.Result, error) {
	return t.s.run(cypher, params, true)
}

// Result iterates over fixed records, then reports StreamErr.
type Result struct {
	Records   []*neo4j.Record
	StreamErr error
	idx       int
}

func (r *Result) Next(context.Context) bool {
	if r.idx < len(r.Records) {
		r.idx++
		return true
	}
	return false
}

func (r *Result) Record() *neo4j.Record { return r.Records[r.idx-1] }

func (r *Result) Err() error {
	if r.idx < len(r.Records) {
		return nil
	}
	return r.StreamErr
}

// Row builds a record from alternating key, value pairs.
func Row(kv ...any) *neo4j.Record {
	rec := &neo4j.Record{}
	for i := 0; i+1 < len(kv); i += 2 {
		rec.Keys = append(rec.Keys, kv[i].(string))
		rec.Values = append(rec.Values, kv[i+1])
	}
	return rec
}
