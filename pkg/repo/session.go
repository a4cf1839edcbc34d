package repo

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Result is the part of a neo4j result the repositories read.
type Result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	// Err reports a failure that ended iteration early.
	Err() error
}

// Runner executes one Cypher statement.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
}

// Session is a Runner that can also run managed write transactions.
type Session interface {
	Runner
	ExecuteWrite(ctx context.Context, work func(tx Runner) (any, error)) (any, error)
	Close(ctx context.Context) error
}

// SessionFactory opens a session per operation.
type SessionFactory func(ctx context.Context) Session

// DriverSessions returns a factory opening sessions on driver against
// database ("" selects the server default).
func DriverSessions(driver neo4j.DriverWithContext, database string) SessionFactory {
	return func(ctx context.Context) Session {
		return &driverSession{sess: driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: database})}
	}
}

// driverSession adapts neo4j.SessionWithContext to Session.
type driverSession struct {
	sess neo4j.SessionWithContext
}

func (s *driverSession) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return s.sess.Run(ctx, cypher, params)
}

func (s *driverSession) ExecuteWrite(ctx context.Context, work func(tx Runner) (any, error)) (any, error) {
	return s.sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(txRunner{tx: tx})
	})
}

func (s *driverSession) Close(ctx context.Context) error { return s.sess.Close(ctx) }

type txRunner struct {
	tx neo4j.ManagedTransaction
}

func (t txRunner) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return t.tx.Run(ctx, cypher, params)
}
