package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Scope wraps a borrowed pool connection and guarantees it is returned
// exactly once. Acquire a Scope, defer its Close, and run every query of the
// operation through it; multi-query operations (validation query followed by
// the main query) then observe the same connection.
type Scope struct {
	conn     *pgxpool.Conn
	released bool
}

// Acquire borrows a connection from the pool. It blocks until a connection
// is idle or ctx is done. The returned Scope MUST be closed with
// defer scope.Close().
func (db *DB) Acquire(ctx context.Context) (*Scope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Scope{conn: conn}, nil
}

// Close releases the connection back to the pool. Safe to call more than
// once; only the first call releases.
func (s *Scope) Close() {
	if s.released || s.conn == nil {
		return
	}
	s.released = true
	s.conn.Release()
}

// Query runs a query on the scoped connection.
func (s *Scope) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return s.conn.Query(ctx, sql, args...)
}

// QueryRow runs a single-row query on the scoped connection.
func (s *Scope) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return s.conn.QueryRow(ctx, sql, args...)
}
