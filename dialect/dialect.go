package dialect

import (
	"context"
)

// Dialect names for external usage.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// ExecQuerier wraps the 2 database operations.
type ExecQuerier interface {
	// Exec executes a query that does not return records. For example, in SQL, INSERT or UPDATE.
	// It scans the I/O result into the interface{} v, which is expected to be a *sql.Result or nil.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query that returns rows, typically a SELECT in SQL.
	// It scans the result into the interface{} v, which is expected to be a *sql.Rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all necessary operations for the engine clients.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	// The provided context is used until the transaction is committed or rolled back.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps the Exec and Query operations in transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

// DialectOf returns the dialect of the given connection, or Postgres
// when the connection does not report one.
func DialectOf(conn ExecQuerier) string {
	if d, ok := conn.(interface{ Dialect() string }); ok {
		return d.Dialect()
	}
	return Postgres
}
