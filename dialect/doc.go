// Package dialect defines the connection contract consumed by the query engine.
//
// The engine never opens, pools or retains connections. Callers pass an
// ExecQuerier (a Driver or a Tx they own) to every query or command, and
// the engine issues exactly the statements it compiled through it.
//
// # Dialects
//
//	dialect.Postgres = "postgres"
//	dialect.SQLite   = "sqlite"
//
// Statements are always rendered in the PostgreSQL flavour. The SQLite
// name only switches placeholder rendering so the same statements can be
// exercised against an in-process database.
//
// # ExecQuerier Interface
//
//	type ExecQuerier interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	}
//
// The dialect/sql package provides the database/sql backed implementation:
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
//	books, err := registry.Query(drv, "Book")
package dialect
