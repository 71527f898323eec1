// Package sql provides the statement builder and the database drivers
// statements are issued through.
//
// # Builder
//
// A Builder accumulates the text and the arguments of one statement.
// Placeholders follow the dialect of the builder: PostgreSQL arguments
// are numbered and cast to their column type, SQLite arguments are
// positional.
//
//	b := sql.NewBuilder(dialect.Postgres)
//	b.Write("SELECT ").Ident("id").Write(" FROM ").Table("public", "book")
//	b.Write(" WHERE ").Ident("title").Write(" = ").TypedArg("Dune", field.TypeText)
//	query, args := b.Query()
//	// SELECT "id" FROM "public"."book" WHERE "title" = $1::TEXT, [Dune]
//
// Aliases written by the builder are unique within the statement. While
// a selection is open, WriteColumn assigns every selected column an
// alias derived from its name and returns it; ColumnAlias finds the
// alias of a column selected before, so a column selected twice is
// emitted once.
//
// Errors are recorded with AddError instead of being returned by every
// write; Err returns the first one.
//
// # Drivers
//
// Driver wraps a database/sql.DB. StatsDriver counts the statements
// issued through it and reports slow ones, DebugDriver logs them:
//
//	drv, err := sql.Open(dialect.SQLite, "library.db")
//	if err != nil {
//	    return err
//	}
//	stats := sql.NewStatsDriver(drv, sql.WithSlowThreshold(time.Second))
//	// ...
//	fmt.Println(stats.QueryStats().Stats())
//
// ScanMaps reads rows into maps keyed by column name.
package sql
