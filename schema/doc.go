// Package schema declares the table descriptors the query engine compiles against.
//
// The engine consumes tables only through the TableDescriptor and
// ColumnDescriptor interfaces. Table is the concrete descriptor used by
// applications and tests:
//
//	book := schema.NewTable("Book",
//	    field.BigInt("id"),
//	    field.Text("title"),
//	    field.BigInt("author_id"),
//	)
//
// The table name defaults to the snake_case form of the declared name
// ("Book" => "book"), the schema to "public", and the primary key to the
// "id" column when one is declared.
package schema
