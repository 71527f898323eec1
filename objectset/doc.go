// Package objectset compiles composable queries into single SQL
// statements and extracts typed values from their rows.
//
// Models are registered in a Registry from table descriptors. A query
// over a model is an ObjectSet: its selection is a tree of selectors,
// resolved against the closed field map of the model.
//
//	reg := objectset.NewRegistry()
//	reg.MustRegister(schema.NewTable("Author", field.BigInt("id"), field.Text("name")))
//	reg.MustRegister(schema.NewTable("Book", field.BigInt("id"), field.Text("title"), field.BigInt("author_id")),
//		objectset.HasOne("author", "Author", objectset.ForeignKey("author_id", "id")),
//	)
//
//	books, _ := reg.Query(drv, "Book")
//	titles := books.Select(func(b *objectset.ModelSelector) objectset.Selector {
//		return objectset.TupleOf(b.F("title"), b.Rel("author").F("name"))
//	})
//	rows, err := titles.All(ctx)
//
// Relation traversals register LEFT JOINs in discovery order, and table
// aliases are numbered per query lineage, so equal compositions compile
// to equal statements. A query is executed at most once; results are
// cached by primary key, and queries selecting a field of an executed
// query can be served from its rows with SyncCache.
package objectset
