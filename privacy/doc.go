// Package privacy provides rules deciding whether the statements of a
// model may execute, and narrowing the rows they read or write.
//
// A Policy is set on a model at registration and evaluated before every
// query and command whose root is the model:
//
//	reg.MustRegister(table,
//	    objectset.WithPolicy(privacy.Policy{
//	        Query: privacy.QueryPolicy{
//	            privacy.HasRole("admin"),
//	            privacy.TenantQueryRule("tenant_id"),
//	        },
//	        Mutation: privacy.MutationPolicy{
//	            privacy.DenyIfNoViewer(),
//	            privacy.HasRole("admin"),
//	            privacy.IsOwner("user_id"),
//	            privacy.AlwaysDenyRule(),
//	        },
//	    }),
//	)
//
// Rules are evaluated in order until one returns a decision: Allow stops
// the evaluation and executes the statement, Deny stops it and returns
// the error to the caller, Skip continues with the next rule. A policy
// whose rules all skip allows the statement.
//
// Rules may narrow the statement with WhereP before deciding. The
// predicates apply to the executed statement only, the query or builder
// they were evaluated for is left unchanged.
//
// The viewer of a request is stored in its context:
//
//	ctx = privacy.WithViewer(ctx, &privacy.SimpleViewer{UserID: "7", Roles: []string{"user"}})
//	books, err := objectset.New(db, book).All(ctx)
package privacy
