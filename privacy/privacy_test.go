package privacy_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/rhubarb/objectset"
	"github.com/syssam/rhubarb/privacy"
	"github.com/syssam/rhubarb/schema"
	"github.com/syssam/rhubarb/schema/field"
)

// docModel returns a model without policy, used to compile the
// predicates rules add.
func docModel(t *testing.T) *objectset.Model {
	t.Helper()
	reg := objectset.NewRegistry()
	return reg.MustRegister(schema.NewTable("Doc",
		field.BigInt("id"),
		field.Text("title"),
		field.BigInt("owner_id"),
		field.UUID("tenant_id"),
	))
}

// mutation is the part of a command a rule sees.
type mutation struct {
	op     objectset.Op
	model  *objectset.Model
	values map[string][]any
	preds  []objectset.Predicate
}

func (m *mutation) Op() objectset.Op                 { return m.op }
func (m *mutation) Model() *objectset.Model          { return m.model }
func (m *mutation) Values(field string) []any        { return m.values[field] }
func (m *mutation) WhereP(ps ...objectset.Predicate) { m.preds = append(m.preds, ps...) }

type query struct {
	model *objectset.Model
	preds []objectset.Predicate
}

func (q *query) Model() *objectset.Model          { return q.model }
func (q *query) WhereP(ps ...objectset.Predicate) { q.preds = append(q.preds, ps...) }

// where compiles the WHERE clause the predicates add to a query of m.
func where(t *testing.T, m *objectset.Model, preds []objectset.Predicate) (string, []any) {
	t.Helper()
	q, args, err := objectset.New(nil, m).Where(preds...).SQL()
	require.NoError(t, err)
	_, clause, _ := strings.Cut(q, `AS doc_1 `)
	return clause, args
}

func TestDecisions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want error
	}{
		{privacy.Allowf("viewer %d", 1), privacy.Allow},
		{privacy.Denyf("viewer %d", 2), privacy.Deny},
		{privacy.Skipf("viewer %d", 3), privacy.Skip},
	}
	for _, tt := range tests {
		assert.ErrorIs(t, tt.err, tt.want)
		assert.Contains(t, tt.err.Error(), "viewer")
	}
	assert.Equal(t, "operation denied: rhubarb/privacy: deny rule", privacy.Denyf("operation denied").Error())

	ctx := context.Background()
	assert.ErrorIs(t, privacy.AlwaysAllowRule().EvalQuery(ctx, &query{}), privacy.Allow)
	assert.ErrorIs(t, privacy.AlwaysDenyRule().EvalMutation(ctx, &mutation{}), privacy.Deny)
}

func TestPolicy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	errBroken := errors.New("broken rule")
	tests := []struct {
		name   string
		policy privacy.Policy
		want   error
	}{
		{"Empty", privacy.Policy{}, nil},
		{"AllSkip", privacy.Policy{
			Query:    privacy.QueryPolicy{privacy.ContextQueryMutationRule(func(context.Context) error { return nil })},
			Mutation: privacy.MutationPolicy{privacy.ContextQueryMutationRule(func(context.Context) error { return privacy.Skip })},
		}, nil},
		{"AllowStops", privacy.Policy{
			Query:    privacy.QueryPolicy{privacy.AlwaysAllowRule(), privacy.AlwaysDenyRule()},
			Mutation: privacy.MutationPolicy{privacy.AlwaysAllowRule(), privacy.AlwaysDenyRule()},
		}, nil},
		{"Deny", privacy.Policy{
			Query:    privacy.QueryPolicy{privacy.AlwaysDenyRule()},
			Mutation: privacy.MutationPolicy{privacy.AlwaysDenyRule()},
		}, privacy.Deny},
		{"Error", privacy.Policy{
			Query:    privacy.QueryPolicy{privacy.ContextQueryMutationRule(func(context.Context) error { return errBroken })},
			Mutation: privacy.MutationPolicy{privacy.ContextQueryMutationRule(func(context.Context) error { return errBroken })},
		}, errBroken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			qerr := tt.policy.EvalQuery(ctx, &query{})
			merr := tt.policy.EvalMutation(ctx, &mutation{op: objectset.OpUpdate})
			if tt.want == nil {
				assert.NoError(t, qerr)
				assert.NoError(t, merr)
				return
			}
			assert.ErrorIs(t, qerr, tt.want)
			assert.ErrorIs(t, merr, tt.want)
		})
	}
}

func TestDecisionContext(t *testing.T) {
	t.Parallel()
	deny := privacy.Policy{Query: privacy.QueryPolicy{privacy.AlwaysDenyRule()}}

	ctx := privacy.DecisionContext(context.Background(), privacy.Allow)
	assert.NoError(t, deny.EvalQuery(ctx, &query{}), "attached allow bypasses the rules")
	_, ok := privacy.DecisionFromContext(privacy.DecisionContext(context.Background(), privacy.Skip))
	assert.False(t, ok, "skip attaches nothing")

	ctx = privacy.DecisionContext(context.Background(), privacy.Denyf("maintenance"))
	allow := privacy.Policies{privacy.Policy{Query: privacy.QueryPolicy{privacy.AlwaysAllowRule()}}}
	assert.ErrorIs(t, allow.EvalQuery(ctx, &query{}), privacy.Deny)
}

type provider struct{ policy objectset.Policy }

func (p provider) Policy() objectset.Policy { return p.policy }

func TestPolicies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var calls int
	counting := privacy.Policy{Mutation: privacy.MutationPolicy{
		privacy.MutationRuleFunc(func(context.Context, objectset.Mutation) error {
			calls++
			return privacy.Skip
		}),
	}}
	allow, deny := privacy.AlwaysAllowRule(), privacy.AlwaysDenyRule()

	p := privacy.NewPolicies(provider{counting}, provider{nil}, provider{allow}, provider{deny})
	require.Len(t, p, 3)
	assert.NoError(t, p.EvalMutation(ctx, &mutation{op: objectset.OpDelete}))
	assert.Equal(t, 1, calls)

	p = privacy.NewPolicies(provider{counting}, provider{deny}, provider{allow})
	assert.ErrorIs(t, p.EvalMutation(ctx, &mutation{op: objectset.OpDelete}), privacy.Deny)
	assert.Equal(t, 2, calls)

	// A Policy reports its allow as no error, the next policies still run.
	p = privacy.Policies{privacy.Policy{Mutation: privacy.MutationPolicy{allow}}, deny}
	assert.ErrorIs(t, p.EvalMutation(ctx, &mutation{op: objectset.OpDelete}), privacy.Deny)
}

func TestOperationRules(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tests := []struct {
		name string
		rule privacy.MutationRule
		op   objectset.Op
		want error
	}{
		{"DenyMatching", privacy.DenyMutationOperationRule(objectset.OpDelete), objectset.OpDelete, privacy.Deny},
		{"DenyOther", privacy.DenyMutationOperationRule(objectset.OpDelete), objectset.OpUpdate, privacy.Skip},
		{"DenyAnyOf", privacy.DenyMutationOperationRule(objectset.OpUpdate | objectset.OpDelete), objectset.OpUpdate, privacy.Deny},
		{"AllowMatching", privacy.AllowMutationOperationRule(objectset.OpInsert), objectset.OpInsert, privacy.Allow},
		{"AllowOther", privacy.AllowMutationOperationRule(objectset.OpInsert), objectset.OpDelete, privacy.Skip},
		{"OnOperation", privacy.OnMutationOperation(privacy.AlwaysDenyRule(), objectset.OpUpdate), objectset.OpUpdate, privacy.Deny},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, tt.rule.EvalMutation(ctx, &mutation{op: tt.op}), tt.want)
		})
	}
	err := privacy.DenyMutationOperationRule(objectset.OpDelete).EvalMutation(ctx, &mutation{op: objectset.OpDelete})
	assert.Contains(t, err.Error(), "operation OpDelete is not allowed")
}

func TestFilterFunc(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	doc := docModel(t)
	filter := privacy.FilterFunc(func(_ context.Context, f privacy.Filter) error {
		f.WhereP(objectset.Field[int64]("owner_id").EQ(7))
		return privacy.Skip
	})

	q := &query{model: doc}
	assert.ErrorIs(t, filter.EvalQuery(ctx, q), privacy.Skip)
	clause, args := where(t, doc, q.preds)
	assert.Equal(t, `WHERE (doc_1."owner_id" = $1::BIGINT)`, clause)
	assert.Equal(t, []any{int64(7)}, args)

	ins := &mutation{op: objectset.OpInsert, model: doc}
	assert.ErrorIs(t, filter.EvalMutation(ctx, ins), privacy.Skip)
	assert.Empty(t, ins.preds, "inserts have no rows to filter")

	upd := &mutation{op: objectset.OpUpdate, model: doc}
	require.ErrorIs(t, filter.EvalMutation(ctx, upd), privacy.Skip)
	assert.Len(t, upd.preds, 1)
}
