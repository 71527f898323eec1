package objectset

import (
	"context"
	"slices"
	"strings"
)

// Op is the operation of a statement.
type Op uint

// Operations a policy is evaluated for.
const (
	OpQuery Op = 1 << iota
	OpInsert
	OpUpdate
	OpDelete
)

// Is reports whether o matches any of the operations in op.
func (o Op) Is(op Op) bool { return o&op != 0 }

var opNames = []string{"OpQuery", "OpInsert", "OpUpdate", "OpDelete"}

// String returns the names of the operations of o, joined by '|'.
func (o Op) String() string {
	var names []string
	for i, name := range opNames {
		if o&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "Op(0)"
	}
	return strings.Join(names, "|")
}

// Query is what a policy sees of a query about to execute.
type Query interface {
	// Model returns the root model of the query.
	Model() *Model
	// WhereP narrows the rows of the query. Predicates receive the root
	// model selector.
	WhereP(...Predicate)
}

// Mutation is what a policy sees of a command about to execute.
type Mutation interface {
	Op() Op
	Model() *Model
	// WhereP narrows the rows an update or a delete writes. Inserts
	// ignore it.
	WhereP(...Predicate)
	// Values returns the values the command writes to a field: one per
	// inserted row, or the value of an update setter. Expressions are
	// returned as Selectors.
	Values(field string) []any
}

// Policy decides whether the statements over a model may execute. An
// error denies the statement and is returned to its caller.
//
// Policies are evaluated for the root model of a statement. Relations
// fetched by the same statement are not evaluated separately.
type Policy interface {
	EvalQuery(context.Context, Query) error
	EvalMutation(context.Context, Mutation) error
}

// WithPolicy sets the policy of the model.
func WithPolicy(p Policy) ModelOption {
	return func(m *Model) { m.policy = p }
}

type queryView struct {
	set *ObjectSet
}

func (v *queryView) Model() *Model { return v.set.model }

func (v *queryView) WhereP(preds ...Predicate) {
	v.set = v.set.whereWith((*ObjectSet).root, preds)
}

// authorized evaluates the policy of the model and returns the query to
// compile, narrowed by the predicates the policy added.
func (s *ObjectSet) authorized(ctx context.Context) (*ObjectSet, error) {
	p := s.model.policy
	if p == nil {
		return s, nil
	}
	v := &queryView{set: s}
	if err := p.EvalQuery(ctx, v); err != nil {
		return nil, err
	}
	return v.set, nil
}

type mutationView struct {
	op     Op
	set    *ObjectSet
	values func(string) []any
}

func (v *mutationView) Op() Op { return v.op }

func (v *mutationView) Model() *Model { return v.set.model }

func (v *mutationView) WhereP(preds ...Predicate) {
	if v.op == OpInsert {
		return
	}
	v.set = v.set.whereWith((*ObjectSet).root, preds)
}

func (v *mutationView) Values(field string) []any { return v.values(field) }

// authorize evaluates the policy of the command model and returns the
// scope the command runs against.
func (c *command) authorize(ctx context.Context, op Op, values func(string) []any) (*ObjectSet, error) {
	p := c.set.model.policy
	if p == nil {
		return c.set, nil
	}
	v := &mutationView{op: op, set: c.set, values: values}
	if err := p.EvalMutation(ctx, v); err != nil {
		return nil, err
	}
	return v.set, nil
}

func (ib *InsertBuilder) values(field string) []any {
	i := slices.Index(ib.columns, field)
	if i < 0 {
		return nil
	}
	var vs []any
	for _, row := range ib.rows {
		if i < len(row) {
			vs = append(vs, row[i])
		}
	}
	return vs
}

func (ub *UpdateBuilder) values(field string) []any {
	var vs []any
	for _, st := range ub.setters {
		if st.field != field {
			continue
		}
		if st.expr != nil {
			vs = append(vs, st.expr(ub.set.modelSel))
		} else {
			vs = append(vs, st.value)
		}
	}
	return vs
}

func noValues(string) []any { return nil }
