package objectset

import (
	"context"
	"slices"

	"github.com/syssam/rhubarb"
	"github.com/syssam/rhubarb/dialect"
	"github.com/syssam/rhubarb/dialect/sql"
)

// UpdateBuilder builds an UPDATE statement.
//
// The rows to update are selected by Where predicates. An update without
// predicates fails with an EmptyCommandError, unless Unconditional was
// called.
type UpdateBuilder struct {
	command
	setters []setter
	all     bool
}

type setter struct {
	field string
	value any
	expr  func(*ModelSelector) Selector
}

// Update returns a builder updating rows of the model table.
func Update(conn dialect.ExecQuerier, m *Model) *UpdateBuilder {
	return New(conn, m).Update()
}

// Update returns a builder updating the rows of the query. The filter
// and joins of the query are kept.
func (s *ObjectSet) Update() *UpdateBuilder {
	return &UpdateBuilder{command: command{op: "update", set: s.Clone()}}
}

// Save returns a builder updating the row of the record to its fetched
// column values.
func Save(conn dialect.ExecQuerier, rec *Record) *UpdateBuilder {
	m := rec.Model()
	ub := Update(conn, m)
	pk := m.PrimaryKey()
	for _, f := range m.fields {
		if f.kind != columnField || slices.Contains(pk, f.name) {
			continue
		}
		if v := rec.Get(f.name); !rhubarb.IsUnset(v) {
			ub.Set(f.name, v)
		}
	}
	if len(pk) == 0 {
		return ub
	}
	return ub.Where(func(m *ModelSelector) Selector {
		preds := make([]Selector, len(pk))
		for i, name := range pk {
			preds[i] = EQ(m.F(name), rec.Get(name))
		}
		return And(preds...)
	})
}

// Set sets a field to a value or a selector.
func (ub *UpdateBuilder) Set(field string, v any) *UpdateBuilder {
	ub.setters = append(ub.setters, setter{field: field, value: v})
	return ub
}

// SetExpr sets a field to an expression built from the updated model.
func (ub *UpdateBuilder) SetExpr(field string, fn func(*ModelSelector) Selector) *UpdateBuilder {
	ub.setters = append(ub.setters, setter{field: field, expr: fn})
	return ub
}

// Where filters the updated rows.
func (ub *UpdateBuilder) Where(preds ...Predicate) *UpdateBuilder {
	ub.set = ub.set.Where(preds...)
	return ub
}

// Unconditional allows the update to apply without Where predicates.
func (ub *UpdateBuilder) Unconditional() *UpdateBuilder {
	ub.all = true
	return ub
}

// Returning sets the selection returned for every updated row.
func (ub *UpdateBuilder) Returning(fn func(*ModelSelector) Selector) *UpdateBuilder {
	ub.returningSel(fn)
	return ub
}

// SQL compiles the statement with its RETURNING clause. Policies are
// not evaluated.
func (ub *UpdateBuilder) SQL() (string, []any, error) {
	b, _ := ub.build(true)
	if err := b.Err(); err != nil {
		return "", nil, err
	}
	q, args := b.Query()
	return q, args, nil
}

func (ub *UpdateBuilder) build(returning bool) (*sql.Builder, Extractor) {
	b := ub.builder()
	if len(ub.setters) == 0 {
		b.AddError(rhubarb.NewEmptyCommandError("update", "no setters"))
		return b, nil
	}
	if !ub.set.filtered && !ub.all {
		b.AddError(rhubarb.NewEmptyCommandError("update", "no WHERE clause, call Unconditional to update every row"))
		return b, nil
	}
	s := ub.set
	m := s.model
	setters := slices.Clone(ub.setters)
	for _, f := range m.fields {
		if f.kind != columnField || slices.ContainsFunc(setters, func(st setter) bool { return st.field == f.name }) {
			continue
		}
		if d, ok := f.column.UpdateDefault(); ok {
			setters = append(setters, setter{field: f.name, value: d.Value()})
		}
	}
	b.Write("UPDATE ").Table(m.SchemaName(), m.TableName()).
		Write(" AS ").Write(s.ref.alias).Write(" SET ")
	reg := s.reg.clone()
	for i, st := range setters {
		if i > 0 {
			b.Write(", ")
		}
		col, ok := ub.column(b, st.field)
		if !ok {
			continue
		}
		b.Ident(col.ColumnName()).Write(" = ")
		v := st.value
		if st.expr != nil {
			v = st.expr(s.modelSel)
		}
		if sel, ok := v.(Selector); ok {
			reg.sync(sel)
		}
		writeTyped(b, col, v)
	}
	where := s.where
	if len(reg.joins) > 0 {
		j := reg.joins[0]
		b.Write(" FROM ")
		j.ref.writeSource(b, reg.fields[j.id])
		s.writeJoins(b, reg.joins[1:], &reg)
		where = And(j.on, where)
	}
	if where != nil {
		b.Write(" WHERE ")
		where.EmitSQL(b)
	}
	var x Extractor
	if returning {
		x = ub.writeReturning(b, ub.returning)
	}
	return b, x
}

// prepare evaluates the model policy and compiles the statement. The
// policy narrows a copy of the builder, so the builder can be executed
// again under another context.
func (ub *UpdateBuilder) prepare(ctx context.Context, returning bool) (*sql.Builder, Extractor, error) {
	c := *ub
	// Without setters or WHERE clause, build reports the empty command.
	if len(ub.setters) > 0 && (ub.set.filtered || ub.all) {
		set, err := ub.authorize(ctx, OpUpdate, ub.values)
		if err != nil {
			return nil, nil, err
		}
		c.set = set
	}
	b, x := c.build(returning)
	return b, x, nil
}

// Exec executes the statement without RETURNING clause.
func (ub *UpdateBuilder) Exec(ctx context.Context) error {
	b, _, err := ub.prepare(ctx, false)
	if err != nil {
		return err
	}
	_, err = ub.run(ctx, b, nil)
	return err
}

// All executes the statement and returns the values of all updated rows.
func (ub *UpdateBuilder) All(ctx context.Context) ([]any, error) {
	b, x, err := ub.prepare(ctx, true)
	if err != nil {
		return nil, err
	}
	return ub.run(ctx, b, x)
}

// One executes the statement and returns the value of the first updated
// row, or nil.
func (ub *UpdateBuilder) One(ctx context.Context) (any, error) {
	return first(ub.All(ctx))
}

// Query executes the statement and returns a query over the updated rows.
func (ub *UpdateBuilder) Query(ctx context.Context) (*ObjectSet, error) {
	ub.returning = ub.set.modelSel.pkSelector()
	pks, err := ub.All(ctx)
	if err != nil {
		return nil, err
	}
	return reselect(New(ub.set.conn, ub.set.model), pks), nil
}
