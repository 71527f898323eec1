package objectset

import (
	"context"
	"fmt"
	"slices"

	"github.com/syssam/rhubarb"
	"github.com/syssam/rhubarb/dialect"
	"github.com/syssam/rhubarb/dialect/sql"
)

// InsertBuilder builds an INSERT statement.
type InsertBuilder struct {
	command
	columns []string
	rows    [][]any
}

// Insert returns a builder inserting rows into the model table.
func Insert(conn dialect.ExecQuerier, m *Model) *InsertBuilder {
	return &InsertBuilder{command: command{op: "insert", set: New(conn, m)}}
}

// InsertRecords returns a builder inserting the records. Columns are the
// union of the fields set in any record; records missing one of them
// insert its DEFAULT. Records must be of the model.
func InsertRecords(conn dialect.ExecQuerier, m *Model, recs ...*Record) *InsertBuilder {
	ib := Insert(conn, m)
	for _, f := range m.fields {
		if f.kind != columnField {
			continue
		}
		if slices.ContainsFunc(recs, func(r *Record) bool { return !rhubarb.IsUnset(r.Get(f.name)) }) {
			ib.columns = append(ib.columns, f.name)
		}
	}
	for _, r := range recs {
		row := make([]any, len(ib.columns))
		for i, name := range ib.columns {
			row[i] = r.Get(name)
		}
		ib.rows = append(ib.rows, row)
	}
	return ib
}

// Columns sets the inserted fields.
func (ib *InsertBuilder) Columns(fields ...string) *InsertBuilder {
	ib.columns = fields
	return ib
}

// Values appends a row of values, one per column.
func (ib *InsertBuilder) Values(values ...any) *InsertBuilder {
	ib.rows = append(ib.rows, values)
	return ib
}

// Returning sets the selection returned for every inserted row.
func (ib *InsertBuilder) Returning(fn func(*ModelSelector) Selector) *InsertBuilder {
	ib.returningSel(fn)
	return ib
}

// SQL compiles the statement with its RETURNING clause. Policies are
// not evaluated.
func (ib *InsertBuilder) SQL() (string, []any, error) {
	b, _ := ib.build(true)
	if err := b.Err(); err != nil {
		return "", nil, err
	}
	q, args := b.Query()
	return q, args, nil
}

func (ib *InsertBuilder) build(returning bool) (*sql.Builder, Extractor) {
	b := ib.builder()
	if len(ib.rows) == 0 {
		b.AddError(rhubarb.NewEmptyCommandError("insert", "no rows"))
		return b, nil
	}
	if len(ib.columns) == 0 {
		b.AddError(rhubarb.NewEmptyCommandError("insert", "no columns"))
		return b, nil
	}
	m := ib.set.model
	columns := slices.Clone(ib.columns)
	var defaults []func() any
	for _, f := range m.fields {
		if f.kind != columnField || slices.Contains(columns, f.name) {
			continue
		}
		if d, ok := f.column.InsertDefault(); ok {
			columns = append(columns, f.name)
			defaults = append(defaults, d.Fn)
		}
	}
	b.Write("INSERT INTO ").Table(m.SchemaName(), m.TableName()).
		Write(" AS ").Write(ib.set.ref.alias).Write(" (")
	for i, name := range columns {
		if i > 0 {
			b.Write(", ")
		}
		if col, ok := ib.column(b, name); ok {
			b.Ident(col.ColumnName())
		}
	}
	b.Write(") VALUES ")
	for i, row := range ib.rows {
		if len(row) != len(ib.columns) {
			b.AddError(fmt.Errorf("objectset: insert row %d has %d values, want %d", i, len(row), len(ib.columns)))
			return b, nil
		}
		if i > 0 {
			b.Write(", ")
		}
		b.Write("(")
		values := row
		for _, d := range defaults {
			values = append(values[:len(values):len(values)], d())
		}
		for j, v := range values {
			if j > 0 {
				b.Write(", ")
			}
			if col, ok := m.Column(columns[j]); ok {
				writeTyped(b, col, v)
			}
		}
		b.Write(")")
	}
	var x Extractor
	if returning {
		x = ib.writeReturning(b, ib.returning)
	}
	return b, x
}

func (ib *InsertBuilder) prepare(ctx context.Context, returning bool) (*sql.Builder, Extractor, error) {
	// Without rows or columns, build reports the empty command.
	if len(ib.rows) > 0 && len(ib.columns) > 0 {
		if _, err := ib.authorize(ctx, OpInsert, ib.values); err != nil {
			return nil, nil, err
		}
	}
	b, x := ib.build(returning)
	return b, x, nil
}

// Exec executes the statement without RETURNING clause.
func (ib *InsertBuilder) Exec(ctx context.Context) error {
	b, _, err := ib.prepare(ctx, false)
	if err != nil {
		return err
	}
	_, err = ib.run(ctx, b, nil)
	return err
}

// All executes the statement and returns the values of all inserted rows.
func (ib *InsertBuilder) All(ctx context.Context) ([]any, error) {
	b, x, err := ib.prepare(ctx, true)
	if err != nil {
		return nil, err
	}
	return ib.run(ctx, b, x)
}

// One executes the statement and returns the value of the first
// inserted row, or nil.
func (ib *InsertBuilder) One(ctx context.Context) (any, error) {
	return first(ib.All(ctx))
}

// Query executes the statement and returns a query over the inserted rows.
func (ib *InsertBuilder) Query(ctx context.Context) (*ObjectSet, error) {
	ib.returning = nil
	if pk := ib.set.modelSel.pkSelector(); pk != nil {
		ib.returning = pk
	}
	pks, err := ib.All(ctx)
	if err != nil {
		return nil, err
	}
	return reselect(New(ib.set.conn, ib.set.model), pks), nil
}
