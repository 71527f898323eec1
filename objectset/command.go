package objectset

import (
	"context"
	"log/slog"

	"github.com/syssam/rhubarb"
	"github.com/syssam/rhubarb/dialect"
	"github.com/syssam/rhubarb/dialect/sql"
	"github.com/syssam/rhubarb/schema"
)

// command holds what the insert, update and delete builders share: the
// query scope their selectors resolve against, and the RETURNING
// selection.
type command struct {
	op        string
	set       *ObjectSet
	returning Selector
}

func (c *command) returningSel(fn func(*ModelSelector) Selector) {
	c.returning = fn(c.set.modelSel)
}

func (c *command) builder() *sql.Builder {
	return sql.NewBuilder(dialect.DialectOf(c.set.conn))
}

// column returns the column descriptor of a writable field.
func (c *command) column(b *sql.Builder, name string) (schema.ColumnDescriptor, bool) {
	col, ok := c.set.model.Column(name)
	if !ok {
		b.AddError(rhubarb.NewUnresolvedFieldError(c.set.model.Name(), name))
	}
	return col, ok
}

// writeTyped writes a value bound to a column, cast to the column type.
func writeTyped(b *sql.Builder, col schema.ColumnDescriptor, v any) {
	switch v.(type) {
	case sql.Emitter, rhubarb.UnsetValue, nil:
		writeValue(b, v)
	default:
		b.TypedArg(v, col.SQLType())
	}
}

// writeReturning writes the RETURNING clause of sel, or the model
// selection when sel is nil.
func (c *command) writeReturning(b *sql.Builder, sel Selector) Extractor {
	if sel == nil {
		sel = c.set.modelSel
	}
	b.Write(" RETURNING ")
	prev := b.ResetSelection()
	defer b.RestoreSelection(prev)
	return sel.Extractor(b, "")
}

// run executes the statement. Without an extractor the statement is
// executed for its effect only.
func (c *command) run(ctx context.Context, b *sql.Builder, x Extractor) ([]any, error) {
	if err := b.Err(); err != nil {
		return nil, err
	}
	q, args := b.Query()
	m := c.set.model
	m.reg.log.DebugContext(ctx, "rhubarb: executing statement", slog.String("op", c.op), slog.String("sql", q), slog.Any("args", args))
	if x == nil {
		if err := c.set.conn.Exec(ctx, q, args, nil); err != nil {
			return nil, err
		}
		invalidate(ctx, m)
		return nil, nil
	}
	rows, err := queryRows(ctx, c.set.conn, q, args)
	if err != nil {
		return nil, err
	}
	invalidate(ctx, m)
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		v, err := x.Extract(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func first(vs []any, err error) (any, error) {
	if err != nil || len(vs) == 0 {
		return nil, err
	}
	return vs[0], nil
}

// reselect returns a query over the rows whose primary keys are given.
func reselect(s *ObjectSet, pks []any) *ObjectSet {
	return s.WherePK(pks...)
}
