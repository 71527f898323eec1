package objectset

import (
	"context"

	"github.com/syssam/rhubarb"
	"github.com/syssam/rhubarb/dialect"
	"github.com/syssam/rhubarb/dialect/sql"
)

// DeleteBuilder builds a DELETE statement. Like updates, deletes without
// Where predicates require Unconditional.
type DeleteBuilder struct {
	command
	all bool
}

// Delete returns a builder deleting rows of the model table.
func Delete(conn dialect.ExecQuerier, m *Model) *DeleteBuilder {
	return New(conn, m).Delete()
}

// Delete returns a builder deleting the rows of the query.
func (s *ObjectSet) Delete() *DeleteBuilder {
	return &DeleteBuilder{command: command{op: "delete", set: s.Clone()}}
}

// Where filters the deleted rows.
func (db *DeleteBuilder) Where(preds ...Predicate) *DeleteBuilder {
	db.set = db.set.Where(preds...)
	return db
}

// Unconditional allows the delete to apply without Where predicates.
func (db *DeleteBuilder) Unconditional() *DeleteBuilder {
	db.all = true
	return db
}

// Returning sets the selection returned for every deleted row.
func (db *DeleteBuilder) Returning(fn func(*ModelSelector) Selector) *DeleteBuilder {
	db.returningSel(fn)
	return db
}

// SQL compiles the statement with its RETURNING clause. Policies are
// not evaluated.
func (db *DeleteBuilder) SQL() (string, []any, error) {
	b, _ := db.build(true)
	if err := b.Err(); err != nil {
		return "", nil, err
	}
	q, args := b.Query()
	return q, args, nil
}

func (db *DeleteBuilder) build(returning bool) (*sql.Builder, Extractor) {
	b := db.builder()
	s := db.set
	if !s.filtered && !db.all {
		b.AddError(rhubarb.NewEmptyCommandError("delete", "no WHERE clause, call Unconditional to delete every row"))
		return b, nil
	}
	m := s.model
	b.Write("DELETE FROM ").Table(m.SchemaName(), m.TableName()).
		Write(" AS ").Write(s.ref.alias)
	where := s.where
	if len(s.reg.joins) > 0 {
		j := s.reg.joins[0]
		b.Write(" USING ")
		j.ref.writeSource(b, s.reg.fields[j.id])
		s.writeJoins(b, s.reg.joins[1:], &s.reg)
		where = And(j.on, where)
	}
	if where != nil {
		b.Write(" WHERE ")
		where.EmitSQL(b)
	}
	var x Extractor
	if returning {
		x = db.writeReturning(b, db.returning)
	}
	return b, x
}

func (db *DeleteBuilder) prepare(ctx context.Context, returning bool) (*sql.Builder, Extractor, error) {
	c := *db
	if db.set.filtered || db.all {
		set, err := db.authorize(ctx, OpDelete, noValues)
		if err != nil {
			return nil, nil, err
		}
		c.set = set
	}
	b, x := c.build(returning)
	return b, x, nil
}

// Exec executes the statement without RETURNING clause.
func (db *DeleteBuilder) Exec(ctx context.Context) error {
	b, _, err := db.prepare(ctx, false)
	if err != nil {
		return err
	}
	_, err = db.run(ctx, b, nil)
	return err
}

// All executes the statement and returns the values of all deleted rows.
func (db *DeleteBuilder) All(ctx context.Context) ([]any, error) {
	b, x, err := db.prepare(ctx, true)
	if err != nil {
		return nil, err
	}
	return db.run(ctx, b, x)
}

// One executes the statement and returns the value of the first deleted
// row, or nil.
func (db *DeleteBuilder) One(ctx context.Context) (any, error) {
	return first(db.All(ctx))
}
