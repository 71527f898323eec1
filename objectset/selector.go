package objectset

import (
	"iter"
	"strings"

	"github.com/syssam/rhubarb"
	"github.com/syssam/rhubarb/dialect/sql"
)

// Selector is a node of the expression tree describing what a statement
// computes. Leaves emit SQL directly, inner nodes recurse. Every selector
// knows how to select itself into a statement and build the Extractor
// reading its value back from the result rows.
type Selector interface {
	sql.Emitter
	// Extractor writes the selector into the select list of b and returns
	// the extractor reading it back. The hint names the column alias.
	Extractor(b *sql.Builder, hint string) Extractor
	// Joins enumerates the joins the selector depends on.
	Joins() iter.Seq[JoinField]
}

// writeValue writes a selector or a literal value.
func writeValue(b *sql.Builder, v any) {
	if rhubarb.IsUnset(v) {
		b.Write("DEFAULT")
		return
	}
	b.WriteValue(v)
}

// selectValue selects a selector that does not map to a single column.
func selectValue(b *sql.Builder, e sql.Emitter, hint string) Extractor {
	if hint == "" {
		hint = "col"
	}
	b.StartSelection()
	e.EmitSQL(b)
	return &simpleExtractor{alias: b.WriteAlias(hint)}
}

func noJoins(func(JoinField) bool) {}

// joinsOf enumerates the joins of all selectors found in values.
func joinsOf[T any](values ...T) iter.Seq[JoinField] {
	return func(yield func(JoinField) bool) {
		for _, v := range values {
			s, ok := any(v).(Selector)
			if !ok {
				continue
			}
			for jf := range s.Joins() {
				if !yield(jf) {
					return
				}
			}
		}
	}
}

// Column is a column of a table reference.
type Column struct {
	ref    *TableRef
	field  string
	column string
	join   *Join
}

// Ref returns the table reference of the column.
func (c *Column) Ref() *TableRef { return c.ref }

// Field returns the field name of the column.
func (c *Column) Field() string { return c.field }

// EmitSQL implements the sql.Emitter interface.
func (c *Column) EmitSQL(b *sql.Builder) {
	b.Write(sql.ColumnExpr(c.ref.alias, c.column))
}

// Extractor implements the Selector interface.
func (c *Column) Extractor(b *sql.Builder, hint string) Extractor {
	if hint == "" {
		hint = c.column
	}
	return &simpleExtractor{
		alias:  b.WriteColumn(c.ref.alias, c.column, hint),
		origin: origin{ref: c.ref.alias, field: c.field},
	}
}

// Joins implements the Selector interface.
func (c *Column) Joins() iter.Seq[JoinField] {
	return func(yield func(JoinField) bool) {
		if s := c.ref.scope; s != nil {
			for jf := range s.reg.all() {
				if !yield(jf) {
					return
				}
			}
		}
		if c.join != nil {
			yield(JoinField{Join: c.join, Field: c.field})
		}
	}
}

// Computed is an operator or a function call over selectors and values.
// Infix nodes render as "(a op b)", prefix nodes as "OP(a, b)".
type Computed struct {
	op    string
	args  []any
	infix bool
}

// Infix returns an infix operator node.
func Infix(op string, args ...any) *Computed {
	return &Computed{op: op, args: args, infix: true}
}

// Fn returns a function call node.
func Fn(name string, args ...any) *Computed {
	return &Computed{op: name, args: args}
}

// EmitSQL implements the sql.Emitter interface.
func (c *Computed) EmitSQL(b *sql.Builder) {
	sep := ", "
	if c.infix {
		sep = " " + c.op + " "
		b.Write("(")
	} else {
		b.Write(c.op).Write("(")
	}
	for i, a := range c.args {
		if i > 0 {
			b.Write(sep)
		}
		writeValue(b, a)
	}
	b.Write(")")
}

// Extractor implements the Selector interface.
func (c *Computed) Extractor(b *sql.Builder, hint string) Extractor {
	return selectValue(b, c, hint)
}

// Joins implements the Selector interface.
func (c *Computed) Joins() iter.Seq[JoinField] { return joinsOf(c.args...) }

// Aggregate is an aggregate function owned by a table reference. It is
// valid only when its owner is grouped.
type Aggregate struct {
	owner *TableRef
	expr  *Computed
}

// EmitSQL implements the sql.Emitter interface.
func (a *Aggregate) EmitSQL(b *sql.Builder) {
	if !a.owner.grouped {
		b.AddError(rhubarb.NewInvalidSQLEmissionError("aggregate "+a.expr.op,
			"table reference "+a.owner.alias+" has no GROUP BY"))
	}
	a.expr.EmitSQL(b)
}

// Extractor implements the Selector interface.
func (a *Aggregate) Extractor(b *sql.Builder, hint string) Extractor {
	return selectValue(b, a, hint)
}

// Joins implements the Selector interface.
func (a *Aggregate) Joins() iter.Seq[JoinField] { return a.expr.Joins() }

// Value is a literal bound as a statement parameter.
type Value struct {
	v any
}

// V returns a literal value selector.
func V(v any) *Value { return &Value{v: v} }

// EmitSQL implements the sql.Emitter interface.
func (v *Value) EmitSQL(b *sql.Builder) { writeValue(b, v.v) }

// Extractor implements the Selector interface.
func (v *Value) Extractor(b *sql.Builder, hint string) Extractor {
	return selectValue(b, v, hint)
}

// Joins implements the Selector interface.
func (*Value) Joins() iter.Seq[JoinField] { return noJoins }

// Constant is a value known before the statement runs. It is never sent
// to the database.
type Constant struct {
	v any
}

// Const returns a constant selector.
func Const(v any) *Constant { return &Constant{v: v} }

// EmitSQL implements the sql.Emitter interface.
func (c *Constant) EmitSQL(b *sql.Builder) {
	b.AddError(rhubarb.NewInvalidSQLEmissionError("constant", "constants are extraction only"))
}

// Extractor implements the Selector interface.
func (c *Constant) Extractor(*sql.Builder, string) Extractor {
	return &constantExtractor{v: c.v}
}

// Joins implements the Selector interface.
func (*Constant) Joins() iter.Seq[JoinField] { return noJoins }

// List marks its inner selector as a to-many result, grouped by the key
// of the query it is selected in.
type List struct {
	inner Selector
}

// ListOf returns a list selector.
func ListOf(inner Selector) *List { return &List{inner: inner} }

// Inner returns the selector of the list elements.
func (l *List) Inner() Selector { return l.inner }

// Model returns the model selector of the list elements, if any.
func (l *List) Model() *ModelSelector {
	m, _ := innerModel(l.inner)
	return m
}

// EmitSQL implements the sql.Emitter interface.
func (l *List) EmitSQL(b *sql.Builder) { l.inner.EmitSQL(b) }

// Extractor implements the Selector interface.
func (l *List) Extractor(b *sql.Builder, hint string) Extractor {
	return &listExtractor{inner: l.inner.Extractor(b, hint)}
}

// Joins implements the Selector interface.
func (l *List) Joins() iter.Seq[JoinField] { return l.inner.Joins() }

// Wrapped carries the provenance of a model field: the table reference
// and field name its inner selector was resolved from.
type Wrapped struct {
	inner Selector
	ref   *TableRef
	field string
}

// Wrap returns a wrapped selector.
func Wrap(inner Selector, ref *TableRef, field string) *Wrapped {
	return &Wrapped{inner: inner, ref: ref, field: field}
}

// Inner returns the wrapped selector.
func (w *Wrapped) Inner() Selector { return w.inner }

// Field returns the field the selector was resolved from.
func (w *Wrapped) Field() string { return w.field }

// EmitSQL implements the sql.Emitter interface.
func (w *Wrapped) EmitSQL(b *sql.Builder) { w.inner.EmitSQL(b) }

// Extractor implements the Selector interface.
func (w *Wrapped) Extractor(b *sql.Builder, hint string) Extractor {
	if hint == "" {
		hint = w.field
	}
	return &wrappedExtractor{
		inner:  w.inner.Extractor(b, hint),
		origin: origin{ref: w.ref.alias, field: w.field},
	}
}

// Joins implements the Selector interface.
func (w *Wrapped) Joins() iter.Seq[JoinField] { return w.inner.Joins() }

// Pair is a named selector of a Dict.
type Pair struct {
	Name  string
	Value any
}

// KV returns a pair. Values that are not selectors are selected as constants.
func KV(name string, v any) Pair { return Pair{Name: name, Value: v} }

func asSelector(v any) Selector {
	if s, ok := v.(Selector); ok {
		return s
	}
	return Const(v)
}

// Dict selects named selectors and extracts them as a map.
type Dict struct {
	pairs []Pair
}

// DictOf returns a dict selector.
func DictOf(pairs ...Pair) *Dict { return &Dict{pairs: pairs} }

// EmitSQL implements the sql.Emitter interface.
func (d *Dict) EmitSQL(b *sql.Builder) {
	b.AddError(rhubarb.NewInvalidSQLEmissionError("dict", "dicts can only be selected"))
}

// Extractor implements the Selector interface.
func (d *Dict) Extractor(b *sql.Builder, _ string) Extractor {
	x := &dictExtractor{}
	for _, p := range d.pairs {
		x.names = append(x.names, p.Name)
		x.subs = append(x.subs, asSelector(p.Value).Extractor(b, p.Name))
	}
	return x
}

// Joins implements the Selector interface.
func (d *Dict) Joins() iter.Seq[JoinField] {
	return func(yield func(JoinField) bool) {
		for _, p := range d.pairs {
			for jf := range asSelector(p.Value).Joins() {
				if !yield(jf) {
					return
				}
			}
		}
	}
}

// Tuple is an ordered group of selectors. It renders as "(a, b)" and
// extracts as a slice. In GROUP BY and ORDER BY clauses its items are
// written as a plain list.
type Tuple struct {
	items []Selector
}

// TupleOf returns a tuple selector.
func TupleOf(items ...Selector) *Tuple { return &Tuple{items: items} }

// Items returns the selectors of the tuple.
func (t *Tuple) Items() []Selector { return t.items }

// EmitSQL implements the sql.Emitter interface.
func (t *Tuple) EmitSQL(b *sql.Builder) {
	b.Write("(")
	t.writeList(b)
	b.Write(")")
}

func (t *Tuple) writeList(b *sql.Builder) {
	for i, s := range t.items {
		if i > 0 {
			b.Write(", ")
		}
		s.EmitSQL(b)
	}
}

// Extractor implements the Selector interface.
func (t *Tuple) Extractor(b *sql.Builder, hint string) Extractor {
	x := &tupleExtractor{}
	for _, s := range t.items {
		x.subs = append(x.subs, s.Extractor(b, hint))
	}
	return x
}

// Joins implements the Selector interface.
func (t *Tuple) Joins() iter.Seq[JoinField] { return joinsOf(t.items...) }

// Order is an ORDER BY item.
type Order struct {
	sel  Selector
	desc bool
}

// Asc orders by the selector in ascending order.
func Asc(s Selector) *Order { return &Order{sel: s} }

// Desc orders by the selector in descending order.
func Desc(s Selector) *Order { return &Order{sel: s, desc: true} }

// EmitSQL implements the sql.Emitter interface.
func (o *Order) EmitSQL(b *sql.Builder) {
	o.sel.EmitSQL(b)
	if o.desc {
		b.Write(" DESC")
	} else {
		b.Write(" ASC")
	}
}

// Extractor implements the Selector interface.
func (o *Order) Extractor(b *sql.Builder, hint string) Extractor {
	return o.sel.Extractor(b, hint)
}

// Joins implements the Selector interface.
func (o *Order) Joins() iter.Seq[JoinField] { return o.sel.Joins() }

// invalid is the selector returned by lookups that failed. Its error is
// reported when the selector is compiled.
type invalid struct {
	err error
}

func (i *invalid) EmitSQL(b *sql.Builder) { b.AddError(i.err) }

func (i *invalid) Extractor(b *sql.Builder, _ string) Extractor {
	b.AddError(i.err)
	return &constantExtractor{}
}

func (*invalid) Joins() iter.Seq[JoinField] { return noJoins }

// Err returns the compile error carried by the selector, if any.
func Err(s Selector) error {
	if i, ok := s.(*invalid); ok {
		return i.err
	}
	return nil
}

// writeClause writes a GROUP BY or ORDER BY clause.
func writeClause(b *sql.Builder, s Selector) {
	if t, ok := s.(*Tuple); ok {
		t.writeList(b)
		return
	}
	s.EmitSQL(b)
}

// innerModel returns the model selector at the core of s.
func innerModel(s Selector) (*ModelSelector, bool) {
	for {
		switch v := s.(type) {
		case *ModelSelector:
			return v, true
		case *List:
			s = v.inner
		case *Wrapped:
			s = v.inner
		default:
			return nil, false
		}
	}
}

func hintOf(name string) string {
	return strings.ToLower(name)
}
