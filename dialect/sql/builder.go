package sql

import (
	"encoding/json"
	"errors"
	"maps"
	"reflect"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/syssam/rhubarb/dialect"
	"github.com/syssam/rhubarb/schema/field"
)

// Emitter is implemented by expressions that render themselves into a Builder.
type Emitter interface {
	EmitSQL(*Builder)
}

// Raw is an Emitter writing its text verbatim.
type Raw string

// EmitSQL implements the Emitter interface.
func (r Raw) EmitSQL(b *Builder) { b.Write(string(r)) }

// Builder accumulates the text and the arguments of one statement.
//
// It memoizes the alias given to every (table alias, column) pair written
// through WriteColumn, so a column selected by several clauses of the same
// statement is aliased once. Aliases are "{hint}_{n}" with n a per-statement
// counter, or the bare hint while a correlated subquery is being written.
type Builder struct {
	sb       strings.Builder
	args     []any
	columns  map[string]string
	aliases  int
	selected bool
	subquery bool
	dialect  string
	lower    cases.Caser
	errs     []error
}

// NewBuilder returns a Builder for the given dialect.
func NewBuilder(name string) *Builder {
	if name == "" {
		name = dialect.Postgres
	}
	return &Builder{
		dialect: name,
		columns: make(map[string]string),
		lower:   cases.Lower(language.Und),
	}
}

// Dialect returns the dialect of the builder.
func (b *Builder) Dialect() string { return b.dialect }

// Write appends the given string to the statement.
func (b *Builder) Write(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// Ident writes the given identifier quoted.
func (b *Builder) Ident(name string) *Builder {
	return b.Write(Quote(name))
}

// Table writes a schema-qualified table name. An empty schema is omitted.
func (b *Builder) Table(schema, table string) *Builder {
	if schema != "" {
		b.Ident(schema).Write(".")
	}
	return b.Ident(table)
}

// WriteValue writes the given value. Emitters render themselves, any
// other value is bound as a parameter.
func (b *Builder) WriteValue(v any) *Builder {
	if e, ok := v.(Emitter); ok {
		e.EmitSQL(b)
		return b
	}
	return b.Arg(v)
}

// Arg binds the given value as a parameter and writes its placeholder.
// In PostgreSQL the placeholder is cast to the SQL type inferred from
// the value. nil is written as NULL.
func (b *Builder) Arg(v any) *Builder {
	if v == nil {
		return b.Write("NULL")
	}
	t, typed := field.TypeOf(v)
	b.args = append(b.args, b.convert(v, t))
	if b.dialect == dialect.SQLite {
		return b.Write("?")
	}
	b.Write("$").Write(strconv.Itoa(len(b.args)))
	if typed {
		b.Write("::").Write(t.String())
	}
	return b
}

// TypedArg binds the given value as a parameter of the given SQL type.
// nil is written as NULL.
func (b *Builder) TypedArg(v any, t field.Type) *Builder {
	if v == nil {
		return b.Write("NULL")
	}
	b.args = append(b.args, b.convert(v, t))
	if b.dialect == dialect.SQLite {
		return b.Write("?")
	}
	return b.Write("$").Write(strconv.Itoa(len(b.args))).Write("::").Write(t.String())
}

func (b *Builder) convert(v any, t field.Type) any {
	switch v := v.(type) {
	case json.RawMessage:
		return string(v)
	case []byte:
		return v
	}
	switch {
	case t == field.TypeJSONB:
		buf, err := json.Marshal(v)
		if err != nil {
			b.AddError(err)
			return nil
		}
		return string(buf)
	case t.IsArray() && b.dialect == dialect.Postgres && reflect.TypeOf(v).Kind() == reflect.Slice:
		return pq.Array(v)
	}
	return v
}

// StartSelection writes the separator of a select list entry.
func (b *Builder) StartSelection() *Builder {
	if b.selected {
		b.Write(", ")
	}
	b.selected = true
	return b
}

// ResetSelection starts a new select list and returns the state of the
// previous one, to be restored with RestoreSelection.
func (b *Builder) ResetSelection() bool {
	prev := b.selected
	b.selected = false
	return prev
}

// RestoreSelection restores the select list state returned by ResetSelection.
func (b *Builder) RestoreSelection(prev bool) {
	b.selected = prev
}

// SetSubquery switches correlated subquery mode and returns the previous mode.
func (b *Builder) SetSubquery(on bool) bool {
	prev := b.subquery
	b.subquery = on
	return prev
}

// Subquery reports if a correlated subquery is being written.
func (b *Builder) Subquery() bool { return b.subquery }

// WriteAlias writes " AS alias" for the given hint and returns the alias.
func (b *Builder) WriteAlias(hint string) string {
	alias := b.lower.String(hint)
	if !b.subquery {
		b.aliases++
		alias += "_" + strconv.Itoa(b.aliases)
	}
	b.Write(" AS ").Write(alias)
	return alias
}

// WriteColumn selects the column of the given table alias and returns
// its column alias. A column that was already selected in the statement
// is not written again and keeps its first alias.
func (b *Builder) WriteColumn(table, column, hint string) string {
	key := ColumnExpr(table, column)
	if alias, ok := b.columns[key]; ok {
		return alias
	}
	if hint == "" {
		hint = column
	}
	b.StartSelection()
	b.Write(key)
	alias := b.WriteAlias(hint)
	b.columns[key] = alias
	return alias
}

// ColumnAlias returns the alias of a column written with WriteColumn.
func (b *Builder) ColumnAlias(table, column string) (string, bool) {
	alias, ok := b.columns[ColumnExpr(table, column)]
	return alias, ok
}

// Columns returns a copy of the column alias memo.
func (b *Builder) Columns() map[string]string {
	return maps.Clone(b.columns)
}

// AddError appends an error to the builder errors.
func (b *Builder) AddError(err error) *Builder {
	if err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Err returns a concatenated error of all errors encountered during
// the statement-building, or were added manually by calling AddError.
func (b *Builder) Err() error {
	return errors.Join(b.errs...)
}

// Query returns the statement text and its arguments.
func (b *Builder) Query() (string, []any) {
	return b.sb.String(), b.args
}

// String returns the statement text.
func (b *Builder) String() string {
	return b.sb.String()
}

// Quote quotes an identifier.
func Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// ColumnExpr returns the qualified column expression alias."column".
func ColumnExpr(table, column string) string {
	return table + "." + Quote(column)
}
