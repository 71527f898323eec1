package objectset

import (
	"iter"

	"github.com/syssam/rhubarb/dialect/sql"
)

// EQ returns the "(a = b)" predicate.
func EQ(a, b any) *Computed { return Infix("=", a, b) }

// NEQ returns the "(a <> b)" predicate.
func NEQ(a, b any) *Computed { return Infix("<>", a, b) }

// LT returns the "(a < b)" predicate.
func LT(a, b any) *Computed { return Infix("<", a, b) }

// LTE returns the "(a <= b)" predicate.
func LTE(a, b any) *Computed { return Infix("<=", a, b) }

// GT returns the "(a > b)" predicate.
func GT(a, b any) *Computed { return Infix(">", a, b) }

// GTE returns the "(a >= b)" predicate.
func GTE(a, b any) *Computed { return Infix(">=", a, b) }

// And joins the predicates with AND. A single predicate is returned as is.
func And(preds ...Selector) Selector { return join("AND", preds) }

// Or joins the predicates with OR. A single predicate is returned as is.
func Or(preds ...Selector) Selector { return join("OR", preds) }

func join(op string, preds []Selector) Selector {
	preds = compact(preds)
	switch len(preds) {
	case 0:
		return V(op == "AND")
	case 1:
		return preds[0]
	}
	args := make([]any, len(preds))
	for i, p := range preds {
		args[i] = p
	}
	return Infix(op, args...)
}

func compact(preds []Selector) []Selector {
	out := preds[:0:0]
	for _, p := range preds {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Not negates a predicate.
func Not(a any) *Computed { return Fn("NOT", a) }

// In returns the "(a IN (v1, v2))" predicate. An empty value list is
// always false.
func In(a any, values ...any) Selector {
	if len(values) == 0 {
		return V(false)
	}
	return Infix("IN", a, valueList(values))
}

// NotIn returns the "(a NOT IN (v1, v2))" predicate.
func NotIn(a any, values ...any) Selector {
	if len(values) == 0 {
		return V(true)
	}
	return Infix("NOT IN", a, valueList(values))
}

// IsNull returns the "(a IS NULL)" predicate.
func IsNull(a any) *Computed { return Infix("IS", a, sql.Raw("NULL")) }

// IsNotNull returns the "(a IS NOT NULL)" predicate.
func IsNotNull(a any) *Computed { return Infix("IS NOT", a, sql.Raw("NULL")) }

// Like returns the "(a LIKE pattern)" predicate.
func Like(a, pattern any) *Computed { return Infix("LIKE", a, pattern) }

// ILike returns the "(a ILIKE pattern)" predicate.
func ILike(a, pattern any) *Computed { return Infix("ILIKE", a, pattern) }

// Add returns "(a + b)".
func Add(a, b any) *Computed { return Infix("+", a, b) }

// Sub returns "(a - b)".
func Sub(a, b any) *Computed { return Infix("-", a, b) }

// Mul returns "(a * b)".
func Mul(a, b any) *Computed { return Infix("*", a, b) }

// Div returns "(a / b)".
func Div(a, b any) *Computed { return Infix("/", a, b) }

// Concat returns "CONCAT(args...)".
func Concat(args ...any) *Computed { return Fn("CONCAT", args...) }

// Coalesce returns "COALESCE(args...)".
func Coalesce(args ...any) *Computed { return Fn("COALESCE", args...) }

// Sum returns the SUM aggregate over the rows of m.
func Sum(m *ModelSelector, x any) *Aggregate { return aggregate(m, "SUM", x) }

// Count returns the COUNT aggregate over the rows of m. A nil argument
// counts rows.
func Count(m *ModelSelector, x any) *Aggregate {
	if x == nil {
		x = sql.Raw("*")
	}
	return aggregate(m, "COUNT", x)
}

// Avg returns the AVG aggregate over the rows of m.
func Avg(m *ModelSelector, x any) *Aggregate { return aggregate(m, "AVG", x) }

// Max returns the MAX aggregate over the rows of m.
func Max(m *ModelSelector, x any) *Aggregate { return aggregate(m, "MAX", x) }

// Min returns the MIN aggregate over the rows of m.
func Min(m *ModelSelector, x any) *Aggregate { return aggregate(m, "MIN", x) }

// StringAgg returns the STRING_AGG aggregate over the rows of m.
func StringAgg(m *ModelSelector, x, sep any) *Aggregate {
	return aggregate(m, "STRING_AGG", x, sep)
}

// ArrayAgg returns the ARRAY_AGG aggregate over the rows of m.
func ArrayAgg(m *ModelSelector, x any) *Aggregate { return aggregate(m, "ARRAY_AGG", x) }

// JSONAgg returns the JSON_AGG aggregate over the rows of m.
func JSONAgg(m *ModelSelector, x any) *Aggregate { return aggregate(m, "JSON_AGG", x) }

func aggregate(m *ModelSelector, name string, args ...any) *Aggregate {
	return &Aggregate{owner: m.ref, expr: Fn(name, args...)}
}

// valueList renders "(v1, v2, ...)".
type valueList []any

func (l valueList) EmitSQL(b *sql.Builder) {
	b.Write("(")
	for i, v := range l {
		if i > 0 {
			b.Write(", ")
		}
		writeValue(b, v)
	}
	b.Write(")")
}

func (l valueList) Extractor(b *sql.Builder, hint string) Extractor {
	return selectValue(b, l, hint)
}

func (l valueList) Joins() iter.Seq[JoinField] { return joinsOf([]any(l)...) }

// When is a branch of a CASE expression.
type When struct {
	Cond Selector
	Then any
}

// CaseExpr is a "CASE WHEN ... THEN ... ELSE ... END" expression.
type CaseExpr struct {
	whens []When
	els   any
}

// Case returns a CASE expression. A nil else value is omitted.
func Case(whens []When, els any) *CaseExpr {
	return &CaseExpr{whens: whens, els: els}
}

// EmitSQL implements the sql.Emitter interface.
func (c *CaseExpr) EmitSQL(b *sql.Builder) {
	b.Write("CASE")
	for _, w := range c.whens {
		b.Write(" WHEN ")
		w.Cond.EmitSQL(b)
		b.Write(" THEN ")
		writeValue(b, w.Then)
	}
	if c.els != nil {
		b.Write(" ELSE ")
		writeValue(b, c.els)
	}
	b.Write(" END")
}

// Extractor implements the Selector interface.
func (c *CaseExpr) Extractor(b *sql.Builder, hint string) Extractor {
	return selectValue(b, c, hint)
}

// Joins implements the Selector interface.
func (c *CaseExpr) Joins() iter.Seq[JoinField] {
	return func(yield func(JoinField) bool) {
		for _, w := range c.whens {
			for jf := range joinsOf[any](w.Cond, w.Then) {
				if !yield(jf) {
					return
				}
			}
		}
		for jf := range joinsOf[any](c.els) {
			if !yield(jf) {
				return
			}
		}
	}
}
