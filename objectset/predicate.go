package objectset

// Predicate builds a boolean selector from the selector of the model
// being filtered.
type Predicate func(*ModelSelector) Selector

// Field is a typed field name providing predicate methods.
//
// Usage:
//
//	var Title = objectset.StringField("title")
//	books.Where(Title.HasPrefix("Dune"))
//	books.Where(objectset.Field[int64]("author_id").In(1, 2))
type Field[T any] string

// Name returns the field name.
func (f Field[T]) Name() string { return string(f) }

// Of returns the selector of the field in m.
func (f Field[T]) Of(m *ModelSelector) Selector { return m.F(string(f)) }

// EQ returns a predicate that checks if the field equals the given value.
func (f Field[T]) EQ(v T) Predicate {
	return func(m *ModelSelector) Selector { return EQ(f.Of(m), v) }
}

// NEQ returns a predicate that checks if the field does not equal the given value.
func (f Field[T]) NEQ(v T) Predicate {
	return func(m *ModelSelector) Selector { return NEQ(f.Of(m), v) }
}

// LT returns a predicate that checks if the field is less than the given value.
func (f Field[T]) LT(v T) Predicate {
	return func(m *ModelSelector) Selector { return LT(f.Of(m), v) }
}

// LTE returns a predicate that checks if the field is less than or equal to the given value.
func (f Field[T]) LTE(v T) Predicate {
	return func(m *ModelSelector) Selector { return LTE(f.Of(m), v) }
}

// GT returns a predicate that checks if the field is greater than the given value.
func (f Field[T]) GT(v T) Predicate {
	return func(m *ModelSelector) Selector { return GT(f.Of(m), v) }
}

// GTE returns a predicate that checks if the field is greater than or equal to the given value.
func (f Field[T]) GTE(v T) Predicate {
	return func(m *ModelSelector) Selector { return GTE(f.Of(m), v) }
}

// In returns a predicate that checks if the field value is in the given list.
func (f Field[T]) In(vs ...T) Predicate {
	return func(m *ModelSelector) Selector { return In(f.Of(m), anys(vs)...) }
}

// NotIn returns a predicate that checks if the field value is not in the given list.
func (f Field[T]) NotIn(vs ...T) Predicate {
	return func(m *ModelSelector) Selector { return NotIn(f.Of(m), anys(vs)...) }
}

// IsNull returns a predicate that checks if the field is NULL.
func (f Field[T]) IsNull() Predicate {
	return func(m *ModelSelector) Selector { return IsNull(f.Of(m)) }
}

// NotNull returns a predicate that checks if the field is not NULL.
func (f Field[T]) NotNull() Predicate {
	return func(m *ModelSelector) Selector { return IsNotNull(f.Of(m)) }
}

// StringField is a text field with pattern predicates.
type StringField string

// Field returns the generic field of f.
func (f StringField) Field() Field[string] { return Field[string](f) }

// EQ returns a predicate that checks if the field equals the given value.
func (f StringField) EQ(v string) Predicate { return f.Field().EQ(v) }

// NEQ returns a predicate that checks if the field does not equal the given value.
func (f StringField) NEQ(v string) Predicate { return f.Field().NEQ(v) }

// In returns a predicate that checks if the field value is in the given list.
func (f StringField) In(vs ...string) Predicate { return f.Field().In(vs...) }

// Contains returns a predicate that checks if the field contains the given substring.
func (f StringField) Contains(v string) Predicate { return f.like(Like, "%"+escapeLike(v)+"%") }

// ContainsFold returns a predicate that checks if the field contains the given substring (case-insensitive).
func (f StringField) ContainsFold(v string) Predicate {
	return f.like(ILike, "%"+escapeLike(v)+"%")
}

// HasPrefix returns a predicate that checks if the field has the given prefix.
func (f StringField) HasPrefix(v string) Predicate { return f.like(Like, escapeLike(v)+"%") }

// HasSuffix returns a predicate that checks if the field has the given suffix.
func (f StringField) HasSuffix(v string) Predicate { return f.like(Like, "%"+escapeLike(v)) }

func (f StringField) like(op func(a, pattern any) *Computed, pattern string) Predicate {
	return func(m *ModelSelector) Selector { return op(m.F(string(f)), pattern) }
}

// Not negates a predicate.
func (p Predicate) Not() Predicate {
	return func(m *ModelSelector) Selector { return Not(p(m)) }
}

// AndP returns a predicate that holds when all predicates hold.
func AndP(preds ...Predicate) Predicate {
	return func(m *ModelSelector) Selector { return And(apply(m, preds)...) }
}

// OrP returns a predicate that holds when any predicate holds.
func OrP(preds ...Predicate) Predicate {
	return func(m *ModelSelector) Selector { return Or(apply(m, preds)...) }
}

func apply(m *ModelSelector, preds []Predicate) []Selector {
	out := make([]Selector, len(preds))
	for i, p := range preds {
		out[i] = p(m)
	}
	return out
}

func anys[T any](vs []T) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

func escapeLike(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		if c := s[i]; c == '%' || c == '_' || c == '\\' {
			b = append(b, '\\')
		}
		b = append(b, s[i])
	}
	return string(b)
}
