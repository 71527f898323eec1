package objectset

import (
	"iter"
	"slices"
	"strings"

	"github.com/syssam/rhubarb"
	"github.com/syssam/rhubarb/dialect/sql"
)

// ModelSelector selects a model occurrence as a whole. Its fields are
// resolved against the closed field map of the model.
//
// By default the physical columns of the model are selected. With adds
// virtual and relation fields, Only restricts the selection. The primary
// key is always selected.
type ModelSelector struct {
	ref  *TableRef
	join *Join
	// scope is the query resolving the relations of the selector, when it
	// differs from the scope of its reference.
	scope *ObjectSet
	// selected holds the explicitly selected fields, with the nested
	// selection of relation fields.
	selected map[string][]string
	only     bool
	err      error
}

func newModelSelector(ref *TableRef, join *Join) *ModelSelector {
	return &ModelSelector{ref: ref, join: join}
}

// Ref returns the table reference of the selector.
func (m *ModelSelector) Ref() *TableRef { return m.ref }

// Model returns the model of the selector.
func (m *ModelSelector) Model() *Model { return m.ref.model }

// F returns the selector of the named field. Columns resolve to a
// Column; virtual and relation fields to a Wrapped selector carrying
// their provenance. Unknown fields resolve to a selector failing the
// compilation with an UnresolvedFieldError.
func (m *ModelSelector) F(name string) Selector {
	if m.err != nil {
		return &invalid{err: m.err}
	}
	f, ok := m.ref.model.field(name)
	if !ok {
		return &invalid{err: rhubarb.NewUnresolvedFieldError(m.ref.model.Name(), name)}
	}
	switch f.kind {
	case virtualField:
		return Wrap(m.virtual(f), m.ref, f.name)
	case relationField:
		return Wrap(m.relation(f), m.ref, f.name)
	default:
		return &Column{ref: m.ref, field: f.name, column: f.column.ColumnName(), join: m.join}
	}
}

// Rel returns the model selector of a relation field.
func (m *ModelSelector) Rel(name string) *ModelSelector {
	s := m.F(name)
	if err := Err(s); err != nil {
		return &ModelSelector{err: err}
	}
	if t, ok := innerModel(s); ok {
		return t
	}
	return &ModelSelector{err: rhubarb.NewUnresolvedFieldError(m.ref.model.Name(), name+" (not a relation)")}
}

// Many returns the list selector of a to-many relation field.
func (m *ModelSelector) Many(name string) *List {
	s := m.F(name)
	if w, ok := s.(*Wrapped); ok {
		if l, ok := w.inner.(*List); ok {
			return l
		}
	}
	if err := Err(s); err != nil {
		return ListOf(s)
	}
	return ListOf(&invalid{err: rhubarb.NewUnresolvedFieldError(m.ref.model.Name(), name+" (not a to-many relation)")})
}

// With returns a copy of the selector with additional fields selected.
// Dotted paths select fields of relations: "author.books" selects the
// relation author, and the relation books of the author.
func (m *ModelSelector) With(fields ...string) *ModelSelector {
	c := m.clone()
	for _, f := range fields {
		head, rest, _ := strings.Cut(f, ".")
		if c.err == nil && !c.ref.model.HasField(head) {
			c.err = rhubarb.NewUnresolvedFieldError(c.ref.model.Name(), head)
		}
		nested := c.selected[head]
		if rest != "" && !slices.Contains(nested, rest) {
			nested = append(nested, rest)
		}
		c.selected[head] = nested
	}
	return c
}

// Only returns a copy of the selector restricted to the given fields
// and the primary key.
func (m *ModelSelector) Only(fields ...string) *ModelSelector {
	c := m.With(fields...)
	c.only = true
	return c
}

func (m *ModelSelector) clone() *ModelSelector {
	c := *m
	c.selected = make(map[string][]string, len(m.selected))
	for k, v := range m.selected {
		c.selected[k] = slices.Clone(v)
	}
	return &c
}

// in returns the selector resolving its relations within s.
func (m *ModelSelector) in(s *ObjectSet) *ModelSelector {
	if m.scope == s {
		return m
	}
	c := *m
	c.scope = s
	return &c
}

func (m *ModelSelector) owner() *ObjectSet {
	if m.scope != nil {
		return m.scope
	}
	return m.ref.scope
}

// withRef returns a copy of the selector reading from another reference.
func (m *ModelSelector) withRef(ref *TableRef) *ModelSelector {
	c := m.clone()
	c.ref = ref
	return c
}

// names returns the selected field names in model order.
func (m *ModelSelector) names() []string {
	var names []string
	pk := m.ref.model.PrimaryKey()
	for _, f := range m.ref.model.fields {
		_, sel := m.selected[f.name]
		if sel || slices.Contains(pk, f.name) || (!m.only && f.kind == columnField) {
			names = append(names, f.name)
		}
	}
	return names
}

func (m *ModelSelector) virtual(f *modelField) Selector {
	s := f.virtual(m)
	if _, ok := s.(*Aggregate); ok && m.join != nil && m.ref.sub != nil {
		// Aggregates of a joined grouped model are computed by its
		// subquery, and read back as a column of it.
		return &Column{ref: m.ref, field: f.name, column: hintOf(f.name), join: m.join}
	}
	return s
}

func (m *ModelSelector) relation(f *modelField) Selector {
	target, err := f.rel.Target(m.ref.model.reg)
	if err != nil {
		return &invalid{err: err}
	}
	spec := f.rel.spec
	spec.path = m.ref.alias + "." + f.name
	spec.fields = m.selected[f.name]
	on := f.rel.on
	return m.owner().join(target, func(t *ModelSelector) Selector { return on(m, t) }, spec).selection
}

// EmitSQL implements the sql.Emitter interface. A model is written as
// its primary key.
func (m *ModelSelector) EmitSQL(b *sql.Builder) {
	if m.err != nil {
		b.AddError(m.err)
		return
	}
	pk := m.pkSelector()
	if pk == nil {
		b.AddError(rhubarb.NewInvalidSQLEmissionError("model "+m.ref.model.Name(), "model has no primary key"))
		return
	}
	pk.EmitSQL(b)
}

// pkSelector returns the selector of the primary key: a column, a tuple
// of columns for composite keys, or nil.
func (m *ModelSelector) pkSelector() Selector {
	pk := m.ref.model.PrimaryKey()
	switch len(pk) {
	case 0:
		return nil
	case 1:
		return m.F(pk[0])
	}
	items := make([]Selector, len(pk))
	for i, name := range pk {
		items[i] = m.F(name)
	}
	return TupleOf(items...)
}

// Extractor implements the Selector interface.
func (m *ModelSelector) Extractor(b *sql.Builder, _ string) Extractor {
	if m.err != nil {
		b.AddError(m.err)
		return &constantExtractor{}
	}
	x := &modelExtractor{
		ref:      m.ref.alias,
		model:    m.ref.model,
		subs:     make(map[string]Extractor),
		nullable: m.join != nil && m.join.kind == LeftJoin,
	}
	for _, name := range m.names() {
		x.names = append(x.names, name)
		x.subs[name] = m.F(name).Extractor(b, name)
	}
	return x
}

// Joins implements the Selector interface.
func (m *ModelSelector) Joins() iter.Seq[JoinField] {
	return func(yield func(JoinField) bool) {
		if m.err != nil {
			return
		}
		for _, name := range m.names() {
			for jf := range m.F(name).Joins() {
				if !yield(jf) {
					return
				}
			}
		}
	}
}
