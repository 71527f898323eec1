package objectset

import (
	"fmt"
	"sync"

	"github.com/syssam/rhubarb/schema"
)

type fieldKind int

const (
	columnField fieldKind = iota
	virtualField
	relationField
)

type modelField struct {
	name    string
	kind    fieldKind
	column  schema.ColumnDescriptor
	virtual func(*ModelSelector) Selector
	rel     *Relation
}

// Model is a registered table: its descriptor, the closed map of its
// fields and its query hooks. Fields are ordered as declared, columns
// first.
type Model struct {
	schema.TableDescriptor
	reg     *Registry
	fields  []*modelField
	index   map[string]int
	filter  func(*ModelSelector) Selector
	groupBy func(*ModelSelector) Selector
	order   func(*ModelSelector) Selector
	policy  Policy
	err     error
}

func newModel(reg *Registry, t schema.TableDescriptor) *Model {
	m := &Model{TableDescriptor: t, reg: reg, index: make(map[string]int)}
	for _, c := range t.Columns() {
		m.addField(&modelField{name: c.FieldName(), kind: columnField, column: c})
	}
	for _, pk := range t.PrimaryKey() {
		if f, ok := m.field(pk); !ok || f.kind != columnField {
			m.err = fmt.Errorf("objectset: primary key %q is not a column of %q", pk, t.Name())
		}
	}
	return m
}

func (m *Model) addField(f *modelField) {
	if _, ok := m.index[f.name]; ok {
		m.err = fmt.Errorf("objectset: duplicate field %q in model %q", f.name, m.Name())
		return
	}
	m.index[f.name] = len(m.fields)
	m.fields = append(m.fields, f)
}

func (m *Model) field(name string) (*modelField, bool) {
	i, ok := m.index[name]
	if !ok {
		return nil, false
	}
	return m.fields[i], true
}

// Fields returns the field names of the model in order.
func (m *Model) Fields() []string {
	names := make([]string, len(m.fields))
	for i, f := range m.fields {
		names[i] = f.name
	}
	return names
}

// HasField reports if the model declares the field.
func (m *Model) HasField(name string) bool {
	_, ok := m.index[name]
	return ok
}

// Column returns the column descriptor of a physical field.
func (m *Model) Column(name string) (schema.ColumnDescriptor, bool) {
	f, ok := m.field(name)
	if !ok || f.kind != columnField {
		return nil, false
	}
	return f.column, true
}

// Relation returns the relation declared under name.
func (m *Model) Relation(name string) (*Relation, bool) {
	f, ok := m.field(name)
	if !ok || f.kind != relationField {
		return nil, false
	}
	return f.rel, true
}

// hooked reports if the model is joined as a subquery.
func (m *Model) hooked() bool {
	return m.filter != nil || m.groupBy != nil || m.order != nil
}

// ModelOption configures a model at registration.
type ModelOption func(*Model)

// Virtual declares a field computed from other selectors. The function
// receives the selector of the model the field is read from.
func Virtual(name string, fn func(*ModelSelector) Selector) ModelOption {
	return func(m *Model) {
		m.addField(&modelField{name: name, kind: virtualField, virtual: fn})
	}
}

// OnFunc builds the predicate joining a relation target to its parent.
type OnFunc func(parent, target *ModelSelector) Selector

// ForeignKey joins on parent.local = target.remote.
func ForeignKey(local, remote string) OnFunc {
	return func(parent, target *ModelSelector) Selector {
		return EQ(parent.F(local), target.F(remote))
	}
}

// HasOne declares a to-one relation to the model registered as target.
func HasOne(name, target string, on OnFunc, opts ...JoinOption) ModelOption {
	return relation(name, target, on, false, opts)
}

// HasMany declares a to-many relation to the model registered as target.
func HasMany(name, target string, on OnFunc, opts ...JoinOption) ModelOption {
	return relation(name, target, on, true, opts)
}

func relation(name, target string, on OnFunc, many bool, opts []JoinOption) ModelOption {
	return func(m *Model) {
		spec := joinSpec{list: many}
		for _, opt := range opts {
			opt(&spec)
		}
		m.addField(&modelField{name: name, kind: relationField, rel: &Relation{
			name:   name,
			target: target,
			on:     on,
			spec:   spec,
		}})
	}
}

// Filter sets the filter every query of the model starts with.
func Filter(fn func(*ModelSelector) Selector) ModelOption {
	return func(m *Model) { m.filter = fn }
}

// GroupBy makes the model an aggregate: its rows are grouped by the
// selector fn returns, which also keys its query results.
func GroupBy(fn func(*ModelSelector) Selector) ModelOption {
	return func(m *Model) { m.groupBy = fn }
}

// DefaultOrder sets the order every query of the model starts with.
func DefaultOrder(fn func(*ModelSelector) Selector) ModelOption {
	return func(m *Model) { m.order = fn }
}

// Relation is a relation field. Its target is resolved by name on first
// use, so relations may reference models registered later, or their
// own model.
type Relation struct {
	name   string
	target string
	on     OnFunc
	spec   joinSpec
	once   sync.Once
	model  *Model
	err    error
}

// Name returns the field name of the relation.
func (r *Relation) Name() string { return r.name }

// Many reports if the relation is to-many.
func (r *Relation) Many() bool { return r.spec.list }

// Target resolves the target model.
func (r *Relation) Target(reg *Registry) (*Model, error) {
	r.once.Do(func() {
		m, ok := reg.Model(r.target)
		if !ok {
			r.err = fmt.Errorf("objectset: relation %q targets unknown model %q", r.name, r.target)
			return
		}
		r.model = m
	})
	return r.model, r.err
}
