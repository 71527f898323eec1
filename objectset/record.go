package objectset

import (
	"maps"
	"slices"

	"github.com/syssam/rhubarb"
)

// Record is an extracted model row. Fields that were not fetched hold
// rhubarb.Unset, fields holding SQL NULL hold nil.
type Record struct {
	model  *Model
	values []any
}

func newRecord(m *Model, values []any) *Record {
	return &Record{model: m, values: values}
}

// NewRecord returns a record of the model with every field Unset.
func NewRecord(m *Model) *Record {
	values := make([]any, len(m.fields))
	for i := range values {
		values[i] = rhubarb.Unset
	}
	return newRecord(m, values)
}

// Model returns the model of the record.
func (r *Record) Model() *Model { return r.model }

// Fields returns the field names of the record.
func (r *Record) Fields() []string { return r.model.Fields() }

// Lookup returns the value of the named field, and whether the model
// declares it.
func (r *Record) Lookup(name string) (any, bool) {
	i, ok := r.model.index[name]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

// Get returns the value of the named field, or nil.
func (r *Record) Get(name string) any {
	v, _ := r.Lookup(name)
	return v
}

// Set sets the value of the named field.
func (r *Record) Set(name string, v any) error {
	i, ok := r.model.index[name]
	if !ok {
		return rhubarb.NewUnresolvedFieldError(r.model.Name(), name)
	}
	r.values[i] = v
	return nil
}

// PK returns the primary key of the record: the value of the primary
// key field, or a slice of values for composite keys.
func (r *Record) PK() any {
	pk := r.model.PrimaryKey()
	switch len(pk) {
	case 0:
		return nil
	case 1:
		return r.Get(pk[0])
	}
	vs := make([]any, len(pk))
	for i, name := range pk {
		vs[i] = r.Get(name)
	}
	return vs
}

// nullPK reports if every primary key value is NULL.
func (r *Record) nullPK() bool {
	pk := r.model.PrimaryKey()
	if len(pk) == 0 {
		return false
	}
	return !slices.ContainsFunc(pk, func(name string) bool {
		return r.Get(name) != nil
	})
}

// Map returns the fetched fields of the record.
func (r *Record) Map() map[string]any {
	m := make(map[string]any, len(r.values))
	for i, f := range r.model.fields {
		v := r.values[i]
		if rhubarb.IsUnset(v) {
			continue
		}
		if nested, ok := v.(*Record); ok {
			v = nested.Map()
		}
		m[f.name] = v
	}
	return m
}

// Clone returns a copy of the record.
func (r *Record) Clone() *Record {
	return newRecord(r.model, slices.Clone(r.values))
}

// Equal reports if both records are of the same model and hold equal
// fetched values. Nested records are not compared.
func (r *Record) Equal(o *Record) bool {
	if r.model != o.model {
		return false
	}
	return maps.EqualFunc(r.Map(), o.Map(), func(a, b any) bool {
		_, ra := a.(map[string]any)
		_, rb := b.(map[string]any)
		if ra || rb {
			return true
		}
		return normalizeKey(a) == normalizeKey(b)
	})
}
