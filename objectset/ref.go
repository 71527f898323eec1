package objectset

import (
	"iter"
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/syssam/rhubarb/dialect/sql"
)

// refAllocator numbers the table references of one query lineage. A
// clone copies the allocator of its parent: a relation traversed from the
// same parent reference keeps its alias, and sibling queries number their
// own references independently. Correlated subqueries share the allocator
// of the statement they are joined into.
type refAllocator struct {
	mu    sync.Mutex
	next  int
	paths map[string]int
}

func newRefAllocator() *refAllocator {
	return &refAllocator{paths: make(map[string]int)}
}

func (a *refAllocator) clone() *refAllocator {
	a.mu.Lock()
	defer a.mu.Unlock()
	return &refAllocator{next: a.next, paths: maps.Clone(a.paths)}
}

// alloc returns the number of the reference at path. An empty path
// always allocates a new number.
func (a *refAllocator) alloc(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n, ok := a.paths[path]; ok && path != "" {
		return n
	}
	a.next++
	if path != "" {
		a.paths[path] = a.next
	}
	return a.next
}

// TableRef is one aliased occurrence of a table in a statement.
type TableRef struct {
	alias   string
	model   *Model
	grouped bool
	// scope is the query the reference was created in. Columns of the
	// reference depend on every join of their scope.
	scope *ObjectSet
	// sub is set for joined models with filter, grouping or ordering
	// hooks, which are joined as a correlated subquery.
	sub *ObjectSet
}

func newTableRef(m *Model, scope *ObjectSet, n int) *TableRef {
	return &TableRef{
		alias:   m.TableName() + "_" + strconv.Itoa(n),
		model:   m,
		grouped: m.groupBy != nil,
		scope:   scope,
	}
}

// Alias returns the alias of the reference.
func (r *TableRef) Alias() string { return r.alias }

// Model returns the model of the reference.
func (r *TableRef) Model() *Model { return r.model }

// writeSource writes the table, or the correlated subquery surfacing
// the given fields, followed by the alias.
func (r *TableRef) writeSource(b *sql.Builder, fields []string) {
	if r.sub != nil {
		b.Write("(")
		r.sub.writeSubquery(b, fields)
		b.Write(")")
	} else {
		b.Table(r.model.SchemaName(), r.model.TableName())
	}
	b.Write(" AS ").Write(r.alias)
}

// JoinKind is the kind of a join.
type JoinKind int

// Join kinds.
const (
	LeftJoin JoinKind = iota
	InnerJoin
)

// String returns the SQL spelling of the join kind.
func (k JoinKind) String() string {
	if k == InnerJoin {
		return "INNER JOIN"
	}
	return "LEFT JOIN"
}

// Join binds a table reference to a statement through a predicate.
type Join struct {
	id   string
	ref  *TableRef
	kind JoinKind
	on   Selector
}

// ID returns the identifier of the join within its statement.
func (j *Join) ID() string { return j.id }

// Ref returns the joined table reference.
func (j *Join) Ref() *TableRef { return j.ref }

// Kind returns the join kind.
func (j *Join) Kind() JoinKind { return j.kind }

// On returns the join predicate.
func (j *Join) On() Selector { return j.on }

// JoinField is a join a selector depends on, together with the field of
// the joined table the selector reads. Field is empty when the selector
// only depends on the join being present.
type JoinField struct {
	Join  *Join
	Field string
}

// JoinOption configures joins and relations.
type JoinOption func(*joinSpec)

type joinSpec struct {
	kind JoinKind
	list bool
	path string
	// fields is the nested selection of a relation.
	fields []string
}

// Inner makes the join an INNER JOIN instead of the default LEFT JOIN.
func Inner() JoinOption {
	return func(s *joinSpec) { s.kind = InnerJoin }
}

// AsList marks the joined side as a to-many result.
func AsList() JoinOption {
	return func(s *joinSpec) { s.list = true }
}

// joinRegistry holds the joins of a statement in discovery order, and the
// fields each join has to surface.
type joinRegistry struct {
	joins  []*Join
	fields map[string][]string
}

func newJoinRegistry() joinRegistry {
	return joinRegistry{fields: make(map[string][]string)}
}

func (r joinRegistry) clone() joinRegistry {
	c := joinRegistry{
		joins:  slices.Clone(r.joins),
		fields: make(map[string][]string, len(r.fields)),
	}
	for k, v := range r.fields {
		c.fields[k] = slices.Clone(v)
	}
	return c
}

func (r *joinRegistry) lookup(id string) (*Join, bool) {
	for _, j := range r.joins {
		if j.id == id {
			return j, true
		}
	}
	return nil, false
}

func (r *joinRegistry) add(j *Join) {
	if _, ok := r.lookup(j.id); !ok {
		r.joins = append(r.joins, j)
	}
}

// sync registers the joins the selector depends on.
func (r *joinRegistry) sync(sel Selector) {
	if sel == nil {
		return
	}
	found := slices.Collect(sel.Joins())
	for _, jf := range found {
		r.add(jf.Join)
		r.addField(jf.Join.id, jf.Field)
	}
}

func (r *joinRegistry) addField(id, field string) {
	if field == "" || slices.Contains(r.fields[id], field) {
		return
	}
	r.fields[id] = append(r.fields[id], field)
}

// all enumerates the registered joins with their fields.
func (r *joinRegistry) all() iter.Seq[JoinField] {
	return func(yield func(JoinField) bool) {
		for _, j := range r.joins {
			fields := r.fields[j.id]
			if len(fields) == 0 {
				if !yield(JoinField{Join: j}) {
					return
				}
				continue
			}
			for _, f := range fields {
				if !yield(JoinField{Join: j, Field: f}) {
					return
				}
			}
		}
	}
}
