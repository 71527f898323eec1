package objectset

import (
	"context"
	"log/slog"

	"github.com/syssam/rhubarb"
)

// SyncCache fills the result cache of derived from the rows s already
// fetched, without executing derived. It applies when derived selects a
// field of the table reference s selected, and the field was extracted
// from the statement of s. Otherwise a CacheSyncUnavailableError is returned and
// derived is left untouched.
func (s *ObjectSet) SyncCache(ctx context.Context, derived *ObjectSet) error {
	w, ok := derived.selection.(*Wrapped)
	if !ok {
		return rhubarb.NewCacheSyncUnavailableError("", "selection carries no field provenance")
	}
	unavailable := func(reason string) error {
		return rhubarb.NewCacheSyncUnavailableError(w.field, reason)
	}
	st := s.exec.state.Load()
	if st == nil {
		return unavailable("parent query was not executed")
	}
	pk, err := st.keyExtractor(s.selection)
	if err != nil {
		return unavailable(err.Error())
	}
	model, ok := unwrap(st.main).(*modelExtractor)
	if !ok {
		return unavailable("parent selection is not a model")
	}
	if model.ref != w.ref.alias {
		return unavailable("field belongs to " + w.ref.alias + ", the parent query selected " + model.ref)
	}
	sub, ok := model.sub(w.field)
	if !ok {
		return unavailable("field was not fetched by the parent query")
	}
	next := &loadedState{
		rows:  make([]cachedRow, 0, len(st.rows)),
		cache: sub.newCache(),
		main:  sub,
		pk:    pk,
	}
	for _, r := range st.rows {
		key, err := pk.Extract(ctx, r.row)
		if err != nil {
			return err
		}
		// Rows of a missing joined model have no key.
		if nullKey(key) {
			continue
		}
		v, err := sub.Extract(ctx, r.row)
		if err != nil {
			return err
		}
		next.rows = append(next.rows, cachedRow{key: key, row: r.row})
		next.cache.add(key, v)
	}
	if err := derived.exec.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer derived.exec.sem.Release(1)
	if !derived.exec.state.CompareAndSwap(nil, next) {
		return unavailable("derived query was executed")
	}
	return nil
}

// keyExtractor returns the extractor keying the results of a query
// derived from a query with the given selection. When the selection is
// a model, also inside lists and wrapped fields, results are keyed by the
// primary key of that model, read from the columns already extracted.
// Otherwise the key of the parent query is kept.
func (st *loadedState) keyExtractor(selection Selector) (Extractor, error) {
	m, ok := innerModel(selection)
	if !ok {
		if st.pk == nil {
			return nil, errNoKey
		}
		return st.pk, nil
	}
	pk := m.ref.model.PrimaryKey()
	if len(pk) == 0 {
		return nil, errNoKey
	}
	subs := make([]Extractor, len(pk))
	for i, name := range pk {
		x := st.main.forField(m.ref.alias, name)
		if x == nil && st.pk != nil {
			x = st.pk.forField(m.ref.alias, name)
		}
		if x == nil {
			return nil, &keyError{field: name}
		}
		subs[i] = x
	}
	if len(subs) == 1 {
		return subs[0], nil
	}
	return &tupleExtractor{subs: subs}, nil
}

func nullKey(k any) bool {
	if parts, ok := k.([]any); ok {
		for _, p := range parts {
			if p != nil {
				return false
			}
		}
		return true
	}
	return k == nil
}

type keyError struct{ field string }

func (e *keyError) Error() string {
	return "primary key field " + e.field + " was not fetched by the parent query"
}

var errNoKey = &keyError{field: "(none)"}

// Nested returns the query selecting a field of the model selected by s.
// s is executed if needed, and the result of the returned query is
// derived from the rows of s whenever possible. When it is not, the
// returned query runs its own statement on first access.
func (s *ObjectSet) Nested(ctx context.Context, field string) (*ObjectSet, error) {
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	derived := s.SelectField(field)
	if err := s.SyncCache(ctx, derived); err != nil {
		if !rhubarb.IsCacheSyncUnavailable(err) {
			return nil, err
		}
		s.model.reg.log.DebugContext(ctx, "rhubarb: cache sync unavailable, falling back to a new statement",
			slog.String("field", field), slog.Any("reason", err))
	}
	return derived, nil
}
