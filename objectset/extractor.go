package objectset

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syssam/rhubarb"
)

// Row is one result row, keyed by column alias.
type Row = map[string]any

// Extractor reads a value back from a result row. Extractors mirror the
// selector tree they were built from.
type Extractor interface {
	Extract(ctx context.Context, row Row) (any, error)
	// forField returns the extractor built for the given field of the
	// given table reference, if any.
	forField(ref, field string) Extractor
	// newCache returns the result cache matching the extractor kind.
	newCache() *resultCache
}

// origin is the provenance of an extractor: the table reference alias
// and the field it was built for.
type origin struct {
	ref   string
	field string
}

func (o origin) forField(x Extractor, ref, field string) Extractor {
	if o.ref != "" && o.ref == ref && o.field == field {
		return x
	}
	return nil
}

type simpleExtractor struct {
	origin
	alias string
}

func (x *simpleExtractor) Extract(_ context.Context, row Row) (any, error) {
	return row[x.alias], nil
}

func (x *simpleExtractor) forField(ref, field string) Extractor {
	return x.origin.forField(x, ref, field)
}

func (*simpleExtractor) newCache() *resultCache { return newResultCache(false) }

type constantExtractor struct {
	v any
}

func (x *constantExtractor) Extract(context.Context, Row) (any, error) { return x.v, nil }

func (*constantExtractor) forField(string, string) Extractor { return nil }

func (*constantExtractor) newCache() *resultCache { return newResultCache(false) }

// listExtractor extracts one element per row. Elements are grouped into
// lists by the result cache.
type listExtractor struct {
	inner Extractor
}

func (x *listExtractor) Extract(ctx context.Context, row Row) (any, error) {
	return x.inner.Extract(ctx, row)
}

func (x *listExtractor) forField(ref, field string) Extractor {
	return x.inner.forField(ref, field)
}

func (*listExtractor) newCache() *resultCache { return newResultCache(true) }

type wrappedExtractor struct {
	origin
	inner Extractor
}

func (x *wrappedExtractor) Extract(ctx context.Context, row Row) (any, error) {
	return x.inner.Extract(ctx, row)
}

func (x *wrappedExtractor) forField(ref, field string) Extractor {
	if found := x.origin.forField(x, ref, field); found != nil {
		return found
	}
	return x.inner.forField(ref, field)
}

func (x *wrappedExtractor) newCache() *resultCache { return x.inner.newCache() }

// modelExtractor builds a Record. Fields of the model without a sub
// extractor, and to-many fields, are left Unset.
type modelExtractor struct {
	origin
	// ref is the alias of the model reference.
	ref   string
	model *Model
	names []string
	subs  map[string]Extractor
	// nullable is set for models joined with a LEFT JOIN. A row where
	// all primary key values are NULL extracts as nil.
	nullable bool
}

func (x *modelExtractor) Extract(ctx context.Context, row Row) (any, error) {
	values := make([]any, len(x.model.fields))
	for i, f := range x.model.fields {
		sub, ok := x.subs[f.name]
		if !ok || isList(sub) {
			values[i] = rhubarb.Unset
			continue
		}
		v, err := sub.Extract(ctx, row)
		if err != nil {
			return nil, fmt.Errorf("extract %s.%s: %w", x.model.Name(), f.name, err)
		}
		values[i] = v
	}
	rec := newRecord(x.model, values)
	if x.nullable && rec.nullPK() {
		return nil, nil
	}
	return rec, nil
}

func (x *modelExtractor) forField(ref, field string) Extractor {
	if found := x.origin.forField(x, ref, field); found != nil {
		return found
	}
	for _, name := range x.names {
		if found := x.subs[name].forField(ref, field); found != nil {
			return found
		}
	}
	return nil
}

func (*modelExtractor) newCache() *resultCache { return newResultCache(false) }

// sub returns the extractor of the named field.
func (x *modelExtractor) sub(name string) (Extractor, bool) {
	e, ok := x.subs[name]
	return e, ok
}

type dictExtractor struct {
	names []string
	subs  []Extractor
}

func (x *dictExtractor) Extract(ctx context.Context, row Row) (any, error) {
	m := make(map[string]any, len(x.names))
	for i, name := range x.names {
		v, err := x.subs[i].Extract(ctx, row)
		if err != nil {
			return nil, err
		}
		m[name] = v
	}
	return m, nil
}

func (x *dictExtractor) forField(ref, field string) Extractor {
	return findField(x.subs, ref, field)
}

func (*dictExtractor) newCache() *resultCache { return newResultCache(false) }

type tupleExtractor struct {
	subs []Extractor
}

func (x *tupleExtractor) Extract(ctx context.Context, row Row) (any, error) {
	vs := make([]any, len(x.subs))
	for i, sub := range x.subs {
		v, err := sub.Extract(ctx, row)
		if err != nil {
			return nil, err
		}
		vs[i] = v
	}
	return vs, nil
}

func (x *tupleExtractor) forField(ref, field string) Extractor {
	return findField(x.subs, ref, field)
}

func (*tupleExtractor) newCache() *resultCache { return newResultCache(false) }

func findField(subs []Extractor, ref, field string) Extractor {
	for _, sub := range subs {
		if found := sub.forField(ref, field); found != nil {
			return found
		}
	}
	return nil
}

// unwrap strips wrapped and list extractors.
func unwrap(x Extractor) Extractor {
	for {
		switch v := x.(type) {
		case *wrappedExtractor:
			x = v.inner
		case *listExtractor:
			x = v.inner
		default:
			return x
		}
	}
}

func isList(x Extractor) bool {
	for {
		switch v := x.(type) {
		case *listExtractor:
			return true
		case *wrappedExtractor:
			x = v.inner
		default:
			return false
		}
	}
}

// resultCache holds extracted values by key, in first-seen key order.
// In list mode every key maps to the list of the non-nil values added
// under it.
type resultCache struct {
	list   bool
	keys   []any
	values map[any]any
}

func newResultCache(list bool) *resultCache {
	return &resultCache{list: list, values: make(map[any]any)}
}

func (c *resultCache) add(k, v any) {
	k = normalizeKey(k)
	cur, ok := c.values[k]
	if !ok {
		c.keys = append(c.keys, k)
	}
	switch {
	case c.list:
		l, _ := cur.([]any)
		if l == nil {
			l = []any{}
		}
		if v != nil {
			l = append(l, v)
		}
		c.values[k] = l
	case !ok:
		c.values[k] = v
	}
}

func (c *resultCache) get(k any) (any, bool) {
	v, ok := c.values[normalizeKey(k)]
	return v, ok
}

func (c *resultCache) all() []any {
	vs := make([]any, len(c.keys))
	for i, k := range c.keys {
		vs[i] = c.values[k]
	}
	return vs
}

// CompositeKey is the cache key of a composite primary key.
type CompositeKey string

// normalizeKey maps a primary key value to a comparable key, so that the
// values returned by drivers and the values given by callers agree.
func normalizeKey(k any) any {
	switch v := k.(type) {
	case nil:
		return nil
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case []byte:
		return string(v)
	case uuid.UUID:
		return v.String()
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return v.String()
	case []any:
		parts := make([]string, len(v))
		for i, p := range v {
			p = normalizeKey(p)
			parts[i] = fmt.Sprintf("%T:%v", p, p)
		}
		return CompositeKey(strings.Join(parts, "|"))
	case string, int64, float64, float32, bool:
		return v
	}
	return fmt.Sprint(k)
}
