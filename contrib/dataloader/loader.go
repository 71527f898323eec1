package dataloader

import (
	"context"
	"sync"
	"time"

	gdl "github.com/graph-gophers/dataloader/v7"

	"github.com/syssam/rhubarb/objectset"
)

// Defaults of a Loader.
const (
	DefaultWait     = 2 * time.Millisecond
	DefaultMaxBatch = 100
)

// Loader batches lookups by key into single calls of a batch function.
// Keys requested within the wait window of the first key of a batch are
// fetched together; every caller then reads its own result.
//
// Loaded values are cached until cleared. A Loader is meant to live as
// long as a request, see WithLoaders.
type Loader[K comparable, V any] struct {
	loader *gdl.Loader[K, V]
}

// Option configures a Loader.
type Option func(*options)

type options struct {
	wait     time.Duration
	maxBatch int
}

// WithWait sets how long a batch collects keys. Defaults to DefaultWait.
func WithWait(d time.Duration) Option {
	return func(o *options) { o.wait = d }
}

// WithMaxBatch sets the number of keys dispatching a batch before its
// wait window ends. Zero means no limit. Defaults to DefaultMaxBatch.
func WithMaxBatch(n int) Option {
	return func(o *options) { o.maxBatch = n }
}

// NewBatchLoader returns a loader calling fetch with the keys of every
// batch. fetch returns one value and one error per key, in key order;
// OrderByKeys and OrderGroupsByKeys arrange query results that way.
// Keys fetch returns no value for fail with ErrNotFound.
func NewBatchLoader[K comparable, V any](fetch BatchFunc[K, V], opts ...Option) *Loader[K, V] {
	o := options{wait: DefaultWait, maxBatch: DefaultMaxBatch}
	for _, opt := range opts {
		opt(&o)
	}
	lopts := []gdl.Option[K, V]{gdl.WithWait[K, V](o.wait)}
	if o.maxBatch > 0 {
		lopts = append(lopts, gdl.WithBatchCapacity[K, V](o.maxBatch))
	}
	return &Loader[K, V]{loader: gdl.NewBatchedLoader(results(fetch), lopts...)}
}

// results adapts fetch to a batch function returning one result per key.
func results[K comparable, V any](fetch BatchFunc[K, V]) gdl.BatchFunc[K, V] {
	return func(ctx context.Context, keys []K) []*gdl.Result[V] {
		values, errs := fetch(ctx, keys)
		out := make([]*gdl.Result[V], len(keys))
		for i := range keys {
			r := &gdl.Result[V]{}
			switch {
			case i < len(errs) && errs[i] != nil:
				r.Error = errs[i]
			case i < len(values):
				r.Data = values[i]
			default:
				r.Error = ErrNotFound
			}
			out[i] = r
		}
		return out
	}
}

// NewLoader returns a loader fetching values of the query by key, its
// primary key or the group key of an aggregate model. The selection of
// the query is the loaded value. Missing keys fail with ErrNotFound.
func NewLoader[K comparable](query *objectset.ObjectSet, opts ...Option) *Loader[K, any] {
	return NewBatchLoader(func(ctx context.Context, keys []K) ([]any, []error) {
		set := query.WherePK(anys(keys)...)
		values := make([]any, len(keys))
		errs := make([]error, len(keys))
		if err := set.Load(ctx); err != nil {
			return values, fill(errs, err)
		}
		for i, k := range keys {
			values[i], errs[i] = set.ForPK(ctx, k)
			if values[i] == nil && errs[i] == nil {
				errs[i] = ErrNotFound
			}
		}
		return values, errs
	}, opts...)
}

// NewGroupLoader returns a loader fetching the rows of the query whose
// field equals the key, e.g. the books of an author by their author_id.
// The query must select records. Keys without rows load an empty list.
func NewGroupLoader[K comparable](query *objectset.ObjectSet, field string, opts ...Option) *Loader[K, []any] {
	return NewBatchLoader(func(ctx context.Context, keys []K) ([][]any, []error) {
		errs := make([]error, len(keys))
		rows, err := query.Where(objectset.Field[K](field).In(keys...)).All(ctx)
		if err != nil {
			return make([][]any, len(keys)), fill(errs, err)
		}
		groups := OrderGroupsByKeys(keys, GroupByKey(rows, func(v any) K {
			var k K
			if rec, ok := v.(*objectset.Record); ok {
				k, _ = rec.Get(field).(K)
			}
			return k
		}))
		for i := range groups {
			if groups[i] == nil {
				groups[i] = []any{}
			}
		}
		return groups, errs
	}, opts...)
}

// Load returns the value of the key. The batch runs with the context
// of the first Load of the batch, without its cancellation; ctx only
// bounds the wait of this caller.
func (l *Loader[K, V]) Load(ctx context.Context, key K) (V, error) {
	thunk := l.loader.Load(context.WithoutCancel(ctx), key)
	done := make(chan BatchResult[V], 1)
	go func() {
		v, err := thunk()
		done <- NewBatchResult(v, err)
	}()
	select {
	case r := <-done:
		return r.Value, r.Error
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// LoadMany loads the keys in one batch, unless it overflows, and
// returns their results in key order.
func (l *Loader[K, V]) LoadMany(ctx context.Context, keys ...K) []BatchResult[V] {
	values := make([]V, len(keys))
	errs := make([]error, len(keys))
	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			values[i], errs[i] = l.Load(ctx, key)
		}()
	}
	wg.Wait()
	return Results(values, errs)
}

// Prime stores the value of a key, e.g. after a command returned it.
func (l *Loader[K, V]) Prime(key K, value V) {
	ctx := context.Background()
	l.loader.Clear(ctx, key).Prime(ctx, key, value)
}

// Clear drops the cached value or error of a key.
func (l *Loader[K, V]) Clear(key K) {
	l.loader.Clear(context.Background(), key)
}

var (
	_ CachePrimer[int64, any] = (*Loader[int64, any])(nil)
	_ CacheClearer[int64]     = (*Loader[int64, any])(nil)
)

func anys[K any](keys []K) []any {
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}

func fill(errs []error, err error) []error {
	for i := range errs {
		errs[i] = err
	}
	return errs
}
