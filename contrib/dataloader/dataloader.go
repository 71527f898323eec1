// Package dataloader batches lookups by key into single queries.
//
// A Loader collects the keys requested by concurrent callers, e.g. the
// resolvers of a request, and fetches them with one statement:
//
//	authors := dataloader.NewLoader[int64](objectset.New(db, author))
//	a, err := authors.Load(ctx, book.Get("author_id").(int64))
//
// NewGroupLoader loads the rows sharing a key, e.g. the books of an
// author:
//
//	books := dataloader.NewGroupLoader[int64](objectset.New(db, book), "author_id")
//	list, err := books.Load(ctx, a.(*objectset.Record).Get("id").(int64))
//
// NewBatchLoader accepts any batch function. The helpers order and
// group its results, which must match the requested keys:
//
//	ordered, errs := dataloader.OrderByKeys(ids, books, func(b *objectset.Record) int64 {
//	    return b.Get("id").(int64)
//	})
package dataloader

import (
	"context"
	"errors"
)

// ErrNotFound is returned for keys missing from a batch result.
var ErrNotFound = errors.New("dataloader: key not found")

// KeyFunc extracts a key from an entity.
type KeyFunc[K comparable, V any] func(V) K

// BatchFunc is a function that loads a batch of entities by their keys.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) ([]V, []error)

// OrderByKeys reorders entities to match the order of requested keys.
// Missing entities are represented as zero values with corresponding errors.
//
// Batch functions need this because the result slice must:
//   - Have the same length as the input keys
//   - Have results in the same order as the input keys
func OrderByKeys[K comparable, V any](keys []K, values []V, keyFn KeyFunc[K, V]) ([]V, []error) {
	// Build lookup map
	lookup := make(map[K]V, len(values))
	for _, v := range values {
		lookup[keyFn(v)] = v
	}

	// Build ordered result
	result := make([]V, len(keys))
	errs := make([]error, len(keys))
	for i, key := range keys {
		if v, ok := lookup[key]; ok {
			result[i] = v
		} else {
			errs[i] = ErrNotFound
		}
	}
	return result, errs
}

// OrderByKeysNoError reorders entities to match the order of requested keys.
// Returns zero values for missing entities without errors.
// Use this when missing entities are acceptable (e.g., optional relationships).
func OrderByKeysNoError[K comparable, V any](keys []K, values []V, keyFn KeyFunc[K, V]) []V {
	result, _ := OrderByKeys(keys, values, keyFn)
	return result
}

// GroupByKey groups entities by a key function.
// Useful for one-to-many relationships where multiple entities share the same foreign key.
//
// Example:
//
//	grouped := GroupByKey(books, func(b *objectset.Record) int64 { return b.Get("author_id").(int64) })
func GroupByKey[K comparable, V any](values []V, keyFn KeyFunc[K, V]) map[K][]V {
	result := make(map[K][]V)
	for _, v := range values {
		key := keyFn(v)
		result[key] = append(result[key], v)
	}
	return result
}

// OrderGroupsByKeys reorders grouped entities to match the order of requested keys.
// Returns a slice of slices where each inner slice contains entities for that key.
func OrderGroupsByKeys[K comparable, V any](keys []K, groups map[K][]V) [][]V {
	result := make([][]V, len(keys))
	for i, key := range keys {
		result[i] = groups[key]
	}
	return result
}

// CachePrimer primes a loader cache with known values, e.g. the rows
// returned by a command. Loader implements it.
type CachePrimer[K comparable, V any] interface {
	Prime(key K, value V)
}

// PrimeMany primes multiple values into a cache.
func PrimeMany[K comparable, V any](cache CachePrimer[K, V], values []V, keyFn KeyFunc[K, V]) {
	for _, v := range values {
		cache.Prime(keyFn(v), v)
	}
}

// CacheClearer clears values from a loader cache. Loader implements it.
type CacheClearer[K comparable] interface {
	Clear(key K)
}

// ClearMany clears multiple keys from a cache.
func ClearMany[K comparable](cache CacheClearer[K], keys []K) {
	for _, key := range keys {
		cache.Clear(key)
	}
}

// ctxKey is the context key for storing loaders.
type ctxKey struct{}

// WithLoaders injects the loaders of a request into its context.
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        ctx := dataloader.WithLoaders(r.Context(), &Loaders{
//	            Author: dataloader.NewLoader[int64](objectset.New(db, author)),
//	        })
//	        next.ServeHTTP(w, r.WithContext(ctx))
//	    })
//	}
func WithLoaders[T any](ctx context.Context, loaders T) context.Context {
	return context.WithValue(ctx, ctxKey{}, loaders)
}

// For extracts the loaders from context.
//
//	a, err := dataloader.For[*Loaders](ctx).Author.Load(ctx, 1)
func For[T any](ctx context.Context) T {
	v, _ := ctx.Value(ctxKey{}).(T)
	return v
}

// BatchResult represents the result of a batch load operation.
type BatchResult[V any] struct {
	Value V
	Error error
}

// NewBatchResult creates a new BatchResult.
func NewBatchResult[V any](value V, err error) BatchResult[V] {
	return BatchResult[V]{Value: value, Error: err}
}

// Results converts separate value and error slices into BatchResult slice.
func Results[V any](values []V, errs []error) []BatchResult[V] {
	results := make([]BatchResult[V], len(values))
	for i := range values {
		var err error
		if i < len(errs) {
			err = errs[i]
		}
		results[i] = BatchResult[V]{Value: values[i], Error: err}
	}
	return results
}
