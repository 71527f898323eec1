package rhubarb

import (
	"context"
	"time"
)

// Cache is the interface of the optional second-level row cache.
// Users should implement this interface with their preferred caching
// solution (e.g., Redis, Memcached, in-memory).
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey identifies the raw rows of one compiled statement.
type CacheKey struct {
	Table      string // schema-qualified table name of the statement root.
	Operation  string
	Predicates string // digest of the statement text and arguments.
}

// String returns the string representation of the cache key.
func (k CacheKey) String() string {
	return k.Prefix() + k.Operation + ":" + k.Predicates
}

// Prefix returns the prefix shared by all keys of the table.
func (k CacheKey) Prefix() string {
	return k.Table + ":"
}
