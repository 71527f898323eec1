// Package cache provides an in-process implementation of rhubarb.Cache.
//
//	c := cache.NewMemory(10_000)
//	reg := objectset.NewRegistry(objectset.WithCache(c, 5*time.Minute))
package cache

import (
	"context"
	"math"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/syssam/rhubarb"
)

// Memory is a size-bounded LRU cache with per-entry expiration.
// It is safe for concurrent use.
type Memory struct {
	lru       *lru.Cache[string, entry]
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Stats holds the counters of a Memory cache.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

// NewMemory returns a cache holding at most max entries. A max of zero
// or less leaves the cache unbounded.
func NewMemory(max int) *Memory {
	if max <= 0 {
		max = math.MaxInt
	}
	c, err := lru.New[string, entry](max)
	if err != nil {
		// Only returned for sizes below one.
		panic(err)
	}
	return &Memory{lru: c}
}

// Get returns the value stored under key, or nil if it is missing or expired.
func (c *Memory) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, nil
	}
	if e.expired(time.Now()) {
		c.lru.Remove(key)
		c.misses.Add(1)
		return nil, nil
	}
	c.hits.Add(1)
	return e.value, nil
}

// Set stores value under key. A ttl of zero never expires.
func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	if c.lru.Add(key, e) {
		c.evictions.Add(1)
	}
	return nil
}

// Delete removes the value stored under key.
func (c *Memory) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// DeletePrefix removes all values whose key starts with prefix.
func (c *Memory) DeletePrefix(_ context.Context, prefix string) error {
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
		}
	}
	return nil
}

// Clear removes all values.
func (c *Memory) Clear(context.Context) error {
	c.lru.Purge()
	return nil
}

// Stats returns a snapshot of the cache counters.
func (c *Memory) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.lru.Len(),
	}
}

var _ rhubarb.Cache = (*Memory)(nil)
