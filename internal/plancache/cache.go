// Package plancache holds compiled query plans in a bounded LRU cache.
//
// Keys are content-addressed: the domain-separated hash of the target
// record's identity and the canonical query document. Two identical
// queries against the same record type share one plan.
package plancache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/dynq/internal/value"
)

// DefaultSize is the number of plans kept when no size is configured.
const DefaultSize = 256

// Cache is a concurrency-safe LRU of compiled plans.
type Cache[V any] struct {
	lru *lru.Cache[string, V]
}

// New creates a cache holding at most size plans. A non-positive size
// means DefaultSize.
func New[V any](size int) (*Cache[V], error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, V](size)
	if err != nil {
		return nil, err
	}
	return &Cache[V]{lru: c}, nil
}

// Key derives the cache key for a query document against a record type.
// record should identify the type structurally, for example its name and
// signature.
func Key(record string, doc []byte) string {
	data := make([]byte, 0, len(record)+1+len(doc))
	data = append(data, record...)
	data = append(data, 0x00)
	data = append(data, doc...)
	return value.Hash(value.DomainPlan, data)
}

// Get returns the plan stored under key.
func (c *Cache[V]) Get(key string) (V, bool) {
	return c.lru.Get(key)
}

// Add stores a plan, evicting the least recently used one when full.
// Reports whether an eviction happened.
func (c *Cache[V]) Add(key string, plan V) bool {
	return c.lru.Add(key, plan)
}

// Len returns the number of cached plans.
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}

// Purge drops every plan.
func (c *Cache[V]) Purge() {
	c.lru.Purge()
}
