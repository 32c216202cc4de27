// Package cache holds advisory in-process caches. Nothing here is a source of truth.
package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	DefaultExpiration      = 5 * time.Minute
	DefaultCleanupInterval = 10 * time.Minute
)

// Cache is a typed view over a string-keyed TTL store.
type Cache[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V, ttl time.Duration)
	Delete(key string)
	DeleteByPrefix(prefix string)
	Flush()
}

type ttlCache[V any] struct {
	store *gocache.Cache
}

func NewTTLCache[V any]() Cache[V] {
	return &ttlCache[V]{store: gocache.New(DefaultExpiration, DefaultCleanupInterval)}
}

func (c *ttlCache[V]) Get(key string) (V, bool) {
	var zero V
	raw, ok := c.store.Get(key)
	if !ok {
		return zero, false
	}
	value, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return value, true
}

func (c *ttlCache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.store.Set(key, value, ttl)
}

func (c *ttlCache[V]) Delete(key string) {
	c.store.Delete(key)
}

func (c *ttlCache[V]) DeleteByPrefix(prefix string) {
	for key := range c.store.Items() {
		if strings.HasPrefix(key, prefix) {
			c.store.Delete(key)
		}
	}
}

func (c *ttlCache[V]) Flush() {
	c.store.Flush()
}

func cacheKey(parts ...string) string {
	return strings.Join(parts, ":")
}
