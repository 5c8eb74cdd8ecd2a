package enrich

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// dnsCacheSize and dnsCacheTTL mirror the original project's two
// TTLCache(maxsize=1024, ttl=DNS_CACHE_TTL) caches for forward/reverse
// lookups.
const (
	dnsCacheSize = 1024
	dnsCacheTTL  = 30 * time.Minute
)

type dnsCacheEntry struct {
	value   string
	expires time.Time
}

// dnsCache is a bounded, TTL-expiring string cache. golang-lru handles
// the bounded-size eviction; the TTL check happens on read, matching
// cachetools.TTLCache's lazy-expiry behavior.
type dnsCache struct {
	mu  sync.Mutex
	lru *lru.Cache
}

func newDNSCache() *dnsCache {
	c, err := lru.New(dnsCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which dnsCacheSize
		// never is.
		panic(err)
	}
	return &dnsCache{lru: c}
}

func (c *dnsCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Get(key)
	if !ok {
		return "", false
	}
	entry := v.(dnsCacheEntry)
	if time.Now().After(entry.expires) {
		c.lru.Remove(key)
		return "", false
	}
	return entry.value, true
}

func (c *dnsCache) set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, dnsCacheEntry{value: value, expires: time.Now().Add(dnsCacheTTL)})
}
