package cloud

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gitlab.com/davidxarnold/nodecreds/pkg/core"
)

// cacheEntry holds a fetched node with the time it was stored.
type cacheEntry struct {
	node      *core.Node
	Timestamp time.Time
}

// Cache holds raw (unenriched) node records in memory with a TTL. Records
// may carry image default secrets, so unlike a metadata cache it is never
// written to disk. The cache key is typically "provider/id".
type Cache struct {
	mu    sync.RWMutex
	cache map[string]*cacheEntry
	ttl   time.Duration
	now   func() time.Time
}

// NewCache creates a new node cache with the specified TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		cache: make(map[string]*cacheEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get retrieves a copy of a cached node if it exists and is not expired.
func (c *Cache) Get(key string) (*core.Node, bool) {
	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.Timestamp) > c.ttl {
		return nil, false
	}
	return entry.node.Clone(), true
}

// Set stores a copy of node in the cache.
func (c *Cache) Set(key string, node *core.Node) {
	c.mu.Lock()
	c.cache[key] = &cacheEntry{node: node.Clone(), Timestamp: c.now()}
	c.mu.Unlock()
}

// GetOrFetch returns the cached node when available or uses provider to fetch
// it and populate the cache. Errors, not-found included, are never cached.
func (c *Cache) GetOrFetch(ctx context.Context, provider Provider, key, id string) (*core.Node, error) {
	if node, ok := c.Get(key); ok {
		log.Debugf("node cache hit for %s", key)
		return node, nil
	}

	node, err := provider.Node(ctx, id)
	if err != nil || node == nil {
		return nil, err
	}

	c.Set(key, node)
	return node, nil
}

// CachingProvider wraps a Provider with a Cache.
type CachingProvider struct {
	name     string
	provider Provider
	cache    *Cache
}

// NewCachingProvider caches results of provider under "name/id" keys.
func NewCachingProvider(name string, provider Provider, cache *Cache) *CachingProvider {
	return &CachingProvider{name: name, provider: provider, cache: cache}
}

// Node implements Provider.
func (p *CachingProvider) Node(ctx context.Context, id string) (*core.Node, error) {
	return p.cache.GetOrFetch(ctx, p.provider, p.name+"/"+id, id)
}
