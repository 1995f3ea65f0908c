package weather

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
	"github.com/couchcryptid/vehicle-crash-etl/internal/observability"
)

// Cache stores fetched series. Archive data for a past window does not change,
// so entries never expire on their own.
type Cache interface {
	Get(ctx context.Context, key string) (domain.WeatherSeries, bool)
	Put(ctx context.Context, key string, s domain.WeatherSeries)
}

// CachedClient wraps a Fetcher with a Cache.
type CachedClient struct {
	inner   Fetcher
	cache   Cache
	metrics *observability.Metrics
}

// NewCachedClient creates a cache decorator around a fetcher.
func NewCachedClient(inner Fetcher, cache Cache, metrics *observability.Metrics) *CachedClient {
	return &CachedClient{inner: inner, cache: cache, metrics: metrics}
}

// Fetch serves from the cache when possible and caches non-empty results.
func (c *CachedClient) Fetch(ctx context.Context, loc domain.WeatherLocation, w domain.Window) (domain.WeatherSeries, error) {
	key := cacheKey(loc, w)
	if s, ok := c.cache.Get(ctx, key); ok {
		c.metrics.WeatherCache.WithLabelValues("hit").Inc()
		s.Location = loc
		return s, nil
	}
	c.metrics.WeatherCache.WithLabelValues("miss").Inc()

	s, err := c.inner.Fetch(ctx, loc, w)
	if err != nil {
		return s, err
	}
	if len(s.Hours) > 0 {
		c.cache.Put(ctx, key, s)
	}
	return s, nil
}

func cacheKey(loc domain.WeatherLocation, w domain.Window) string {
	return fmt.Sprintf("weather:%.6f,%.6f|%s|%s",
		loc.Latitude, loc.Longitude, w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// MemoryCache is a thread-safe in-process LRU cache.
type MemoryCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.WeatherSeries
	prev  *entry
	next  *entry
}

// NewMemoryCache creates an LRU cache holding at most maxEntries series.
func NewMemoryCache(maxEntries int) *MemoryCache {
	return &MemoryCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (domain.WeatherSeries, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.WeatherSeries{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *MemoryCache) Put(_ context.Context, key string, value domain.WeatherSeries) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

// Len returns the number of cached series.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *MemoryCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *MemoryCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *MemoryCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
