// Package cache provides LRU caching for parsed descriptions and stored
// markup blobs.
package cache

import (
	"container/list"
	"encoding/hex"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/msdesc/core/tree"
)

// Cache is a generic LRU cache interface.
type Cache[K comparable, V any] interface {
	// Get retrieves a value from the cache.
	Get(key K) (V, bool)

	// Put stores a value in the cache.
	Put(key K, value V)

	// Remove removes a value from the cache.
	Remove(key K)

	// Clear removes all entries from the cache.
	Clear()

	// Len returns the number of entries in the cache.
	Len() int

	// Stats returns cache statistics.
	Stats() Stats
}

// Stats contains cache statistics.
type Stats struct {
	Hits       int64
	Misses     int64
	Evictions  int64
	Size       int
	MaxSize    int
	TotalBytes int64
}

// Config contains cache configuration options.
type Config struct {
	// MaxSize is the maximum number of entries (0 = unlimited).
	MaxSize int

	// TTL is the time-to-live for entries (0 = no expiration).
	TTL time.Duration

	// OnEvict is called when an entry is evicted or removed.
	OnEvict func(key, value any)
}

// DefaultConfig returns a default cache configuration.
func DefaultConfig() Config {
	return Config{MaxSize: 64}
}

// now is the clock used for expiry. Tests replace it.
var now = time.Now

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// lruCache is a thread-safe LRU cache implementation.
type lruCache[K comparable, V any] struct {
	mu        sync.Mutex
	config    Config
	entries   map[K]*list.Element
	evictList *list.List
	stats     Stats
}

// NewLRUCache creates a new LRU cache with the given configuration.
func NewLRUCache[K comparable, V any](config Config) Cache[K, V] {
	return newLRU[K, V](config)
}

func newLRU[K comparable, V any](config Config) *lruCache[K, V] {
	if config.MaxSize < 0 {
		config.MaxSize = 0
	}
	return &lruCache[K, V]{
		config:    config,
		entries:   make(map[K]*list.Element),
		evictList: list.New(),
	}
}

func (c *lruCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	ent, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	e := ent.Value.(*entry[K, V])
	if c.config.TTL > 0 && now().After(e.expiresAt) {
		c.removeElement(ent)
		c.stats.Misses++
		return zero, false
	}
	c.evictList.MoveToFront(ent)
	c.stats.Hits++
	return e.value, true
}

func (c *lruCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.entries[key]; ok {
		c.evictList.MoveToFront(ent)
		e := ent.Value.(*entry[K, V])
		e.value = value
		e.expiresAt = c.expiry()
		return
	}

	e := &entry[K, V]{key: key, value: value, expiresAt: c.expiry()}
	c.entries[key] = c.evictList.PushFront(e)

	if c.config.MaxSize > 0 && c.evictList.Len() > c.config.MaxSize {
		c.removeOldest()
	}
}

func (c *lruCache[K, V]) expiry() time.Time {
	if c.config.TTL <= 0 {
		return time.Time{}
	}
	return now().Add(c.config.TTL)
}

func (c *lruCache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.entries[key]; ok {
		c.removeElement(ent)
	}
}

func (c *lruCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*list.Element)
	c.evictList.Init()
}

func (c *lruCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

func (c *lruCache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = c.evictList.Len()
	s.MaxSize = c.config.MaxSize
	return s
}

// evictOldest drops the least recently used entry. It reports false when
// the cache is empty.
func (c *lruCache[K, V]) evictOldest() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeOldest()
}

func (c *lruCache[K, V]) removeOldest() bool {
	ent := c.evictList.Back()
	if ent == nil {
		return false
	}
	c.removeElement(ent)
	c.stats.Evictions++
	return true
}

func (c *lruCache[K, V]) removeElement(ent *list.Element) {
	c.evictList.Remove(ent)
	e := ent.Value.(*entry[K, V])
	delete(c.entries, e.key)

	if c.config.OnEvict != nil {
		c.config.OnEvict(e.key, e.value)
	}
}

// BoundedCache is an LRU cache that also limits the summed byte size of
// its values.
type BoundedCache[K comparable, V any] struct {
	mu          sync.Mutex
	lru         *lruCache[K, V]
	maxBytes    int64
	currentSize int64
	sizeFunc    func(V) int64
}

// NewBoundedCache creates a cache with both entry count and byte size
// limits. maxBytes <= 0 disables the byte limit.
func NewBoundedCache[K comparable, V any](config Config, maxBytes int64, sizeFunc func(V) int64) *BoundedCache[K, V] {
	b := &BoundedCache[K, V]{maxBytes: maxBytes, sizeFunc: sizeFunc}
	onEvict := config.OnEvict
	config.OnEvict = func(key, value any) {
		b.currentSize -= sizeFunc(value.(V))
		if onEvict != nil {
			onEvict(key, value)
		}
	}
	b.lru = newLRU[K, V](config)
	return b
}

// Get retrieves a value from the cache.
func (c *BoundedCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(key)
}

// Put stores a value, evicting least recently used entries until the byte
// limit holds. A value larger than the limit is not cached.
func (c *BoundedCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := c.sizeFunc(value)
	if c.maxBytes > 0 && size > c.maxBytes {
		return
	}
	c.lru.Remove(key)
	c.lru.Put(key, value)
	c.currentSize += size

	for c.maxBytes > 0 && c.currentSize > c.maxBytes {
		if !c.lru.evictOldest() {
			break
		}
	}
}

// Remove removes a value from the cache.
func (c *BoundedCache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// Clear removes all entries from the cache.
func (c *BoundedCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Clear()
	c.currentSize = 0
}

// Stats returns cache statistics including byte size information.
func (c *BoundedCache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.lru.Stats()
	stats.TotalBytes = c.currentSize
	return stats
}

// Digest returns the hex BLAKE3 digest identifying markup of a subtype.
func Digest(subtype string, markup []byte) string {
	h := blake3.New()
	h.Write([]byte(subtype))
	h.Write([]byte{0})
	h.Write(markup)
	return hex.EncodeToString(h.Sum(nil))
}

// Document is a parsed description with its sidebar forest.
type Document struct {
	Root   *tree.Element
	Forest []*tree.Component
}

// DocumentCache caches parsed descriptions by Digest.
type DocumentCache struct {
	cache Cache[string, *Document]
}

// NewDocumentCache creates a new document cache.
func NewDocumentCache(config Config) *DocumentCache {
	return &DocumentCache{cache: NewLRUCache[string, *Document](config)}
}

// NewDefaultDocumentCache creates a document cache with default settings.
func NewDefaultDocumentCache() *DocumentCache {
	return NewDocumentCache(DefaultConfig())
}

// Get returns a fresh copy of the cached document. Callers may modify it.
func (c *DocumentCache) Get(digest string) (*Document, bool) {
	doc, ok := c.cache.Get(digest)
	if !ok {
		return nil, false
	}
	return doc.clone(), true
}

// Put stores a copy of doc.
func (c *DocumentCache) Put(digest string, doc *Document) {
	c.cache.Put(digest, doc.clone())
}

// Stats returns cache statistics.
func (c *DocumentCache) Stats() Stats {
	return c.cache.Stats()
}

func (d *Document) clone() *Document {
	out := &Document{Root: d.Root.CloneElement()}
	out.Forest = cloneForest(d.Forest)
	return out
}

func cloneForest(in []*tree.Component) []*tree.Component {
	if in == nil {
		return nil
	}
	out := make([]*tree.Component, len(in))
	for i, c := range in {
		cp := *c
		cp.Path = append([]int(nil), c.Path...)
		cp.Children = cloneForest(c.Children)
		out[i] = &cp
	}
	return out
}
