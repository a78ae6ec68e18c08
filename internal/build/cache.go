package build

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/conneroisu/gridinline/internal/inline"
)

// TemplateCache caches escaped template bodies with LRU eviction and TTL.
// It is shared by every worker of a run.
type TemplateCache struct {
	entries     map[string]*CacheEntry
	mutex       sync.Mutex
	maxSize     int64
	currentSize int64
	ttl         time.Duration
	// LRU list with dummy head and tail
	head *CacheEntry
	tail *CacheEntry

	hits      int64
	misses    int64
	sets      int64
	evictions int64
}

var _ inline.Cache = (*TemplateCache)(nil)

// CacheEntry represents a cached template body
type CacheEntry struct {
	Key       string
	Value     []byte
	CreatedAt time.Time
	Size      int64

	prev *CacheEntry
	next *CacheEntry
}

// CacheStats is a point in time view of a TemplateCache.
type CacheStats struct {
	Entries   int
	Size      int64
	MaxSize   int64
	Hits      int64
	Misses    int64
	Sets      int64
	Evictions int64
}

// HitRate returns hits over lookups, 0.0 to 1.0.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}
	return float64(s.Hits) / float64(total)
}

// NewTemplateCache creates a cache holding at most maxSize bytes of values.
// A ttl of zero never expires entries.
func NewTemplateCache(maxSize int64, ttl time.Duration) *TemplateCache {
	cache := &TemplateCache{
		entries: make(map[string]*CacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}

	cache.head = &CacheEntry{}
	cache.tail = &CacheEntry{}
	cache.head.next = cache.tail
	cache.tail.prev = cache.head

	return cache
}

// Get retrieves a value from the cache
func (tc *TemplateCache) Get(key string) ([]byte, bool) {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	entry, exists := tc.entries[key]
	if !exists {
		atomic.AddInt64(&tc.misses, 1)
		return nil, false
	}

	if tc.expired(entry) {
		tc.remove(entry)
		atomic.AddInt64(&tc.misses, 1)
		return nil, false
	}

	tc.moveToFront(entry)
	atomic.AddInt64(&tc.hits, 1)
	return entry.Value, true
}

// Set stores a value in the cache. Values larger than the whole cache are
// dropped.
func (tc *TemplateCache) Set(key string, value []byte) {
	size := int64(len(value))

	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if existing, exists := tc.entries[key]; exists {
		tc.remove(existing)
	}
	if size > tc.maxSize {
		return
	}

	tc.evictIfNeeded(size)

	entry := &CacheEntry{
		Key:       key,
		Value:     value,
		CreatedAt: time.Now(),
		Size:      size,
	}

	tc.entries[key] = entry
	tc.currentSize += size
	tc.addToFront(entry)
	atomic.AddInt64(&tc.sets, 1)
}

// Clear drops all entries and resets statistics
func (tc *TemplateCache) Clear() {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	tc.entries = make(map[string]*CacheEntry)
	tc.currentSize = 0
	tc.head.next = tc.tail
	tc.tail.prev = tc.head

	atomic.StoreInt64(&tc.hits, 0)
	atomic.StoreInt64(&tc.misses, 0)
	atomic.StoreInt64(&tc.sets, 0)
	atomic.StoreInt64(&tc.evictions, 0)
}

// Stats returns cache statistics
func (tc *TemplateCache) Stats() CacheStats {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	return CacheStats{
		Entries:   len(tc.entries),
		Size:      tc.currentSize,
		MaxSize:   tc.maxSize,
		Hits:      atomic.LoadInt64(&tc.hits),
		Misses:    atomic.LoadInt64(&tc.misses),
		Sets:      atomic.LoadInt64(&tc.sets),
		Evictions: atomic.LoadInt64(&tc.evictions),
	}
}

func (tc *TemplateCache) expired(entry *CacheEntry) bool {
	return tc.ttl > 0 && time.Since(entry.CreatedAt) > tc.ttl
}

// evictIfNeeded evicts least recently used entries until newSize fits
func (tc *TemplateCache) evictIfNeeded(newSize int64) {
	for tc.currentSize+newSize > tc.maxSize && tc.tail.prev != tc.head {
		tc.remove(tc.tail.prev)
		atomic.AddInt64(&tc.evictions, 1)
	}
}

func (tc *TemplateCache) remove(entry *CacheEntry) {
	tc.removeFromList(entry)
	delete(tc.entries, entry.Key)
	tc.currentSize -= entry.Size
}

// LRU doubly-linked list operations
func (tc *TemplateCache) addToFront(entry *CacheEntry) {
	entry.prev = tc.head
	entry.next = tc.head.next
	tc.head.next.prev = entry
	tc.head.next = entry
}

func (tc *TemplateCache) removeFromList(entry *CacheEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
}

func (tc *TemplateCache) moveToFront(entry *CacheEntry) {
	tc.removeFromList(entry)
	tc.addToFront(entry)
}
