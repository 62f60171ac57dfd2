package cache

import (
	"container/list"
	"sync"
	"time"
)

// Stats is a point-in-time view of cache activity since creation.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
}

// LRUCache bounds entries by count and age. The least recently read entry
// goes first when the cache is full.
type LRUCache[K comparable, V any] struct {
	mu      sync.Mutex
	limit   int
	ttl     time.Duration
	index   map[K]*list.Element
	order   *list.List // front = most recently used
	now     func() time.Time
	hits    uint64
	misses  uint64
	evicted uint64
}

type entry[K comparable, V any] struct {
	key     K
	value   V
	expires time.Time
}

// NewLRUCache returns a cache holding at most limit entries for ttl each.
// A limit below one is treated as one.
func NewLRUCache[K comparable, V any](limit int, ttl time.Duration) *LRUCache[K, V] {
	return &LRUCache[K, V]{
		limit: max(limit, 1),
		ttl:   ttl,
		index: make(map[K]*list.Element),
		order: list.New(),
		now:   time.Now,
	}
}

func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if ok && c.now().After(el.Value.(*entry[K, V]).expires) {
		c.drop(el)
		ok = false
	}
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(*entry[K, V]).value, true
}

func (c *LRUCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[K, V]{key: key, value: value, expires: c.now().Add(c.ttl)}
	if el, ok := c.index[key]; ok {
		el.Value = e
		c.order.MoveToFront(el)
		return
	}
	c.index[key] = c.order.PushFront(e)
	for c.order.Len() > c.limit {
		c.drop(c.order.Back())
		c.evicted++
	}
}

func (c *LRUCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		c.drop(el)
	}
}

// Purge empties the cache. Counters are kept.
func (c *LRUCache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.index)
	c.order.Init()
}

// CleanExpired drops expired entries and reports how many went.
func (c *LRUCache[K, V]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*entry[K, V]).expires) {
			c.drop(el)
			removed++
		}
		el = prev
	}
	return removed
}

func (c *LRUCache[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

func (c *LRUCache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Evictions: c.evicted, Entries: len(c.index)}
}

func (c *LRUCache[K, V]) drop(el *list.Element) {
	delete(c.index, el.Value.(*entry[K, V]).key)
	c.order.Remove(el)
}
