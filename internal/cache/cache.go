// Package cache implements the bounded, expiring response cache.
//
// Entries are ordered by insertion only: reads never promote an entry or
// extend its age, so a popular view still expires on wall-clock time and
// the oldest write is the first to go when a limit is reached.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// EvictReason tells OnEvict why an entry left the cache.
type EvictReason string

const (
	ReasonCapacity EvictReason = "capacity"
	ReasonExpired  EvictReason = "expired"
)

// Options configures a Cache. MaxEntries, MaxSize and TTL must be positive.
type Options[V any] struct {
	MaxEntries int
	MaxSize    int
	TTL        time.Duration
	// Sizer weighs an entry against MaxSize. Nil weighs every entry as 1.
	Sizer func(key string, value V) int
	// OnEvict is called outside the lock for capacity and expiry removals.
	OnEvict func(key string, reason EvictReason)
	Now     func() time.Time
}

type entry[V any] struct {
	key       string
	value     V
	size      int
	expiresAt time.Time
	element   *list.Element
}

// Cache is safe for concurrent use.
type Cache[V any] struct {
	mu    sync.Mutex
	items map[string]*entry[V]
	order *list.List // front is the newest write
	size  int

	maxEntries int
	maxSize    int
	ttl        time.Duration
	sizer      func(string, V) int
	onEvict    func(string, EvictReason)
	now        func() time.Time
}

type eviction struct {
	key    string
	reason EvictReason
}

func New[V any](opts Options[V]) *Cache[V] {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 1
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = opts.MaxEntries
	}
	if opts.Sizer == nil {
		opts.Sizer = func(string, V) int { return 1 }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache[V]{
		items:      make(map[string]*entry[V], opts.MaxEntries),
		order:      list.New(),
		maxEntries: opts.MaxEntries,
		maxSize:    opts.MaxSize,
		ttl:        opts.TTL,
		sizer:      opts.Sizer,
		onEvict:    opts.OnEvict,
		now:        opts.Now,
	}
}

// Get returns the value for key if present and younger than the TTL.
// An expired entry is removed and reported absent.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	c.mu.Lock()
	e, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return zero, false
	}
	if c.expiredLocked(e) {
		c.removeLocked(e)
		c.mu.Unlock()
		c.notify([]eviction{{key, ReasonExpired}})
		return zero, false
	}
	v := e.value
	c.mu.Unlock()
	return v, true
}

// Has reports whether Get would return a value, without returning it.
func (c *Cache[V]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Set stores value under key, replacing any previous entry and resetting
// its age. Entries heavier than MaxSize are not stored; an existing entry
// under key is dropped in that case.
func (c *Cache[V]) Set(key string, value V) {
	size := c.sizer(key, value)
	c.mu.Lock()
	if old, ok := c.items[key]; ok {
		c.removeLocked(old)
	}
	if size > c.maxSize {
		c.mu.Unlock()
		return
	}
	e := &entry[V]{key: key, value: value, size: size, expiresAt: c.now().Add(c.ttl)}
	e.element = c.order.PushFront(e)
	c.items[key] = e
	c.size += size

	var evicted []eviction
	for len(c.items) > c.maxEntries || c.size > c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		victim := oldest.Value.(*entry[V])
		reason := ReasonCapacity
		if c.expiredLocked(victim) {
			reason = ReasonExpired
		}
		c.removeLocked(victim)
		evicted = append(evicted, eviction{victim.key, reason})
	}
	c.mu.Unlock()
	c.notify(evicted)
}

// Delete removes key. Returns true if it existed.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if ok {
		c.removeLocked(e)
	}
	return ok
}

// Purge drops every expired entry and returns how many were dropped.
// Expiry follows insertion order, so the scan stops at the first live entry
// from the back.
func (c *Cache[V]) Purge() int {
	c.mu.Lock()
	var evicted []eviction
	for el := c.order.Back(); el != nil; {
		e := el.Value.(*entry[V])
		if !c.expiredLocked(e) {
			break
		}
		prev := el.Prev()
		c.removeLocked(e)
		evicted = append(evicted, eviction{e.key, ReasonExpired})
		el = prev
	}
	c.mu.Unlock()
	c.notify(evicted)
	return len(evicted)
}

// Len returns the number of stored entries, expired ones not yet purged included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Size returns the summed weight of stored entries.
func (c *Cache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*entry[V], c.maxEntries)
	c.order = list.New()
	c.size = 0
}

func (c *Cache[V]) expiredLocked(e *entry[V]) bool {
	return !c.now().Before(e.expiresAt)
}

func (c *Cache[V]) removeLocked(e *entry[V]) {
	c.order.Remove(e.element)
	delete(c.items, e.key)
	c.size -= e.size
}

func (c *Cache[V]) notify(evicted []eviction) {
	if c.onEvict == nil {
		return
	}
	for _, ev := range evicted {
		c.onEvict(ev.key, ev.reason)
	}
}
