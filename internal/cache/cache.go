// Package cache holds recently fetched document snapshots in memory.
//
// Entries expire TTL after they were fetched and are dropped on Invalidate,
// which callers issue after every successful mutation of a document. All
// operations share one mutex, so a Get racing a Set or Invalidate observes a
// complete entry or none.
//
// Each id carries a generation that Invalidate advances. A reader that
// fetches on a miss takes the generation first and stores through
// SetIfGeneration, so a fetch that started before a mutation cannot put the
// pre-mutation snapshot back.
package cache

import (
	"sync"
	"time"

	"github.com/user/docugen/internal/docs"
)

const (
	DefaultTTL      = 300 * time.Second
	DefaultCapacity = 100
)

// Entry is an immutable snapshot as stored in the cache.
type Entry struct {
	Snapshot    *docs.Document
	RevisionTag string
	FetchedAt   time.Time
}

type slot struct {
	entry Entry
	// recency drives eviction. It starts at FetchedAt and a Get hit moves it
	// forward; TTL is always measured from FetchedAt.
	recency time.Time
}

// Config configures a Cache.
type Config struct {
	TTL      time.Duration
	Capacity int
}

// Stats are cumulative counters.
type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Expirations   uint64 `json:"expirations"`
	Evictions     uint64 `json:"evictions"`
	Invalidations uint64 `json:"invalidations"`
	StaleWrites   uint64 `json:"stale_writes"`
	Entries       int    `json:"entries"`
	Capacity      int    `json:"capacity"`
}

// Cache is a TTL- and capacity-bounded snapshot store.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*slot
	ttl      time.Duration
	capacity int
	now      func() time.Time
	stats    Stats
	// gens survive entry removal; an absent id is generation 0.
	gens map[string]uint64
}

// New creates a Cache, applying defaults for zero fields.
func New(cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	return &Cache{
		entries:  make(map[string]*slot),
		gens:     make(map[string]uint64),
		ttl:      cfg.TTL,
		capacity: cfg.Capacity,
		now:      time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns the entry for id, or ok=false when absent or older than TTL.
// A lapsed entry is removed on observation.
func (c *Cache) Get(id string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.entries[id]
	if !ok {
		c.stats.Misses++
		return Entry{}, false
	}
	now := c.now()
	if now.Sub(s.entry.FetchedAt) > c.ttl {
		delete(c.entries, id)
		c.stats.Expirations++
		c.stats.Misses++
		return Entry{}, false
	}
	s.recency = now
	c.stats.Hits++
	return s.entry, true
}

// Peek is Get without side effects: it neither counts toward Stats nor
// refreshes recency, and leaves lapsed entries in place.
func (c *Cache) Peek(id string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[id]
	if !ok || c.now().Sub(s.entry.FetchedAt) > c.ttl {
		return Entry{}, false
	}
	return s.entry, true
}

// Set stores a snapshot for id, replacing any existing entry and stamping
// FetchedAt with the current time. At capacity the least recent entry is
// evicted first.
func (c *Cache) Set(id string, snapshot *docs.Document, revisionTag string) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.setLocked(id, snapshot, revisionTag)
}

// Generation returns the current generation of id.
func (c *Cache) Generation(id string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[id]
}

// SetIfGeneration stores the snapshot only when id is still at gen. It
// reports false, leaving the cache untouched, when an Invalidate happened
// after gen was read.
func (c *Cache) SetIfGeneration(id string, gen uint64, snapshot *docs.Document, revisionTag string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[id] != gen {
		c.stats.StaleWrites++
		return Entry{}, false
	}
	return c.setLocked(id, snapshot, revisionTag), true
}

func (c *Cache) setLocked(id string, snapshot *docs.Document, revisionTag string) Entry {
	now := c.now()
	if _, exists := c.entries[id]; !exists && len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}
	e := Entry{Snapshot: snapshot, RevisionTag: revisionTag, FetchedAt: now}
	c.entries[id] = &slot{entry: e, recency: now}
	return e
}

// Invalidate removes id unconditionally and advances its generation.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	c.gens[id]++
	c.stats.Invalidations++
}

// Sweep drops every entry older than TTL and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for id, s := range c.entries {
		if now.Sub(s.entry.FetchedAt) > c.ttl {
			delete(c.entries, id)
			removed++
		}
	}
	c.stats.Expirations += uint64(removed)
	return removed
}

// Len returns the number of stored entries, including lapsed ones not yet
// observed.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.stats
	st.Entries = len(c.entries)
	st.Capacity = c.capacity
	return st
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

func (c *Cache) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	first := true
	for id, s := range c.entries {
		if first || s.recency.Before(oldest) {
			oldestID, oldest, first = id, s.recency, false
		}
	}
	if !first {
		delete(c.entries, oldestID)
		c.stats.Evictions++
	}
}
