// Package rag couples the knowledge base and the vector store into the
// retrieval pipeline: cached per-kind retrieval plus the parallel context
// enricher that feeds prompt building.
package rag

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Stats is a snapshot of cache effectiveness.
type Stats struct {
	Size    int           `json:"size"`
	MaxSize int           `json:"max_size"`
	Hits    int64         `json:"hits"`
	Misses  int64         `json:"misses"`
	Total   int64         `json:"total"`
	HitRate float64       `json:"hit_rate"`
	TTL     time.Duration `json:"ttl"`
}

type lruEntry struct {
	key     string
	value   any
	expires time.Time
}

// LRU is an insertion-ordered cache with per-entry TTL and eviction on
// capacity. Access moves an entry to the front. Safe for concurrent use.
type LRU struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	order   *list.List
	items   map[string]*list.Element

	hits   int64
	misses int64
}

// NewLRU builds a cache holding up to maxSize entries, each living ttl.
func NewLRU(maxSize int, ttl time.Duration) *LRU {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LRU{
		maxSize: maxSize,
		ttl:     ttl,
		order:   list.New(),
		items:   make(map[string]*list.Element),
	}
}

// Get returns the cached value, or nil and false on miss or expiry.
func (c *LRU) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	entry := el.Value.(*lruEntry)
	if time.Now().After(entry.expires) {
		c.order.Remove(el)
		delete(c.items, key)
		c.misses++
		return nil, false
	}

	c.order.MoveToFront(el)
	c.hits++
	return entry.value, true
}

// Put stores a value, evicting the least-recently-used entry on overflow.
func (c *LRU) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		entry := el.Value.(*lruEntry)
		entry.value = value
		entry.expires = time.Now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	for c.order.Len() >= c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*lruEntry).key)
	}

	el := c.order.PushFront(&lruEntry{
		key:     key,
		value:   value,
		expires: time.Now().Add(c.ttl),
	})
	c.items[key] = el
}

// Clear removes every entry. Hit/miss counters survive.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
}

// Stats returns a snapshot. HitRate is 0 when no lookups happened.
func (c *LRU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Size:    c.order.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		Total:   c.hits + c.misses,
		TTL:     c.ttl,
	}
	if s.Total > 0 {
		s.HitRate = float64(c.hits) / float64(s.Total)
	}
	return s
}

// cacheKey builds the deterministic key for one retrieval: method name,
// the query truncated to its first 100 runes (truncation affects the key
// only, never the search itself), k, and any extra scalars.
func cacheKey(method, query string, k int, scalars ...string) string {
	runes := []rune(query)
	if len(runes) > 100 {
		runes = []rune(string(runes[:100]))
	}
	payload := fmt.Sprintf("%s|%s|%d|%s", method, string(runes), k, strings.Join(scalars, "|"))
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
