package discovery

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/garotm/RunOn/internal/models"
)

type cacheEntry struct {
	events   []models.Event
	storedAt time.Time
}

// Cache holds search results keyed by normalized query and location.
// Entries expire lazily: an expired entry is dropped on the next Get.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewCache creates an empty cache with the given time-to-live
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached events for key. The second result is false on a
// miss or when the entry has expired.
func (c *Cache) Get(key string) ([]models.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.events, true
}

// Put stores events under key, replacing any previous entry
func (c *Cache) Put(key string, events []models.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{events: events, storedAt: c.now()}
}

// Clear drops every entry
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Len returns the number of stored entries, expired ones included
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CacheKey derives the cache key for a query and location pair
func CacheKey(query, location string) string {
	sum := sha256.Sum256([]byte(normalize(query) + ":" + normalize(location)))
	return hex.EncodeToString(sum[:])
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
