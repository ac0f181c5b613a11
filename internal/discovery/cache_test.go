package discovery

import (
	"sync"
	"testing"
	"time"

	"github.com/garotm/RunOn/internal/models"
)

func newTestCache(ttl time.Duration) (*Cache, *time.Time) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewCache(ttl)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCacheRoundTrip(t *testing.T) {
	c, now := newTestCache(time.Hour)
	events := []models.Event{{ID: "1", Name: "Cached Event"}}

	if _, ok := c.Get("test_key"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Put("test_key", events)
	*now = now.Add(59 * time.Minute)

	got, ok := c.Get("test_key")
	if !ok {
		t.Fatal("expected hit within TTL")
	}
	if len(got) != 1 || got[0].Name != "Cached Event" {
		t.Errorf("got %+v", got)
	}
}

func TestCacheExpiry(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		hit     bool
	}{
		{"fresh", 0, true},
		{"just before ttl", time.Hour - time.Second, true},
		{"at ttl", time.Hour, false},
		{"past ttl", time.Hour + time.Minute, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, now := newTestCache(time.Hour)
			c.Put("k", []models.Event{{ID: "1"}})
			*now = now.Add(tt.elapsed)

			_, ok := c.Get("k")
			if ok != tt.hit {
				t.Fatalf("hit = %v, want %v", ok, tt.hit)
			}
			if !tt.hit && c.Len() != 0 {
				t.Errorf("expired entry was not removed")
			}
		})
	}
}

func TestCacheClear(t *testing.T) {
	c := NewCache(time.Hour)
	c.Put("a", nil)
	c.Put("b", nil)
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Clear", c.Len())
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache(time.Hour)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := CacheKey("5k", string(rune('a'+i%5)))
			c.Put(key, []models.Event{{ID: key}})
			c.Get(key)
		}(i)
	}
	wg.Wait()
	if c.Len() != 5 {
		t.Errorf("Len() = %d, want 5", c.Len())
	}
}

func TestCacheKey(t *testing.T) {
	base := CacheKey("5K Run", "New York")

	if got := CacheKey("5K Run", "New York"); got != base {
		t.Error("key is not deterministic")
	}
	if got := CacheKey("  5k   run ", "new york"); got != base {
		t.Error("key does not normalize case and whitespace")
	}
	if got := CacheKey("10K Run", "New York"); got == base {
		t.Error("key ignores the query")
	}
	if got := CacheKey("5K Run", "Boston"); got == base {
		t.Error("key ignores the location")
	}
	if len(base) != 64 {
		t.Errorf("key length = %d, want sha256 hex", len(base))
	}
}
