package auth

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a subject exceeds its request budget
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiter allows at most limit requests per subject within any
// sliding window of the configured length.
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time

	lastSweep time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records a request for key and reports whether it fits the budget.
// Rejected requests are not recorded.
func (l *RateLimiter) Allow(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}

	recent := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.limit {
		if len(recent) == 0 {
			delete(l.hits, key)
		} else {
			l.hits[key] = recent
		}
		return ErrRateLimited
	}
	l.hits[key] = append(recent, now)
	return nil
}

// sweep drops keys with no request newer than cutoff. Timestamps are
// appended in order, so the last one is the newest.
func (l *RateLimiter) sweep(cutoff time.Time) {
	for key, times := range l.hits {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(l.hits, key)
		}
	}
}

// Clear forgets all recorded requests
func (l *RateLimiter) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hits = make(map[string][]time.Time)
}
