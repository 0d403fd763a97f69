package bot

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type rateEntry struct {
	times []time.Time
}

// RateLimiter is a per-user sliding window limiter. It tracks at most
// maxKeys users; when full, the least recently seen user is forgotten.
// Users idle for a whole window expire on their own.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries *expirable.LRU[int64, *rateEntry]
	now     func() time.Time
}

// NewRateLimiter allows limit requests per window for each user.
func NewRateLimiter(limit int, window time.Duration, maxKeys int) *RateLimiter {
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		entries: expirable.NewLRU[int64, *rateEntry](maxKeys, nil, window),
		now:     time.Now,
	}
}

// Allow records a request for key and reports whether it is within budget.
func (r *RateLimiter) Allow(key int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	e, ok := r.entries.Get(key)
	if !ok {
		e = &rateEntry{}
	}

	e.times = recent(e.times, now.Add(-r.window))
	if len(e.times) >= r.limit {
		return false
	}
	e.times = append(e.times, now)
	// Add refreshes the TTL, so the entry outlives its newest request by one window.
	r.entries.Add(key, e)
	return true
}

// Sweep forgets users with no requests inside the window.
func (r *RateLimiter) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.window)
	removed := 0
	for _, key := range r.entries.Keys() {
		e, ok := r.entries.Peek(key)
		if !ok {
			continue
		}
		e.times = recent(e.times, cutoff)
		if len(e.times) == 0 {
			r.entries.Remove(key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked users.
func (r *RateLimiter) Len() int {
	return r.entries.Len()
}

// Run calls Sweep every window until ctx ends.
func (r *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

func recent(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}
