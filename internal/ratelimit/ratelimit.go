// Package ratelimit provides per-key admission control for chat requests.
//
// Each key (derived from the requesting endpoint and the user identity) gets
// its own token bucket. The limiter only mutates its internal counters; the
// caller decides what a denied request means.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	cleanupInterval = 5 * time.Minute
	staleThreshold  = 10 * time.Minute
)

// Limiter implements per-key rate limiting using golang.org/x/time/rate.
// Cleanup of stale entries happens inline during Allow calls, so no
// background goroutine is needed.
//
// Limiter is safe for concurrent use by multiple goroutines.
type Limiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	limit       rate.Limit
	burst       int
	lastCleanup time.Time
}

// bucket holds a token bucket and last-seen time for a single key.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a limiter.
// r: tokens refilled per second. burst: maximum tokens (and initial allowance).
func New(r float64, burst int) *Limiter {
	return &Limiter{
		buckets:     make(map[string]*bucket),
		limit:       rate.Limit(r),
		burst:       burst,
		lastCleanup: time.Now(),
	}
}

// Allow checks if a request for the given key is admitted.
// Returns false when the key has exhausted its tokens; the caller must abort
// the request, no retry is attempted here.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	// Periodic cleanup of stale entries
	if now.Sub(l.lastCleanup) > cleanupInterval {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > staleThreshold {
				delete(l.buckets, k)
			}
		}
		l.lastCleanup = now
	}

	b, exists := l.buckets[key]
	if !exists {
		limiter := rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = &bucket{
			limiter:  limiter,
			lastSeen: now,
		}
		limiter.Allow()
		return true
	}

	b.lastSeen = now
	return b.limiter.Allow()
}
