// Package ratelimit implements an in-memory fixed-window rate limiter keyed
// by client identifier. Each key gets a bucket of max attempts per window;
// once the window elapses the bucket is replaced, never incremented.
package ratelimit

import (
	"sync"
	"time"
)

// bucket tracks the attempt count for a single key within one window.
type bucket struct {
	count   int
	resetAt time.Time
}

// Decision is the outcome of a rate-limit check. RetryAfter is set only
// when the request is denied.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter bounds attempts per key within a fixed window.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	window  time.Duration
	max     int
	stop    chan struct{}
	once    sync.Once
}

// New creates a limiter allowing max attempts per window per key and starts
// a background sweep that evicts expired buckets.
func New(window time.Duration, max int) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		window:  window,
		max:     max,
		stop:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Allow checks whether the key has remaining capacity at the given instant
// and consumes one attempt if so. An empty key is always allowed:
// unidentified clients cannot be bucketed meaningfully, and letting them
// through is the documented policy rather than an oversight. A max of zero
// or less disables limiting entirely.
func (l *Limiter) Allow(key string, now time.Time) Decision {
	if key == "" || l.max <= 0 {
		return Decision{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, exists := l.buckets[key]
	if !exists || !b.resetAt.After(now) {
		l.buckets[key] = &bucket{count: 1, resetAt: now.Add(l.window)}
		return Decision{Allowed: true}
	}
	if b.count < l.max {
		b.count++
		return Decision{Allowed: true}
	}

	retry := b.resetAt.Sub(now)
	// Round up to a whole second so Retry-After is never zero.
	if rem := retry % time.Second; rem != 0 {
		retry += time.Second - rem
	}
	return Decision{Allowed: false, RetryAfter: retry}
}

// Reset clears the bucket for a specific key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Len reports the number of live buckets. Intended for tests and metrics.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Stop halts the background sweep goroutine.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

// sweep periodically removes expired buckets so the map does not grow with
// the number of distinct identifiers ever seen.
func (l *Limiter) sweep() {
	interval := l.window
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			now := time.Now()
			l.mu.Lock()
			for key, b := range l.buckets {
				if !b.resetAt.After(now) {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}
