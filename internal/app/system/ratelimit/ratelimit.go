// Package ratelimit throttles the trust-based login endpoint.
//
// Login identifies users by email alone, so the limiter is the only brake
// on someone walking the address space of known requesters. A fixed window
// is counted per client IP; the window size and attempt budget come from
// app config (login_rate_limit / login_rate_window).
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Limiter counts requests per key in fixed windows. Safe for concurrent
// use; one instance lives for the process lifetime.
type Limiter struct {
	mu      sync.Mutex
	seen    map[string]*bucket
	limit   int
	window  time.Duration
	sweepAt time.Time
}

type bucket struct {
	count   int
	resetAt time.Time
}

// New returns a limiter allowing limit requests per key per window.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		seen:    make(map[string]*bucket),
		limit:   limit,
		window:  window,
		sweepAt: time.Now().Add(window),
	}
}

// Allow records an attempt for key and reports whether it fits the
// budget. The first attempt after a window lapses starts a fresh one.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.maybeSweep(now)

	b, ok := l.seen[key]
	if !ok || now.After(b.resetAt) {
		l.seen[key] = &bucket{count: 1, resetAt: now.Add(l.window)}
		return true
	}
	if b.count >= l.limit {
		return false
	}
	b.count++
	return true
}

// Remaining reports how many attempts key has left in its current window.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.seen[key]
	if !ok || time.Now().After(b.resetAt) {
		return l.limit
	}
	if left := l.limit - b.count; left > 0 {
		return left
	}
	return 0
}

// Reset forgets key, e.g. after a successful login.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.seen, key)
}

// maybeSweep drops lapsed buckets so the map does not grow with every IP
// that ever hit the endpoint. Piggybacks on Allow instead of a background
// goroutine; caller holds the lock.
func (l *Limiter) maybeSweep(now time.Time) {
	if now.Before(l.sweepAt) {
		return
	}
	for key, b := range l.seen {
		if now.After(b.resetAt) {
			delete(l.seen, key)
		}
	}
	l.sweepAt = now.Add(l.window)
}

// ClientIP resolves the address to rate-limit on: the first hop in
// X-Forwarded-For, then X-Real-IP, then RemoteAddr with the port
// stripped.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
