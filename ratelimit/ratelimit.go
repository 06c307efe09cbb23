// Package ratelimit implements a fixed-window request limiter for this
// service's own HTTP surface. Counters live in a process-local map;
// horizontal scaling would need a shared store instead.
package ratelimit

import (
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// Limiter allows up to max requests per client within each window.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*window
	max     int
	period  time.Duration
	now     func() time.Time
}

func New(max int, period time.Duration) *Limiter {
	return &Limiter{
		clients: make(map[string]*window),
		max:     max,
		period:  period,
		now:     time.Now,
	}
}

// Allow reports whether the client may proceed, counting the request
// against the current window. Elapsed windows reset the counter; stale
// entries for other clients are pruned opportunistically.
func (l *Limiter) Allow(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if len(l.clients) > 1024 {
		for id, w := range l.clients {
			if now.After(w.resetAt) {
				delete(l.clients, id)
			}
		}
	}

	w, ok := l.clients[clientID]
	if !ok || now.After(w.resetAt) {
		l.clients[clientID] = &window{count: 1, resetAt: now.Add(l.period)}
		return true
	}

	if w.count >= l.max {
		return false
	}
	w.count++
	return true
}

// RetryAfter returns how long the client must wait before the window
// resets; zero when the client is not currently limited.
func (l *Limiter) RetryAfter(clientID string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.clients[clientID]
	if !ok {
		return 0
	}
	remaining := w.resetAt.Sub(l.now())
	if remaining < 0 || w.count < l.max {
		return 0
	}
	return remaining
}
