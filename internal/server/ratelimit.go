package server

import (
	"sync"
	"time"
)

// rateLimiter is a fixed-window per-IP request counter. Windows reset
// lazily on the next request after expiry.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clients map[string]*clientWindow
}

type clientWindow struct {
	count   int
	resetAt time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string]*clientWindow),
	}
}

// Allow reports whether the client identified by ip may make another
// request in the current window.
func (r *rateLimiter) Allow(ip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cw, ok := r.clients[ip]
	if !ok || now.After(cw.resetAt) {
		r.clients[ip] = &clientWindow{count: 1, resetAt: now.Add(r.window)}
		r.prune(now)
		return true
	}

	if cw.count >= r.limit {
		return false
	}
	cw.count++
	return true
}

// prune drops expired windows so the map does not grow unbounded.
func (r *rateLimiter) prune(now time.Time) {
	if len(r.clients) < 1024 {
		return
	}
	for ip, cw := range r.clients {
		if now.After(cw.resetAt) {
			delete(r.clients, ip)
		}
	}
}
