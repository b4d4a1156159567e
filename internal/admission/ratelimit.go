package admission

import (
	"sync"
	"time"
)

// RateLimiter enforces a per-IP sliding request quota. Each admitted
// request schedules its own decrement after the window elapses, so the
// counter always reflects requests admitted within the trailing window
// rather than resetting on a fixed schedule. Counters are deleted once
// they decay to zero, keeping the map bounded by actual traffic.
type RateLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	counts map[string]int
}

// NewRateLimiter creates a limiter allowing max requests per IP within the
// trailing window.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:    max,
		window: window,
		counts: make(map[string]int),
	}
}

// Allow reports whether a request from ip is admitted. A denied request
// causes no state change.
func (r *RateLimiter) Allow(ip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.counts[ip] >= r.max {
		return false
	}

	r.counts[ip]++
	time.AfterFunc(r.window, func() { r.decay(ip) })
	return true
}

func (r *RateLimiter) decay(ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n, ok := r.counts[ip]; ok {
		if n <= 1 {
			delete(r.counts, ip)
		} else {
			r.counts[ip] = n - 1
		}
	}
}

// Count returns the current window count for an IP. Exported for the
// status API and tests.
func (r *RateLimiter) Count(ip string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[ip]
}

// ActiveIPs returns the number of IPs with a live counter.
func (r *RateLimiter) ActiveIPs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.counts)
}
