// Package admission implements the per-request admission policies of the
// browser service: duplicate-endpoint tracking with bounded memory, per-IP
// rate limiting, and the connection audit log.
package admission

import (
	"container/list"
	"sync"
	"time"
)

// connKey identifies a distinct client endpoint.
type connKey struct {
	ip   string
	port int
}

type trackedConn struct {
	key    connKey
	seenAt time.Time
}

// Tracker remembers recently seen client endpoints in insertion order.
// Memory is bounded by a capacity: inserting beyond it evicts the single
// oldest-inserted entry, regardless of how recently it was looked up
// (strict FIFO, not LRU-by-access).
type Tracker struct {
	mu       sync.Mutex
	capacity int
	entries  map[connKey]*list.Element
	order    *list.List // of *trackedConn, oldest at front
}

// NewTracker creates a tracker bounded to the given capacity.
func NewTracker(capacity int) *Tracker {
	return &Tracker{
		capacity: capacity,
		entries:  make(map[connKey]*list.Element, capacity),
		order:    list.New(),
	}
}

// Track records the endpoint and reports whether it was seen for the first
// time. Duplicates cause no mutation. Insert, lookup, and eviction are all
// O(1).
func (t *Tracker) Track(ip string, port int) bool {
	key := connKey{ip: ip, port: port}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[key]; exists {
		return false
	}

	elem := t.order.PushBack(&trackedConn{key: key, seenAt: time.Now()})
	t.entries[key] = elem

	if t.order.Len() > t.capacity {
		oldest := t.order.Front()
		t.order.Remove(oldest)
		delete(t.entries, oldest.Value.(*trackedConn).key)
	}

	return true
}

// Seed inserts an endpoint known from a previous run without treating it
// as a new connection. Used when reloading the audit log at startup.
func (t *Tracker) Seed(ip string, port int) {
	t.Track(ip, port)
}

// Len returns the number of currently tracked endpoints.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.order.Len()
}

// Endpoints returns the tracked endpoints in insertion order with their
// first-seen timestamps. Used by the status API and CLI.
func (t *Tracker) Endpoints() []TrackedEndpoint {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]TrackedEndpoint, 0, t.order.Len())
	for e := t.order.Front(); e != nil; e = e.Next() {
		tc := e.Value.(*trackedConn)
		out = append(out, TrackedEndpoint{
			IP:     tc.key.ip,
			Port:   tc.key.port,
			SeenAt: tc.seenAt,
		})
	}
	return out
}

// TrackedEndpoint is the exported view of one tracked client endpoint.
type TrackedEndpoint struct {
	IP     string    `json:"ip"`
	Port   int       `json:"port"`
	SeenAt time.Time `json:"seen_at"`
}
