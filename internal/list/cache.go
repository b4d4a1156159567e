// Package list maintains the merged game-server list and its pre-encoded
// response packet. The datagram path only ever reads the current packet
// reference; refresh cycles build a complete replacement and swap it in
// atomically, so readers never observe a half-built buffer.
package list

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/beacon-project/beacon/internal/config"
	"github.com/beacon-project/beacon/internal/events"
	"github.com/beacon-project/beacon/internal/metrics"
	"github.com/beacon-project/beacon/internal/protocol"
)

// Source yields the current address strings from one upstream list source.
// Sources degrade to an empty result on any failure; they never error.
type Source func(ctx context.Context) []string

// Snapshot is one immutable generation of the server list: the ordered,
// de-duplicated addresses, the wire packet built from them, and the time
// of the refresh that produced them.
type Snapshot struct {
	Addresses   []string
	Packet      []byte
	RefreshedAt time.Time
}

// Cache holds the current Snapshot and refreshes it from the two upstream
// sources. It is always readable; a refresh in progress never blocks
// ResponsePacket.
type Cache struct {
	cfg      *config.Config
	eventBus *events.EventBus

	api   Source
	local Source

	current    atomic.Pointer[Snapshot]
	refreshing atomic.Bool
}

// NewCache creates a cache seeded with the canonical empty-list packet so
// the dispatch loop can answer before the first refresh completes.
func NewCache(cfg *config.Config, eventBus *events.EventBus, api, local Source) *Cache {
	c := &Cache{
		cfg:      cfg,
		eventBus: eventBus,
		api:      api,
		local:    local,
	}
	c.current.Store(&Snapshot{Packet: protocol.EmptyResponse})
	return c
}

// ResponsePacket returns the current pre-encoded response buffer. O(1),
// never blocks on a refresh.
func (c *Cache) ResponsePacket() []byte {
	return c.current.Load().Packet
}

// Snapshot returns the current server-list snapshot.
func (c *Cache) Snapshot() *Snapshot {
	return c.current.Load()
}

// ServerCount returns the number of servers in the current snapshot.
func (c *Cache) ServerCount() int {
	return len(c.current.Load().Addresses)
}

// Refresh queries both sources concurrently, merges them under the
// configured priority mode, and swaps in the new snapshot. It returns the
// resulting server count. If a refresh is already outstanding the call is
// a no-op and reports the current count.
func (c *Cache) Refresh(ctx context.Context) int {
	if !c.refreshing.CompareAndSwap(false, true) {
		log.Debug().Msg("server list refresh already in progress, skipping")
		metrics.RefreshTotal.WithLabelValues("skipped").Inc()
		return c.ServerCount()
	}
	defer c.refreshing.Store(false)

	start := time.Now()
	mode := c.cfg.GetBrowserData().MergePriority

	var (
		wg         sync.WaitGroup
		apiAddrs   []string
		localAddrs []string
	)

	// The API fetch is bounded by its own HTTP timeout; the local read is
	// immediate. Refresh waits only for the slower of the two.
	wg.Add(2)
	go func() {
		defer wg.Done()
		apiAddrs = c.api(ctx)
	}()
	go func() {
		defer wg.Done()
		localAddrs = c.local(ctx)
	}()
	wg.Wait()

	merged := Merge(mode, localAddrs, apiAddrs)
	packet := protocol.BuildServerListResponse(merged)

	snap := &Snapshot{
		Addresses:   merged,
		Packet:      packet,
		RefreshedAt: time.Now(),
	}
	c.current.Store(snap)

	duration := time.Since(start)
	metrics.RefreshTotal.WithLabelValues("ok").Inc()
	metrics.RefreshDuration.Observe(duration.Seconds())
	log.Info().
		Int("servers", len(merged)).
		Int("local", len(localAddrs)).
		Int("api", len(apiAddrs)).
		Str("mode", mode).
		Dur("duration", duration).
		Msg("server list refreshed")

	if c.eventBus != nil {
		c.eventBus.Emit(ctx, events.Event{
			Type:   events.EventListRefreshed,
			Source: "list.cache",
			Payload: events.ListRefreshedPayload{
				ServerCount: len(merged),
				Mode:        mode,
				Duration:    duration,
			},
		})
	}

	return len(merged)
}

// Merge combines the local and API lists under the given priority mode.
// Duplicates (by exact address string) are skipped on second occurrence;
// first-seen order is preserved. This is a plain seen-set pass, not a
// priority re-sort across sources.
func Merge(mode string, local, api []string) []string {
	var first, second []string
	switch mode {
	case config.MergePriorityOnly:
		first = local
	case config.MergePriorityLow:
		first, second = api, local
	default: // high
		first, second = local, api
	}

	seen := make(map[string]struct{}, len(first)+len(second))
	out := make([]string, 0, len(first)+len(second))
	for _, addr := range first {
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	for _, addr := range second {
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}
