package list

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/beacon-project/beacon/internal/config"
	"github.com/beacon-project/beacon/internal/protocol"
)

func fixedSource(addrs ...string) Source {
	return func(ctx context.Context) []string { return addrs }
}

func cacheWithMode(mode string, api, local Source) *Cache {
	cfg := config.DefaultConfig()
	data := cfg.GetBrowserData()
	data.MergePriority = mode
	cfg.SetBrowserData(data)
	return NewCache(cfg, nil, api, local)
}

func TestMergeModes(t *testing.T) {
	local := []string{"A", "B"}
	api := []string{"B", "C"}

	assert.Equal(t, []string{"A", "B", "C"}, Merge(config.MergePriorityHigh, local, api))
	assert.Equal(t, []string{"B", "C", "A"}, Merge(config.MergePriorityLow, local, api))
	assert.Equal(t, []string{"A", "B"}, Merge(config.MergePriorityOnly, local, api))
}

func TestMergeDedupKeepsFirstSeenOrder(t *testing.T) {
	local := []string{"X", "Y", "X"}
	api := []string{"Y", "Z"}
	assert.Equal(t, []string{"X", "Y", "Z"}, Merge(config.MergePriorityHigh, local, api))
}

func TestCacheServesEmptyBeforeFirstRefresh(t *testing.T) {
	c := cacheWithMode(config.MergePriorityHigh, fixedSource(), fixedSource())
	assert.Equal(t, protocol.EmptyResponse, c.ResponsePacket())
	assert.Zero(t, c.ServerCount())
}

func TestCacheRefresh(t *testing.T) {
	c := cacheWithMode(config.MergePriorityHigh,
		fixedSource("5.6.7.8:27016"),
		fixedSource("1.2.3.4:27015"))

	count := c.Refresh(context.Background())
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"1.2.3.4:27015", "5.6.7.8:27016"}, c.Snapshot().Addresses)
	assert.Len(t, c.ResponsePacket(), len(protocol.ResponseHeader)+3*protocol.RecordSize)
	assert.False(t, c.Snapshot().RefreshedAt.IsZero())
}

func TestCacheResponsePacketIdempotent(t *testing.T) {
	c := cacheWithMode(config.MergePriorityOnly, fixedSource(), fixedSource("1.2.3.4:27015"))
	c.Refresh(context.Background())

	first := c.ResponsePacket()
	for i := 0; i < 10; i++ {
		next := c.ResponsePacket()
		assert.True(t, &first[0] == &next[0], "expected the identical buffer between refreshes")
	}
}

func TestCacheRefreshSwapsBuffer(t *testing.T) {
	addrs := []string{"1.2.3.4:27015"}
	src := func(ctx context.Context) []string { return addrs }
	c := cacheWithMode(config.MergePriorityOnly, fixedSource(), src)

	c.Refresh(context.Background())
	old := c.ResponsePacket()

	addrs = []string{"1.2.3.4:27015", "5.6.7.8:27016"}
	count := c.Refresh(context.Background())
	assert.Equal(t, 2, count)
	assert.NotEqual(t, len(old), len(c.ResponsePacket()))
}

func TestCacheAllInvalidAddressesYieldEmptyPacket(t *testing.T) {
	c := cacheWithMode(config.MergePriorityOnly, fixedSource(), fixedSource("garbage"))
	count := c.Refresh(context.Background())
	assert.Equal(t, 1, count) // the list still carries the entry
	assert.Equal(t, protocol.EmptyResponse, c.ResponsePacket())
}
