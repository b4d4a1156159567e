package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/beacon-project/beacon/internal/admission"
	"github.com/beacon-project/beacon/internal/config"
	"github.com/beacon-project/beacon/internal/list"
	"github.com/beacon-project/beacon/internal/network"
)

func newTestCLI(t *testing.T, servers []string) *CLI {
	t.Helper()

	cfg := config.DefaultConfig()
	data := cfg.GetBrowserData()
	data.AuditFilePath = filepath.Join(t.TempDir(), "connections.csv")
	cfg.SetBrowserData(data)

	cache := list.NewCache(cfg, nil,
		func(context.Context) []string { return nil },
		func(context.Context) []string { return servers },
	)
	if servers != nil {
		cache.Refresh(context.Background())
	}

	tracker := admission.NewTracker(100)
	audit := admission.NewAuditLog(cfg)
	listener := network.NewUDPBrowserListener(cfg, cache, tracker, admission.NewRateLimiter(100, time.Minute), audit, nil)

	return NewCLI(cfg, nil, cache, tracker, audit, listener)
}

func TestPrintServersEmpty(t *testing.T) {
	var buf bytes.Buffer
	newTestCLI(t, nil).printServers(&buf)
	assert.Contains(t, buf.String(), "Server list is empty")
}

func TestPrintServersTable(t *testing.T) {
	var buf bytes.Buffer
	newTestCLI(t, []string{"10.0.0.1:27015"}).printServers(&buf)
	assert.Contains(t, buf.String(), "10.0.0.1:27015")
}

func TestPrintClientsTable(t *testing.T) {
	c := newTestCLI(t, nil)
	c.tracker.Track("192.0.2.7", 31234)

	var buf bytes.Buffer
	c.printClients(&buf)

	out := buf.String()
	assert.Contains(t, out, "192.0.2.7")
	assert.Contains(t, out, "31234")
}
