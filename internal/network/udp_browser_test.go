package network

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-project/beacon/internal/admission"
	"github.com/beacon-project/beacon/internal/config"
	"github.com/beacon-project/beacon/internal/list"
	"github.com/beacon-project/beacon/internal/protocol"
)

func startTestListener(t *testing.T, local list.Source) (*UDPBrowserListener, *net.UDPAddr, context.CancelFunc) {
	t.Helper()

	cfg := config.DefaultConfig()
	data := cfg.GetBrowserData()
	data.BindHost = "127.0.0.1"
	data.BindPort = 0 // ephemeral
	data.LoggingEnabled = true
	data.AuditFilePath = filepath.Join(t.TempDir(), "connections.csv")
	data.MaxConnectionsPerIP = 100
	cfg.SetBrowserData(data)

	cache := list.NewCache(cfg, nil, func(context.Context) []string { return nil }, local)
	if local != nil {
		cache.Refresh(context.Background())
	}

	tracker := admission.NewTracker(100)
	limiter := admission.NewRateLimiter(100, time.Minute)
	audit := admission.NewAuditLog(cfg)

	l := NewUDPBrowserListener(cfg, cache, tracker, limiter, audit, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := l.Start(ctx); err != nil {
			t.Errorf("listener start: %v", err)
		}
	}()

	// Wait for the socket to come up.
	deadline := time.Now().Add(2 * time.Second)
	for l.LocalAddr() == nil {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("listener did not bind in time")
		}
		time.Sleep(5 * time.Millisecond)
	}

	return l, l.LocalAddr().(*net.UDPAddr), cancel
}

func exchange(t *testing.T, addr *net.UDPAddr, payload []byte) ([]byte, error) {
	t.Helper()

	conn, err := net.DialUDP("udp4", nil, addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(payload)
	require.NoError(t, err)

	buf := make([]byte, 2048)
	conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func TestListenerRespondsWithEmptyList(t *testing.T) {
	_, addr, cancel := startTestListener(t, nil)
	defer cancel()

	resp, err := exchange(t, addr, []byte{protocol.RequestMarker})
	require.NoError(t, err)
	assert.Equal(t, protocol.EmptyResponse, resp)
}

func TestListenerRespondsWithServerList(t *testing.T) {
	local := func(context.Context) []string {
		return []string{"192.168.1.10:27015"}
	}
	_, addr, cancel := startTestListener(t, local)
	defer cancel()

	resp, err := exchange(t, addr, []byte{protocol.RequestMarker, 0x00, 0x00})
	require.NoError(t, err)
	require.Len(t, resp, 18)
	assert.Equal(t, protocol.ResponseHeader[:], resp[:6])
	assert.Equal(t, []byte{192, 168, 1, 10, 0x69, 0x97}, resp[6:12])
}

func TestListenerIgnoresInvalidRequests(t *testing.T) {
	l, addr, cancel := startTestListener(t, nil)
	defer cancel()

	_, err := exchange(t, addr, []byte{0xCA})
	assert.Error(t, err) // read timeout, nothing came back

	assert.Equal(t, uint64(0), l.ResponsesSent())
}

func TestListenerSelfTest(t *testing.T) {
	l, addr, cancel := startTestListener(t, nil)
	defer cancel()

	// Point the configured port at the ephemeral bind so the loopback
	// probe reaches the live socket.
	data := l.cfg.GetBrowserData()
	data.BindPort = addr.Port
	l.cfg.SetBrowserData(data)

	require.NoError(t, l.SelfTest())
	assert.Equal(t, uint64(1), l.ResponsesSent())
}

func TestListenerTracksClients(t *testing.T) {
	l, addr, cancel := startTestListener(t, nil)
	defer cancel()

	_, err := exchange(t, addr, []byte{protocol.RequestMarker})
	require.NoError(t, err)

	assert.Equal(t, 1, l.tracker.Len())
	assert.Equal(t, uint64(1), l.ResponsesSent())
}
