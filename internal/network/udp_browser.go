package network

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/beacon-project/beacon/internal/admission"
	"github.com/beacon-project/beacon/internal/config"
	"github.com/beacon-project/beacon/internal/events"
	"github.com/beacon-project/beacon/internal/list"
	"github.com/beacon-project/beacon/internal/metrics"
	"github.com/beacon-project/beacon/internal/protocol"
)

// UDPBrowserListener answers server browser list requests. Browser
// clients send a UDP datagram whose first byte is the list request
// marker; the listener replies with the pre-encoded server list packet
// from the cache. Everything else on the socket is discarded.
type UDPBrowserListener struct {
	cfg      *config.Config
	cache    *list.Cache
	tracker  *admission.Tracker
	limiter  *admission.RateLimiter
	audit    *admission.AuditLog
	eventBus *events.EventBus

	conn      *net.UDPConn
	responses atomic.Uint64
}

// NewUDPBrowserListener wires the listener to the list cache and the
// admission components.
func NewUDPBrowserListener(cfg *config.Config, cache *list.Cache, tracker *admission.Tracker, limiter *admission.RateLimiter, audit *admission.AuditLog, eventBus *events.EventBus) *UDPBrowserListener {
	return &UDPBrowserListener{
		cfg:      cfg,
		cache:    cache,
		tracker:  tracker,
		limiter:  limiter,
		audit:    audit,
		eventBus: eventBus,
	}
}

func (l *UDPBrowserListener) bindAddr() string {
	data := l.cfg.GetBrowserData()
	return net.JoinHostPort(data.BindHost, fmt.Sprintf("%d", data.BindPort))
}

// Start binds the browser port and serves requests until the context is
// cancelled.
func (l *UDPBrowserListener) Start(ctx context.Context) error {
	addr := l.bindAddr()

	// SO_REUSEADDR so a restart can rebind while the old socket drains
	lc := ReuseAddrListenConfig()
	pc, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		return fmt.Errorf("failed to start UDP browser listener on %s: %w", addr, err)
	}
	l.conn = pc.(*net.UDPConn)

	log.Info().Str("addr", addr).Msg("UDP browser listener started")

	go func() {
		<-ctx.Done()
		l.conn.Close()
	}()

	buf := make([]byte, 1024)
	for {
		n, remoteAddr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				log.Info().
					Uint64("responses", l.responses.Load()).
					Msg("UDP browser listener stopping")
				return nil
			default:
				log.Error().Err(err).Msg("UDP read error")
				continue
			}
		}

		l.handle(ctx, buf[:n], remoteAddr)
	}
}

// handle processes one datagram. Invalid and rate-limited requests are
// dropped without a reply.
func (l *UDPBrowserListener) handle(ctx context.Context, data []byte, remoteAddr *net.UDPAddr) {
	if !protocol.IsValidRequest(data) {
		metrics.InvalidPackets.Inc()
		log.Trace().Str("remote", remoteAddr.String()).Msg("discarded non-request datagram")
		return
	}

	ip := remoteAddr.IP.String()
	if !l.limiter.Allow(ip) {
		metrics.RateLimited.Inc()
		log.Debug().Str("ip", ip).Msg("request dropped by rate limiter")
		return
	}

	if l.tracker.Track(ip, remoteAddr.Port) {
		l.audit.Record(ip, remoteAddr.Port)
		if l.eventBus != nil {
			l.eventBus.Emit(ctx, events.Event{
				Type:   events.EventClientSeen,
				Source: "network.udp",
				Payload: events.ClientSeenPayload{
					IP:   ip,
					Port: remoteAddr.Port,
				},
			})
		}
	} else {
		metrics.DuplicateClients.Inc()
	}

	response := l.cache.ResponsePacket()
	if _, err := l.conn.WriteToUDP(response, remoteAddr); err != nil {
		log.Warn().
			Err(err).
			Str("remote", remoteAddr.String()).
			Msg("failed to send server list response")
		return
	}

	l.responses.Add(1)
	metrics.ResponsesSent.Inc()
	log.Trace().
		Str("remote", remoteAddr.String()).
		Int("bytes", len(response)).
		Msg("server list response sent")
}

// LocalAddr returns the bound socket address, or nil before Start.
func (l *UDPBrowserListener) LocalAddr() net.Addr {
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// ResponsesSent reports the number of responses written since start.
func (l *UDPBrowserListener) ResponsesSent() uint64 {
	return l.responses.Load()
}

// SelfTest sends a list request over loopback and checks that a response
// arrives with the expected header.
func (l *UDPBrowserListener) SelfTest() error {
	port := l.cfg.GetBrowserData().BindPort
	addr := &net.UDPAddr{
		IP:   net.IPv4(127, 0, 0, 1),
		Port: port,
	}

	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return fmt.Errorf("self-test dial failed: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte{protocol.RequestMarker}); err != nil {
		return fmt.Errorf("self-test write failed: %w", err)
	}

	buf := make([]byte, 1024)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("self-test read failed: %w", err)
	}
	if n < len(protocol.EmptyResponse) {
		return fmt.Errorf("self-test response too short: %d bytes", n)
	}

	log.Debug().Int("port", port).Msg("browser listener self-test passed")
	return nil
}

// Stop closes the UDP socket.
func (l *UDPBrowserListener) Stop() error {
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}
