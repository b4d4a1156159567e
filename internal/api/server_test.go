package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-project/beacon/internal/admission"
	"github.com/beacon-project/beacon/internal/config"
	"github.com/beacon-project/beacon/internal/list"
	intnet "github.com/beacon-project/beacon/internal/network"
)

func newTestServer(t *testing.T, servers []string) *Server {
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
	listener := intnet.NewUDPBrowserListener(cfg, cache, tracker, admission.NewRateLimiter(100, time.Minute), audit, nil)

	return NewServer(cfg, cache, tracker, audit, listener)
}

func doRequest(t *testing.T, s *Server, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	router := s.buildRouter()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var body map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func TestHandlePing(t *testing.T) {
	w, body := doRequest(t, newTestServer(t, nil), http.MethodGet, "/api/ping")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", body["message"])
}

func TestHandleStatus(t *testing.T) {
	s := newTestServer(t, []string{"10.0.0.1:27015", "10.0.0.2:27015"})
	s.tracker.Track("192.0.2.1", 1234)

	w, body := doRequest(t, s, http.MethodGet, "/api/status")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["server_count"])
	assert.Equal(t, float64(1), body["tracked_clients"])
}

func TestHandleServers(t *testing.T) {
	s := newTestServer(t, []string{"10.0.0.1:27015"})

	w, body := doRequest(t, s, http.MethodGet, "/api/servers")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["total"])
	servers := body["servers"].([]interface{})
	assert.Equal(t, "10.0.0.1:27015", servers[0])
}

func TestHandleClientsEmpty(t *testing.T) {
	w, body := doRequest(t, newTestServer(t, nil), http.MethodGet, "/api/clients")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["total"])
}

func TestHandleRefresh(t *testing.T) {
	s := newTestServer(t, []string{"10.0.0.1:27015"})

	w, body := doRequest(t, s, http.MethodPost, "/api/refresh")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["server_count"])
}

func TestUnknownRouteReturns404(t *testing.T) {
	w, _ := doRequest(t, newTestServer(t, nil), http.MethodGet, "/api/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSecurityHeadersApplied(t *testing.T) {
	w, _ := doRequest(t, newTestServer(t, nil), http.MethodGet, "/api/ping")

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "Beacon", w.Header().Get("Server"))
}

func TestRateLimiterRejectsFloods(t *testing.T) {
	rl := NewIPRateLimiter(1)

	lim := rl.limiterFor("192.0.2.1")
	assert.True(t, lim.Allow())
	assert.True(t, lim.Allow()) // burst of 2
	assert.False(t, lim.Allow())
}
