package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/beacon-project/beacon/internal/util"
)

// handlePing is a liveness check.
func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// handleStatus returns an overview of the running service.
func (s *Server) handleStatus(c *gin.Context) {
	snap := s.cache.Snapshot()
	data := s.cfg.GetBrowserData()

	c.JSON(http.StatusOK, gin.H{
		"uptime_sec":        int(time.Since(s.startedAt).Seconds()),
		"server_count":      len(snap.Addresses),
		"list_refreshed_at": snap.RefreshedAt.UTC().Format(time.RFC3339),
		"merge_priority":    data.MergePriority,
		"responses_sent":    s.listener.ResponsesSent(),
		"tracked_clients":   s.tracker.Len(),
		"audit_queue_depth": s.audit.QueueDepth(),
	})
}

// handleServers returns the current server list snapshot.
func (s *Server) handleServers(c *gin.Context) {
	snap := s.cache.Snapshot()

	c.JSON(http.StatusOK, gin.H{
		"servers":      snap.Addresses,
		"total":        len(snap.Addresses),
		"refreshed_at": snap.RefreshedAt.UTC().Format(time.RFC3339),
	})
}

// handleClients returns the tracked client endpoints, oldest first.
func (s *Server) handleClients(c *gin.Context) {
	endpoints := s.tracker.Endpoints()

	clients := make([]gin.H, 0, len(endpoints))
	for _, ep := range endpoints {
		clients = append(clients, gin.H{
			"ip":      ep.IP,
			"port":    ep.Port,
			"seen_at": ep.SeenAt.UTC().Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"clients": clients,
		"total":   len(clients),
	})
}

// handleCPUUsage returns current system CPU usage.
func (s *Server) handleCPUUsage(c *gin.Context) {
	usage, err := util.GetCPUUsage()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cpu_percent": usage,
	})
}

// handleMemoryUsage returns current system memory usage.
func (s *Server) handleMemoryUsage(c *gin.Context) {
	mem, err := util.GetMemoryUsage()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_mb":     mem.Total,
		"used_mb":      mem.Used,
		"available_mb": mem.Available,
		"used_percent": mem.UsedPercent,
	})
}

// handleRefresh triggers an immediate server list refresh.
func (s *Server) handleRefresh(c *gin.Context) {
	count := s.cache.Refresh(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"server_count": count,
	})
}
