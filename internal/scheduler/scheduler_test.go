package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/beacon-project/beacon/internal/admission"
	"github.com/beacon-project/beacon/internal/config"
	"github.com/beacon-project/beacon/internal/list"
)

func TestSchedulerRunsInitialRefresh(t *testing.T) {
	cfg := config.DefaultConfig()
	data := cfg.GetBrowserData()
	data.AuditFilePath = filepath.Join(t.TempDir(), "connections.csv")
	cfg.SetBrowserData(data)

	cache := list.NewCache(cfg, nil,
		func(context.Context) []string { return nil },
		func(context.Context) []string { return []string{"10.0.0.1:27015"} },
	)
	audit := admission.NewAuditLog(cfg)

	sched := NewScheduler(cfg, cache, audit)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	sched.Start(ctx)

	assert.Equal(t, 1, cache.ServerCount())
}

func TestRefreshIntervalFallback(t *testing.T) {
	cfg := config.DefaultConfig()
	data := cfg.GetBrowserData()
	data.RefreshIntervalSec = 0
	cfg.SetBrowserData(data)

	sched := NewScheduler(cfg, nil, nil)
	assert.Equal(t, time.Duration(config.DefaultRefreshIntervalSec)*time.Second, sched.refreshInterval())
}
