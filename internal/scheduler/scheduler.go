// Package scheduler runs the periodic background tasks: server list
// refresh and audit log flushing.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/beacon-project/beacon/internal/admission"
	"github.com/beacon-project/beacon/internal/config"
	"github.com/beacon-project/beacon/internal/list"
)

// Scheduler owns the refresh and flush timers.
type Scheduler struct {
	cfg   *config.Config
	cache *list.Cache
	audit *admission.AuditLog
}

// NewScheduler creates a scheduler over the list cache and audit log.
func NewScheduler(cfg *config.Config, cache *list.Cache, audit *admission.AuditLog) *Scheduler {
	return &Scheduler{
		cfg:   cfg,
		cache: cache,
		audit: audit,
	}
}

// Start runs an immediate first refresh, then drives both loops until
// the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	log.Info().Msg("scheduler started")

	s.cache.Refresh(ctx)

	go s.runRefreshLoop(ctx)
	go s.runAuditFlushLoop(ctx)

	<-ctx.Done()
	log.Info().Msg("scheduler stopped")
}

// runRefreshLoop re-fetches the server list on the configured interval.
func (s *Scheduler) runRefreshLoop(ctx context.Context) {
	interval := s.refreshInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("server list refresh scheduled")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cache.Refresh(ctx)

			// Pick up interval changes made through the CLI.
			if next := s.refreshInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
				log.Info().Dur("interval", interval).Msg("refresh interval updated")
			}
		}
	}
}

// runAuditFlushLoop writes queued audit entries to disk on the flush
// interval.
func (s *Scheduler) runAuditFlushLoop(ctx context.Context) {
	intervalSec := s.cfg.GetApplicationData().Timers.AuditFlushInterval
	if intervalSec <= 0 {
		intervalSec = 60
	}

	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.audit.Flush(); err != nil {
				log.Warn().Err(err).Msg("audit flush failed, entries kept queued")
			}
		}
	}
}

func (s *Scheduler) refreshInterval() time.Duration {
	sec := s.cfg.GetBrowserData().RefreshIntervalSec
	if sec <= 0 {
		sec = config.DefaultRefreshIntervalSec
	}
	return time.Duration(sec) * time.Second
}
