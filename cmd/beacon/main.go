// Beacon - game server browser discovery service.
//
// Beacon answers server browser list requests over UDP: a client sends a
// single-byte probe and receives the current list of game server
// addresses in the browser wire format. The list is assembled from a
// remote "boosted" server API and a local curated file, refreshed on a
// timer, and served from a pre-encoded in-memory packet. New client
// endpoints are audited to a CSV log and optionally forwarded upstream.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/beacon-project/beacon/internal/admission"
	"github.com/beacon-project/beacon/internal/api"
	"github.com/beacon-project/beacon/internal/cli"
	"github.com/beacon-project/beacon/internal/config"
	"github.com/beacon-project/beacon/internal/connector"
	"github.com/beacon-project/beacon/internal/events"
	"github.com/beacon-project/beacon/internal/list"
	"github.com/beacon-project/beacon/internal/metrics"
	"github.com/beacon-project/beacon/internal/network"
	"github.com/beacon-project/beacon/internal/scheduler"
	"github.com/beacon-project/beacon/internal/telemetry"
	"github.com/beacon-project/beacon/internal/util"
)

const (
	AppName    = "Beacon"
	AppVersion = "1.0.0"
	Banner     = `
  ____
 |  _ \
 | |_) | ___  __ _  ___ ___  _ __
 |  _ < / _ \/ _' |/ __/ _ \| '_ \
 | |_) |  __/ (_| | (_| (_) | | | |
 |____/ \___|\__,_|\___\___/|_| |_|
                                v%s
 Game Server Browser Discovery Service
`
)

func main() {
	fmt.Printf(Banner, AppVersion)
	fmt.Println()

	// Defaults first, reconfigured after the config loads
	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("version", AppVersion).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Int("cpus", runtime.NumCPU()).
		Msg("starting Beacon")

	cfg, err := config.Load(config.DefaultConfigDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appData := cfg.GetApplicationData()
	logCfg := util.LogConfig{
		Level:      appData.Logging.Level,
		Directory:  appData.Logging.Directory,
		MaxBackups: appData.Logging.MaxBackups,
		Console:    true,
	}
	if err := util.InitLogger(logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		log.Fatal().Msg("configuration validation failed, please fix the errors above")
	}

	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core components
	eventBus := events.NewEventBus()

	boosted := connector.NewBoostedListClient(cfg)
	localList := connector.NewLocalListSource(cfg)
	cache := list.NewCache(cfg, eventBus, boosted.FetchAddresses, localList.FetchAddresses)

	browserData := cfg.GetBrowserData()
	tracker := admission.NewTracker(browserData.MaxTrackedConnections)
	limiter := admission.NewRateLimiter(
		browserData.MaxConnectionsPerIP,
		time.Duration(browserData.RateWindowSec)*time.Second,
	)
	auditLog := admission.NewAuditLog(cfg)

	// Seed the tracker so clients from before the restart still count
	// as already seen.
	for _, ep := range auditLog.LoadSeen() {
		tracker.Seed(ep.IP, ep.Port)
	}

	udpListener := network.NewUDPBrowserListener(cfg, cache, tracker, limiter, auditLog, eventBus)

	metrics.Register(metrics.NewStatsCollector(
		cache.ServerCount,
		tracker.Len,
		auditLog.QueueDepth,
	))

	apiServer := api.NewServer(cfg, cache, tracker, auditLog, udpListener)

	var mqttHandler *telemetry.MQTTHandler
	if cfg.GetApplicationData().MQTT.Enabled {
		mqttHandler, err = telemetry.NewMQTTHandler(cfg, eventBus)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	sched := scheduler.NewScheduler(cfg, cache, auditLog)
	cliHandler := cli.NewCLI(cfg, eventBus, cache, tracker, auditLog, udpListener)

	// Shutdown can come from the CLI quit command as well as a signal.
	shutdownCh := make(chan struct{})
	var shutdownOnce sync.Once
	eventBus.Subscribe(events.EventShutdown, "main.shutdown", func(ctx context.Context, event events.Event) error {
		shutdownOnce.Do(func() { close(shutdownCh) })
		return nil
	})

	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	// Task 1: UDP browser listener. This is the service; a bind failure
	// after retries is fatal.
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Int("port", browserData.BindPort).Msg("starting UDP browser listener")
		if err := startWithRetry(ctx, "UDP browser listener", udpListener.Start, 15); err != nil {
			log.Error().Err(err).Msg("UDP browser listener failed after retries")
			errCh <- fmt.Errorf("udp browser listener: %w", err)
		}
	}()

	// Probe the listener over loopback once it has bound.
	go func() {
		deadline := time.Now().Add(10 * time.Second)
		for udpListener.LocalAddr() == nil {
			if ctx.Err() != nil || time.Now().After(deadline) {
				return
			}
			time.Sleep(100 * time.Millisecond)
		}
		if err := udpListener.SelfTest(); err != nil {
			log.Warn().Err(err).Msg("browser listener self-test failed")
		}
	}()

	// Task 2: status API server
	if cfg.GetApplicationData().API.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Int("port", cfg.GetApplicationData().API.Port).Msg("starting status API server")
			if err := startWithRetry(ctx, "API server", apiServer.Start, 15); err != nil {
				log.Warn().Err(err).Msg("API server failed after retries (non-fatal)")
			}
		}()
	}

	// Task 3: MQTT telemetry
	if mqttHandler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("starting MQTT telemetry")
			if err := mqttHandler.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	// Task 4: scheduler (list refresh, audit flush)
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting task scheduler")
		sched.Start(ctx)
	}()

	// Task 5: interactive CLI
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting interactive CLI")
		cliHandler.Start(ctx)
	}()

	// ---------------------------------------------------------------
	// Graceful shutdown handling
	// ---------------------------------------------------------------
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-shutdownCh:
		log.Info().Msg("shutdown requested via CLI")
	case err := <-errCh:
		log.Error().Err(err).Msg("critical error, initiating shutdown")
	}

	log.Info().Msg("initiating graceful shutdown...")

	// Flush the audit queue synchronously before the socket goes away.
	if err := auditLog.Close(); err != nil {
		log.Warn().Err(err).Msg("audit log close failed")
	}

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("shutdown timed out after 30 seconds, forcing exit")
	}

	log.Info().
		Uint64("responses_sent", udpListener.ResponsesSent()).
		Int("tracked_clients", tracker.Len()).
		Msg("session totals")

	eventBus.Stop()

	if mqttHandler != nil {
		mqttHandler.PublishShutdown()
	}

	log.Info().Msg("Beacon stopped")
}

// startWithRetry attempts to start a listener/server with retry on bind
// errors, three seconds apart, so a restart can win the port back from a
// socket still in TIME_WAIT.
func startWithRetry(ctx context.Context, name string, startFn func(context.Context) error, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = startFn(ctx)
		if lastErr == nil {
			return nil
		}
		if i < maxRetries {
			log.Warn().Err(lastErr).Str("component", name).Int("retry", i+1).Int("max", maxRetries).Msg("bind failed, retrying in 3s...")
			time.Sleep(3 * time.Second)
		}
	}
	return lastErr
}
