package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"pulseops/src/auth"
	"pulseops/src/config"
	"pulseops/src/helpers"
	"pulseops/src/interfaces"
	"pulseops/src/kpi"
	"pulseops/src/logger"
	"pulseops/src/network"
	"pulseops/src/server"
	"pulseops/src/storage"
	"pulseops/src/utils"
	"pulseops/src/wallet"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.MConfig, cfg.Name)

	// Cap the Go heap below physical memory so the KPI window and hub send
	// buffers cannot push the process into the OOM killer.
	limitMB := helpers.GetRecommendedMemoryLimit(appLogger)
	debug.SetMemoryLimit(int64(limitMB) * 1024 * 1024)
	appLogger.Info("Memory limit set to %d MB", limitMB)

	clock := clockwork.NewRealClock()

	// Storage
	var db interfaces.IDatabase

	switch cfg.Storage.DBType {
	case "postgres":
		db, err = storage.NewPostgresDB(cfg.MConfig, appLogger)
	default:
		// Default to SQLite
		db, err = storage.NewAsyncSQLiteDB(cfg.MConfig, appLogger)
	}

	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
	}
	if err := db.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
	}
	defer db.Close()

	// Wallet guardrails live in their own file so operators can version and
	// edit them without touching server config.
	wm := wallet.NewManager(cfg.Wallet.ConfigPath, clock, appLogger)
	if err := wm.Ensure(); err != nil {
		appLogger.Critical("Failed to load wallet config: %v", err)
	}

	// Market sessions for the configured MICs
	sched := utils.NewMarketScheduler(cfg.Markets.MICs, appLogger)

	// KPI window and fan-out hub
	aggregator := kpi.NewAggregator(cfg.KPI.MaxSamples, clock, appLogger)
	hub := server.NewPulseHub(cfg.MConfig, aggregator, appLogger)

	// Token verification is optional; without it every request runs as the
	// anonymous identity.
	var verifier interfaces.IIdentityVerifier
	if cfg.Auth.Enabled {
		nm := network.NewNetworkManager(cfg.MConfig, appLogger)
		verifier = auth.NewIntrospectionVerifier(cfg.MConfig, nm, clock, appLogger)
	}

	srv := server.NewPulseOpsServer(cfg.MConfig, appLogger, hub, verifier, db, wm, sched, clock)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	// Retention sweep at boot, then hourly
	if err := db.CleanupOldData(); err != nil {
		appLogger.Warning("Retention sweep failed: %v", err)
	}
	retention := time.NewTicker(time.Hour)
	defer retention.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	appLogger.Info("%s is up: ingest on /api/pulse, live feed on %s", cfg.Name, cfg.Hub.WebsocketPath)

	for {
		select {
		case err := <-serverErr:
			if err != nil {
				appLogger.Critical("Server failed: %v", err)
			}
			return

		case <-retention.C:
			if err := db.CleanupOldData(); err != nil {
				appLogger.Error("Retention sweep failed: %v", err)
			}

		case sig := <-quit:
			appLogger.Info("Received %s, shutting down...", sig)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Stop(ctx); err != nil {
				appLogger.Error("Shutdown error: %v", err)
			}
			return
		}
	}
}
