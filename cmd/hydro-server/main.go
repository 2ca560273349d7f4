// Package main is the entry point for the hydroponics simulation server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hydroedu/hydrosim/internal/domain/crop"
	"github.com/hydroedu/hydrosim/internal/engine"
	"github.com/hydroedu/hydrosim/internal/infra/storage"
	"github.com/hydroedu/hydrosim/internal/network"
	"github.com/hydroedu/hydrosim/internal/platform/config"
	"github.com/hydroedu/hydrosim/internal/platform/logger"
	"github.com/hydroedu/hydrosim/internal/platform/metrics"
	"github.com/hydroedu/hydrosim/internal/session"
)

const persistTimeout = 2 * time.Second

func main() {
	appLogger := logger.NewLogger()
	appLogger.Info("Initializing hydroponics simulation server...")

	cfg, err := config.LoadServer()
	if err != nil {
		config.Exitf("config: %v", err)
	}

	tuning, err := config.Load(cfg.TuningPath)
	if err != nil {
		config.Exitf("tuning: %v", err)
	}

	catalog := crop.Default()
	if cfg.DataDir != "" {
		appLogger.Info("Loading reference data from " + cfg.DataDir)
		if catalog, err = crop.LoadDir(cfg.DataDir); err != nil {
			config.Exitf("reference data: %v", err)
		}
	}

	appLogger.Info("Initializing SQLite database '" + cfg.DBPath + "'...")
	db, err := storage.InitSQLite(cfg.DBPath)
	if err != nil {
		config.Exitf("Failed to initialize SQLite: %v", err)
	}
	defer db.Close()

	eventRepo := storage.NewSQLiteEventRepository(db)
	snapRepo := storage.NewSQLiteSnapshotRepository(db)
	eventSink := storage.NewEventSink(eventRepo, persistTimeout)
	collector := metrics.Get()

	appLogger.Info("Bootstrapping session directory...")
	store, err := session.NewStore(cfg.MaxSessions, cfg.SimSpeed, func(id string) engine.Deps {
		return engine.Deps{
			Catalog:   catalog,
			Tuning:    tuning,
			Logger:    appLogger,
			Metrics:   collector,
			Persister: eventSink,
		}
	}, appLogger, collector)
	if err != nil {
		config.Exitf("session store: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Automated snapshot backup routine
	go store.RunBackups(ctx, snapRepo, cfg.BackupInterval)

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(store, appLogger, collector)
	go hub.Run(ctx)
	hub.StartStatusPusher(ctx, cfg.StatusPushInterval)

	api := network.NewServer(network.Options{
		Store:     store,
		Hub:       hub,
		Snapshots: snapRepo,
		Events:    eventRepo,
		Catalog:   catalog,
		Logger:    appLogger,
		Metrics:   collector,
		Speed:     cfg.SimSpeed,
		ActionGap: cfg.ClientActionGap,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		appLogger.Info("HTTP API & WS Server listening on " + cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error(fmt.Sprintf("Server failed: %v", err))
			cancel()
		}
	}()

	appLogger.Info("Server running. Press Ctrl+C to exit.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(fmt.Sprintf("HTTP shutdown: %v", err))
	}
	api.Shutdown(shutdownCtx)
	cancel()
}
