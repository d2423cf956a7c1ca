package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/AlfRonDon/neurareport/internal/bus"
	"github.com/AlfRonDon/neurareport/internal/cache"
	"github.com/AlfRonDon/neurareport/internal/config"
	"github.com/AlfRonDon/neurareport/internal/handlers"
	"github.com/AlfRonDon/neurareport/internal/logging"
	"github.com/AlfRonDon/neurareport/internal/registry"
	"github.com/AlfRonDon/neurareport/internal/router"
	"github.com/AlfRonDon/neurareport/internal/upstream"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)
	handlers.Version = Version
	logger.Info("Discovery service starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	// Setup etcd template registry
	logger.Info("Connecting to etcd", "endpoints", cfg.Registry.Endpoints)
	reg, err := registry.NewEtcdManager(cfg.Registry)
	if err != nil {
		logger.Fatal("Failed to connect to etcd", "error", err)
	}
	defer func() { _ = reg.Close() }()
	logger.Info("Template registry initialized with built-in cache")

	// Connect to the change bus (configurable backend)
	logger.Info("Connecting to bus", "type", cfg.Bus.Type, "url", cfg.Bus.URL)
	changeBus, err := bus.New(cfg.Bus, uuid.New().String())
	if err != nil {
		logger.Fatal("Failed to connect to bus", "error", err)
	}
	defer func() { _ = changeBus.Close() }()
	logger.Info("Bus connection established")

	// Open the cache backend and load whatever an earlier run persisted
	backend, err := cache.NewBackend(cfg.Cache)
	if err != nil {
		logger.Fatal("Failed to open cache backend", "error", err)
	}
	defer func() { _ = backend.Close() }()

	store := cache.NewStore(backend, cfg.Cache.MaxBytes, cfg.Cache.MaxEntries, cache.Options{
		Publisher: changeBus,
		Logger:    logger.With("component", "cache.store"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := store.Load(ctx)
	logger.Info("Discovery cache loaded", "entries", len(env.Results), "backend", cfg.Cache.Backend)

	// Track envelope changes published by other instances
	err = changeBus.Subscribe(ctx, cache.ChangeSubject, func(ctx context.Context, subject string, data []byte) error {
		return store.HandleChangeEvent(ctx, data)
	})
	if err != nil {
		logger.Fatal("Failed to subscribe to cache change events", "error", err)
	}

	client := upstream.NewClient(cfg.Upstream)

	// Log authentication status
	if cfg.Auth.Enabled {
		logger.Info("API key authentication enabled", "num_keys", len(cfg.Auth.APIKeys))
	} else {
		logger.Warn("API key authentication DISABLED - all requests will be allowed")
	}

	// Initialize router
	app := router.New(logger, reg, client, store, changeBus, *cfg)

	// Start server in goroutine
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
		logger.Info("Server listening", "address", addr)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with 10 second timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
