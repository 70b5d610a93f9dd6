package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mt5-adapter-go/internal/config"
	"mt5-adapter-go/internal/database"
	"mt5-adapter-go/internal/logger"
	"mt5-adapter-go/internal/models"
	"mt5-adapter-go/internal/reconcile"
	"mt5-adapter-go/internal/server"
	"mt5-adapter-go/internal/terminal"

	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	windowStart, err := time.Parse(time.RFC3339, cfg.Stream.LookbackStart)
	if err != nil {
		log.Fatal("Invalid stream.lookback_start", zap.String("value", cfg.Stream.LookbackStart), zap.Error(err))
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	// Known accounts survive restarts, but their sessions do not:
	// passwords are never stored, so each needs a fresh /initialize.
	var knownAccounts []models.TerminalAccount
	if err := db.Find(&knownAccounts).Error; err != nil {
		log.Warn("Failed to load known accounts", zap.Error(err))
	}
	for _, a := range knownAccounts {
		log.Info("Known terminal account awaiting re-initialization",
			zap.Int64("login", a.Login), zap.String("server", a.Server))
	}

	// Initialize terminal bridge client
	client := terminal.NewClient(&cfg.Terminal, log)

	sessions := terminal.NewSessionManager(log)
	registry := reconcile.NewRegistry()
	aggregator := reconcile.NewAggregator(client, log, cfg.Reconcile.StrictOrphans)

	handler := server.NewHandler(
		log,
		db,
		client,
		sessions,
		aggregator,
		registry,
		time.Duration(cfg.Stream.IntervalSeconds)*time.Second,
		cfg.Stream.BufferSize,
		windowStart,
	)

	srv := server.NewServer(cfg.Server.Port, cfg.Server.ApiKey, handler, log)
	srv.Start()

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}

	log.Info("Adapter has been shut down.")
}
