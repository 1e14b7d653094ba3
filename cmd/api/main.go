// Command api is the AniDoc notification API server.
//
// Usage:
//
//	anidoc-api
//	API_PORT=8080 anidoc-api

// @title AniDoc Notification API
// @version 1.0.0
// @description Real-time pet-care notification service: SSE subscription streams, notification history, and internal dispatch entry points for reminders, reservations, notices, and chat.
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
// @contact.name AniDoc
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/Pet-ner/AniDoc-sub000/internal/api"
	"github.com/Pet-ner/AniDoc-sub000/internal/api/handler"
	"github.com/Pet-ner/AniDoc-sub000/internal/config"
	"github.com/Pet-ner/AniDoc-sub000/internal/db"
	"github.com/Pet-ner/AniDoc-sub000/internal/notify"
	"github.com/Pet-ner/AniDoc-sub000/internal/pets"
	"github.com/Pet-ner/AniDoc-sub000/internal/push"
	"github.com/Pet-ner/AniDoc-sub000/internal/reminder"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Connection registry and notification pipeline
	registry := push.NewRegistry(logger)
	store := notify.NewPgStore(pool.Pool)
	recipients := notify.NewPgRecipientDirectory(pool.Pool)
	dispatcher := notify.NewDispatcher(store, registry, recipients, logger)

	// Daily reminder sweep
	if cfg.ReminderSweepEnabled {
		directory := pets.NewPgDirectory(pool.Pool)
		sweeper := reminder.NewSweeper(directory, dispatcher, cfg.ReminderSweepAt, logger)
		go sweeper.Start(ctx)
		logger.Info("Reminder sweep scheduled", "at", cfg.ReminderSweepAt)
	} else {
		logger.Info("Reminder sweep disabled (REMINDER_SWEEP_ENABLED=false)")
	}

	// Retention cleanup for read notifications
	go runRetentionCleanup(ctx, pool, cfg.NotificationRetention, logger)

	// Create router
	h := handler.New(pool, cfg, registry, dispatcher, store, logger)
	router := api.NewRouter(h, cfg)

	// Create HTTP server. WriteTimeout stays zero: subscribe streams are
	// long-lived and per-write deadlines are enforced on each SSE frame.
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting AniDoc Notification API",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Close live streams first so Shutdown does not wait on them.
	registry.CloseAll()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}

// runRetentionCleanup purges read notifications older than the retention
// window once a day. Intended to be called with `go`.
func runRetentionCleanup(ctx context.Context, pool *db.Pool, retention time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := pool.PurgeReadNotifications(ctx, retention)
			if err != nil {
				logger.Error("Notification cleanup failed", "error", err)
				continue
			}
			if purged > 0 {
				logger.Info("Purged read notifications", "count", purged, "retention", retention)
			}
		}
	}
}
