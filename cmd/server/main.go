package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"github.com/openmic/backend/internal/broker"
	"github.com/openmic/backend/internal/config"
	"github.com/openmic/backend/internal/database"
	"github.com/openmic/backend/internal/logging"
	"github.com/openmic/backend/internal/router"
	scrub "github.com/openmic/backend/internal/sentry"
	"github.com/openmic/backend/internal/store"
)

func main() {
	// Optional .env for local development; system env wins.
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded")
	}

	// Initialize structured logging (reads LOGGING_LEVEL env var)
	logging.Initialize()

	// Load configuration
	cfg := config.Load()

	// Error reporting, if configured
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.SentryEnvironment,
			BeforeSend:  scrub.ScrubEvent,
		}); err != nil {
			slog.Error("failed to initialize sentry", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Initialize database
	sqlDB, err := database.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer sqlDB.Close()

	// Run migrations
	if err := database.RunMigrations(sqlDB); err != nil {
		slog.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	st := store.New(sqlDB)
	bus := broker.New()

	// Create router
	r := router.New(cfg, st, bus)

	// Start server
	addr := ":" + cfg.Port
	slog.Info("starting server", slog.String("addr", addr))

	if err := http.ListenAndServe(addr, r); err != nil {
		slog.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
