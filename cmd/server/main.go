/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the loan reconciliation server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from the environment (.env supported)
  2. Configure structured logging
  3. Initialize SQLite store
  4. Create reconciliation engine and API handler
  5. Start the sweep scheduler
  6. Start server with graceful shutdown

ENVIRONMENT:
  PORT             HTTP server port (default: 8080)
  DB_PATH          SQLite database path (default: ./data/loans.db)
                   Use ":memory:" for an in-memory database
  LOG_LEVEL        logrus level (default: info)
  SWEEP_SCHEDULE   Cron expression for the sweep (default: 0 23 * * *)
  CORS_ORIGINS     Comma-separated CORS allowlist

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweep scheduler, waiting for a running sweep
  4. Close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/sweeper.go: Scheduled sweep
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/meridianbank/loan-engine/api"
	"github.com/meridianbank/loan-engine/config"
	"github.com/meridianbank/loan-engine/engine"
	"github.com/meridianbank/loan-engine/store/sqlite"
)

func main() {
	cfg := config.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	eng := engine.New(store, nil, log)
	handler := api.NewHandler(eng, store, log)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	sweeper, err := api.NewSweeper(eng, cfg.SweepSchedule, log)
	if err != nil {
		log.WithError(err).Fatal("invalid sweep schedule")
	}
	sweeper.Start()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}
	sweeper.Stop()

	log.Info("server stopped")
}
