// Package main implements the stream pipeline manager's entry point.
//
// Startup follows a layered sequence:
//  1. Load and validate configuration
//  2. Initialize structured logging
//  3. Open the Recording Registry (SQLite, migrate on startup)
//  4. Construct the Stream Manager
//  5. Start the Control API's HTTP server
//
// Shutdown reverses that order: the HTTP server stops accepting new
// requests first, then every active session is torn down, then the
// registry's database handle is closed.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/streampipe/recordpipe/internal/api"
	"github.com/streampipe/recordpipe/internal/common"
	"github.com/streampipe/recordpipe/internal/config"
	"github.com/streampipe/recordpipe/internal/health"
	"github.com/streampipe/recordpipe/internal/logging"
	"github.com/streampipe/recordpipe/internal/registry"
	"github.com/streampipe/recordpipe/internal/streammanager"
)

const serviceVersion = "1.0.0"

func main() {
	configPath := "config/record.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.NewLoader().Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if err := logging.ConfigureGlobalLogging(&logging.LoggingConfig{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		FileEnabled:    cfg.Logging.FileEnabled,
		FilePath:       cfg.Logging.FilePath,
		MaxFileSize:    cfg.Logging.MaxFileSize,
		BackupCount:    cfg.Logging.BackupCount,
		ConsoleEnabled: cfg.Logging.ConsoleEnabled,
	}); err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}

	logger := logging.GetLogger("recordpipe")
	logger.Info("starting stream pipeline manager")

	dbPath := strings.TrimPrefix(cfg.Database.URL, "sqlite://")
	reg, err := registry.Open(dbPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to open recording registry")
	}

	sm := streammanager.New(cfg.RecordingDirectory, cfg.Recording, logger, reg)

	checker := health.NewChecker(serviceVersion, reg)
	server := api.NewServer(cfg.Server, sm, reg, checker, logger)
	server.Start()
	logger.WithField("host", cfg.Server.Host).WithField("port", cfg.Server.Port).
		Info("control API listening")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("received shutdown signal, stopping services")

	shutdown(server, sm, reg, logger)
	logger.Info("stream pipeline manager stopped")
}

func shutdown(server common.Stoppable, sm *streammanager.Manager, reg *registry.Registry, logger *logging.Logger) {
	const shutdownTimeout = 30 * time.Second

	if err := common.StopWithTimeout(server, shutdownTimeout); err != nil {
		logger.WithError(err).Error("error stopping control API server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	sm.ShutdownAll(ctx)

	if err := reg.Close(); err != nil {
		logger.WithError(err).Error("error closing recording registry")
	}
}
