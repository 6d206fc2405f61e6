package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"archivist/internal/config"
	"archivist/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, logHub, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	d, err := buildDaemon(cfg, logger, logHub)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("archivistd shutting down")
	d.Stop()
}

// buildLogger wires the configured logger plus the in-memory stream hub that
// backs the /api/logs endpoint.
func buildLogger(cfg *config.Config) (*slog.Logger, *logging.StreamHub, error) {
	base, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	streamHub := logging.NewStreamHub(0)
	return logging.Tee(base, streamHub), streamHub, nil
}
