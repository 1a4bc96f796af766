package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"telenode/logging"
	"telenode/services/collector"
)

var version = "dev"
var appName = "telenode-collector"

func main() {
	cfg, err := collector.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	var logger *slog.Logger
	if cfg.AppEnv == "dev" {
		logger = logging.New(cfg.LogLevel, os.Stdout)
	} else {
		logger = logging.NewJSON(cfg.LogLevel, os.Stdout).With("version", version)
	}
	logger = logger.With("app", appName)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := collector.Run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run failed", "err", err)
		os.Exit(1)
	}
	slog.Info("shutting down")
}
