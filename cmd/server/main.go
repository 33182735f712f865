// ShieldSenior - Scam call detection and transaction shield for senior citizens
package main

import (
	"context"
	"os"

	"github.com/shieldsenior/shieldsenior/internal/config"
	"github.com/shieldsenior/shieldsenior/internal/logging"
	"github.com/shieldsenior/shieldsenior/internal/server"
	"github.com/shieldsenior/shieldsenior/internal/traces"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	logger := logging.New("info", "text")

	logger.Info("starting shieldsenior",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"env", cfg.Env,
		"ai_enabled", cfg.AIEnabled(),
		"guardian_webhook", cfg.GuardianWebhookURL != "",
	)

	ctx := context.Background()

	shutdownTraces, err := traces.Init(ctx, cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}
	defer shutdownTraces(ctx)

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
