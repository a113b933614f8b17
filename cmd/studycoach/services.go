package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/felixgeelhaar/studycoach/internal/app"
	"github.com/felixgeelhaar/studycoach/internal/config"
)

// openApp loads the configuration and builds the local services. CLI
// logging goes to stderr and stays quiet unless STUDYCOACH_LOG_LEVEL asks
// for more.
func openApp(ctx context.Context, opts app.Options) (*app.App, error) {
	dir, err := config.EnsureStudyCoachDir()
	if err != nil {
		return nil, fmt.Errorf("setup studycoach directory: %w", err)
	}
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := cliLogger(os.Getenv("STUDYCOACH_LOG_LEVEL"))
	slog.SetDefault(logger)
	return app.Build(ctx, cfg, dir, logger, opts)
}

func cliLogger(level string) *slog.Logger {
	lvl := slog.LevelWarn
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
