// Package main is the entry point for the profile service. It stays
// minimal: load config, set up logging, create the server, run it.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"profile-service/internal/config"
	"profile-service/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// The OAuth flow needs Google credentials; everything else runs
	// without them, so a missing pair is a warning rather than a crash.
	if !cfg.GoogleConfigured() {
		logger.Warn("GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET not set, /login will fail")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(cfg.DBPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
