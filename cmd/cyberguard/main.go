// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/olegiv/cyberguard-go/internal/cache"
	"github.com/olegiv/cyberguard-go/internal/classify"
	"github.com/olegiv/cyberguard-go/internal/config"
	"github.com/olegiv/cyberguard-go/internal/handler"
	"github.com/olegiv/cyberguard-go/internal/middleware"
	"github.com/olegiv/cyberguard-go/internal/pipeline"
	"github.com/olegiv/cyberguard-go/internal/retry"
	"github.com/olegiv/cyberguard-go/internal/store"
	"github.com/olegiv/cyberguard-go/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		info := version.Info{Version: appVersion, GitCommit: appGitCommit, BuildTime: appBuildTime}
		_, _ = fmt.Printf("cyberguard %s\n", info)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger: human-readable in development, JSON in production
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	var logHandler slog.Handler
	if cfg.IsDevelopment() {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	// Open database and run migrations
	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}()

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	slog.Info("database ready")

	serializer := store.NewSerializer(db)

	// Start the scan event pipeline
	pipe := pipeline.New(serializer, pipeline.Options{
		OverflowPath: cfg.OverflowPath,
		DrainPolicy: retry.Policy{
			MaxAttempts: cfg.DrainMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    cfg.RetryMaxDelay,
		},
		RecoveryPolicy: retry.Policy{
			MaxAttempts: cfg.RecoveryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    cfg.RetryMaxDelay,
		},
	}, logger)
	if err := pipe.Start(cfg.RecoveryInterval); err != nil {
		return fmt.Errorf("starting pipeline: %w", err)
	}

	// Verdict cache: Redis when configured, with memory fallback
	cacheCfg := cache.Config{
		RedisURL:   cfg.RedisURL,
		Prefix:     cfg.CachePrefix,
		DefaultTTL: time.Duration(cfg.CacheTTL) * time.Second,
		MaxSize:    cfg.CacheMaxSize,
	}
	verdictCache, err := cache.New(cacheCfg)
	if err != nil {
		slog.Warn("verdict cache init failed, using memory fallback", "error", err)
		verdictCache = cache.NewMemoryFallback(cacheCfg)
	}
	defer func() {
		if err := verdictCache.Close(); err != nil {
			slog.Warn("error closing verdict cache", "error", err)
		}
	}()

	// Handlers
	classifier := classify.NewHeuristic(time.Now().UnixNano())
	readPolicy := retry.Policy{
		MaxAttempts: cfg.ReadMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}
	scanHandler := handler.NewScanHandler(classifier, pipe, verdictCache,
		time.Duration(cfg.CacheTTL)*time.Second, cfg.HighSeverityLabels)
	historyHandler := handler.NewHistoryHandler(serializer, pipe, readPolicy, cfg.HighSeverityLabels)
	healthHandler := handler.NewHealthHandler(serializer, pipe)

	// Router
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		r.Post("/predict", scanHandler.Predict)
		r.Post("/predict_public", scanHandler.PredictPublic)
	})

	r.Route("/api/history", func(r chi.Router) {
		r.Get("/", historyHandler.List)
		r.Post("/", historyHandler.Append)
		r.Delete("/", historyHandler.Clear)
		r.Delete("/{id}", historyHandler.Delete)
	})

	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Stop accepting requests first, then flush the pipeline so queued
	// events end up in the store or the overflow log.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	pipe.Stop(10 * time.Second)

	slog.Info("server stopped")
	return nil
}
