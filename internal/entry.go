// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/lecternlabs/lectern/internal/api"
	"github.com/lecternlabs/lectern/internal/index"
	"github.com/lecternlabs/lectern/internal/lock"
	"github.com/lecternlabs/lectern/internal/mcpserver"
	"github.com/lecternlabs/lectern/internal/projectsvc"
	"github.com/lecternlabs/lectern/internal/remote"
	"github.com/lecternlabs/lectern/internal/sse"
	"github.com/lecternlabs/lectern/internal/store"
	"github.com/lecternlabs/lectern/internal/templates"
)

// Run starts the HTTP application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := app.buildLogger(os.Stdout, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("workspace_root", cfg.Workspace.Root),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("remote_sync", cfg.Remote.Enabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc, db, st, err := buildService(cfg, logger, broker)
	if err != nil {
		return err
	}
	defer db.Close()

	// Run initial index sync.
	if err := index.Sync(db, st, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	apiRouter := api.NewRouter(svc, st, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api, attachment and resource files at the root.
	r.Mount("/api", apiRouter)
	r.Mount("/", api.NewFileRouter(svc, st))

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		if err := index.Watch(gCtx, db, st, logger, func(kind, project string) {
			broker.PublishProjectEvent(kind, project)
		}); err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP stdio server with the given options. Logs go to
// stderr because stdout carries the protocol stream.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.buildLogger(os.Stderr, cfg.App.LogLevel)
	slog.SetDefault(logger)

	svc, db, st, err := buildService(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := index.Sync(db, st, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	return mcpserver.New(svc).ServeStdio()
}

// buildService wires the storage, index, lock gate, and optional remote
// engine into a project service.
func buildService(cfg *Config, logger *slog.Logger, pub projectsvc.Publisher) (*projectsvc.Service, *index.DB, *store.Store, error) {
	gate := lock.NewGate(cfg.Auth.Secret)
	lib := templates.NewLibrary(cfg.Workspace.TemplateDir)

	st, err := store.New(cfg.Workspace.Root, gate, lib, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init store: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init index: %w", err)
	}

	var engine *remote.Engine
	if cfg.Remote.Enabled() {
		objects, err := remote.NewMinioStore(cfg.Remote)
		if err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("init remote store: %w", err)
		}
		engine = remote.NewEngine(objects, cfg.Remote, logger)
	}

	svc := projectsvc.NewService(st, db, gate, engine, pub, logger)
	return svc, db, st, nil
}
