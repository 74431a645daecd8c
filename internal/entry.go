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

	"github.com/avdeev/notevault/internal/api"
	"github.com/avdeev/notevault/internal/kv"
	"github.com/avdeev/notevault/internal/mcpserver"
	"github.com/avdeev/notevault/internal/prefs"
	"github.com/avdeev/notevault/internal/sse"
	"github.com/avdeev/notevault/internal/storage"
	"github.com/avdeev/notevault/internal/watch"
)

// buildService wires the storage stack in its fixed order: key-value
// store, preference store, then the backend-resolving service.
func buildService(ctx context.Context, cfg *Config, logger *slog.Logger) (*storage.Service, *kv.SQLite, error) {
	db, err := kv.Open(cfg.KV.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init kv store: %w", err)
	}

	prefStore := prefs.NewStore(db, cfg.Prefs.Timeout, logger)

	var mounts *storage.MountTable
	var picker storage.Picker
	if len(cfg.Storage.Mounts) > 0 {
		mounts, err = storage.NewMountTable(cfg.Storage.Authority, cfg.Storage.Mounts)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("init mounts: %w", err)
		}
		picker = storage.NewMountPicker(mounts)
	}

	svc, err := storage.NewService(ctx, storage.Options{
		Mode:     cfg.Storage.Mode,
		AppRoot:  cfg.Storage.AppRoot,
		Mounts:   mounts,
		Prefs:    prefStore,
		KV:       db,
		Picker:   picker,
		CacheTTL: cfg.Cache.TTL,
		Logger:   logger,
	})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("init storage service: %w", err)
	}
	return svc, db, nil
}

func newLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config
	logger := app.logger
	if logger == nil {
		logger = newLogger(cfg)
	} else {
		slog.SetDefault(logger)
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_mode", cfg.Storage.Mode),
		slog.String("kv_path", cfg.KV.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svc, db, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Build API router.
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the active directory for external changes, following runtime
	// backend switches. Flat mode has no directory to watch.
	if cfg.Storage.Mode != storage.ModeFlat {
		g.Go(func() error {
			return watch.Supervise(gCtx, svc.ActiveDir, svc.BackendChanged(), logger,
				svc.InvalidateCache, func(kind, path string) {
					broker.PublishChange(kind, path)
				})
		})
	}

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

// RunMCP starts the MCP stdio server with the given options. No HTTP
// server or watcher is started; the process talks MCP on stdin/stdout
// until the transport closes.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Logs must not interleave with the stdio transport.
	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	svc, db, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("MCP server starting on stdio", slog.String("storage_mode", cfg.Storage.Mode))
	return mcpserver.New(svc).ServeStdio()
}
