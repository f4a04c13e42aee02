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
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"github.com/ohinlabs/hippo/internal/api"
	"github.com/ohinlabs/hippo/internal/docstore"
	"github.com/ohinlabs/hippo/internal/mcpserver"
	"github.com/ohinlabs/hippo/internal/sse"
	"github.com/ohinlabs/hippo/internal/storage"
)

// newLogger builds the process logger: structured JSON by default, tinted
// console output when log_format is "text".
func newLogger(cfg *Config) *slog.Logger {
	if cfg.App.LogFormat == LogFormatText {
		return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
			Level:   cfg.App.LogLevel,
			NoColor: !isatty.IsTerminal(os.Stderr.Fd()),
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

// openStore initializes the storage provider and loads the store index.
func openStore(cfg *Config, logger *slog.Logger, opts ...docstore.Option) (*docstore.Store, error) {
	fs, err := storage.NewFS(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	opts = append([]docstore.Option{docstore.WithLogger(logger)}, opts...)
	store, err := docstore.Open(fs, opts...)
	if err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}
	return store, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_path", cfg.Store.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker, fed by store mutation events.
	broker := sse.NewBroker()
	defer broker.Close()

	store, err := openStore(cfg, logger, docstore.WithEvents(func(ev docstore.Event) {
		broker.Publish(sse.Event{Type: ev.Type, Data: ev})
	}))
	if err != nil {
		return err
	}

	apiRouter := api.NewRouter(store, cfg.Auth.AuthEnabled(), broker)

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

	g, gCtx := errgroup.WithContext(ctx)

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

// RunMCP loads the store and serves MCP tools over stdio until the client
// disconnects.
func RunMCP(opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Logs go to stderr so they never interleave with the stdio transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("Starting MCP server on stdio", slog.String("store_path", cfg.Store.Path))
	return mcpserver.New(store).ServeStdio()
}
