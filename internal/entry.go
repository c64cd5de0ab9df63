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

	"github.com/starford/ideashare/internal/api"
	"github.com/starford/ideashare/internal/mcpserver"
)

func configure(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// NewHTTPHandler builds the root router: health checks plus the API under /api.
func NewHTTPHandler(a *App) http.Handler {
	cfg := a.Config
	apiRouter := api.NewRouter(a.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

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
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := a.Ideas.Probe(r.Context()); err != nil {
			a.Logger.Warn("readiness probe failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)
	return r
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := configure(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := NewLogger(cfg, app.logOutput)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("docstore_driver", cfg.DocStore.Driver),
		slog.String("local_path", cfg.Local.Path),
		slog.String("voting_mode", cfg.Voting.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	a, err := Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("docstore close failed", slog.String("error", err.Error()))
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: NewHTTPHandler(a),
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload the local store when another process edits it.
	g.Go(func() error {
		if err := a.Local.Watch(gCtx, func() {
			logger.Info("local store changed on disk", slog.String("path", a.Local.Path()))
		}); err != nil {
			logger.Warn("local store watcher unavailable", slog.String("error", err.Error()))
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
		defer signal.Stop(quit)

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

		return errServerStopped
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errServerStopped) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errServerStopped cancels the group so the watcher exits after shutdown.
var errServerStopped = errors.New("server stopped")

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := configure(opts)
	if err != nil {
		return err
	}
	if app.logOutput == nil {
		app.logOutput = os.Stderr
	}
	logger := NewLogger(app.config, app.logOutput)

	a, err := Build(ctx, app.config, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(a.Service).ServeStdio()
}
