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

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/classifier"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/noteservice"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/storage"
)

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

	// Structured JSON logger. In MCP mode stdout carries the protocol, so
	// logs go to stderr.
	logTarget := os.Stdout
	if app.mcpMode {
		logTarget = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logTarget, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("notes_path", cfg.Notes.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("ollama_model", cfg.Ollama.Model),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Note store (creates the root directory).
	store, err := storage.NewNoteStore(storage.Config{
		Root:              cfg.Notes.Path,
		BackupEnabled:     cfg.Notes.BackupEnabled,
		MaxFilenameLength: cfg.Notes.MaxFilenameLength,
	}, logger)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Optional SQLite search index.
	var db *index.DB
	if cfg.SQLite.Enabled() {
		db, err = index.Open(cfg.SQLite.Path)
		if err != nil {
			return fmt.Errorf("init index: %w", err)
		}
		defer db.Close()

		if err := index.Sync(db, store, logger); err != nil {
			logger.Warn("initial sync failed", slog.String("error", err.Error()))
		}
	}

	// Classification backend with keyword fallback.
	cls := classifier.NewClient(classifier.Config{
		BaseURL:      cfg.Ollama.BaseURL,
		Model:        cfg.Ollama.Model,
		Timeout:      cfg.Ollama.Timeout(),
		ProbeTimeout: cfg.Ollama.ProbeTimeout(),
	}, logger)

	svc := noteservice.NewService(store, cls, db, noteservice.Config{
		ConfidenceThreshold: cfg.Classifier.ConfidenceThreshold,
		MaxNoteLength:       cfg.Notes.MaxNoteLength,
		PendingTTL:          cfg.Classifier.PendingTTL(),
	}, logger)

	if app.mcpMode {
		logger.Info("Starting MCP server on stdio")
		return mcpserver.New(svc).ServeStdio()
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated). Readiness reports whether
	// the classification backend responds; the service still works without
	// it via the keyword fallback.
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if svc.ClassifierAvailable(req.Context()) {
			_, _ = w.Write([]byte(`{"status":"ok","classifier":"available"}`))
		} else {
			_, _ = w.Write([]byte(`{"status":"ok","classifier":"fallback"}`))
		}
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// File watcher keeps the index in step with external edits.
	if db != nil {
		g.Go(func() error {
			return index.Watch(gCtx, db, store, store.Root(), logger, func(kind, path string) {
				broker.PublishNoteEvent(kind, path)
			})
		})
	}

	// Daily backup retention sweep.
	if cfg.Notes.BackupEnabled && cfg.Notes.BackupRetentionDays > 0 {
		retention := time.Duration(cfg.Notes.BackupRetentionDays) * 24 * time.Hour
		g.Go(func() error {
			ticker := time.NewTicker(24 * time.Hour)
			defer ticker.Stop()
			store.CleanupBackups(retention)
			for {
				select {
				case <-gCtx.Done():
					return nil
				case <-ticker.C:
					store.CleanupBackups(retention)
				}
			}
		})
	}

	// HTTP server.
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
