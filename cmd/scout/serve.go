package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/btouchard/scout/internal/auth"
	"github.com/btouchard/scout/internal/config"
	scoutmcp "github.com/btouchard/scout/internal/mcp"
	"github.com/btouchard/scout/internal/mcp/handlers"
	authmw "github.com/btouchard/scout/internal/mcp/middleware"
	"github.com/btouchard/scout/internal/metrics"
	"github.com/btouchard/scout/internal/notify"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the Scout server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}

			setupLogging(cfg, os.Stdout)

			slog.Info("starting scout",
				"version", version,
				"host", cfg.Server.Host,
				"port", cfg.Server.Port)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return run(ctx, cfg)
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	tokens, err := auth.NewTokenSet(cfg.Auth.APITokens)
	if err != nil {
		return fmt.Errorf("loading api tokens: %w", err)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	// --- MCP Server ---
	deps := &scoutmcp.Deps{
		Engine:        a.engine,
		Notifier:      a.hub,
		SearchTimeout: cfg.Search.Timeout,
		Version:       version,
	}
	if a.drive != nil {
		deps.Drive = a.drive
	}
	mcpServer := scoutmcp.NewServer(deps)
	a.hub.Add(notify.NewMCPNotifier(mcpServer, time.Second))

	mcpHTTP := server.NewStreamableHTTPServer(mcpServer)

	// Connect in the background; searches skip the drive until it is ready.
	if a.drive != nil {
		go func() { _ = a.connectDrive(ctx) }()
	}

	// --- HTTP Router ---
	limiter := authmw.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	limiter.StartSweepLoop(time.Minute, ctx.Done())

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(metrics.Middleware)

	// MCP endpoint (rate limited + Bearer token required)
	r.Group(func(r chi.Router) {
		r.Use(limiter.Limit)
		r.Use(authmw.BearerAuth(tokens))
		r.Handle("/mcp", mcpHTTP)
	})

	r.Get("/health", healthHandler(a.store, deps.Drive))
	r.Handle("/metrics", metrics.Handler())

	// --- HTTP Server ---
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("scout is ready", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// documentCounter is the part of the store /health reports on.
type documentCounter interface {
	CountDocuments(ctx context.Context) (int, error)
}

func healthHandler(docs documentCounter, drive handlers.DriveClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]any{"status": "ok"}
		code := http.StatusOK

		n, err := docs.CountDocuments(r.Context())
		if err != nil {
			slog.Warn("health check: counting documents", "error", err)
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			status["documents"] = n
		}

		if drive != nil {
			status["drive"] = drive.State().String()
		} else {
			status["drive"] = "disabled"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}
}
