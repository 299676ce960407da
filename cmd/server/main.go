// Agent Studio server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/agent-studio/internal/agent"
	"github.com/ashureev/agent-studio/internal/api"
	"github.com/ashureev/agent-studio/internal/chat"
	"github.com/ashureev/agent-studio/internal/config"
	"github.com/ashureev/agent-studio/internal/identity"
	"github.com/ashureev/agent-studio/internal/middleware"
	"github.com/ashureev/agent-studio/internal/store"
	"github.com/ashureev/agent-studio/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "backend", cfg.Backend.URL)

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Without a backend URL every exchange is answered by the local fallback.
	var live chat.Transport
	if cfg.HasBackend() {
		transport, err := chat.NewHTTPTransport(cfg.Backend.URL, cfg.Backend.ChatPath,
			chat.WithResponseTimeout(cfg.Backend.Timeout),
			chat.WithLogger(logger),
		)
		if err != nil {
			slog.Error("Failed to configure agent backend", "error", err)
			os.Exit(1)
		}
		live = transport
		slog.Info("Agent backend configured", "endpoint", transport.Endpoint())
	} else {
		slog.Info("No live agent backend, chat runs in preview mode", "forced", cfg.Backend.ForcePreview)
	}
	streamer := chat.NewStreamer(live, chat.Fallback{TypingDelay: cfg.Backend.TypingDelay}, logger)

	var health api.HealthChecker
	if cfg.Backend.GRPCAddr != "" {
		probe, err := agent.NewHealthProbe(agent.DefaultProbeConfig(cfg.Backend.GRPCAddr), logger)
		if err != nil {
			slog.Warn("Failed to create backend health probe, status checks disabled", "error", err)
		} else {
			defer probe.Close()
			waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := probe.Wait(waitCtx); err != nil {
				slog.Warn("Agent backend health service not ready yet", "error", err)
			}
			cancel()
			health = probe
		}
	}

	// Initialize services and handlers.
	svc := agent.NewService(streamer, logger)
	baseHandler := api.NewHandler(repo, cfg, svc, health)
	agentHandler := agent.NewHandler(svc, repo, cfg)
	defer agentHandler.Close()
	wsHandler := agent.NewWebSocketHandler(svc, repo, agentHandler.RateLimiter(), cfg.FrontendURL, cfg.IsDevelopment())

	origins := []string{"*"}
	if cfg.FrontendURL != "" {
		origins = []string{cfg.FrontendURL}
	}

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(origins))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	baseHandler.RegisterRoutes(r)
	agentHandler.RegisterRoutes(r)
	r.Get("/ws/agent", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// SSE responses stream for as long as an exchange runs, so there is
	// no write timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agent.StartSessionSweeper(ctx, svc, cfg.Session.TTL, cfg.Session.SweepInterval)

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
