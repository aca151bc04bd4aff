package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pbxwatch/backend/internal/aggregator"
	"github.com/pbxwatch/backend/internal/alerts"
	"github.com/pbxwatch/backend/internal/api"
	"github.com/pbxwatch/backend/internal/auth"
	"github.com/pbxwatch/backend/internal/config"
	"github.com/pbxwatch/backend/internal/event"
	"github.com/pbxwatch/backend/internal/metrics"
	"github.com/pbxwatch/backend/internal/registry"
	"github.com/pbxwatch/backend/internal/upstream"
	"github.com/pbxwatch/backend/internal/websocket"
	"github.com/pbxwatch/backend/pkg/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("upstream_url", cfg.UpstreamURL).
		Dur("poll_interval", cfg.PollInterval).
		Str("log_level", cfg.LogLevel).
		Msg("starting pbxwatch backend server")

	// Create WebSocket hub
	hub := websocket.NewHub(log.Logger)
	go hub.Run()

	// Upstream provider client, call registry and alert evaluator
	client := upstream.NewClient(cfg.UpstreamURL, cfg.UpstreamToken, cfg.UpstreamTimeout, log.Logger)
	callRegistry := registry.New(log.Logger)
	evaluator := alerts.NewEvaluator(cfg.AlertWindow)

	// Aggregator drives the polling/broadcast cycle
	aggregatorService := aggregator.New(client, callRegistry, evaluator, hub, cfg.PollInterval, log.Logger)
	aggregatorService.Start()

	// Create WebSocket handler
	wsHandler := websocket.NewHandler(hub, cfg, aggregatorService, log.Logger)

	// Create event receiver
	eventReceiver := event.NewReceiver(aggregatorService, log.Logger)

	// REST query surface
	apiHandler := api.NewHandler(aggregatorService, log.Logger)

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler(client))
	r.Get("/metrics", metrics.Get().Handler())

	// Internal routes (no auth - for the local PBX connector)
	r.Route("/internal", func(r chi.Router) {
		r.Post("/event", eventReceiver.HandleEvent)
		r.Get("/event/stats", eventReceiver.GetStats)
	})

	// Add auth middleware for protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.AuthToken))
		r.Get("/ws", wsHandler.ServeHTTP)
		r.Get("/api/agents", apiHandler.HandleAgents)
		r.Get("/api/queues", apiHandler.HandleQueues)
		r.Get("/api/calls", apiHandler.HandleCalls)
		r.Get("/api/stats", apiHandler.HandleStats)
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop the polling loop before draining connections
	aggregatorService.Stop()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// healthHandler reports service status plus upstream reachability so
// operators can tell a healthy dashboard from one running on synthetic data
func healthHandler(client *upstream.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		upstreamHealth := client.FetchHealth(ctx)
		upstreamStatus := map[string]any{
			"status":          upstreamHealth.Status,
			"servingRealData": client.Healthy(),
		}
		if len(upstreamHealth.Components) > 0 {
			upstreamStatus["components"] = upstreamHealth.Components
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":   "ok",
			"service":  "pbxwatch-backend",
			"upstream": upstreamStatus,
		})
	}
}
