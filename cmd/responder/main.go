// cargo-bot responder: the customer-facing bot and the operator relay API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/64envy64/cargo-bot/internal/api"
	"github.com/64envy64/cargo-bot/internal/bot"
	"github.com/64envy64/cargo-bot/internal/classifier"
	"github.com/64envy64/cargo-bot/internal/config"
	"github.com/64envy64/cargo-bot/internal/messenger"
	"github.com/64envy64/cargo-bot/internal/middleware"
	"github.com/64envy64/cargo-bot/internal/relay"
	"github.com/64envy64/cargo-bot/internal/responder"
	"github.com/64envy64/cargo-bot/internal/session"
	"github.com/64envy64/cargo-bot/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateResponder(); err != nil {
		slog.Error("Invalid responder configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting responder", "addr", cfg.Responder.Addr, "relay_transport", cfg.Relay.Transport)

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
	slog.Info("Database connected", "path", cfg.DBPath)

	tg, err := messenger.NewTelegram(cfg.Responder.TelegramToken, cfg.Timeout.Send)
	if err != nil {
		slog.Error("Failed to connect to Telegram", "error", err)
		os.Exit(1)
	}

	faq, err := classifier.LoadFAQ(cfg.Responder.FAQPath)
	if err != nil {
		slog.Error("Failed to load FAQ", "error", err)
		os.Exit(1)
	}
	var gen classifier.Generator
	if cfg.Responder.AnthropicKey != "" {
		gen = classifier.NewAnthropicGenerator(cfg.Responder.AnthropicKey, cfg.Responder.AnthropicModel, cfg.Timeout.Generate)
		slog.Info("Generative answers enabled")
	} else {
		slog.Info("Generative answers disabled (ANTHROPIC_API_KEY not set)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	machine := session.NewMachine(repo)
	limiter := bot.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.MaxUsers)
	go limiter.Run(ctx)

	router := bot.NewRouter()
	handlers := responder.New(machine, repo, classifier.NewChain(faq, gen), tg, cfg.Responder.OperatorURL)
	handlers.Register(router, limiter)

	relaySvc := relay.NewService(messenger.WithTimeout(tg, cfg.Timeout.Send), repo)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Responder.AllowedOrigins))

	api.NewHealthHandler(repo, cfg.Timeout.HealthCheck).RegisterHealth(r)
	api.NewAdminHandler(relaySvc, cfg.SecretKey).RegisterRoutes(r)

	srv := &http.Server{
		Addr:         cfg.Responder.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Relay HTTP listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	if cfg.Relay.Transport == config.TransportGRPC {
		lis, err := net.Listen("tcp", cfg.Relay.GRPCAddr)
		if err != nil {
			slog.Error("Failed to listen for gRPC relay", "addr", cfg.Relay.GRPCAddr, "error", err)
			os.Exit(1)
		}
		grpcSrv := relay.NewGRPCServer(relaySvc, cfg.SecretKey)
		go func() {
			slog.Info("Relay gRPC listening", "addr", cfg.Relay.GRPCAddr)
			if err := grpcSrv.Serve(lis); err != nil {
				slog.Error("gRPC server failed", "error", err)
			}
		}()
		defer grpcSrv.GracefulStop()
	}

	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		tg.Poll(ctx, router.Serve)
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	select {
	case <-pollDone:
	case <-shutdownCtx.Done():
		slog.Warn("Update poller did not stop in time")
	}

	slog.Info("Responder stopped")
}
