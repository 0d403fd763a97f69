// cargo-bot console: the operator bot and the periodic session jobs.
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

	"github.com/64envy64/cargo-bot/internal/api"
	"github.com/64envy64/cargo-bot/internal/bot"
	"github.com/64envy64/cargo-bot/internal/broadcast"
	"github.com/64envy64/cargo-bot/internal/config"
	"github.com/64envy64/cargo-bot/internal/console"
	"github.com/64envy64/cargo-bot/internal/messenger"
	"github.com/64envy64/cargo-bot/internal/operator"
	"github.com/64envy64/cargo-bot/internal/relay"
	"github.com/64envy64/cargo-bot/internal/scheduler"
	"github.com/64envy64/cargo-bot/internal/session"
	"github.com/64envy64/cargo-bot/internal/store"
	"github.com/64envy64/cargo-bot/internal/sweep"
	"github.com/64envy64/cargo-bot/web"
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
	if err := cfg.ValidateConsole(); err != nil {
		slog.Error("Invalid console configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting console",
		"addr", cfg.Console.Addr,
		"notify_interval", cfg.Sweep.NotifyInterval,
		"reap_interval", cfg.Sweep.ReapInterval,
		"inactivity_threshold", cfg.Sweep.InactivityThreshold)

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

	roster, err := operator.LoadRoster(cfg.Console.OperatorsFile, cfg.Console.SeedOperators)
	if err != nil {
		slog.Error("Failed to load operator roster", "error", err)
		os.Exit(1)
	}
	if len(roster.List()) == 0 {
		slog.Warn("Operator roster is empty, nobody can use the console")
	}

	// The operator bot talks to operators; the customer bot is used
	// send-only for notices, broadcasts and username lookups.
	adminBot, err := messenger.NewTelegram(cfg.Console.AdminToken, cfg.Timeout.Send)
	if err != nil {
		slog.Error("Failed to connect operator bot", "error", err)
		os.Exit(1)
	}
	customerBot, err := messenger.NewTelegram(cfg.Responder.TelegramToken, cfg.Timeout.Send)
	if err != nil {
		slog.Error("Failed to connect customer bot", "error", err)
		os.Exit(1)
	}

	var deliverer relay.Deliverer
	switch cfg.Relay.Transport {
	case config.TransportGRPC:
		grpcClient, err := relay.NewGRPCClient(cfg.Relay.GRPCAddr, cfg.SecretKey, cfg.Timeout.Send)
		if err != nil {
			slog.Error("Failed to create gRPC relay client", "error", err)
			os.Exit(1)
		}
		defer grpcClient.Close()
		deliverer = grpcClient
	default:
		deliverer = relay.NewHTTPClient(cfg.Relay.URL, cfg.SecretKey, cfg.Timeout.Send)
	}

	feed := operator.NewFeed(cfg.Responder.AllowedOrigins)
	notifier := operator.NewNotifier(roster, adminBot, feed, cfg.Timeout.Send)
	notifications := sweep.NewNotifications(repo, customerBot, notifier, cfg.Sweep.ActiveWindow)
	reaper := sweep.NewReaper(repo, messenger.WithTimeout(customerBot, cfg.Timeout.Send), cfg.Sweep.InactivityThreshold)

	dispatcher := broadcast.NewDispatcher(repo, customerBot, broadcast.Config{
		Delay:       cfg.Broadcast.Delay,
		Workers:     cfg.Broadcast.Workers,
		SendTimeout: cfg.Timeout.Send,
	})

	handlers := console.New(console.Deps{
		Sessions:      session.NewMachine(repo),
		Store:         repo,
		Relay:         deliverer,
		Broadcaster:   dispatcher,
		Roster:        roster,
		Messenger:     adminBot,
		Directory:     customerBot,
		HistoryLimit:  cfg.Console.ChatHistoryLimit,
		HealthTimeout: cfg.Timeout.HealthCheck,
	})
	router := bot.NewRouter()
	handlers.Register(router)

	sched, err := scheduler.New(
		scheduler.Job{Name: "notification_sweep", Interval: cfg.Sweep.NotifyInterval, RunOnStart: true, Run: notifications.Tick},
		scheduler.Job{Name: "inactivity_reaper", Interval: cfg.Sweep.ReapInterval, Run: reaper.Tick},
	)
	if err != nil {
		slog.Error("Failed to create scheduler", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)

	api.NewHealthHandler(repo, cfg.Timeout.HealthCheck).RegisterHealth(r)
	r.Get("/ws/alerts", feed.ServeHTTP)
	r.Handle("/*", web.Handler())

	// Websocket connections are long-lived, so no WriteTimeout.
	srv := &http.Server{
		Addr:         cfg.Console.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched.Start(ctx)
	slog.Info("Scheduler started")

	go func() {
		slog.Info("Console HTTP listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		adminBot.Poll(ctx, router.Serve)
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	done := make(chan struct{})
	go func() {
		sched.Wait()
		handlers.Wait()
		<-pollDone
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		slog.Warn("Background work did not stop in time")
	}

	slog.Info("Console stopped")
}
