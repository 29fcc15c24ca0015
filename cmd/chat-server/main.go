package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"chatapp/internal/config"
	"chatapp/internal/handler"
	"chatapp/internal/messaging"
	"chatapp/internal/observability"
	"chatapp/internal/presence"
	"chatapp/internal/repository/postgres"
	"chatapp/internal/room"
	"chatapp/internal/service"
	"chatapp/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogFormat)

	slog.Info("starting chat server",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.Port))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		recorders []service.Recorder
		workers   sync.WaitGroup
		db        *sql.DB
		broker    handler.BrokerStatus
	)

	// Workers stop after the hub so events produced during shutdown are recorded
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	if cfg.DatabaseURL != "" {
		connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		db, err = config.NewPostgresConnection(connCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			slog.Error("failed to connect to database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("connected to postgresql")

		archive := postgres.NewMessageArchive(db)
		if err := archive.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare message archive", slog.String("error", err.Error()))
			os.Exit(1)
		}
		recorders = append(recorders, archive)
		startWorker(workerCtx, &workers, "message archive", archive.Run)
	}

	if cfg.RabbitMQURL != "" {
		rmqCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		publisher, err := messaging.NewRabbitMQWithRetry(rmqCtx, cfg.RabbitMQURL, 5)
		cancel()
		if err != nil {
			slog.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer publisher.Close()
		slog.Info("connected to rabbitmq")

		broker = publisher
		recorders = append(recorders, publisher)
		startWorker(workerCtx, &workers, "event publisher", publisher.Run)
	}

	hub := websocket.NewHub()
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go func() {
		if err := hub.Run(hubCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("hub error", slog.String("error", err.Error()))
		}
	}()

	chat := service.NewChatService(hub, presence.NewRegistry(nil), room.NewDirectory(cfg.HistoryLimit),
		service.WithRecorders(recorders...))

	router, err := newRouter(ctx, cfg, routerDeps{
		hub:    hub,
		chat:   chat,
		db:     db,
		broker: broker,
	})
	if err != nil {
		slog.Error("failed to build router", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("chat server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		slog.Error("server error", slog.String("error", err.Error()))
	}

	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
	}

	// Done closes once every connection has run its disconnect path
	hubCancel()
	select {
	case <-hub.Done():
	case <-shutdownCtx.Done():
	}

	stopWorkers()
	workers.Wait()

	slog.Info("server stopped gracefully")
}

func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, run func(context.Context) error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("worker stopped", slog.String("worker", name), slog.String("error", err.Error()))
		}
	}()
	slog.Info("worker started", slog.String("worker", name))
}
