package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/nishchay-veer/canvas-app/internal/auth"
	"github.com/nishchay-veer/canvas-app/internal/config"
	"github.com/nishchay-veer/canvas-app/internal/logging"
	"github.com/nishchay-veer/canvas-app/internal/metrics"
	"github.com/nishchay-veer/canvas-app/internal/postgres"
	"github.com/nishchay-veer/canvas-app/internal/redis"
	"github.com/nishchay-veer/canvas-app/internal/server"
	"github.com/nishchay-veer/canvas-app/internal/ws"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(cfg *config.Config) *redis.Client {
	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to create Redis client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, cancelRelay context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		if cancelRelay != nil {
			cancelRelay()
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	repos := server.Repositories{
		Users:  postgres.NewUserRepo(pool),
		Rooms:  postgres.NewRoomRepo(pool),
		Shapes: postgres.NewShapeRepo(pool),
		Chats:  postgres.NewChatRepo(pool),
	}

	verifier := auth.NewVerifier(cfg.JWTSecret, clock)

	promReg := metrics.NewRegistry()
	wsMetrics := metrics.NewWebSocketMetrics(promReg)

	registry := ws.NewRegistry()
	registry.SetRoomLimit(cfg.MaxRoomsPerClient)
	broadcaster := ws.NewBroadcaster(registry, wsMetrics)

	// Redis is optional: without it the instance runs standalone and
	// broadcasts stay local.
	var (
		redisClient *redis.Client
		cancelRelay context.CancelFunc
	)
	if cfg.RedisURL != "" {
		redisClient = setupRedis(cfg)
		defer func() { _ = redisClient.Close() }()

		pubsub := redis.NewRoomPubSub(redisClient)
		broadcaster.SetPublisher(pubsub)

		var relayCtx context.Context
		relayCtx, cancelRelay = context.WithCancel(context.Background())
		go func() {
			if err := pubsub.Relay(relayCtx, broadcaster); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Room relay stopped", "error", err)
			}
		}()
	}

	var redisChecker server.RedisChecker
	if redisClient != nil {
		redisChecker = redisClient
	}
	srv := server.NewServer(cfg, repos, verifier, registry, broadcaster, wsMetrics, promReg, pool, redisChecker)

	done := runGracefulShutdown(srv, cancelRelay)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
