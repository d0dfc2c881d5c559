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

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/livewire/internal/bus"
	"github.com/pscheid92/livewire/internal/config"
	"github.com/pscheid92/livewire/internal/coordination"
	"github.com/pscheid92/livewire/internal/dispatch"
	"github.com/pscheid92/livewire/internal/heartbeat"
	"github.com/pscheid92/livewire/internal/hub"
	"github.com/pscheid92/livewire/internal/logging"
	"github.com/pscheid92/livewire/internal/presence"
	"github.com/pscheid92/livewire/internal/redis"
	"github.com/pscheid92/livewire/internal/server"
	sigrelay "github.com/pscheid92/livewire/internal/signal"
	"github.com/pscheid92/livewire/internal/version"
)

const (
	shutdownTimeout          = 10 * time.Second
	cacheEvictionInterval    = time.Minute
	processHeartbeatInterval = 15 * time.Second
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

// drainConnections tears down every live connection during shutdown so
// peers see the users go offline instead of waiting out the TTL.
func drainConnections(registry *hub.Registry, monitor *heartbeat.Monitor, store *presence.Store, timeout time.Duration) {
	conns := registry.Drain()
	if len(conns) == 0 {
		return
	}
	slog.Info("Draining connections", "count", len(conns))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, conn := range conns {
		monitor.Stop(conn.ID)
		if err := store.MarkOffline(ctx, conn.UserID); err != nil {
			logging.WithUser(conn.UserID).Warn("Failed to clear presence during drain", "error", err)
		}
		conn.Close()
	}
}

func runGracefulShutdown(srv *server.Server, cancel context.CancelFunc, drain func()) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		drain()

		// Stops the dispatcher, bus subscription, and process registry.
		cancel()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "process_id", cfg.ProcessID, "version", version.Version)

	redisClient := setupRedis(context.Background(), cfg)
	defer func() { _ = redisClient.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := presence.NewStore(redisClient, cfg.ProcessID, cfg.PresenceTTL, cfg.StoreTimeout, clock)
	cache := presence.NewCache(store, cfg.PresenceCacheExpiry, clock)
	stopEviction := cache.StartEvictionTimer(cacheEvictionInterval)
	defer stopEviction()

	eventBus := bus.NewRedisBus(redisClient)
	stream, err := eventBus.SubscribeAll(ctx)
	if err != nil {
		slog.Error("Failed to subscribe to broadcast bus", "error", err)
		os.Exit(1)
	}

	registry := hub.NewRegistry()
	monitor := heartbeat.NewMonitor(cfg.HeartbeatInterval, clock)
	relay := sigrelay.NewRelay(registry)

	dispatcher := dispatch.NewDispatcher(registry, stream)
	go dispatcher.Run(ctx)

	processes := coordination.NewProcessRegistry(redisClient, cfg.ProcessID, processHeartbeatInterval, version.Version, clock)
	go processes.Start(ctx)

	srv := server.NewServer(cfg, server.Deps{
		Registry:  registry,
		Monitor:   monitor,
		Presence:  cache,
		Store:     store,
		Publisher: eventBus,
		Relay:     relay,
		Redis:     redisClient,
		Processes: processes,
		Clock:     clock,
	})

	drain := func() { drainConnections(registry, monitor, store, shutdownTimeout) }
	done := runGracefulShutdown(srv, cancel, drain)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
