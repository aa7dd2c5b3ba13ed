package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sternrassler/caching-proxy/pkg/cache"
	"github.com/Sternrassler/caching-proxy/pkg/config"
	"github.com/Sternrassler/caching-proxy/pkg/logging"
	"github.com/Sternrassler/caching-proxy/pkg/proxy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup(logging.Config{})
		logger := logging.NewLogger("server")
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Setup(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger := logging.NewLogger("server")

	stats := cache.NewStatsTracker()
	backend, err := buildBackend(cfg, stats)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create cache backend")
	}

	manager, err := cache.NewManager(cache.Options{
		Backend:      backend,
		Forwarder:    proxy.NewHTTPForwarder(cfg.OriginTimeout),
		DefaultTTL:   cfg.DefaultTTL,
		Unavailable:  cache.UnavailablePolicy(cfg.UnavailablePolicy),
		ErrorCaching: cache.ErrorCachePolicy(cfg.ErrorCaching),
		Stats:        stats,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create cache manager")
	}

	srv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: newServeMux(manager),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("backend", manager.BackendName()).
			Dur("default_ttl", cfg.DefaultTTL).
			Msg("Starting caching proxy")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}
	if err := manager.Close(); err != nil {
		logger.Error().Err(err).Msg("Backend close failed")
	}
}

// buildBackend creates the configured cache backend. The memory backend
// reports evictions into the shared stats tracker; redis delegates eviction
// to the server and reports none.
func buildBackend(cfg config.Config, stats *cache.StatsTracker) (cache.Backend, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		client := redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			// With the bypass policy a down redis only disables caching,
			// so startup proceeds; fail-closed refuses to start.
			if cfg.UnavailablePolicy == "fail-closed" {
				client.Close()
				return nil, err
			}
			logger := logging.NewLogger("server")
			logger.Warn().Err(err).Msg("Redis unreachable at startup")
		}
		return cache.NewRedisBackend(client), nil

	default:
		return cache.NewMemoryBackend(cfg.MaxCacheSize, stats.RecordEviction), nil
	}
}
