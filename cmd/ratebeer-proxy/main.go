package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/ratebeer-client/pkg/client"
	"github.com/Sternrassler/ratebeer-client/pkg/logging"
	"github.com/Sternrassler/ratebeer-client/pkg/ratebeer"
	"github.com/Sternrassler/ratebeer-client/pkg/session"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, ".env load warning: %v\n", err)
	}

	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging)
	logger := logging.NewLogger("proxy")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("redis", cfg.RedisURL).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("redis", cfg.RedisURL).Msg("Connected to Redis")

	clientCfg := cfg.clientConfig()
	clientCfg.Redis = redisClient
	rbClient, err := client.New(clientCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create RateBeer client")
	}
	defer rbClient.Close()

	var persister session.Persister
	if cfg.SessionKey != nil {
		persister = session.NewRedisPersister(redisClient, session.DefaultRedisKey, *cfg.SessionKey)
	} else {
		logger.Warn().Msg("SESSION_KEY not set, sessions are not kept across restarts")
	}
	sessions := session.NewStore(persister)

	if restored, err := sessions.Restore(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to restore session")
	} else if restored {
		if err := rbClient.RestoreAuthEvidence(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to restore auth cookies")
		}
	}

	apiCfg := ratebeer.DefaultConfig()
	apiCfg.Pagination.MaxConcurrency = cfg.PageConcurrency
	api := ratebeer.New(rbClient, sessions, apiCfg)

	ready := func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	}
	e := newServer(api, ready, logging.NewLogger("http"))

	go func() {
		addr := ":" + cfg.Port
		logger.Info().
			Str("addr", addr).
			Str("base_url", cfg.BaseURL).
			Str("user_agent", cfg.UserAgent).
			Msg("Starting RateBeer proxy")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown failed")
	}
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close Redis")
	}
}
