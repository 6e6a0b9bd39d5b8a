package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"

	"mediashare/internal/cache"
	"mediashare/internal/config"
	"mediashare/internal/database"
	"mediashare/internal/log"
	"mediashare/internal/queue"
	"mediashare/internal/repository"
	"mediashare/internal/storage"
	"mediashare/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.Redis.Enabled {
		logger.Fatal().Msg("worker requires redis.enabled")
	}
	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init storage")
	}

	processor := tasks.NewProcessor(
		repository.NewPhotoRepository(dbPool),
		store,
		cfg.Storage.PublicPrefix,
		cfg.Maintenance.OrphanGrace,
		clock.New(),
		logger,
	)
	consumer := queue.NewConsumer(
		client,
		cfg.Redis.Stream,
		cfg.Redis.Group,
		cfg.Redis.Consumer,
		cfg.Maintenance.ClaimInterval,
		logger,
		processor,
	)

	logger.Info().Str("stream", cfg.Redis.Stream).Msg("worker started")
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
	}
	logger.Info().Msg("worker exited cleanly")
}
