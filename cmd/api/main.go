package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"mediashare/internal/cache"
	"mediashare/internal/config"
	"mediashare/internal/database"
	"mediashare/internal/handlers"
	"mediashare/internal/jobs"
	"mediashare/internal/log"
	"mediashare/internal/media/optimize"
	"mediashare/internal/media/optimize/vips"
	"mediashare/internal/middleware"
	"mediashare/internal/queue"
	"mediashare/internal/repository"
	"mediashare/internal/security"
	"mediashare/internal/server"
	"mediashare/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if err := database.Migrate(ctx, dbPool, logger); err != nil {
		logger.Fatal().Err(err).Msg("schema migration failed")
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
	}

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("failed to init storage")
	}

	clk := clock.New()
	var responses cache.Store
	if cfg.Cache.Backend == "redis" {
		responses = cache.NewRedisStore(redisClient, "")
	} else {
		responses = cache.NewMemoryStore(clk, cfg.Cache.Capacity)
	}

	handlerSet := handlers.NewHandlerSet(logger, cfg, handlers.Dependencies{
		Users:     repository.NewUserRepository(dbPool),
		Photos:    repository.NewPhotoRepository(dbPool),
		Comments:  repository.NewCommentRepository(dbPool),
		Ratings:   repository.NewRatingRepository(dbPool),
		Store:     store,
		Optimizer: newOptimizer(cfg.Upload, logger),
		Responses: responses,
		Tokens:    security.NewTokenIssuer(cfg.Security.JWTSecret, cfg.Security.JWTTTL),
	})

	limiter := middleware.NewRateLimiter(clk, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet, limiter)

	var enqueuer jobs.Enqueuer
	if redisClient != nil {
		enqueuer = queue.NewProducer(redisClient, cfg.Redis.Stream)
	}
	scheduler := jobs.NewScheduler(enqueuer, clk, logger)
	if err := scheduler.ScheduleCleanup(cfg.Maintenance.OrphanSweep); err != nil {
		logger.Error().Err(err).Msg("schedule orphan sweep failed")
	}
	if err := scheduler.ScheduleLocal("0 * * * * *", "rate_limit_sweep", func(context.Context) error {
		limiter.Sweep()
		return nil
	}); err != nil {
		logger.Error().Err(err).Msg("schedule rate limit sweep failed")
	}
	scheduler.Start()

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

// newOptimizer probes libvips once; without it uploads are stored as sent.
func newOptimizer(cfg config.UploadConfig, logger zerolog.Logger) optimize.Optimizer {
	if cfg.Optimizer != "vips" {
		return optimize.Passthrough{}
	}
	opt, err := vips.New(optimize.Options{
		MaxWidth:         cfg.MaxWidth,
		MaxHeight:        cfg.MaxHeight,
		Quality:          cfg.Quality,
		ThumbnailSize:    cfg.ThumbnailSize,
		ThumbnailQuality: cfg.ThumbnailQuality,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("image optimizer unavailable, storing originals only")
		return optimize.Passthrough{}
	}
	return opt
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop(shutdownCtx)

	db.Close()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
