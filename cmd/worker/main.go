package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"cuterank/internal/app"
	"cuterank/internal/cache"
	"cuterank/internal/config"
	"cuterank/internal/imagecache"
	"cuterank/internal/log"
	"cuterank/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level).With().Str("process", "worker").Logger()

	if cfg.Store.Driver == "memory" || cfg.Queue.Driver != "redis" {
		logger.Fatal().Msg("the standalone worker needs store.driver=postgres and queue.driver=redis")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer stores.Close()

	objects, tr, err := app.OpenObjects(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}

	images, err := imagecache.New(cfg.Images.Dir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init image cache")
	}

	processor, err := app.NewProcessor(ctx, cfg, stores.Submissions, objects, tr, images, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init processor")
	}

	consumer := queue.NewConsumer(
		client,
		cfg.Queue.Stream,
		cfg.Queue.Group,
		cfg.Queue.Consumer,
		cfg.Queue.ClaimInterval,
		logger,
		processor,
	)

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("consumer stopped unexpectedly")
	}
	logger.Info().Msg("worker exited")
}
