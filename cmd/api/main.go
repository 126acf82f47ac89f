package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"cuterank/internal/app"
	"cuterank/internal/cache"
	"cuterank/internal/config"
	"cuterank/internal/dedup"
	"cuterank/internal/handlers"
	"cuterank/internal/imagecache"
	"cuterank/internal/jobs"
	"cuterank/internal/log"
	"cuterank/internal/notify"
	"cuterank/internal/queue"
	"cuterank/internal/ranking"
	"cuterank/internal/ratelimit"
	"cuterank/internal/server"
	"cuterank/internal/service"
	"cuterank/internal/warnings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	collaborators, err := app.NewCollaborators(cfg.Collaborators, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid collaborator config")
	}

	probes := []handlers.Probe{{Name: "storage", Check: objects.Ping}}
	if stores.Pool != nil {
		probes = append(probes, handlers.Probe{Name: "postgres", Check: stores.Pool.Ping})
	}

	// Shared state lives in Redis unless everything runs in process.
	var (
		redisClient *redis.Client
		limiter     ratelimit.Limiter
		sweeper     jobs.Sweeper
		notifier    notify.Notifier
		notices     service.NoticeReader
		closers     []func() error
	)
	if cfg.Store.Driver == "memory" {
		mem := ratelimit.NewMemLimiter(cfg.Policy.RateLimitWindow)
		limiter, sweeper = mem, mem
		inbox := notify.NewMemNotifier()
		notifier, notices = inbox, inbox
	} else {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		closers = append(closers, redisClient.Close)
		probes = append(probes, handlers.Probe{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})

		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.Policy.RateLimitWindow)
		inbox := notify.NewRedisNotifier(redisClient)
		notices = inbox
		fanout := notify.Multi{inbox}
		if len(cfg.Kafka.Brokers) > 0 {
			w := notify.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
			closers = append(closers, w.Close)
			fanout = append(fanout, notify.NewKafkaNotifier(w))
		}
		notifier = fanout
	}

	var q queue.Queue
	switch cfg.Queue.Driver {
	case "redis":
		if redisClient == nil {
			logger.Fatal().Msg("queue.driver=redis needs store.driver=postgres")
		}
		q = queue.NewRedisQueue(redisClient, cfg.Queue.Stream, cfg.Queue.MaxLen)
	default:
		mq := queue.NewMemQueue(cfg.Queue.Capacity, logger)
		processor, err := app.NewProcessor(ctx, cfg, stores.Submissions, objects, tr, images, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init archive worker")
		}
		go func() {
			if err := mq.Run(ctx, processor); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("in-process worker stopped")
			}
		}()
		q = mq
	}

	ledger := warnings.NewLedger(stores.Warnings, cfg.Policy.BanThreshold, 4096, time.Minute)
	ranker := ranking.NewRanker(stores.Submissions)
	scores := ranking.ScorePolicy{Min: cfg.Policy.ScoreMin, Max: cfg.Policy.ScoreMax}

	submissions := service.NewSubmissionService(service.SubmissionDeps{
		Limiter:   limiter,
		Ledger:    ledger,
		Detector:  dedup.NewDetector(stores.Fingerprints, cfg.Policy.HammingThreshold, cfg.Policy.MaxImagePixels),
		Ranker:    ranker,
		Scorer:    collaborators.Scorer,
		NSFW:      collaborators.NSFW,
		Renderer:  collaborators.Renderer,
		Transport: tr,
		Cache:     images,
		Subs:      stores.Submissions,
		Avatars:   stores.Avatars,
		Notifier:  notifier,
		Queue:     q,
		Policy:    cfg.Policy,
		Timeout:   cfg.Collaborators.Timeout,
		Logger:    logger,
	})
	moderation := service.NewModerationService(stores.Submissions, ledger, images, notifier, q, cfg.Security.AdminIDs, logger)
	board := service.NewLeaderboardService(ranker, images, notices, scores, cfg.Policy.TopListSize)

	handlerSet := handlers.NewHandlerSet(logger, cfg, submissions, moderation, board, probes...)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(cfg.Jobs, q, sweeper, tr, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	shutdown(logger, httpServer, scheduler, closers)
}

func shutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, closers []func() error) {
	logger.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	scheduler.Stop(ctx)

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error().Err(err).Msg("close error")
		}
	}
	logger.Info().Msg("server exited cleanly")
}
