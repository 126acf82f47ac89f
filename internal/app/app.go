// Package app assembles the components shared by the api and worker
// binaries.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"cuterank/internal/archive"
	"cuterank/internal/clients"
	"cuterank/internal/config"
	"cuterank/internal/database"
	"cuterank/internal/dedup"
	"cuterank/internal/imagecache"
	"cuterank/internal/ranking"
	"cuterank/internal/repository"
	"cuterank/internal/repository/memstore"
	"cuterank/internal/service"
	"cuterank/internal/storage"
	"cuterank/internal/tasks"
	"cuterank/internal/transport"
	"cuterank/internal/warnings"
)

type SubmissionStore interface {
	service.SubmissionStore
	ranking.Store
	archive.Store
}

type Stores struct {
	Submissions  SubmissionStore
	Fingerprints dedup.Store
	Warnings     warnings.Store
	Avatars      service.AvatarStore
	// Pool is nil for the memory driver.
	Pool *pgxpool.Pool
}

func (s Stores) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

func OpenStores(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (Stores, error) {
	if cfg.Store.Driver == "memory" {
		logger.Warn().Msg("using in-memory store, nothing survives a restart")
		mem := memstore.New()
		return Stores{
			Submissions:  mem.Submissions(),
			Fingerprints: mem.Fingerprints(),
			Warnings:     mem.Warnings(),
			Avatars:      mem.Avatars(),
		}, nil
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return Stores{}, fmt.Errorf("connect postgres: %w", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return Stores{}, fmt.Errorf("migrate: %w", err)
	}
	return Stores{
		Submissions:  repository.NewSubmissionRepository(pool),
		Fingerprints: repository.NewFingerprintRepository(pool),
		Warnings:     repository.NewWarningRepository(pool),
		Avatars:      repository.NewAvatarRepository(pool),
		Pool:         pool,
	}, nil
}

// OpenObjects connects to MinIO and makes sure the buckets exist.
func OpenObjects(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (*storage.ObjectStore, *transport.Transport, error) {
	objects, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("init object store: %w", err)
	}
	var extra []string
	if cfg.Archive.Driver == "minio" {
		extra = append(extra, cfg.Archive.Bucket)
	}
	if err := objects.EnsureBuckets(ctx, extra...); err != nil {
		logger.Warn().Err(err).Msg("ensure buckets failed")
	}
	tr := transport.New(objects, cfg.Storage.BucketOriginals, cfg.Storage.BucketScratch, logger)
	return objects, tr, nil
}

// NewProcessor builds the handler for archive and repair tasks.
func NewProcessor(ctx context.Context, cfg *config.AppConfig, subs archive.Store, objects *storage.ObjectStore, tr *transport.Transport, cache *imagecache.Dir, logger zerolog.Logger) (*tasks.Processor, error) {
	var uploader archive.Uploader
	switch cfg.Archive.Driver {
	case "s3":
		s3u, err := archive.NewS3Uploader(ctx, cfg.Archive)
		if err != nil {
			return nil, err
		}
		uploader = s3u
	default:
		uploader = archive.NewMinioUploader(objects, cfg.Archive.Bucket)
	}

	archiver := archive.NewArchiver(uploader, cache, logger)
	repairer := archive.NewRepairer(subs, tr, cache, cfg.Policy.TopListSize, logger)
	return tasks.NewProcessor(archiver, repairer, logger), nil
}

type Collaborators struct {
	Scorer   service.Scorer
	NSFW     service.NSFWClassifier
	Renderer service.Renderer
}

// NewCollaborators returns HTTP clients for the configured services. NSFW
// and Renderer stay nil when their URL is empty.
func NewCollaborators(cfg config.CollaboratorsConfig, logger zerolog.Logger) (Collaborators, error) {
	if cfg.ScorerURL == "" {
		return Collaborators{}, fmt.Errorf("collaborators.scorerurl is required")
	}
	client := clients.NewHTTPClient(clients.Options{
		Timeout:  cfg.Timeout,
		RetryMax: cfg.RetryMax,
	}, logger)

	c := Collaborators{Scorer: clients.NewScorer(cfg.ScorerURL, client)}
	if cfg.NSFWURL != "" {
		c.NSFW = clients.NewNSFWClassifier(cfg.NSFWURL, client)
	}
	if cfg.RendererURL != "" {
		c.Renderer = clients.NewRenderer(cfg.RendererURL, client)
	}
	return c, nil
}
