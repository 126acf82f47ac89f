package service

import (
	"context"

	"cuterank/internal/clients"
	"cuterank/internal/dedup"
	"cuterank/internal/models"
	"cuterank/internal/repository"
)

type SubmissionStore interface {
	Create(ctx context.Context, s models.Submission) (models.Submission, error)
	GetByID(ctx context.Context, id int64) (models.Submission, error)
	GetByExactHash(ctx context.Context, hash string) (models.Submission, error)
	SetStatus(ctx context.Context, id int64, status models.ModerationStatus) error
	Reject(ctx context.Context, id int64) (bool, error)
	MarkFlagged(ctx context.Context, id int64) error
	ClearFilename(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter repository.ListFilter, limit, offset int) ([]models.Submission, error)
	Stats(ctx context.Context) (models.Stats, error)
}

type AvatarStore interface {
	Upsert(ctx context.Context, a models.Avatar) error
	Get(ctx context.Context, userID int64) (models.Avatar, error)
}

type Ledger interface {
	Get(ctx context.Context, userID int64) (models.WarningState, error)
	AddWarning(ctx context.Context, userID int64) (models.WarningState, error)
	Reset(ctx context.Context, userID int64) (models.WarningState, error)
	Ban(ctx context.Context, userID int64) (models.WarningState, error)
	Threshold() int
}

type DuplicateDetector interface {
	Check(ctx context.Context, userID int64, data []byte) (dedup.Result, error)
	Release(ctx context.Context, entryID int64) error
}

type Ranker interface {
	Rank(ctx context.Context, score float64) (int, error)
	Collect(ctx context.Context, n int) ([]models.Submission, error)
}

type Scorer interface {
	Score(ctx context.Context, image []byte) (float64, error)
}

type NSFWClassifier interface {
	Check(ctx context.Context, image []byte) (bool, error)
}

type Renderer interface {
	Compose(ctx context.Context, card clients.Card) ([]byte, error)
}

type Transport interface {
	StoreOriginal(ctx context.Context, userID int64, data []byte, contentType string) (string, error)
	DeleteOriginal(ctx context.Context, ref string) error
}

type ImageCache interface {
	Write(name string, data []byte) error
	Read(name string) ([]byte, error)
	Remove(name string) error
}
