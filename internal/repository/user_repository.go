package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"cuterank/internal/models"
)

type WarningRepository struct {
	db DBTX
}

func NewWarningRepository(db DBTX) *WarningRepository {
	return &WarningRepository{db: db}
}

func (r *WarningRepository) Get(ctx context.Context, userID int64) (models.WarningState, error) {
	const query = `SELECT warnings, banned FROM user_warnings WHERE user_id = $1`
	st := models.WarningState{UserID: userID}
	err := r.db.QueryRow(ctx, query, userID).Scan(&st.Warnings, &st.Banned)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return models.WarningState{}, fmt.Errorf("get warnings: %w", err)
	}
	return st, nil
}

// Increment adds one warning in a single statement and flips banned once the
// new count reaches threshold.
func (r *WarningRepository) Increment(ctx context.Context, userID int64, threshold int) (models.WarningState, error) {
	const query = `
		INSERT INTO user_warnings (user_id, warnings, banned)
		VALUES ($1, 1, 1 >= $2)
		ON CONFLICT (user_id) DO UPDATE SET
			warnings = user_warnings.warnings + 1,
			banned = user_warnings.warnings + 1 >= $2
		RETURNING warnings, banned
	`
	st := models.WarningState{UserID: userID}
	if err := r.db.QueryRow(ctx, query, userID, threshold).Scan(&st.Warnings, &st.Banned); err != nil {
		return models.WarningState{}, fmt.Errorf("increment warnings: %w", err)
	}
	return st, nil
}

// Ban marks the user banned and lifts the count to at least threshold.
func (r *WarningRepository) Ban(ctx context.Context, userID int64, threshold int) (models.WarningState, error) {
	const query = `
		INSERT INTO user_warnings (user_id, warnings, banned)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (user_id) DO UPDATE SET
			warnings = GREATEST(user_warnings.warnings, $2),
			banned = TRUE
		RETURNING warnings, banned
	`
	st := models.WarningState{UserID: userID}
	if err := r.db.QueryRow(ctx, query, userID, threshold).Scan(&st.Warnings, &st.Banned); err != nil {
		return models.WarningState{}, fmt.Errorf("ban user: %w", err)
	}
	return st, nil
}

func (r *WarningRepository) Put(ctx context.Context, st models.WarningState) error {
	const query = `
		INSERT INTO user_warnings (user_id, warnings, banned)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			warnings = EXCLUDED.warnings,
			banned = EXCLUDED.banned
	`
	if _, err := r.db.Exec(ctx, query, st.UserID, st.Warnings, st.Banned); err != nil {
		return fmt.Errorf("put warnings: %w", err)
	}
	return nil
}

type AvatarRepository struct {
	db DBTX
}

func NewAvatarRepository(db DBTX) *AvatarRepository {
	return &AvatarRepository{db: db}
}

// Upsert writes the snapshot only when it differs from the stored one.
func (r *AvatarRepository) Upsert(ctx context.Context, a models.Avatar) error {
	const query = `
		INSERT INTO user_avatars (user_id, username, userpic, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			userpic = EXCLUDED.userpic,
			updated_at = NOW()
		WHERE user_avatars.userpic IS DISTINCT FROM EXCLUDED.userpic
		   OR user_avatars.username IS DISTINCT FROM EXCLUDED.username
	`
	if _, err := r.db.Exec(ctx, query, a.UserID, a.Username, a.Userpic); err != nil {
		return fmt.Errorf("upsert avatar: %w", err)
	}
	return nil
}

func (r *AvatarRepository) Get(ctx context.Context, userID int64) (models.Avatar, error) {
	const query = `SELECT user_id, username, userpic, updated_at FROM user_avatars WHERE user_id = $1`
	var a models.Avatar
	err := r.db.QueryRow(ctx, query, userID).Scan(&a.UserID, &a.Username, &a.Userpic, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Avatar{}, ErrAvatarNotFound
		}
		return models.Avatar{}, err
	}
	return a, nil
}
