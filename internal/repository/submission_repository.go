package repository

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/jackc/pgx/v5"

	"cuterank/internal/models"
)

// ListFilter narrows admin listings.
type ListFilter string

const (
	ListPending ListFilter = "pending"
	ListFlagged ListFilter = "flagged"
)

type SubmissionRepository struct {
	db DBTX
}

func NewSubmissionRepository(db DBTX) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

const submissionColumns = `id, user_id, username, transport_ref, image_hash, score, nsfw, status, flagged, filename, created_at`

func scanSubmission(row pgx.Row) (models.Submission, error) {
	var s models.Submission
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Username,
		&s.TransportRef,
		&s.ImageHash,
		&s.RawScore,
		&s.NSFW,
		&s.Status,
		&s.Flagged,
		&s.Filename,
		&s.CreatedAt,
	)
	return s, err
}

func (r *SubmissionRepository) Create(ctx context.Context, s models.Submission) (models.Submission, error) {
	const query = `
		INSERT INTO images (
			user_id, username, transport_ref, image_hash, score, nsfw, status, flagged, filename, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, NOW()
		)
		RETURNING id, created_at
	`
	if s.Status == "" {
		s.Status = models.StatusPending
	}
	err := r.db.QueryRow(ctx, query,
		s.UserID,
		s.Username,
		s.TransportRef,
		s.ImageHash,
		s.RawScore,
		s.NSFW,
		s.Status,
		s.Flagged,
		s.Filename,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return models.Submission{}, fmt.Errorf("insert submission: %w", err)
	}
	return s, nil
}

func (r *SubmissionRepository) GetByID(ctx context.Context, id int64) (models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM images WHERE id = $1`
	s, err := scanSubmission(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}
	return s, nil
}

// GetByExactHash returns the earliest submission carrying the hash.
func (r *SubmissionRepository) GetByExactHash(ctx context.Context, hash string) (models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM images WHERE image_hash = $1 ORDER BY id LIMIT 1`
	s, err := scanSubmission(r.db.QueryRow(ctx, query, hash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}
	return s, nil
}

func (r *SubmissionRepository) CountHigherScore(ctx context.Context, score float64) (int, error) {
	const query = `SELECT COUNT(*) FROM images WHERE score > $1`
	var n int
	if err := r.db.QueryRow(ctx, query, score).Scan(&n); err != nil {
		return 0, fmt.Errorf("count higher: %w", err)
	}
	return n, nil
}

// Top yields approved, non-NSFW submissions by descending score. Every range
// over the returned sequence runs a fresh query.
func (r *SubmissionRepository) Top(ctx context.Context, n int) iter.Seq2[models.Submission, error] {
	query := `
		SELECT ` + submissionColumns + `
		FROM images
		WHERE status = 'approved' AND nsfw = FALSE
		ORDER BY score DESC, id ASC
		LIMIT $1
	`
	return func(yield func(models.Submission, error) bool) {
		rows, err := r.db.Query(ctx, query, n)
		if err != nil {
			yield(models.Submission{}, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			s, err := scanSubmission(rows)
			if !yield(s, err) || err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(models.Submission{}, err)
		}
	}
}

func (r *SubmissionRepository) SetStatus(ctx context.Context, id int64, status models.ModerationStatus) error {
	const query = `UPDATE images SET status = $2 WHERE id = $1`
	return r.execOne(ctx, query, id, status)
}

// Reject moves a submission to rejected. changed is false when it already
// was rejected, which lets callers apply side effects exactly once.
func (r *SubmissionRepository) Reject(ctx context.Context, id int64) (bool, error) {
	const query = `UPDATE images SET status = 'rejected' WHERE id = $1 AND status <> 'rejected'`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *SubmissionRepository) MarkFlagged(ctx context.Context, id int64) error {
	const query = `UPDATE images SET flagged = TRUE WHERE id = $1`
	return r.execOne(ctx, query, id)
}

func (r *SubmissionRepository) SetFilename(ctx context.Context, id int64, filename string) error {
	const query = `UPDATE images SET filename = $2 WHERE id = $1`
	return r.execOne(ctx, query, id, filename)
}

func (r *SubmissionRepository) ClearFilename(ctx context.Context, id int64) error {
	const query = `UPDATE images SET filename = NULL WHERE id = $1`
	return r.execOne(ctx, query, id)
}

func (r *SubmissionRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM images WHERE id = $1`
	return r.execOne(ctx, query, id)
}

func (r *SubmissionRepository) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}

func (r *SubmissionRepository) List(ctx context.Context, filter ListFilter, limit, offset int) ([]models.Submission, error) {
	where := `status = 'pending'`
	if filter == ListFlagged {
		where = `flagged = TRUE AND status = 'pending'`
	}
	query := `
		SELECT ` + submissionColumns + `
		FROM images
		WHERE ` + where + `
		ORDER BY score DESC, id ASC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SubmissionRepository) Stats(ctx context.Context) (models.Stats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'approved'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'rejected'),
			COUNT(*) FILTER (WHERE flagged AND status = 'pending'),
			COUNT(DISTINCT user_id),
			(SELECT COUNT(*) FROM user_warnings WHERE banned),
			COUNT(*) FILTER (WHERE created_at >= date_trunc('day', NOW())),
			COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '7 days'),
			COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '30 days')
		FROM images
	`
	var st models.Stats
	err := r.db.QueryRow(ctx, query).Scan(
		&st.TotalImages,
		&st.Approved,
		&st.Pending,
		&st.Rejected,
		&st.Flagged,
		&st.Users,
		&st.BannedUsers,
		&st.Today,
		&st.Week,
		&st.Month,
	)
	if err != nil {
		return models.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}
