package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuterank/internal/models"
)

var fixedTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

var submissionCols = []string{"id", "user_id", "username", "transport_ref", "image_hash", "score", "nsfw", "status", "flagged", "filename", "created_at"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func TestSubmissionRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewSubmissionRepository(mock)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO images`).
		WithArgs(int64(7), pgxmock.AnyArg(), "orig/7/a", "abc", 72.4, false, models.StatusPending, false, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), now))

	got, err := repo.Create(context.Background(), models.Submission{
		UserID:       7,
		TransportRef: "orig/7/a",
		ImageHash:    "abc",
		RawScore:     72.4,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.ID)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, now, got.CreatedAt)
}

func TestSubmissionRepository_GetByIDNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewSubmissionRepository(mock)

	mock.ExpectQuery(`FROM images WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 5)
	assert.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestSubmissionRepository_CountHigherScore(t *testing.T) {
	mock := newMock(t)
	repo := NewSubmissionRepository(mock)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM images WHERE score > \$1`).
		WithArgs(50.0).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.CountHigherScore(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSubmissionRepository_TopRequeriesOnEachRange(t *testing.T) {
	mock := newMock(t)
	repo := NewSubmissionRepository(mock)
	now := time.Now()
	name := "alice"

	for range 2 {
		mock.ExpectQuery(`WHERE status = 'approved' AND nsfw = FALSE`).
			WithArgs(2).
			WillReturnRows(pgxmock.NewRows(submissionCols).
				AddRow(int64(1), int64(10), &name, "r1", "h1", 90.0, false, models.StatusApproved, false, (*string)(nil), now).
				AddRow(int64(2), int64(11), (*string)(nil), "r2", "h2", 80.0, false, models.StatusApproved, false, (*string)(nil), now))
	}

	seq := repo.Top(context.Background(), 2)
	for range 2 {
		var ids []int64
		for s, err := range seq {
			require.NoError(t, err)
			ids = append(ids, s.ID)
		}
		assert.Equal(t, []int64{1, 2}, ids)
	}
}

func TestSubmissionRepository_SetStatusMissing(t *testing.T) {
	mock := newMock(t)
	repo := NewSubmissionRepository(mock)

	mock.ExpectExec(`UPDATE images SET status`).
		WithArgs(int64(9), models.StatusApproved).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.SetStatus(context.Background(), 9, models.StatusApproved)
	assert.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestSubmissionRepository_ClearFilename(t *testing.T) {
	mock := newMock(t)
	repo := NewSubmissionRepository(mock)

	mock.ExpectExec(`UPDATE images SET filename = NULL`).
		WithArgs(int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.ClearFilename(context.Background(), 9))
}

func TestSubmissionRepository_RejectAlreadyRejected(t *testing.T) {
	mock := newMock(t)
	repo := NewSubmissionRepository(mock)

	mock.ExpectExec(`UPDATE images SET status = 'rejected'`).
		WithArgs(int64(4)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`FROM images WHERE id = \$1`).
		WithArgs(int64(4)).
		WillReturnRows(pgxmock.NewRows(submissionCols).
			AddRow(int64(4), int64(1), (*string)(nil), "r", "h", 10.0, false, models.StatusRejected, false, (*string)(nil), fixedTime))

	changed, err := repo.Reject(context.Background(), 4)
	require.NoError(t, err)
	assert.False(t, changed)
}
