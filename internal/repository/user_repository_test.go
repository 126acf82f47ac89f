package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuterank/internal/fingerprint"
	"cuterank/internal/models"
)

func TestWarningRepository_GetDefaultsWhenAbsent(t *testing.T) {
	mock := newMock(t)
	repo := NewWarningRepository(mock)

	mock.ExpectQuery(`SELECT warnings, banned FROM user_warnings`).
		WithArgs(int64(3)).
		WillReturnError(pgx.ErrNoRows)

	st, err := repo.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, models.WarningState{UserID: 3}, st)
}

func TestWarningRepository_Increment(t *testing.T) {
	mock := newMock(t)
	repo := NewWarningRepository(mock)

	mock.ExpectQuery(`INSERT INTO user_warnings`).
		WithArgs(int64(3), 2).
		WillReturnRows(pgxmock.NewRows([]string{"warnings", "banned"}).AddRow(2, true))

	st, err := repo.Increment(context.Background(), 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Warnings)
	assert.True(t, st.Banned)
}

func TestWarningRepository_BanKeepsHigherCount(t *testing.T) {
	mock := newMock(t)
	repo := NewWarningRepository(mock)

	mock.ExpectQuery(`GREATEST\(user_warnings.warnings, \$2\)`).
		WithArgs(int64(3), 2).
		WillReturnRows(pgxmock.NewRows([]string{"warnings", "banned"}).AddRow(5, true))

	st, err := repo.Ban(context.Background(), 3, 2)
	require.NoError(t, err)
	assert.Equal(t, models.WarningState{UserID: 3, Warnings: 5, Banned: true}, st)
}

func TestFingerprintRepository_ReserveConflictReturnsWinner(t *testing.T) {
	mock := newMock(t)
	repo := NewFingerprintRepository(mock)
	hash := uint64(42)

	mock.ExpectQuery(`INSERT INTO image_hashes`).
		WithArgs(int64(2), "h", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`FROM image_hashes WHERE image_hash = \$1`).
		WithArgs("h").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "image_hash", "phash", "created_at"}).
			AddRow(int64(1), int64(1), "h", (*int64)(nil), fixedTime))

	e, inserted, err := repo.Reserve(context.Background(), models.FingerprintEntry{UserID: 2, ImageHash: "h", Perceptual: &hash})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, int64(1), e.UserID)
}

func TestFingerprintRepository_CandidatesByBand(t *testing.T) {
	mock := newMock(t)
	repo := NewFingerprintRepository(mock)
	b := fingerprint.Bands(0xFFFF)
	ph := int64(0xFFFF)

	mock.ExpectQuery(`WHERE band0 = \$1 OR band1`).
		WithArgs(b[0], b[1], b[2], b[3], b[4], b[5]).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "image_hash", "phash", "created_at"}).
			AddRow(int64(4), int64(9), "x", &ph, fixedTime))

	got, err := repo.Candidates(context.Background(), &b)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Perceptual)
	assert.Equal(t, uint64(0xFFFF), *got[0].Perceptual)
}

func TestAvatarRepository_GetMissing(t *testing.T) {
	mock := newMock(t)
	repo := NewAvatarRepository(mock)

	mock.ExpectQuery(`FROM user_avatars`).
		WithArgs(int64(1)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), 1)
	assert.ErrorIs(t, err, ErrAvatarNotFound)
}
