package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"cuterank/internal/fingerprint"
	"cuterank/internal/models"
)

type FingerprintRepository struct {
	db DBTX
}

func NewFingerprintRepository(db DBTX) *FingerprintRepository {
	return &FingerprintRepository{db: db}
}

func scanFingerprint(row pgx.Row) (models.FingerprintEntry, error) {
	var (
		e     models.FingerprintEntry
		phash *int64
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.ImageHash, &phash, &e.CreatedAt); err != nil {
		return models.FingerprintEntry{}, err
	}
	if phash != nil {
		v := uint64(*phash)
		e.Perceptual = &v
	}
	return e, nil
}

// Reserve inserts a new entry. inserted is false when another entry already
// holds the exact hash; the existing entry is returned in that case.
func (r *FingerprintRepository) Reserve(ctx context.Context, e models.FingerprintEntry) (models.FingerprintEntry, bool, error) {
	const query = `
		INSERT INTO image_hashes (user_id, image_hash, phash, band0, band1, band2, band3, band4, band5, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (image_hash) DO NOTHING
		RETURNING id, created_at
	`
	var (
		phash *int64
		bands [fingerprint.BandCount]*int32
	)
	if e.Perceptual != nil {
		v := int64(*e.Perceptual)
		phash = &v
		b := fingerprint.Bands(*e.Perceptual)
		for i := range b {
			bands[i] = &b[i]
		}
	}

	err := r.db.QueryRow(ctx, query,
		e.UserID, e.ImageHash, phash,
		bands[0], bands[1], bands[2], bands[3], bands[4], bands[5],
	).Scan(&e.ID, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, gerr := r.GetByExactHash(ctx, e.ImageHash)
		if gerr != nil {
			return models.FingerprintEntry{}, false, gerr
		}
		return existing, false, nil
	}
	if err != nil {
		return models.FingerprintEntry{}, false, fmt.Errorf("reserve fingerprint: %w", err)
	}
	return e, true, nil
}

func (r *FingerprintRepository) GetByExactHash(ctx context.Context, hash string) (models.FingerprintEntry, error) {
	const query = `SELECT id, user_id, image_hash, phash, created_at FROM image_hashes WHERE image_hash = $1`
	e, err := scanFingerprint(r.db.QueryRow(ctx, query, hash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.FingerprintEntry{}, ErrFingerprintNotFound
		}
		return models.FingerprintEntry{}, err
	}
	return e, nil
}

// Candidates returns entries sharing at least one band with the probe, in
// insertion order. A nil probe returns every entry with a perceptual hash.
func (r *FingerprintRepository) Candidates(ctx context.Context, bands *[fingerprint.BandCount]int32) ([]models.FingerprintEntry, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if bands == nil {
		const query = `
			SELECT id, user_id, image_hash, phash, created_at
			FROM image_hashes
			WHERE phash IS NOT NULL
			ORDER BY id
		`
		rows, err = r.db.Query(ctx, query)
	} else {
		const query = `
			SELECT id, user_id, image_hash, phash, created_at
			FROM image_hashes
			WHERE band0 = $1 OR band1 = $2 OR band2 = $3 OR band3 = $4 OR band4 = $5 OR band5 = $6
			ORDER BY id
		`
		b := *bands
		rows, err = r.db.Query(ctx, query, b[0], b[1], b[2], b[3], b[4], b[5])
	}
	if err != nil {
		return nil, fmt.Errorf("fingerprint candidates: %w", err)
	}
	defer rows.Close()

	var out []models.FingerprintEntry
	for rows.Next() {
		e, err := scanFingerprint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *FingerprintRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM image_hashes WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrFingerprintNotFound
	}
	return nil
}
